package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("JWT_SECRET_KEY", "jwt-secret")
}

func TestLoad_Defaults(t *testing.T) {
	// Setup
	setRequired(t)

	// Act
	cfg, err := Load()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Anomaly.CutoffHour)
	assert.Equal(t, 120, cfg.Anomaly.SplitGapMinutes)
	assert.Equal(t, 2*time.Minute, cfg.Anomaly.LiveAlertInterval)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.App.AllowedOrigins)

	rules, err := cfg.Rules()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", rules.Location.String())
	assert.Equal(t, 15*time.Minute, rules.LateHighThreshold)
}

func TestLoad_Overrides(t *testing.T) {
	// Setup
	setRequired(t)
	t.Setenv("WORKDAY_CUTOFF_HOUR", "5")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REPORT_CACHE_TTL", "1h")

	// Act
	cfg, err := Load()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Anomaly.CutoffHour)
	assert.Equal(t, time.Hour, cfg.Anomaly.ReportCacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.App.AllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"cutoff out of range", "WORKDAY_CUTOFF_HOUR", "24"},
		{"cutoff not a number", "WORKDAY_CUTOFF_HOUR", "six"},
		{"unknown timezone", "TIMEZONE", "Mars/Olympus"},
		{"bad duration", "LIVE_ALERT_INTERVAL", "soon"},
		{"no retries", "FETCH_RETRY_ATTEMPTS", "0"},
		{"soon below urgent", "REPLACEMENT_SOON_MINUTES", "60"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()

			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("JWT_SECRET_KEY", "")

	_, err := Load()

	assert.ErrorContains(t, err, "JWT_SECRET_KEY")
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", AppConfig{LogLevel: "debug"}.SlogLevel().String())
	assert.Equal(t, "INFO", AppConfig{LogLevel: "nonsense"}.SlogLevel().String())
}
