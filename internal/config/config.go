package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/validator"
	anomalysvc "github.com/resto-planning/pointage-backend-go/internal/service/anomaly"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Anomaly  AnomalyConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// JWTConfig holds the verification key shared with the identity provider
type JWTConfig struct {
	Secret string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// AnomalyConfig holds the reconciliation rules and the jobs around them
type AnomalyConfig struct {
	Timezone                  string
	CutoffHour                int
	SplitGapMinutes           int
	DeviationThresholdMinutes int
	LateHighThresholdMinutes  int
	AbsenceGraceMinutes       int
	MaxBlocksPerWorkDay       int
	ReplacementUrgentMinutes  int
	ReplacementSoonMinutes    int
	LiveAlertInterval         time.Duration
	ReportCacheTTL            time.Duration
	ReportCacheSize           int
	FetchRetryAttempts        int
}

// Load reads the environment, with an optional .env file in the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}
	var err error

	// Database configuration
	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	dbMaxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	dbMaxConnLifetime, err := getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour)
	if err != nil {
		return nil, err
	}

	config.Database = DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            dbPort,
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		Name:            getEnv("DB_NAME", "pointage"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxConns:        int32(dbMaxConns),
		MaxConnLifetime: dbMaxConnLifetime,
	}

	// Application configuration
	appPort, err := getEnvInt("APP_PORT", 8080)
	if err != nil {
		return nil, err
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	config.JWT = JWTConfig{
		Secret: getEnv("JWT_SECRET_KEY", ""),
	}

	// Reconciliation rules
	ints := []struct {
		key      string
		fallback int
		dst      *int
	}{
		{"WORKDAY_CUTOFF_HOUR", anomalysvc.DefaultCutoffHour, &config.Anomaly.CutoffHour},
		{"SPLIT_GAP_MINUTES", anomalysvc.DefaultSplitGapMinutes, &config.Anomaly.SplitGapMinutes},
		{"DEVIATION_THRESHOLD_MINUTES", int(anomalysvc.DefaultDeviationThreshold / time.Minute), &config.Anomaly.DeviationThresholdMinutes},
		{"LATE_HIGH_THRESHOLD_MINUTES", int(anomalysvc.DefaultLateHighThreshold / time.Minute), &config.Anomaly.LateHighThresholdMinutes},
		{"ABSENCE_GRACE_MINUTES", int(anomalysvc.DefaultAbsenceGrace / time.Minute), &config.Anomaly.AbsenceGraceMinutes},
		{"MAX_BLOCKS_PER_WORKDAY", anomalysvc.DefaultMaxBlocksPerWorkDay, &config.Anomaly.MaxBlocksPerWorkDay},
		{"REPLACEMENT_URGENT_MINUTES", int(anomalysvc.DefaultReplacementUrgent / time.Minute), &config.Anomaly.ReplacementUrgentMinutes},
		{"REPLACEMENT_SOON_MINUTES", int(anomalysvc.DefaultReplacementSoon / time.Minute), &config.Anomaly.ReplacementSoonMinutes},
		{"REPORT_CACHE_SIZE", 1000, &config.Anomaly.ReportCacheSize},
		{"FETCH_RETRY_ATTEMPTS", 3, &config.Anomaly.FetchRetryAttempts},
	}
	for _, v := range ints {
		if *v.dst, err = getEnvInt(v.key, v.fallback); err != nil {
			return nil, err
		}
	}

	config.Anomaly.Timezone = getEnv("TIMEZONE", "Europe/Paris")
	if config.Anomaly.LiveAlertInterval, err = getEnvDuration("LIVE_ALERT_INTERVAL", 2*time.Minute); err != nil {
		return nil, err
	}
	if config.Anomaly.ReportCacheTTL, err = getEnvDuration("REPORT_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if validator.IsEmpty(c.Database.Password) {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if validator.IsEmpty(c.JWT.Secret) {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Anomaly.LiveAlertInterval <= 0 {
		return fmt.Errorf("LIVE_ALERT_INTERVAL must be positive")
	}
	if c.Anomaly.FetchRetryAttempts < 1 {
		return fmt.Errorf("FETCH_RETRY_ATTEMPTS must be at least 1")
	}
	if c.Anomaly.ReportCacheSize < 1 {
		return fmt.Errorf("REPORT_CACHE_SIZE must be at least 1")
	}
	if _, err := c.Rules(); err != nil {
		return err
	}
	return nil
}

// Rules builds the reconciliation rules in the restaurant's timezone.
func (c *Config) Rules() (anomalysvc.Rules, error) {
	loc, err := time.LoadLocation(c.Anomaly.Timezone)
	if err != nil {
		return anomalysvc.Rules{}, fmt.Errorf("invalid TIMEZONE %q: %w", c.Anomaly.Timezone, err)
	}

	rules := anomalysvc.Rules{
		CutoffHour:          c.Anomaly.CutoffHour,
		Location:            loc,
		SplitGapMinutes:     c.Anomaly.SplitGapMinutes,
		DeviationThreshold:  minutes(c.Anomaly.DeviationThresholdMinutes),
		LateHighThreshold:   minutes(c.Anomaly.LateHighThresholdMinutes),
		AbsenceGrace:        minutes(c.Anomaly.AbsenceGraceMinutes),
		MaxBlocksPerWorkDay: c.Anomaly.MaxBlocksPerWorkDay,
		ReplacementUrgent:   minutes(c.Anomaly.ReplacementUrgentMinutes),
		ReplacementSoon:     minutes(c.Anomaly.ReplacementSoonMinutes),
	}
	if err := rules.Validate(); err != nil {
		return anomalysvc.Rules{}, err
	}
	return rules, nil
}

// SlogLevel maps LOG_LEVEL onto slog, defaulting to info.
func (a AppConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvSlice(key string, fallback []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
