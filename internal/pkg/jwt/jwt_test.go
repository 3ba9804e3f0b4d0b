package jwt

import (
	"testing"
	"time"

	"github.com/resto-planning/pointage-backend-go/internal/domain/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt"

func issue(t *testing.T, svc Service, claims map[string]interface{}) string {
	t.Helper()
	_, token, err := svc.JWTAuth().Encode(claims)
	require.NoError(t, err)
	return token
}

func TestValidateStreamToken(t *testing.T) {
	svc := NewJWTService(testSecret)
	token := issue(t, svc, map[string]interface{}{
		"user_id":     "u-1",
		"employee_id": 7,
		"role":        "manager",
		"type":        "sse",
		"exp":         time.Now().Add(5 * time.Minute).Unix(),
	})

	p, err := svc.ValidateStreamToken(token)

	require.NoError(t, err)
	assert.Equal(t, "u-1", p.UserID)
	assert.Equal(t, auth.RoleManager, p.Role)
	require.NotNil(t, p.EmployeeID)
	assert.Equal(t, int64(7), *p.EmployeeID)
}

func TestValidateStreamToken_Rejects(t *testing.T) {
	svc := NewJWTService(testSecret)
	other := NewJWTService("another-secret")

	cases := map[string]string{
		"refresh token": issue(t, svc, map[string]interface{}{
			"user_id": "u-1", "type": "refresh", "exp": time.Now().Add(time.Hour).Unix(),
		}),
		"expired": issue(t, svc, map[string]interface{}{
			"user_id": "u-1", "type": "sse", "exp": time.Now().Add(-time.Hour).Unix(),
		}),
		"wrong signature": issue(t, other, map[string]interface{}{
			"user_id": "u-1", "type": "sse", "exp": time.Now().Add(time.Hour).Unix(),
		}),
		"garbage": "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateStreamToken(token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}
