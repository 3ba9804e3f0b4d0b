package jwt

import (
	"context"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/resto-planning/pointage-backend-go/internal/domain/auth"
)

// Service verifies tokens issued by the identity provider. This backend never
// issues tokens itself.
type Service interface {
	JWTAuth() *jwtauth.JWTAuth
	ValidateStreamToken(tokenString string) (auth.Principal, error)
}

type JWTService struct {
	tokenAuth *jwtauth.JWTAuth
}

func NewJWTService(secretKey string) Service {
	return &JWTService{
		tokenAuth: jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

// ValidateStreamToken checks a token passed as query parameter, where
// EventSource cannot set headers. Short-lived "sse" tokens and access tokens
// are both accepted.
func (j *JWTService) ValidateStreamToken(tokenString string) (auth.Principal, error) {
	token, err := jwtauth.VerifyToken(j.tokenAuth, tokenString)
	if err != nil {
		return auth.Principal{}, auth.ErrInvalidToken
	}

	tokenType, ok := token.Get("type")
	if !ok || (tokenType != "sse" && tokenType != "access") {
		return auth.Principal{}, auth.ErrInvalidToken
	}

	claims, err := token.AsMap(context.Background())
	if err != nil {
		return auth.Principal{}, auth.ErrInvalidToken
	}
	return auth.PrincipalFromClaims(claims)
}
