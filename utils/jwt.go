package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceRole is the Supabase role allowed to trigger background jobs.
const ServiceRole = "service_role"

type ServiceClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateServiceToken signs a service-role token, used by schedulers and tests.
func GenerateServiceToken(secret string, ttl time.Duration) (string, error) {
	claims := &ServiceClaims{
		Role: ServiceRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "supabase",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseServiceToken(tokenString, secret string) (*ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Role != ServiceRole {
		return nil, errors.New("token is not a service role token")
	}

	return claims, nil
}
