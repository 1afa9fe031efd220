package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer    = "cronchat"
	RoleAdmin = "admin"
)

var ErrInvalidToken = errors.New("invalid token")

type CustomClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 admin token for subject valid for ttl.
func GenerateToken(key []byte, subject string, ttl time.Duration) (string, error) {
	if len(key) == 0 {
		return "", errors.New("signing key is empty")
	}

	now := time.Now()
	claims := &CustomClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func ValidateToken(key []byte, tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleAdmin {
		return nil, fmt.Errorf("%w: role %q", ErrInvalidToken, claims.Role)
	}
	return claims, nil
}
