package auth

import (
	"errors"
	"time"

	"hotelbook/config"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies a CRM operator session.
type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("crm jwt secret not configured")
)

func GenerateCRMToken(cfg *config.CRMConfig, operator string, now time.Time) (string, time.Time, error) {
	if cfg.JWTSecret == "" {
		return "", time.Time{}, ErrNoSecret
	}
	expiry := cfg.TokenExpiry
	if expiry <= 0 {
		expiry = 12 * time.Hour
	}
	expiresAt := now.Add(expiry)
	claims := Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func ParseCRMToken(cfg *config.CRMConfig, tokenString string) (*Claims, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(cfg.Issuer))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
