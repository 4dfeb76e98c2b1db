package auth

import (
	"errors"
	"testing"
	"time"

	"hotelbook/config"
)

func TestCRMTokenRoundTrip(t *testing.T) {
	cfg := &config.CRMConfig{JWTSecret: "s3cret", TokenExpiry: time.Hour, Issuer: "hotelbook-crm"}
	tok, exp, err := GenerateCRMToken(cfg, "frontdesk", time.Now())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry %v is in the past", exp)
	}
	claims, err := ParseCRMToken(cfg, tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Operator != "frontdesk" {
		t.Fatalf("operator = %q", claims.Operator)
	}
}

func TestParseCRMTokenRejects(t *testing.T) {
	cfg := &config.CRMConfig{JWTSecret: "s3cret", TokenExpiry: time.Hour, Issuer: "hotelbook-crm"}
	expired, _, err := GenerateCRMToken(cfg, "frontdesk", time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	other := &config.CRMConfig{JWTSecret: "different", TokenExpiry: time.Hour, Issuer: "hotelbook-crm"}
	forged, _, err := GenerateCRMToken(other, "frontdesk", time.Now())
	if err != nil {
		t.Fatal(err)
	}

	for name, tok := range map[string]string{"expired": expired, "wrong secret": forged, "garbage": "not-a-jwt"} {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCRMToken(cfg, tok); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestGenerateRequiresSecret(t *testing.T) {
	if _, _, err := GenerateCRMToken(&config.CRMConfig{}, "x", time.Now()); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("err = %v", err)
	}
}
