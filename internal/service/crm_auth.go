package service

import (
	"crypto/subtle"
	"time"

	"hotelbook/config"
	"hotelbook/internal/auth"

	"golang.org/x/crypto/bcrypt"
)

// CRMAuthService checks the shared front-desk password and issues session tokens.
type CRMAuthService struct {
	cfg *config.CRMConfig
	now func() time.Time
}

func NewCRMAuthService(cfg *config.CRMConfig) *CRMAuthService {
	return &CRMAuthService{cfg: cfg, now: time.Now}
}

type CRMSession struct {
	Operator  string    `json:"operator"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *CRMAuthService) Login(operator, password string) (*CRMSession, error) {
	if s.cfg.PasswordHash == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if operator == "" {
		operator = "frontdesk"
	}
	tok, exp, err := auth.GenerateCRMToken(s.cfg, operator, s.now())
	if err != nil {
		return nil, err
	}
	return &CRMSession{Operator: operator, Token: tok, ExpiresAt: exp}, nil
}

// Authenticate accepts the static CRM token or a session JWT and returns the operator name.
func (s *CRMAuthService) Authenticate(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	if s.cfg.Token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Token)) == 1 {
		return "token", true
	}
	claims, err := auth.ParseCRMToken(s.cfg, token)
	if err != nil {
		return "", false
	}
	return claims.Operator, true
}
