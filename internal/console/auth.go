package console

import (
	"context"
	"time"

	"github.com/lexintake/console/pkg/auth"
	"github.com/lexintake/console/pkg/observability/logger"
)

// Session is an issued admin token.
type Session struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthService logs the admin in.
type AuthService struct {
	creds  *auth.AdminCredentials
	tokens *auth.HMACTokens
	log    logger.Logger
}

// NewAuthService creates the service.
func NewAuthService(creds *auth.AdminCredentials, tokens *auth.HMACTokens, log logger.Logger) *AuthService {
	if log == nil {
		log = logger.NewNop()
	}
	return &AuthService{creds: creds, tokens: tokens, log: log}
}

// Login checks the credentials and issues an admin token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	if err := s.creds.Authenticate(username, password); err != nil {
		s.log.WithContext(ctx).Warn("admin login rejected")
		return nil, &Error{Kind: KindUnauthorized, Code: "auth.invalid_credentials", Message: "invalid username or password", Cause: err}
	}
	token, expires, err := s.tokens.Issue(s.creds.Username(), auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.log.WithContext(ctx).Info("admin logged in")
	return &Session{Token: token, TokenType: "Bearer", ExpiresAt: expires}, nil
}
