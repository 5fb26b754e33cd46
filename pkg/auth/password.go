package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any username or password mismatch.
var ErrInvalidCredentials = errors.New("invalid credentials")

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// AdminCredentials checks logins against the single configured admin account.
type AdminCredentials struct {
	username string
	hash     []byte
}

// NewAdminCredentials validates the configured bcrypt hash.
func NewAdminCredentials(username, passwordHash string) (*AdminCredentials, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("admin username is required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("admin password hash is not a bcrypt hash: %w", err)
	}
	return &AdminCredentials{username: username, hash: []byte(passwordHash)}, nil
}

// Authenticate returns ErrInvalidCredentials unless both username and password match.
// The password hash is compared even for unknown usernames.
func (a *AdminCredentials) Authenticate(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(a.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Username returns the configured admin username.
func (a *AdminCredentials) Username() string {
	return a.username
}
