package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"

	apperrors "doc-manager-app/pkg/errors"
	"doc-manager-app/pkg/logger"
)

// TokenItem is the keyring key holding the access token
const TokenItem = "access-token"

// SessionStore keeps the bearer token in the OS keychain. It implements
// Provider and can serve as the API client's token source.
type SessionStore struct {
	mu     sync.Mutex
	ring   keyring.Keyring
	now    func() time.Time
	logger *logger.Logger
}

// OpenSessionStore opens the platform keyring for service
func OpenSessionStore(service string, log *logger.Logger) (*SessionStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.KWalletBackend,
		},
	})
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrConfigurationError, "failed to open keyring", err)
	}
	return NewSessionStore(ring, log), nil
}

// NewSessionStore wraps an already opened keyring
func NewSessionStore(ring keyring.Keyring, log *logger.Logger) *SessionStore {
	if log == nil {
		log = logger.NewWithComponent("session")
	}
	return &SessionStore{ring: ring, now: time.Now, logger: log}
}

// Save stores a new access token, replacing any previous one
func (s *SessionStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.NewValidationError(apperrors.ErrInvalidInput, "access token cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ring.Set(keyring.Item{Key: TokenItem, Data: []byte(token), Label: "Document manager session"}); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	s.logger.Info("Session saved")
	return nil
}

// Token returns the stored token, or "" when there is no usable session.
// An expired JWT is removed.
func (s *SessionStore) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.ring.Get(TokenItem)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}

	token := string(item.Data)
	if s.expired(token) {
		s.logger.Info("Session expired")
		if err := s.ring.Remove(TokenItem); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			s.logger.WarnWithError("Failed to remove expired token", err)
		}
		return "", nil
	}
	return token, nil
}

// IsAuthenticated implements Provider
func (s *SessionStore) IsAuthenticated(ctx context.Context) (bool, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return false, err
	}
	return token != "", nil
}

// Clear signs out
func (s *SessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ring.Remove(TokenItem); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove access token: %w", err)
	}
	s.logger.Info("Session cleared")
	return nil
}

// expired reports whether token is a JWT whose exp claim has passed. The
// signature is not checked here; the server verifies it on every request.
// Opaque tokens never expire client-side.
func (s *SessionStore) expired(token string) bool {
	if strings.Count(token, ".") != 2 {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.Time.After(s.now())
}
