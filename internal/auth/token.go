// Package auth holds the bearer token used for calls to the reward system.
package auth

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptyToken   = errors.New("token cannot be empty")
	ErrTokenExpired = errors.New("token is expired")
)

// TokenSource yields the token to attach to the next outbound call.
// An empty string means no usable token.
type TokenSource interface {
	Current() string
}

// TokenStore is the process-wide bearer token. Opaque tokens are accepted
// as is; JWTs are inspected (not verified) for their expiry so an expired
// token reads as absent.
type TokenStore struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	now       func() time.Time
	logger    *slog.Logger
}

// NewTokenStore creates a store, optionally seeded with an initial token
func NewTokenStore(logger *slog.Logger, initial string) *TokenStore {
	s := &TokenStore{now: time.Now, logger: logger}
	if initial != "" {
		if err := s.Set(initial); err != nil {
			logger.Warn("Ignoring configured auth token", "error", err)
		}
	}
	return s
}

// Set replaces the current token
func (s *TokenStore) Set(token string) error {
	token = strings.TrimSpace(token)
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return ErrEmptyToken
	}

	expiresAt := s.expiry(token)
	if !expiresAt.IsZero() && !s.now().Before(expiresAt) {
		return ErrTokenExpired
	}

	s.mu.Lock()
	s.token = token
	s.expiresAt = expiresAt
	s.mu.Unlock()

	s.logger.Info("Auth token updated", "has_expiry", !expiresAt.IsZero(), "expires_at", expiresAt)
	return nil
}

// Clear drops the current token
func (s *TokenStore) Clear() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
	s.logger.Info("Auth token cleared")
}

// Current returns the token, or "" if none is set or it has expired
func (s *TokenStore) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return ""
	}
	if !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt) {
		return ""
	}
	return s.token
}

// ExpiresAt returns the token expiry when the token is a JWT carrying one
func (s *TokenStore) ExpiresAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt, !s.expiresAt.IsZero()
}

func (s *TokenStore) expiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
