package service

import (
	"context"
	"fmt"
	"log/slog"
)

// AuthServiceImpl implements the AuthService interface
type AuthServiceImpl struct {
	tokens TokenHolder
	logger *slog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(logger *slog.Logger, tokens TokenHolder) AuthService {
	return &AuthServiceImpl{
		tokens: tokens,
		logger: logger,
	}
}

// SetToken replaces the bearer token. Points requests in flight read the new
// token on their next poll.
func (s *AuthServiceImpl) SetToken(ctx context.Context, token string) (TokenStatus, error) {
	if err := s.tokens.Set(token); err != nil {
		return TokenStatus{}, fmt.Errorf("failed to set token: %w", err)
	}

	status := s.Status(ctx)
	s.logger.Debug("Token status after update", "present", status.Present, "expires_at", status.ExpiresAt)
	return status, nil
}

func (s *AuthServiceImpl) ClearToken(_ context.Context) {
	s.tokens.Clear()
	s.logger.Debug("Token cleared through API")
}

// Status reports whether a usable token is held
func (s *AuthServiceImpl) Status(_ context.Context) TokenStatus {
	status := TokenStatus{Present: s.tokens.Current() != ""}
	if exp, ok := s.tokens.ExpiresAt(); ok {
		status.ExpiresAt = &exp
	}
	return status
}
