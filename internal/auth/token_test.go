package auth

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestTokenStore_OpaqueToken(t *testing.T) {
	s := NewTokenStore(newTestLogger(), "")
	assert.Empty(t, s.Current())

	require.NoError(t, s.Set("Bearer abc123"))
	assert.Equal(t, "abc123", s.Current())
	_, ok := s.ExpiresAt()
	assert.False(t, ok)

	s.Clear()
	assert.Empty(t, s.Current())
	assert.ErrorIs(t, s.Set("   "), ErrEmptyToken)
}

func TestTokenStore_JWTExpiry(t *testing.T) {
	now := time.Now()
	s := NewTokenStore(newTestLogger(), "")
	s.now = func() time.Time { return now }

	valid := signedToken(t, now.Add(time.Minute))
	require.NoError(t, s.Set(valid))
	assert.Equal(t, valid, s.Current())
	exp, ok := s.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Minute).Unix(), exp.Unix())

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	assert.Empty(t, s.Current(), "expired token reads as absent")

	assert.ErrorIs(t, s.Set(signedToken(t, now.Add(-time.Hour))), ErrTokenExpired)
}

func TestNewTokenStore_IgnoresBadInitialToken(t *testing.T) {
	expired := signedToken(t, time.Now().Add(-time.Hour))
	s := NewTokenStore(newTestLogger(), expired)
	assert.Empty(t, s.Current())
}
