package service

import (
	"context"
	"time"

	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
)

// EntryService is what the HTTP layer needs to drive and inspect entries
type EntryService interface {
	Submit(ctx context.Context, image []byte) (entry.Entry, error)
	ListEntries(ctx context.Context, page, perPage int) ([]entry.Entry, int, error)
	GetEntry(ctx context.Context, id string) (entry.Entry, error)
	EntryImage(ctx context.Context, id string) ([]byte, string, error)
	RetryOCR(ctx context.Context, id, scanID string) (entry.Entry, error)
	RetryPoints(ctx context.Context, id, transactionID string) (entry.Entry, error)
	Cancel(ctx context.Context, id string) (entry.Entry, error)
	Delete(ctx context.Context, id string) error
	Select(ctx context.Context, id string) (entry.Entry, error)
	Selected(ctx context.Context) (entry.Entry, bool)
	ClearSelection(ctx context.Context)
}

// AuthService manages the bearer token used against the reward system
type AuthService interface {
	SetToken(ctx context.Context, token string) (TokenStatus, error)
	ClearToken(ctx context.Context)
	Status(ctx context.Context) TokenStatus
}

// TokenStatus describes the held token without exposing it
type TokenStatus struct {
	Present   bool
	ExpiresAt *time.Time
}

// Submitter creates an entry and starts its pipeline
type Submitter interface {
	Start(ctx context.Context, raw []byte) (entry.Entry, error)
}

// EntryStore is the read and selection side of the entry store
type EntryStore interface {
	Get(id string) (entry.Entry, error)
	List() []entry.Entry
	Select(id string) error
	Selected() (entry.Entry, bool)
	ClearSelection()
}

// ImageSource resolves an entry image reference to bytes
type ImageSource interface {
	Bytes(img entry.Image) ([]byte, string, error)
}

// TokenHolder keeps the reward system bearer token
type TokenHolder interface {
	Set(token string) error
	Clear()
	Current() string
	ExpiresAt() (time.Time, bool)
}
