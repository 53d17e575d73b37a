// Package snapshot persists the entry collection as a flat snapshot and
// makes sure no ephemeral image handle ever reaches storage.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
	"github.com/rox-lucas-sh/image-scan-vision/internal/entrystore"
)

// Adapter converts entries to and from a SnapshotRepository
type Adapter struct {
	repo        entry.SnapshotRepository
	images      *Registry
	logger      *slog.Logger
	saveTimeout time.Duration

	saveMu  sync.Mutex
	lastSeq uint64

	pendingMu sync.Mutex
	pending   *entrystore.Change
	wake      chan struct{}
}

func NewAdapter(logger *slog.Logger, repo entry.SnapshotRepository, images *Registry, saveTimeout time.Duration) *Adapter {
	return &Adapter{
		repo:        repo,
		images:      images,
		logger:      logger,
		saveTimeout: saveTimeout,
		wake:        make(chan struct{}, 1),
	}
}

// Load reads the stored snapshot. A corrupt snapshot yields an empty
// collection rather than an error. Images that cannot be made durable are
// dropped from their entry; the entry itself is kept.
func (a *Adapter) Load(ctx context.Context) ([]entry.Entry, error) {
	records, err := a.repo.Load(ctx)
	if err != nil {
		if errors.Is(err, entry.ErrCorruptSnapshot) {
			a.logger.Warn("Snapshot is corrupt, starting with no prior state", "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	entries := make([]entry.Entry, 0, len(records))
	for _, r := range records {
		e, err := r.ToEntry()
		if err != nil {
			a.logger.Warn("Snapshot contains an unreadable entry, starting with no prior state", "error", err)
			return nil, nil
		}
		e.Image = a.durableOrNone(e)
		entries = append(entries, e)
	}

	a.logger.Info("Snapshot loaded", "entries", len(entries))
	return entries, nil
}

// Save writes entries as snapshot number seq. A snapshot older than one
// already written is skipped; seq 0 always writes.
func (a *Adapter) Save(ctx context.Context, seq uint64, entries []entry.Entry) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	if seq != 0 && seq <= a.lastSeq {
		a.logger.Debug("Skipping outdated snapshot", "seq", seq, "last_seq", a.lastSeq)
		return nil
	}

	records := make([]entry.Record, 0, len(entries))
	for i, e := range entries {
		e.Image = a.durableOrNone(e)
		r := entry.ToRecord(e)
		r.Position = i
		records = append(records, r)
	}

	if err := a.repo.Save(ctx, records); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	if seq != 0 {
		a.lastSeq = seq
	}
	return nil
}

// OnChange is an entrystore.Listener. It only records the latest change;
// Run does the writing so mutations never wait on storage.
func (a *Adapter) OnChange(change entrystore.Change) {
	a.pendingMu.Lock()
	if a.pending == nil || change.Seq > a.pending.Seq {
		c := change
		a.pending = &c
	}
	a.pendingMu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Run writes pending snapshots until ctx is cancelled
func (a *Adapter) Run(ctx context.Context) {
	a.logger.Info("Starting snapshot writer", "save_timeout", a.saveTimeout.String())
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Snapshot writer stopping due to context cancellation.")
			return
		case <-a.wake:
			if err := a.Flush(ctx); err != nil {
				a.logger.Error("Failed to write snapshot", "error", err)
			}
		}
	}
}

// Flush writes the latest pending change, if any
func (a *Adapter) Flush(ctx context.Context) error {
	a.pendingMu.Lock()
	change := a.pending
	a.pending = nil
	a.pendingMu.Unlock()

	if change == nil {
		return nil
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.saveTimeout)
	defer cancel()
	return a.Save(saveCtx, change.Seq, change.Snapshot)
}

func (a *Adapter) durableOrNone(e entry.Entry) entry.Image {
	img, err := a.images.Durable(e.Image)
	if err != nil {
		a.logger.Warn("Dropping image that cannot be made durable",
			"entry_id", e.ID,
			"image_kind", e.Image.Kind,
			"error", err,
		)
		return entry.Image{}
	}
	return img
}
