package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
)

const fileFormatVersion = 1

type fileSnapshot struct {
	Version int            `json:"version"`
	SavedAt string         `json:"saved_at"`
	Entries []entry.Record `json:"entries"`
}

// FileStore keeps the snapshot as a JSON document on local disk
type FileStore struct {
	path   string
	logger *slog.Logger
}

func NewFileStore(logger *slog.Logger, path string) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Load returns the stored records, or none if the file does not exist yet
func (s *FileStore) Load(_ context.Context) ([]entry.Record, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("No snapshot file found, starting empty", "path", s.path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap fileSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", entry.ErrCorruptSnapshot, err)
	}
	if snap.Version != fileFormatVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", entry.ErrCorruptSnapshot, snap.Version)
	}
	return snap.Entries, nil
}

// Save writes the records to a temporary file and renames it into place
func (s *FileStore) Save(_ context.Context, records []entry.Record) error {
	if records == nil {
		records = []entry.Record{}
	}
	raw, err := json.MarshalIndent(fileSnapshot{
		Version: fileFormatVersion,
		SavedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Entries: records,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".entries-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}
