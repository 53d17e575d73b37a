package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
	"github.com/rox-lucas-sh/image-scan-vision/internal/platform/persistence"
)

// SnapshotRepository implements the entry.SnapshotRepository interface for PostgreSQL.
// Records are stored as jsonb payloads keyed by entry id.
type SnapshotRepository struct {
	db     persistence.TxBeginner
	logger *slog.Logger
	now    func() time.Time
}

// NewSnapshotRepository creates a new PostgreSQL snapshot repository
func NewSnapshotRepository(logger *slog.Logger, db *persistence.PostgresDB) *SnapshotRepository {
	return &SnapshotRepository{
		db:     db.Pool(),
		logger: logger,
		now:    time.Now,
	}
}

// Load returns the stored records ordered by position.
// A payload that cannot be decoded makes the whole snapshot corrupt.
func (r *SnapshotRepository) Load(ctx context.Context) ([]entry.Record, error) {
	query := `
		SELECT id, position, payload
		FROM entry_snapshots
		ORDER BY position ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query entry snapshot", "error", err)
		return nil, fmt.Errorf("failed to query entry snapshot: %w", err)
	}
	defer rows.Close()

	var records []entry.Record
	for rows.Next() {
		var (
			id       string
			position int
			payload  []byte
		)
		if err := rows.Scan(&id, &position, &payload); err != nil {
			r.logger.Error("Failed to scan entry snapshot row", "error", err)
			return nil, fmt.Errorf("failed to scan entry snapshot row: %w", err)
		}

		var record entry.Record
		if err := json.Unmarshal(payload, &record); err != nil {
			r.logger.Warn("Undecodable entry snapshot payload", "entry_id", id, "error", err)
			return nil, fmt.Errorf("%w: %v", entry.ErrCorruptSnapshot, err)
		}
		if record.ID != id {
			return nil, fmt.Errorf("%w: payload id %q stored under %q", entry.ErrCorruptSnapshot, record.ID, id)
		}
		record.Position = position
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over entry snapshot rows", "error", err)
		return nil, fmt.Errorf("error iterating over entry snapshot rows: %w", err)
	}

	return records, nil
}

// Save replaces the stored snapshot with records in one transaction
func (r *SnapshotRepository) Save(ctx context.Context, records []entry.Record) error {
	insert := `
		INSERT INTO entry_snapshots (id, position, payload, saved_at)
		VALUES ($1, $2, $3, $4)
	`
	savedAt := r.now().UTC()

	err := persistence.ExecuteTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM entry_snapshots`); err != nil {
			return fmt.Errorf("failed to clear entry snapshot: %w", err)
		}
		for _, record := range records {
			payload, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("failed to marshal entry %s: %w", record.ID, err)
			}
			if _, err := tx.Exec(ctx, insert, record.ID, record.Position, payload, savedAt); err != nil {
				return fmt.Errorf("failed to insert entry %s: %w", record.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save entry snapshot",
			"entries", len(records),
			"error", err,
		)
		return fmt.Errorf("failed to save entry snapshot: %w", err)
	}

	return nil
}
