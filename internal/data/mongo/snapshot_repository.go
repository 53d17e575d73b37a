package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
)

const (
	// SnapshotCollectionName is the name of the entry snapshot collection in MongoDB
	SnapshotCollectionName = "entry_snapshots"
)

// SnapshotRepository implements the entry.SnapshotRepository interface for MongoDB.
// Each record is one document; the collection order is kept in the position field.
type SnapshotRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewSnapshotRepository creates a new MongoDB snapshot repository
func NewSnapshotRepository(logger *slog.Logger, db *mongo.Database) *SnapshotRepository {
	return &SnapshotRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique id index the upserts rely on
func (r *SnapshotRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(SnapshotCollectionName)

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("entry_id_unique"),
	})
	if err != nil {
		r.logger.Error("Failed to create entry snapshot index", "error", err)
		return fmt.Errorf("failed to create entry snapshot index: %w", err)
	}
	return nil
}

// Load returns the stored records in collection order.
// A document that cannot be decoded makes the whole snapshot corrupt.
func (r *SnapshotRepository) Load(ctx context.Context) ([]entry.Record, error) {
	collection := r.db.Collection(SnapshotCollectionName)

	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}})
	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error("Failed to query entry snapshot", "error", err)
		return nil, fmt.Errorf("failed to query entry snapshot: %w", err)
	}
	defer cursor.Close(ctx)

	var records []entry.Record
	for cursor.Next(ctx) {
		var record entry.Record
		if err := cursor.Decode(&record); err != nil {
			r.logger.Warn("Undecodable entry snapshot document", "error", err)
			return nil, fmt.Errorf("%w: %v", entry.ErrCorruptSnapshot, err)
		}
		records = append(records, record)
	}
	if err := cursor.Err(); err != nil {
		r.logger.Error("Failed to read entry snapshot", "error", err)
		return nil, fmt.Errorf("failed to read entry snapshot: %w", err)
	}

	return records, nil
}

// Save makes the collection match records: entries no longer present are
// removed and every record is upserted by id.
func (r *SnapshotRepository) Save(ctx context.Context, records []entry.Record) error {
	collection := r.db.Collection(SnapshotCollectionName)

	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}

	if _, err := collection.DeleteMany(ctx, bson.M{"id": bson.M{"$nin": ids}}); err != nil {
		r.logger.Error("Failed to prune entry snapshot", "error", err)
		return fmt.Errorf("failed to prune entry snapshot: %w", err)
	}

	if len(records) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(records))
	for _, record := range records {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"id": record.ID}).
			SetReplacement(record).
			SetUpsert(true))
	}

	if _, err := collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		r.logger.Error("Failed to write entry snapshot",
			"entries", len(records),
			"error", err)
		return fmt.Errorf("failed to write entry snapshot: %w", err)
	}

	return nil
}
