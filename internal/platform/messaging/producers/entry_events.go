package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rox-lucas-sh/image-scan-vision/internal/config"
	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
	"github.com/rox-lucas-sh/image-scan-vision/internal/entrystore"
)

// EventType names an entry event on the events topic
type EventType string

const (
	EventEntryChanged  EventType = "entry.changed"
	EventEntryDeleted  EventType = "entry.deleted"
	EventPointsTimeout EventType = "entry.points_timeout"
)

// EntryEvent is the JSON value of an entry event. Points is only set once resolved.
type EntryEvent struct {
	Type          EventType       `json:"type"`
	EntryID       string          `json:"entry_id"`
	Seq           uint64          `json:"seq,omitempty"`
	Status        entry.Status    `json:"status"`
	Data          json.RawMessage `json:"data,omitempty"`
	Error         string          `json:"error,omitempty"`
	PointsState   string          `json:"points_state"`
	Points        *int            `json:"points"`
	PointsError   string          `json:"points_error,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	ScanID        string          `json:"scan_id,omitempty"`
	Generation    uint64          `json:"generation"`
	OccurredAt    string          `json:"occurred_at"`
}

func newEntryEvent(t EventType, e entry.Entry, seq uint64, at time.Time) EntryEvent {
	ev := EntryEvent{
		Type:          t,
		EntryID:       e.ID,
		Seq:           seq,
		Status:        e.Status,
		Data:          e.Data,
		Error:         e.Error,
		PointsState:   string(e.Points.State),
		PointsError:   e.PointsError,
		TransactionID: e.TransactionID,
		ScanID:        e.ScanID,
		Generation:    e.Generation,
		OccurredAt:    at.UTC().Format(time.RFC3339Nano),
	}
	if e.Points.IsResolved() {
		v := e.Points.Value
		ev.Points = &v
	}
	return ev
}

// EntryEventProducer publishes entry lifecycle events keyed by entry id
type EntryEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
	now    func() time.Time
}

// NewEntryEventProducer creates the producer and ensures the events topic exists
func NewEntryEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*EntryEventProducer, error) {
	if cfg.EntryEventsTopic == "" {
		return nil, fmt.Errorf("kafka entry events topic is not configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for entry event producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.EntryEventsTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure entry events topic %s exists: %w", cfg.EntryEventsTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.EntryEventsTopic,
		Balancer:     &kafka.Hash{}, // keeps one entry's events on one partition
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write entry events asynchronously", "topic", cfg.EntryEventsTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Wrote entry events asynchronously", "topic", cfg.EntryEventsTopic, "count", len(messages))
			}
		},
	}

	return &EntryEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.EntryEventsTopic,
		now:    time.Now,
	}, nil
}

// Publish writes one event
func (p *EntryEventProducer) Publish(ctx context.Context, key string, value any) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal entry event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish entry event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish entry event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published entry event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

// OnChange is an entry store listener that turns mutations into events
func (p *EntryEventProducer) OnChange(change entrystore.Change) {
	t := EventEntryChanged
	if change.Kind == entrystore.ChangeDeleted {
		t = EventEntryDeleted
	}
	ev := newEntryEvent(t, change.Entry, change.Seq, p.now())
	_ = p.Publish(context.Background(), change.Entry.ID, ev)
}

// PointsTimedOut publishes a diagnostic event when points verification gives up
func (p *EntryEventProducer) PointsTimedOut(ctx context.Context, e entry.Entry) {
	ev := newEntryEvent(EventPointsTimeout, e, 0, p.now())
	_ = p.Publish(ctx, e.ID, ev)
}

func (p *EntryEventProducer) Close() error {
	p.logger.Info("Closing entry event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close entry event writer for topic %s: %w", p.topic, err)
	}
	return nil
}
