package producers

import (
	"context"

	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
	"github.com/rox-lucas-sh/image-scan-vision/internal/entrystore"
	"github.com/segmentio/kafka-go"
)

// EntryEventPublisher turns entry store changes into messages on the events topic
type EntryEventPublisher interface {
	Publish(ctx context.Context, key string, value any) error
	OnChange(change entrystore.Change)
	PointsTimedOut(ctx context.Context, e entry.Entry)
	Close() error
}

// DeadLetterPublisher parks submissions that can never be processed.
// Implementations return ErrDLQDisabled when no DLQ topic is configured.
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter is the part of kafka.Writer the producers use
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	_ EntryEventPublisher = (*EntryEventProducer)(nil)
	_ DeadLetterPublisher = (*DLQProducer)(nil)
	_ KafkaWriter         = (*kafka.Writer)(nil)
)
