// Package intake feeds image submissions from the message queue into the pipeline.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
	"github.com/rox-lucas-sh/image-scan-vision/internal/imaging"
	"github.com/rox-lucas-sh/image-scan-vision/internal/platform/messaging/producers"
)

// Submitter starts the pipeline for one raw image
type Submitter interface {
	Start(ctx context.Context, raw []byte) (entry.Entry, error)
}

// SubmissionHandler handles image submission messages. The key is a client
// reference used only for logging and the DLQ.
type SubmissionHandler struct {
	submitter Submitter
	producer  producers.DeadLetterPublisher
	logger    *slog.Logger
}

// NewSubmissionHandler creates a new handler. producer may be nil when the DLQ is disabled.
func NewSubmissionHandler(logger *slog.Logger, submitter Submitter, producer producers.DeadLetterPublisher) *SubmissionHandler {
	return &SubmissionHandler{
		submitter: submitter,
		producer:  producer,
		logger:    logger,
	}
}

// HandleMessage starts processing for one submission. Images that can never
// be processed go to the DLQ; a failed upload or scan is already recorded on
// the new entry, so the message is still committed.
func (h *SubmissionHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	logger := h.logger.With("message_key", string(key), "bytes", len(value))

	if len(value) == 0 {
		return h.reject(ctx, logger, key, value, errors.New("empty submission"))
	}

	e, err := h.submitter.Start(ctx, value)
	switch {
	case err == nil:
		logger.Info("Accepted image submission", "entry_id", e.ID, "scan_id", e.ScanID)
		return nil
	case errors.Is(err, imaging.ErrUnsupportedImage), errors.Is(err, imaging.ErrOverBudget):
		return h.reject(ctx, logger, key, value, err)
	case e.ID != "":
		logger.Warn("Image submission failed upstream", "entry_id", e.ID, "status", e.Status, "error", err)
		return nil
	default:
		logger.Error("Failed to start processing for submission", "error", err)
		return fmt.Errorf("failed to start processing for submission %s: %w", string(key), err)
	}
}

func (h *SubmissionHandler) reject(ctx context.Context, logger *slog.Logger, key, value []byte, cause error) error {
	logger.Warn("Rejecting image submission", "error", cause)
	if h.producer == nil {
		// nothing to retry: the same bytes will fail the same way
		return nil
	}

	reason := fmt.Sprintf("unprocessable image: %v", cause)
	err := h.producer.PublishToDLQ(ctx, string(key), value, reason)
	if errors.Is(err, producers.ErrDLQDisabled) {
		return nil
	}
	if err != nil {
		logger.Error("Failed to publish rejected submission to DLQ", "dlq_error", err, "original_error", cause)
		return fmt.Errorf("failed to dead-letter submission %s: %w", string(key), err)
	}
	return nil
}
