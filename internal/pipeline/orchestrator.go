// Package pipeline drives entries through upload, scan, OCR verification and
// points, and exposes the retry, cancel and delete controls for them.
//
// Every result is applied to the entry store under the generation the stage
// was started with, so work that was cancelled or superseded by a retry can
// finish its network call but can never overwrite newer state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rox-lucas-sh/image-scan-vision/internal/auth"
	"github.com/rox-lucas-sh/image-scan-vision/internal/config"
	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/shared"
	"github.com/rox-lucas-sh/image-scan-vision/internal/entrystore"
	"github.com/rox-lucas-sh/image-scan-vision/internal/polling"
	"github.com/rox-lucas-sh/image-scan-vision/internal/upstream"
	"github.com/rox-lucas-sh/image-scan-vision/internal/validation"
)

const (
	ocrPollName    = "OCR verification"
	pointsPollName = "points verification"
)

// Dependencies are the collaborators an Orchestrator needs
type Dependencies struct {
	Store      *entrystore.Store
	Upstream   Upstream
	Validator  validation.Validator
	Normalizer ImageNormalizer
	Images     ImageRegistry
	Tokens     auth.TokenSource
	Scheduler  *polling.Scheduler
	Notifier   PointsTimeoutNotifier // optional
}

// Orchestrator runs the per-entry pipeline
type Orchestrator struct {
	store      *entrystore.Store
	upstream   Upstream
	validator  validation.Validator
	normalizer ImageNormalizer
	images     ImageRegistry
	tokens     auth.TokenSource
	scheduler  *polling.Scheduler
	notifier   PointsTimeoutNotifier
	runner     *runner
	ocrPolicy  polling.Policy
	ptsPolicy  polling.Policy
	newEntry   func(entry.Image, time.Time) entry.Entry
	logger     *slog.Logger
}

func NewOrchestrator(
	logger *slog.Logger,
	pollCfg *config.PollingConfig,
	poolCfg *config.WorkerPoolConfig,
	deps Dependencies,
) (*Orchestrator, error) {
	r, err := newRunner(poolCfg.Size, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline worker pool: %w", err)
	}

	return &Orchestrator{
		store:      deps.Store,
		upstream:   deps.Upstream,
		validator:  deps.Validator,
		normalizer: deps.Normalizer,
		images:     deps.Images,
		tokens:     deps.Tokens,
		scheduler:  deps.Scheduler,
		notifier:   deps.Notifier,
		runner:     r,
		ocrPolicy:  polling.Policy{Name: ocrPollName, Interval: pollCfg.OCRInterval, Timeout: pollCfg.OCRTimeout},
		ptsPolicy:  polling.Policy{Name: pointsPollName, Interval: pollCfg.PointsInterval, Timeout: pollCfg.PointsTimeout},
		newEntry:   entry.New,
		logger:     logger,
	}, nil
}

// Controller returns the retry/cancel/delete handle for this orchestrator
func (o *Orchestrator) Controller() Controller {
	return &controller{o: o}
}

// Start normalizes the image, creates a processing entry and runs upload and
// scan on the caller's goroutine. Upload and scan failures are recorded on
// the entry before being returned. On success OCR polling continues in the
// background and the returned entry carries the scan id.
func (o *Orchestrator) Start(ctx context.Context, raw []byte) (entry.Entry, error) {
	norm, err := o.normalizer.Normalize(raw)
	if err != nil {
		return entry.Entry{}, fmt.Errorf("failed to normalize image: %w", err)
	}

	img := o.images.Register(norm.Data, norm.ContentType)
	created, err := o.store.Create(o.newEntry(img, time.Now()))
	if err != nil {
		o.images.Release(img)
		return entry.Entry{}, fmt.Errorf("failed to create entry: %w", err)
	}
	logger := o.logger.With("entry_id", created.ID)
	logger.Info("Entry created", "width", norm.Width, "height", norm.Height, "bytes", len(norm.Data))

	runCtx, release := o.runner.Bind(ctx, created.ID)
	defer release()

	gen := created.Generation

	imageID, err := o.upstream.Upload(runCtx, norm.Data, norm.ContentType)
	if err != nil {
		return o.failStage(logger, created.ID, gen, err)
	}
	current, err := o.store.Update(created.ID, gen, func(e *entry.Entry) error {
		e.ImageID = imageID
		return nil
	})
	if err != nil {
		return o.superseded(current, err)
	}

	scanID, err := o.upstream.Scan(runCtx, imageID)
	if err != nil {
		return o.failStage(logger, created.ID, gen, err)
	}
	current, err = o.store.Update(created.ID, gen, func(e *entry.Entry) error {
		e.ScanID = scanID
		return nil
	})
	if err != nil {
		return o.superseded(current, err)
	}

	logger.Info("Scan started", "image_id", imageID, "scan_id", scanID)
	if err := o.launchOCR(current); err != nil {
		return o.failStage(logger, current.ID, gen, err)
	}
	return current, nil
}

// Resume re-enters the pipeline for entries restored from a snapshot.
// It returns how many entries were picked up again.
func (o *Orchestrator) Resume(_ context.Context) int {
	resumed := 0
	for _, e := range o.store.List() {
		logger := o.logger.With("entry_id", e.ID)
		switch {
		case e.Status == entry.StatusProcessing && e.ScanID != "":
			next, err := o.store.Advance(e.ID, nil)
			if err != nil {
				logger.Error("Failed to resume OCR verification", "error", err)
				continue
			}
			if err := o.launchOCR(next); err == nil {
				logger.Info("Resumed OCR verification", "scan_id", next.ScanID)
				resumed++
			}
		case e.Status == entry.StatusProcessing:
			_, err := o.store.Advance(e.ID, func(e *entry.Entry) error {
				return e.Fail("processing was interrupted before the scan started")
			})
			if err != nil {
				logger.Error("Failed to mark interrupted entry", "error", err)
			}
		case e.Status == entry.StatusValid && e.TransactionID != "" && !e.Points.Requested():
			next, err := o.store.Advance(e.ID, nil)
			if err != nil {
				logger.Error("Failed to resume points verification", "error", err)
				continue
			}
			if err := o.launchPoints(next); err == nil {
				logger.Info("Resumed points verification", "transaction_id", next.TransactionID)
				resumed++
			}
		}
	}
	return resumed
}

// Shutdown cancels all running pipelines and releases the worker pool
func (o *Orchestrator) Shutdown(timeout time.Duration) {
	o.runner.Shutdown(timeout)
}

func (o *Orchestrator) launchOCR(e entry.Entry) error {
	id, gen, scanID := e.ID, e.Generation, e.ScanID
	return o.runner.Launch(id, func(ctx context.Context) {
		o.pollOCR(ctx, id, gen, scanID)
	})
}

func (o *Orchestrator) launchPoints(e entry.Entry) error {
	id, gen, txID := e.ID, e.Generation, e.TransactionID
	return o.runner.Launch(id, func(ctx context.Context) {
		o.pollPoints(ctx, id, gen, txID)
	})
}

func (o *Orchestrator) launchGenerate(e entry.Entry) error {
	return o.runner.Launch(e.ID, func(ctx context.Context) {
		o.generatePoints(ctx, e)
	})
}

func (o *Orchestrator) pollOCR(ctx context.Context, id string, gen uint64, scanID string) {
	logger := o.logger.With("entry_id", id, "scan_id", scanID)

	var verdict validation.Result
	res := o.scheduler.Poll(ctx, o.ocrPolicy, func(ctx context.Context) (bool, error) {
		raw, err := o.upstream.VerifyScan(ctx, scanID)
		if err != nil {
			return false, rejected(err)
		}
		if validation.Pending(raw) {
			return false, nil
		}
		verdict = o.validator.Validate(raw)
		return true, nil
	})

	switch res.Outcome {
	case polling.Resolved:
		status := entry.StatusInvalid
		if verdict.Valid {
			status = entry.StatusValid
		}
		updated, err := o.store.Update(id, gen, func(e *entry.Entry) error {
			return e.Resolve(status, verdict.Data)
		})
		if err != nil {
			o.logDiscarded(logger, "OCR result", err)
			return
		}
		if !verdict.Valid {
			logger.Info("OCR payload is invalid", "reason", verdict.Reason, "attempts", res.Attempts)
			return
		}
		logger.Info("OCR payload is valid", "attempts", res.Attempts)
		o.generatePoints(ctx, updated)

	case polling.TimedOut:
		_, err := o.store.Update(id, gen, func(e *entry.Entry) error {
			return e.Cancel(res.Err.Error())
		})
		if err != nil {
			o.logDiscarded(logger, "OCR timeout", err)
			return
		}
		logger.Warn("OCR verification timed out, entry cancelled", "attempts", res.Attempts)

	case polling.Failed:
		if _, err := o.store.Update(id, gen, func(e *entry.Entry) error {
			return e.Fail(res.Err.Error())
		}); err != nil {
			o.logDiscarded(logger, "OCR failure", err)
		}

	case polling.Cancelled:
		logger.Debug("OCR verification stopped", "attempts", res.Attempts)
	}
}

// generatePoints asks the reward system for points on a valid entry. Without
// a token nothing is requested and points stay unrequested. Failures only
// ever touch the points fields.
func (o *Orchestrator) generatePoints(ctx context.Context, e entry.Entry) {
	logger := o.logger.With("entry_id", e.ID)

	token := o.tokens.Current()
	if token == "" {
		logger.Info("No auth token available, points not requested")
		return
	}

	value, err := PurchaseValue(e.Data)
	if err != nil {
		o.failPoints(logger, e, fmt.Sprintf("could not read the purchase value: %v", err))
		return
	}

	txID, err := o.upstream.GeneratePoints(ctx, token, upstream.PointsRequest{
		Value:  value,
		Params: Params(e.Data),
		NFID:   upstream.NewNFID(),
	})
	if err != nil {
		if ctx.Err() != nil {
			logger.Debug("Points generation abandoned", "error", err)
			return
		}
		o.failPoints(logger, e, fmt.Sprintf("points generation failed: %v", err))
		return
	}

	updated, err := o.store.Update(e.ID, e.Generation, func(e *entry.Entry) error {
		e.TransactionID = txID
		return nil
	})
	if err != nil {
		o.logDiscarded(logger, "points transaction", err)
		return
	}
	logger.Info("Points generation requested", "transaction_id", txID, "value", value)

	o.pollPoints(ctx, updated.ID, updated.Generation, txID)
}

func (o *Orchestrator) pollPoints(ctx context.Context, id string, gen uint64, txID string) {
	logger := o.logger.With("entry_id", id, "transaction_id", txID)

	var status upstream.PointsStatus
	res := o.scheduler.Poll(ctx, o.ptsPolicy, func(ctx context.Context) (bool, error) {
		// the token may change between ticks
		token := o.tokens.Current()
		if token == "" {
			return false, upstream.ErrNoToken
		}
		ps, err := o.upstream.VerifyPoints(ctx, token, txID)
		if err != nil {
			return false, rejected(err)
		}
		if !ps.Resolved() {
			return false, nil
		}
		status = ps
		return true, nil
	})

	switch res.Outcome {
	case polling.Resolved:
		points := entry.ClampPoints(status.Points)
		_, err := o.store.Update(id, gen, func(e *entry.Entry) error {
			return e.ResolvePoints(points, status.Matched)
		})
		if err != nil {
			o.logDiscarded(logger, "points result", err)
			return
		}
		logger.Info("Points resolved", "points", points, "matched_rules", len(status.Matched))

	case polling.TimedOut:
		// points stay as they are; only a diagnostic goes out
		logger.Warn("Points verification timed out, leaving points unchanged", "attempts", res.Attempts)
		if o.notifier != nil {
			if current, err := o.store.Get(id); err == nil && current.Generation == gen {
				o.notifier.PointsTimedOut(context.WithoutCancel(ctx), current)
			}
		}

	case polling.Failed:
		current, err := o.store.Get(id)
		if err == nil && current.Generation == gen {
			o.failPoints(logger, current, fmt.Sprintf("points verification failed: %v", res.Err))
		}

	case polling.Cancelled:
		logger.Debug("Points verification stopped", "attempts", res.Attempts)
	}
}

// rejected marks upstream refusals that another attempt cannot change as
// permanent so polling stops on them. Server errors, throttling and transport
// failures stay transient.
func rejected(err error) error {
	var netErr *shared.NetworkError
	if !errors.As(err, &netErr) {
		return err
	}
	switch netErr.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusGone:
		return polling.Permanent(err)
	}
	return err
}

func (o *Orchestrator) failPoints(logger *slog.Logger, e entry.Entry, message string) {
	if _, err := o.store.Update(e.ID, e.Generation, func(e *entry.Entry) error {
		return e.FailPoints(message)
	}); err != nil {
		o.logDiscarded(logger, "points failure", err)
		return
	}
	logger.Warn("Points request failed", "reason", message)
}

// failStage records an upload or scan failure on the entry and hands the
// original error back to the caller
func (o *Orchestrator) failStage(logger *slog.Logger, id string, gen uint64, cause error) (entry.Entry, error) {
	updated, err := o.store.Update(id, gen, func(e *entry.Entry) error {
		return e.Fail(cause.Error())
	})
	if err != nil {
		return o.superseded(updated, err)
	}
	logger.Error("Pipeline stage failed", "error", cause)
	return updated, cause
}

// superseded maps a rejected store update during Start to the error the caller sees
func (o *Orchestrator) superseded(current entry.Entry, err error) (entry.Entry, error) {
	if errors.Is(err, entrystore.ErrStaleGeneration) {
		return current, shared.ErrUserCancelled
	}
	return current, err
}

func (o *Orchestrator) logDiscarded(logger *slog.Logger, what string, err error) {
	if errors.Is(err, entrystore.ErrStaleGeneration) || errors.Is(err, entry.ErrEntryNotFound{}) {
		logger.Debug("Discarding late "+what, "reason", err)
		return
	}
	logger.Error("Failed to apply "+what, "error", err)
}
