package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/shared"
)

var (
	// ErrNoScanID is returned when OCR is retried on an entry that never got a scan id
	ErrNoScanID = errors.New("entry has no scan id to verify")
	// ErrNotValid is returned when points are retried on an entry whose OCR payload is not valid
	ErrNotValid = errors.New("points can only be requested for valid entries")
	// ErrNotProcessing is returned when cancelling an entry that already finished
	ErrNotProcessing = errors.New("entry is not processing")
)

type controller struct {
	o *Orchestrator
}

// RetryOCR restarts OCR polling on the same entry. An empty scanID reuses the
// one already on the entry. Points and transaction are reset since the
// payload they came from is being re-read.
func (c *controller) RetryOCR(_ context.Context, id, scanID string) (entry.Entry, error) {
	current, err := c.o.store.Get(id)
	if err != nil {
		return entry.Entry{}, err
	}
	if scanID == "" {
		scanID = current.ScanID
	}
	if scanID == "" {
		return current, ErrNoScanID
	}

	next, err := c.o.store.Advance(id, func(e *entry.Entry) error {
		e.Reset()
		e.ResetPoints()
		e.Data = nil
		e.TransactionID = ""
		e.ScanID = scanID
		return nil
	})
	if err != nil {
		return entry.Entry{}, fmt.Errorf("failed to reset entry for OCR retry: %w", err)
	}
	c.o.logger.Info("Retrying OCR verification", "entry_id", id, "scan_id", scanID, "generation", next.Generation)

	if err := c.o.launchOCR(next); err != nil {
		return c.o.failStage(c.o.logger.With("entry_id", id), id, next.Generation, err)
	}
	return next, nil
}

// RetryPoints restarts the points stage of a valid entry. An empty
// transaction id falls back to the stored one. Verification runs when a
// transaction is known; points are generated again only when none is.
func (c *controller) RetryPoints(_ context.Context, id, transactionID string) (entry.Entry, error) {
	current, err := c.o.store.Get(id)
	if err != nil {
		return entry.Entry{}, err
	}
	if current.Status != entry.StatusValid {
		return current, ErrNotValid
	}
	if transactionID == "" {
		transactionID = current.TransactionID
	}

	next, err := c.o.store.Advance(id, func(e *entry.Entry) error {
		e.ResetPoints()
		e.TransactionID = transactionID
		return nil
	})
	if err != nil {
		return entry.Entry{}, fmt.Errorf("failed to reset entry for points retry: %w", err)
	}
	c.o.logger.Info("Retrying points", "entry_id", id, "transaction_id", transactionID, "generation", next.Generation)

	if transactionID != "" {
		err = c.o.launchPoints(next)
	} else {
		err = c.o.launchGenerate(next)
	}
	if err != nil {
		return next, fmt.Errorf("failed to schedule points retry: %w", err)
	}
	return next, nil
}

// CancelProcessing stops a processing entry and marks it as failed by the user.
// Results still in flight are discarded.
func (c *controller) CancelProcessing(id string) (entry.Entry, error) {
	next, err := c.o.store.Advance(id, func(e *entry.Entry) error {
		if e.Status != entry.StatusProcessing {
			return ErrNotProcessing
		}
		return e.Fail(shared.ErrUserCancelled.Error())
	})
	if err != nil {
		return next, err
	}
	c.o.runner.Cancel(id)
	c.o.logger.Info("Processing cancelled by user", "entry_id", id)
	return next, nil
}

// DeleteEntry stops any work on the entry, removes it and drops its image
func (c *controller) DeleteEntry(id string) (entry.Entry, error) {
	c.o.runner.Cancel(id)
	removed, err := c.o.store.Delete(id)
	if err != nil {
		return entry.Entry{}, err
	}
	c.o.images.Release(removed.Image)
	c.o.logger.Info("Entry deleted", "entry_id", id)
	return removed, nil
}
