package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
	"github.com/rox-lucas-sh/image-scan-vision/internal/pipeline"
)

// EntryServiceImpl implements the EntryService interface
type EntryServiceImpl struct {
	submitter  Submitter
	controller pipeline.Controller
	store      EntryStore
	images     ImageSource
	logger     *slog.Logger
}

// NewEntryService creates a new entry service
func NewEntryService(logger *slog.Logger, submitter Submitter, controller pipeline.Controller, store EntryStore, images ImageSource) EntryService {
	return &EntryServiceImpl{
		submitter:  submitter,
		controller: controller,
		store:      store,
		images:     images,
		logger:     logger,
	}
}

// Submit starts the pipeline for a new image. When upload or scan fails the
// entry already exists in error state and is returned with the error.
func (s *EntryServiceImpl) Submit(ctx context.Context, image []byte) (entry.Entry, error) {
	e, err := s.submitter.Start(ctx, image)
	if err != nil {
		s.logger.Error("Failed to submit image", "entry_id", e.ID, "bytes", len(image), "error", err)
		return e, err
	}

	s.logger.Info("Image submitted", "entry_id", e.ID, "scan_id", e.ScanID)
	return e, nil
}

// ListEntries returns one page of entries in insertion order together with the total count
func (s *EntryServiceImpl) ListEntries(_ context.Context, page, perPage int) ([]entry.Entry, int, error) {
	if page < 1 || perPage < 1 {
		return nil, 0, fmt.Errorf("invalid pagination: page=%d per_page=%d", page, perPage)
	}

	all := s.store.List()
	total := len(all)

	start := (page - 1) * perPage
	if start >= total {
		return []entry.Entry{}, total, nil
	}
	end := min(start+perPage, total)

	return all[start:end], total, nil
}

func (s *EntryServiceImpl) GetEntry(_ context.Context, id string) (entry.Entry, error) {
	return s.store.Get(id)
}

// EntryImage returns the stored image bytes of an entry
func (s *EntryServiceImpl) EntryImage(_ context.Context, id string) ([]byte, string, error) {
	e, err := s.store.Get(id)
	if err != nil {
		return nil, "", err
	}

	data, contentType, err := s.images.Bytes(e.Image)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image of entry %s: %w", id, err)
	}
	return data, contentType, nil
}

func (s *EntryServiceImpl) RetryOCR(ctx context.Context, id, scanID string) (entry.Entry, error) {
	e, err := s.controller.RetryOCR(ctx, id, scanID)
	if err != nil {
		s.logger.Warn("OCR retry rejected", "entry_id", id, "error", err)
		return e, err
	}

	s.logger.Info("OCR retry started", "entry_id", id, "scan_id", e.ScanID)
	return e, nil
}

func (s *EntryServiceImpl) RetryPoints(ctx context.Context, id, transactionID string) (entry.Entry, error) {
	e, err := s.controller.RetryPoints(ctx, id, transactionID)
	if err != nil {
		s.logger.Warn("Points retry rejected", "entry_id", id, "error", err)
		return e, err
	}

	s.logger.Info("Points retry started", "entry_id", id, "transaction_id", e.TransactionID)
	return e, nil
}

func (s *EntryServiceImpl) Cancel(_ context.Context, id string) (entry.Entry, error) {
	e, err := s.controller.CancelProcessing(id)
	if err != nil {
		s.logger.Warn("Cancel rejected", "entry_id", id, "error", err)
		return e, err
	}

	s.logger.Info("Entry cancelled", "entry_id", id)
	return e, nil
}

func (s *EntryServiceImpl) Delete(_ context.Context, id string) error {
	if _, err := s.controller.DeleteEntry(id); err != nil {
		return err
	}

	s.logger.Info("Entry deleted", "entry_id", id)
	return nil
}

// Select marks an entry as the current one and returns it
func (s *EntryServiceImpl) Select(_ context.Context, id string) (entry.Entry, error) {
	if err := s.store.Select(id); err != nil {
		return entry.Entry{}, err
	}
	return s.store.Get(id)
}

func (s *EntryServiceImpl) Selected(_ context.Context) (entry.Entry, bool) {
	return s.store.Selected()
}

func (s *EntryServiceImpl) ClearSelection(_ context.Context) {
	s.store.ClearSelection()
}
