package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
	"github.com/rox-lucas-sh/image-scan-vision/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Start(ctx context.Context, raw []byte) (entry.Entry, error) {
	args := m.Called(ctx, raw)
	return args.Get(0).(entry.Entry), args.Error(1)
}

type MockController struct {
	mock.Mock
}

func (m *MockController) RetryOCR(ctx context.Context, id, scanID string) (entry.Entry, error) {
	args := m.Called(ctx, id, scanID)
	return args.Get(0).(entry.Entry), args.Error(1)
}

func (m *MockController) RetryPoints(ctx context.Context, id, transactionID string) (entry.Entry, error) {
	args := m.Called(ctx, id, transactionID)
	return args.Get(0).(entry.Entry), args.Error(1)
}

func (m *MockController) CancelProcessing(id string) (entry.Entry, error) {
	args := m.Called(id)
	return args.Get(0).(entry.Entry), args.Error(1)
}

func (m *MockController) DeleteEntry(id string) (entry.Entry, error) {
	args := m.Called(id)
	return args.Get(0).(entry.Entry), args.Error(1)
}

type MockEntryStore struct {
	mock.Mock
}

func (m *MockEntryStore) Get(id string) (entry.Entry, error) {
	args := m.Called(id)
	return args.Get(0).(entry.Entry), args.Error(1)
}

func (m *MockEntryStore) List() []entry.Entry {
	args := m.Called()
	return args.Get(0).([]entry.Entry)
}

func (m *MockEntryStore) Select(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockEntryStore) Selected() (entry.Entry, bool) {
	args := m.Called()
	return args.Get(0).(entry.Entry), args.Bool(1)
}

func (m *MockEntryStore) ClearSelection() {
	m.Called()
}

type MockImageSource struct {
	mock.Mock
}

func (m *MockImageSource) Bytes(img entry.Image) ([]byte, string, error) {
	args := m.Called(img)
	var data []byte
	if args.Get(0) != nil {
		data = args.Get(0).([]byte)
	}
	return data, args.String(1), args.Error(2)
}

var _ pipeline.Controller = (*MockController)(nil)

type entryServiceMocks struct {
	submitter  *MockSubmitter
	controller *MockController
	store      *MockEntryStore
	images     *MockImageSource
}

func newEntryService() (EntryService, entryServiceMocks) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	m := entryServiceMocks{
		submitter:  new(MockSubmitter),
		controller: new(MockController),
		store:      new(MockEntryStore),
		images:     new(MockImageSource),
	}
	return NewEntryService(logger, m.submitter, m.controller, m.store, m.images), m
}

func entriesWithIDs(ids ...string) []entry.Entry {
	out := make([]entry.Entry, len(ids))
	for i, id := range ids {
		out[i] = entry.Entry{ID: id, Status: entry.StatusProcessing}
	}
	return out
}

func TestEntryServiceImpl_Submit(t *testing.T) {
	ctx := context.Background()
	image := []byte("jpeg bytes")

	t.Run("Success", func(t *testing.T) {
		svc, m := newEntryService()
		expected := entry.Entry{ID: "e1", Status: entry.StatusProcessing, ScanID: "scan1"}
		m.submitter.On("Start", ctx, image).Return(expected, nil).Once()

		got, err := svc.Submit(ctx, image)

		require.NoError(t, err)
		assert.Equal(t, expected, got)
		m.submitter.AssertExpectations(t)
	})

	t.Run("FailedStageReturnsEntry", func(t *testing.T) {
		svc, m := newEntryService()
		failed := entry.Entry{ID: "e1", Status: entry.StatusError, Error: "upload failed"}
		uploadErr := errors.New("upload failed")
		m.submitter.On("Start", ctx, image).Return(failed, uploadErr).Once()

		got, err := svc.Submit(ctx, image)

		assert.ErrorIs(t, err, uploadErr)
		assert.Equal(t, "e1", got.ID)
		assert.Equal(t, entry.StatusError, got.Status)
	})
}

func TestEntryServiceImpl_ListEntries(t *testing.T) {
	ctx := context.Background()
	all := entriesWithIDs("a", "b", "c", "d", "e")

	tests := []struct {
		name        string
		page        int
		perPage     int
		expectedIDs []string
		expectErr   bool
	}{
		{name: "FirstPage", page: 1, perPage: 2, expectedIDs: []string{"a", "b"}},
		{name: "LastPartialPage", page: 3, perPage: 2, expectedIDs: []string{"e"}},
		{name: "PastTheEnd", page: 4, perPage: 2, expectedIDs: []string{}},
		{name: "AllAtOnce", page: 1, perPage: 10, expectedIDs: []string{"a", "b", "c", "d", "e"}},
		{name: "InvalidPage", page: 0, perPage: 2, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newEntryService()
			m.store.On("List").Return(all).Maybe()

			got, total, err := svc.ListEntries(ctx, tt.page, tt.perPage)

			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 5, total)
			ids := make([]string, 0, len(got))
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.expectedIDs, ids)
		})
	}
}

func TestEntryServiceImpl_EntryImage(t *testing.T) {
	ctx := context.Background()
	img := entry.EphemeralImage("session://abc")

	t.Run("Success", func(t *testing.T) {
		svc, m := newEntryService()
		m.store.On("Get", "e1").Return(entry.Entry{ID: "e1", Image: img}, nil).Once()
		m.images.On("Bytes", img).Return([]byte{0xff, 0xd8}, "image/jpeg", nil).Once()

		data, contentType, err := svc.EntryImage(ctx, "e1")

		require.NoError(t, err)
		assert.Equal(t, []byte{0xff, 0xd8}, data)
		assert.Equal(t, "image/jpeg", contentType)
	})

	t.Run("EntryNotFound", func(t *testing.T) {
		svc, m := newEntryService()
		m.store.On("Get", "missing").Return(entry.Entry{}, entry.ErrEntryNotFound{ID: "missing"}).Once()

		_, _, err := svc.EntryImage(ctx, "missing")

		assert.ErrorIs(t, err, entry.ErrEntryNotFound{})
		m.images.AssertNotCalled(t, "Bytes", mock.Anything)
	})

	t.Run("ImageUnavailable", func(t *testing.T) {
		svc, m := newEntryService()
		expired := errors.New("expired")
		m.store.On("Get", "e1").Return(entry.Entry{ID: "e1", Image: img}, nil).Once()
		m.images.On("Bytes", img).Return(nil, "", expired).Once()

		_, _, err := svc.EntryImage(ctx, "e1")

		assert.ErrorIs(t, err, expired)
	})
}

func TestEntryServiceImpl_ControllerDelegation(t *testing.T) {
	ctx := context.Background()
	rejected := errors.New("rejected")

	tests := []struct {
		name       string
		setupMocks func(m *MockController)
		call       func(svc EntryService) error
		expectErr  error
	}{
		{
			name: "RetryOCR",
			setupMocks: func(m *MockController) {
				m.On("RetryOCR", ctx, "e1", "scan2").Return(entry.Entry{ID: "e1", ScanID: "scan2"}, nil).Once()
			},
			call: func(svc EntryService) error {
				_, err := svc.RetryOCR(ctx, "e1", "scan2")
				return err
			},
		},
		{
			name: "RetryPointsRejected",
			setupMocks: func(m *MockController) {
				m.On("RetryPoints", ctx, "e1", "").Return(entry.Entry{ID: "e1"}, rejected).Once()
			},
			call: func(svc EntryService) error {
				_, err := svc.RetryPoints(ctx, "e1", "")
				return err
			},
			expectErr: rejected,
		},
		{
			name: "Cancel",
			setupMocks: func(m *MockController) {
				m.On("CancelProcessing", "e1").Return(entry.Entry{ID: "e1", Status: entry.StatusError}, nil).Once()
			},
			call: func(svc EntryService) error {
				_, err := svc.Cancel(ctx, "e1")
				return err
			},
		},
		{
			name: "DeleteNotFound",
			setupMocks: func(m *MockController) {
				m.On("DeleteEntry", "e1").Return(entry.Entry{}, entry.ErrEntryNotFound{ID: "e1"}).Once()
			},
			call: func(svc EntryService) error {
				return svc.Delete(ctx, "e1")
			},
			expectErr: entry.ErrEntryNotFound{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newEntryService()
			tt.setupMocks(m.controller)

			err := tt.call(svc)

			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
			} else {
				assert.NoError(t, err)
			}
			m.controller.AssertExpectations(t)
		})
	}
}

func TestEntryServiceImpl_Selection(t *testing.T) {
	ctx := context.Background()

	t.Run("SelectReturnsEntry", func(t *testing.T) {
		svc, m := newEntryService()
		m.store.On("Select", "e1").Return(nil).Once()
		m.store.On("Get", "e1").Return(entry.Entry{ID: "e1"}, nil).Once()

		got, err := svc.Select(ctx, "e1")

		require.NoError(t, err)
		assert.Equal(t, "e1", got.ID)
	})

	t.Run("SelectUnknown", func(t *testing.T) {
		svc, m := newEntryService()
		m.store.On("Select", "nope").Return(entry.ErrEntryNotFound{ID: "nope"}).Once()

		_, err := svc.Select(ctx, "nope")

		assert.ErrorIs(t, err, entry.ErrEntryNotFound{})
		m.store.AssertNotCalled(t, "Get", mock.Anything)
	})

	t.Run("SelectedAndClear", func(t *testing.T) {
		svc, m := newEntryService()
		m.store.On("Selected").Return(entry.Entry{ID: "e1"}, true).Once()
		m.store.On("ClearSelection").Return().Once()

		got, ok := svc.Selected(ctx)
		svc.ClearSelection(ctx)

		assert.True(t, ok)
		assert.Equal(t, "e1", got.ID)
		m.store.AssertExpectations(t)
	})
}
