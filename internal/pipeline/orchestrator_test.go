package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rox-lucas-sh/image-scan-vision/internal/auth"
	"github.com/rox-lucas-sh/image-scan-vision/internal/config"
	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/shared"
	"github.com/rox-lucas-sh/image-scan-vision/internal/entrystore"
	"github.com/rox-lucas-sh/image-scan-vision/internal/imaging"
	"github.com/rox-lucas-sh/image-scan-vision/internal/polling"
	"github.com/rox-lucas-sh/image-scan-vision/internal/snapshot"
	"github.com/rox-lucas-sh/image-scan-vision/internal/upstream"
	"github.com/rox-lucas-sh/image-scan-vision/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// passthroughNormalizer hands the bytes back unchanged
type passthroughNormalizer struct {
	err error
}

func (n passthroughNormalizer) Normalize(raw []byte) (imaging.Normalized, error) {
	if n.err != nil {
		return imaging.Normalized{}, n.err
	}
	return imaging.Normalized{Data: raw, ContentType: "image/jpeg", Width: 10, Height: 10}, nil
}

// fakeUpstream answers with the configured funcs and counts calls
type fakeUpstream struct {
	upload         func(ctx context.Context) (string, error)
	scan           func(ctx context.Context, imageID string) (string, error)
	verifyScan     func(ctx context.Context, n int) ([]byte, error)
	generatePoints func(ctx context.Context, req upstream.PointsRequest) (string, error)
	verifyPoints   func(ctx context.Context, token string, n int) (upstream.PointsStatus, error)

	scanVerifies   atomic.Int32
	generates      atomic.Int32
	pointsVerifies atomic.Int32
}

func (f *fakeUpstream) Upload(ctx context.Context, _ []byte, _ string) (string, error) {
	if f.upload == nil {
		return "img1", nil
	}
	return f.upload(ctx)
}

func (f *fakeUpstream) Scan(ctx context.Context, imageID string) (string, error) {
	if f.scan == nil {
		return "scan1", nil
	}
	return f.scan(ctx, imageID)
}

func (f *fakeUpstream) VerifyScan(ctx context.Context, _ string) ([]byte, error) {
	n := int(f.scanVerifies.Add(1))
	if f.verifyScan == nil {
		return []byte(`{"status":"processing"}`), nil
	}
	return f.verifyScan(ctx, n)
}

func (f *fakeUpstream) GeneratePoints(ctx context.Context, _ string, req upstream.PointsRequest) (string, error) {
	f.generates.Add(1)
	if f.generatePoints == nil {
		return "tx1", nil
	}
	return f.generatePoints(ctx, req)
}

func (f *fakeUpstream) VerifyPoints(ctx context.Context, token, _ string) (upstream.PointsStatus, error) {
	n := int(f.pointsVerifies.Add(1))
	if f.verifyPoints == nil {
		return upstream.PointsStatus{Status: "pending"}, nil
	}
	return f.verifyPoints(ctx, token, n)
}

type recordingNotifier struct {
	mu      sync.Mutex
	entries []entry.Entry
}

func (n *recordingNotifier) PointsTimedOut(_ context.Context, e entry.Entry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, e)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.entries)
}

type harness struct {
	orch     *Orchestrator
	store    *entrystore.Store
	tokens   *auth.TokenStore
	images   *snapshot.Registry
	notifier *recordingNotifier
}

func fastPolling() *config.PollingConfig {
	return &config.PollingConfig{
		OCRInterval:    10 * time.Millisecond,
		OCRTimeout:     300 * time.Millisecond,
		PointsInterval: 10 * time.Millisecond,
		PointsTimeout:  300 * time.Millisecond,
	}
}

func newHarness(t *testing.T, up Upstream, pollCfg *config.PollingConfig, token string) *harness {
	t.Helper()
	logger := newTestLogger()
	validator, err := validation.NewValidator(validation.ModeStrict)
	require.NoError(t, err)

	h := &harness{
		store:    entrystore.New(logger),
		tokens:   auth.NewTokenStore(logger, token),
		images:   snapshot.NewRegistry(),
		notifier: &recordingNotifier{},
	}
	h.orch, err = NewOrchestrator(logger, pollCfg, &config.WorkerPoolConfig{Size: 8}, Dependencies{
		Store:      h.store,
		Upstream:   up,
		Validator:  validator,
		Normalizer: passthroughNormalizer{},
		Images:     h.images,
		Tokens:     h.tokens,
		Scheduler:  polling.NewScheduler(logger),
		Notifier:   h.notifier,
	})
	require.NoError(t, err)
	t.Cleanup(func() { h.orch.Shutdown(time.Second) })
	return h
}

func (h *harness) eventually(t *testing.T, id string, cond func(e entry.Entry) bool) entry.Entry {
	t.Helper()
	var last entry.Entry
	require.Eventually(t, func() bool {
		e, err := h.store.Get(id)
		if err != nil {
			return false
		}
		last = e
		return cond(e)
	}, 3*time.Second, 5*time.Millisecond, "entry never reached the expected state: %+v", last)
	return last
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	var generated atomic.Value
	var pointsAuth atomic.Value
	var verifyCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/upload":
			_, _, err := r.FormFile("file")
			assert.NoError(t, err)
			_, _ = io.WriteString(w, `{"image_id":"img1"}`)
		case r.URL.Path == "/scan":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "img1", body["image_id"])
			_, _ = io.WriteString(w, `{"scan_id":"scan1"}`)
		case r.URL.Path == "/scan/verify":
			if verifyCalls.Add(1) < 3 {
				_, _ = io.WriteString(w, `{"status":"processing"}`)
				return
			}
			_, _ = io.WriteString(w, `{"emitente_cnpj":"99.999.999/0001-00","valor_total":"42.50"}`)
		case r.URL.Path == "/points/generate":
			body, _ := io.ReadAll(r.Body)
			generated.Store(string(body))
			pointsAuth.Store(r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `{"transactionId":"tx1"}`)
		case r.URL.Path == "/points/verify/tx1":
			_, _ = io.WriteString(w, `{"status":"generated","points":"15"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := upstream.NewClient(newTestLogger(), &config.UpstreamConfig{
		UploadURL:         srv.URL + "/upload",
		ScanURL:           srv.URL + "/scan",
		ScanVerifyURL:     srv.URL + "/scan/verify",
		PointsGenerateURL: srv.URL + "/points/generate",
		PointsVerifyURL:   srv.URL + "/points/verify",
		Timeout:           time.Second,
		MaxResponseBytes:  1 << 20,
	})
	h := newHarness(t, client, fastPolling(), "secret")

	started, err := h.orch.Start(context.Background(), []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, entry.StatusProcessing, started.Status)
	assert.Equal(t, "img1", started.ImageID)
	assert.Equal(t, "scan1", started.ScanID)
	assert.Equal(t, entry.ImageEphemeral, started.Image.Kind)

	final := h.eventually(t, started.ID, func(e entry.Entry) bool { return e.Points.IsResolved() })
	assert.Equal(t, entry.StatusValid, final.Status)
	assert.Equal(t, 15, final.Points.Value)
	assert.Equal(t, "tx1", final.TransactionID)
	assert.Empty(t, final.Error)
	assert.JSONEq(t, `{"emitente_cnpj":"99.999.999/0001-00","valor_total":"42.50"}`, string(final.Data))
	assert.EqualValues(t, 3, verifyCalls.Load())
	assert.Equal(t, 1, h.store.Len())

	var req map[string]any
	require.NoError(t, json.Unmarshal([]byte(generated.Load().(string)), &req))
	assert.InDelta(t, 42.5, req["value"], 0.0001)
	assert.Len(t, req["nfid"], 16)
	assert.Equal(t, "99.999.999/0001-00", req["params"].(map[string]any)["emitente_cnpj"])
	assert.Equal(t, "Bearer secret", pointsAuth.Load())
}

func TestOrchestrator_Start(t *testing.T) {
	uploadErr := &shared.NetworkError{Op: upstream.OpUpload, StatusCode: http.StatusBadGateway}
	scanErr := &shared.ProtocolError{Op: upstream.OpScan, Field: "scan_id"}

	testCases := []struct {
		name           string
		upstream       *fakeUpstream
		expectedErr    error
		expectedStatus entry.Status
	}{
		{
			name:           "Upload failure marks entry as error",
			upstream:       &fakeUpstream{upload: func(context.Context) (string, error) { return "", uploadErr }},
			expectedErr:    uploadErr,
			expectedStatus: entry.StatusError,
		},
		{
			name:           "Scan protocol failure marks entry as error",
			upstream:       &fakeUpstream{scan: func(context.Context, string) (string, error) { return "", scanErr }},
			expectedErr:    scanErr,
			expectedStatus: entry.StatusError,
		},
		{
			name:           "Success leaves entry processing",
			upstream:       &fakeUpstream{},
			expectedStatus: entry.StatusProcessing,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.upstream, fastPolling(), "")

			got, err := h.orch.Start(context.Background(), []byte("raw"))
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				assert.Equal(t, tc.expectedErr.Error(), got.Error)
			} else {
				assert.NoError(t, err)
				assert.Empty(t, got.Error)
			}
			assert.Equal(t, tc.expectedStatus, got.Status)
			assert.Equal(t, 1, h.store.Len())
		})
	}
}

func TestOrchestrator_Start_NormalizeFailureCreatesNothing(t *testing.T) {
	logger := newTestLogger()
	validator, err := validation.NewValidator(validation.ModeStrict)
	require.NoError(t, err)
	store := entrystore.New(logger)

	orch, err := NewOrchestrator(logger, fastPolling(), &config.WorkerPoolConfig{Size: 2}, Dependencies{
		Store:      store,
		Upstream:   &fakeUpstream{},
		Validator:  validator,
		Normalizer: passthroughNormalizer{err: imaging.ErrUnsupportedImage},
		Images:     snapshot.NewRegistry(),
		Tokens:     auth.NewTokenStore(logger, ""),
		Scheduler:  polling.NewScheduler(logger),
	})
	require.NoError(t, err)
	defer orch.Shutdown(time.Second)

	_, err = orch.Start(context.Background(), []byte("not an image"))
	assert.ErrorIs(t, err, imaging.ErrUnsupportedImage)
	assert.Zero(t, store.Len())
}

func TestOrchestrator_OCRClassification(t *testing.T) {
	testCases := []struct {
		name           string
		body           string
		expectedStatus entry.Status
		expectedData   string
	}{
		{"Valid payload", `{"emitente_cnpj":"123","total":"10"}`, entry.StatusValid, `{"emitente_cnpj":"123","total":"10"}`},
		{"Null field", `{"emitente_cnpj":"123","total":null}`, entry.StatusInvalid, `{"emitente_cnpj":"123","total":null}`},
		{"Missing cnpj", `{"total":"10"}`, entry.StatusInvalid, `{"total":"10"}`},
		{"Plain text", `hello`, entry.StatusInvalid, `"hello"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			up := &fakeUpstream{verifyScan: func(context.Context, int) ([]byte, error) {
				return []byte(tc.body), nil
			}}
			// no token: points are never requested
			h := newHarness(t, up, fastPolling(), "")

			started, err := h.orch.Start(context.Background(), []byte("raw"))
			require.NoError(t, err)

			final := h.eventually(t, started.ID, func(e entry.Entry) bool { return e.Status != entry.StatusProcessing })
			assert.Equal(t, tc.expectedStatus, final.Status)
			assert.JSONEq(t, tc.expectedData, string(final.Data))
			assert.Empty(t, final.Error)
			assert.Equal(t, entry.PointsUnrequested, final.Points.State)
			assert.Zero(t, up.generates.Load())
		})
	}
}

func TestOrchestrator_OCRTimeoutCancelsEntry(t *testing.T) {
	up := &fakeUpstream{verifyScan: func(context.Context, int) ([]byte, error) {
		return nil, &shared.NetworkError{Op: upstream.OpScanVerify, StatusCode: http.StatusServiceUnavailable}
	}}
	h := newHarness(t, up, &config.PollingConfig{
		OCRInterval:    10 * time.Millisecond,
		OCRTimeout:     80 * time.Millisecond,
		PointsInterval: 10 * time.Millisecond,
		PointsTimeout:  80 * time.Millisecond,
	}, "")

	started, err := h.orch.Start(context.Background(), []byte("raw"))
	require.NoError(t, err)

	final := h.eventually(t, started.ID, func(e entry.Entry) bool { return e.Status != entry.StatusProcessing })
	assert.Equal(t, entry.StatusCancelled, final.Status)
	assert.Contains(t, final.Error, "timed out")
	assert.Greater(t, up.scanVerifies.Load(), int32(1))
}

func TestOrchestrator_PointsStates(t *testing.T) {
	validBody := []byte(`{"emitente_cnpj":"123","valor_total":"10,00"}`)

	testCases := []struct {
		name               string
		token              string
		upstream           *fakeUpstream
		wait               func(e entry.Entry) bool
		expectedState      entry.PointsState
		expectedValue      int
		expectPointsError  bool
		expectNotification bool
	}{
		{
			name:  "Resolved points are clamped to integers",
			token: "secret",
			upstream: &fakeUpstream{verifyPoints: func(context.Context, string, int) (upstream.PointsStatus, error) {
				return upstream.PointsStatus{Status: "generated", Points: json.RawMessage(`12.9`)}, nil
			}},
			wait:          func(e entry.Entry) bool { return e.Points.IsResolved() },
			expectedState: entry.PointsResolved,
			expectedValue: 12,
		},
		{
			name:  "Generation failure leaves status valid with unresolved points",
			token: "secret",
			upstream: &fakeUpstream{generatePoints: func(context.Context, upstream.PointsRequest) (string, error) {
				return "", &shared.ProtocolError{Op: upstream.OpPointsGenerate, Field: "transactionId"}
			}},
			wait:              func(e entry.Entry) bool { return e.Points.State == entry.PointsUnresolved },
			expectedState:     entry.PointsUnresolved,
			expectPointsError: true,
		},
		{
			name:               "Verification timeout stops silently",
			token:              "secret",
			upstream:           &fakeUpstream{},
			wait:               func(e entry.Entry) bool { return e.TransactionID == "tx1" },
			expectedState:      entry.PointsUnrequested,
			expectNotification: true,
		},
		{
			name:          "No token leaves points unrequested",
			upstream:      &fakeUpstream{},
			wait:          func(e entry.Entry) bool { return e.Status == entry.StatusValid },
			expectedState: entry.PointsUnrequested,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.upstream.verifyScan = func(context.Context, int) ([]byte, error) { return validBody, nil }
			h := newHarness(t, tc.upstream, &config.PollingConfig{
				OCRInterval:    10 * time.Millisecond,
				OCRTimeout:     300 * time.Millisecond,
				PointsInterval: 10 * time.Millisecond,
				PointsTimeout:  60 * time.Millisecond,
			}, tc.token)

			started, err := h.orch.Start(context.Background(), []byte("raw"))
			require.NoError(t, err)

			h.eventually(t, started.ID, tc.wait)
			if tc.expectNotification {
				require.Eventually(t, func() bool { return h.notifier.count() == 1 }, 2*time.Second, 5*time.Millisecond)
			}

			final, err := h.store.Get(started.ID)
			require.NoError(t, err)
			assert.Equal(t, entry.StatusValid, final.Status)
			assert.Empty(t, final.Error)
			assert.Equal(t, tc.expectedState, final.Points.State)
			assert.Equal(t, tc.expectedValue, final.Points.Value)
			if tc.expectPointsError {
				assert.Contains(t, final.PointsError, "points generation failed")
			} else {
				assert.Empty(t, final.PointsError)
			}
		})
	}
}

func TestOrchestrator_PointsPollingReadsCurrentToken(t *testing.T) {
	up := &fakeUpstream{
		verifyScan: func(context.Context, int) ([]byte, error) {
			return []byte(`{"emitente_cnpj":"123","valor_total":5}`), nil
		},
		verifyPoints: func(_ context.Context, token string, _ int) (upstream.PointsStatus, error) {
			if token != "rotated" {
				return upstream.PointsStatus{Status: "pending"}, nil
			}
			return upstream.PointsStatus{Status: "generated", Points: json.RawMessage(`"7"`)}, nil
		},
	}
	h := newHarness(t, up, fastPolling(), "original")

	started, err := h.orch.Start(context.Background(), []byte("raw"))
	require.NoError(t, err)

	h.eventually(t, started.ID, func(e entry.Entry) bool { return e.TransactionID != "" })
	require.NoError(t, h.tokens.Set("rotated"))

	final := h.eventually(t, started.ID, func(e entry.Entry) bool { return e.Points.IsResolved() })
	assert.Equal(t, 7, final.Points.Value)
}

func TestOrchestrator_Resume(t *testing.T) {
	up := &fakeUpstream{
		verifyScan: func(context.Context, int) ([]byte, error) {
			return []byte(`{"emitente_cnpj":"123"}`), nil
		},
		verifyPoints: func(context.Context, string, int) (upstream.PointsStatus, error) {
			return upstream.PointsStatus{Status: "generated", Points: json.RawMessage(`3`)}, nil
		},
	}
	h := newHarness(t, up, fastPolling(), "secret")

	now := time.Now()
	scanning := entry.New(entry.Image{}, now)
	scanning.ScanID = "scan9"
	uploading := entry.New(entry.Image{}, now)
	awaitingPoints := entry.New(entry.Image{}, now)
	awaitingPoints.Status = entry.StatusValid
	awaitingPoints.Data = json.RawMessage(`{"emitente_cnpj":"1"}`)
	awaitingPoints.TransactionID = "tx9"
	h.store.Replace([]entry.Entry{scanning, uploading, awaitingPoints})

	assert.Equal(t, 2, h.orch.Resume(context.Background()))

	h.eventually(t, scanning.ID, func(e entry.Entry) bool { return e.Status == entry.StatusValid })
	interrupted := h.eventually(t, uploading.ID, func(e entry.Entry) bool { return e.Status == entry.StatusError })
	assert.NotEmpty(t, interrupted.Error)
	points := h.eventually(t, awaitingPoints.ID, func(e entry.Entry) bool { return e.Points.IsResolved() })
	assert.Equal(t, 3, points.Points.Value)
}

func TestPurchaseValue(t *testing.T) {
	testCases := []struct {
		name        string
		data        string
		expected    float64
		expectedErr bool
	}{
		{"Dot decimal string", `{"valor_total":"42.50"}`, 42.5, false},
		{"Brazilian decimal", `{"valor_total":"42,50"}`, 42.5, false},
		{"Brazilian thousands with currency", `{"valor_total":"R$ 1.234,56"}`, 1234.56, false},
		{"US thousands", `{"valor_total":"1,234.56"}`, 1234.56, false},
		{"Number", `{"valor_total":19.9}`, 19.9, false},
		{"Falls back to total", `{"total":"10"}`, 10, false},
		{"Skips null", `{"valor_total":null,"valor":"3"}`, 3, false},
		{"Missing", `{"emitente_cnpj":"1"}`, 0, true},
		{"Garbage", `{"valor_total":"abc"}`, 0, true},
		{"Not an object", `"hello"`, 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PurchaseValue(json.RawMessage(tc.data))
			if tc.expectedErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.expected, got, 0.0001)
		})
	}
}

func TestParams(t *testing.T) {
	assert.JSONEq(t, `{"a":1}`, string(Params(json.RawMessage(`{"a":1}`))))
	assert.JSONEq(t, `{}`, string(Params(json.RawMessage(`"hello"`))))
	assert.JSONEq(t, `{}`, string(Params(nil)))
}

func TestOrchestrator_RejectedScanVerifyFailsEntry(t *testing.T) {
	testCases := []struct {
		name         string
		status       int
		expectStatus entry.Status
		singleCall   bool
	}{
		{name: "not found stops polling", status: http.StatusNotFound, expectStatus: entry.StatusError, singleCall: true},
		{name: "forbidden stops polling", status: http.StatusForbidden, expectStatus: entry.StatusError, singleCall: true},
		{name: "server error keeps polling until timeout", status: http.StatusInternalServerError, expectStatus: entry.StatusCancelled},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			up := &fakeUpstream{verifyScan: func(context.Context, int) ([]byte, error) {
				return nil, &shared.NetworkError{Op: upstream.OpScanVerify, StatusCode: tc.status}
			}}
			h := newHarness(t, up, fastPolling(), "secret")

			started, err := h.orch.Start(context.Background(), []byte("raw"))
			require.NoError(t, err)

			final := h.eventually(t, started.ID, func(e entry.Entry) bool { return e.Status != entry.StatusProcessing })
			assert.Equal(t, tc.expectStatus, final.Status)
			if tc.singleCall {
				assert.Contains(t, final.Error, "status")
				assert.EqualValues(t, 1, up.scanVerifies.Load())
			} else {
				assert.Greater(t, up.scanVerifies.Load(), int32(1))
			}
		})
	}
}

func TestOrchestrator_RejectedPointsVerifyFailsPoints(t *testing.T) {
	up := &fakeUpstream{
		verifyScan: func(context.Context, int) ([]byte, error) {
			return []byte(`{"emitente_cnpj":"123","valor_total":"8.00"}`), nil
		},
		verifyPoints: func(context.Context, string, int) (upstream.PointsStatus, error) {
			return upstream.PointsStatus{}, &shared.NetworkError{Op: upstream.OpPointsVerify, StatusCode: http.StatusNotFound}
		},
	}
	h := newHarness(t, up, fastPolling(), "secret")

	started, err := h.orch.Start(context.Background(), []byte("raw"))
	require.NoError(t, err)

	final := h.eventually(t, started.ID, func(e entry.Entry) bool { return e.Points.State == entry.PointsUnresolved })
	assert.Equal(t, entry.StatusValid, final.Status)
	assert.Contains(t, final.PointsError, "points verification failed")
	assert.Equal(t, "tx1", final.TransactionID)
	assert.EqualValues(t, 1, up.pointsVerifies.Load())
	assert.Zero(t, h.notifier.count())
}

func TestOrchestrator_StartReleasesImageWhenCreateFails(t *testing.T) {
	h := newHarness(t, &fakeUpstream{}, fastPolling(), "secret")

	existing, err := h.store.Create(entry.New(entry.Image{}, time.Now()))
	require.NoError(t, err)

	var registered entry.Image
	h.orch.newEntry = func(img entry.Image, now time.Time) entry.Entry {
		registered = img
		e := entry.New(img, now)
		e.ID = existing.ID
		return e
	}

	_, err = h.orch.Start(context.Background(), []byte("raw"))
	require.ErrorIs(t, err, entrystore.ErrDuplicateEntry)

	require.Equal(t, entry.ImageEphemeral, registered.Kind)
	_, _, err = h.images.Bytes(registered)
	assert.ErrorIs(t, err, snapshot.ErrImageExpired)
	assert.Equal(t, 1, h.store.Len())
}
