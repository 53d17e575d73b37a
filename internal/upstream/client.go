// Package upstream talks to the external OCR and reward services.
// Every non-2xx status, transport failure or undecodable body is a
// shared.NetworkError; a decodable body that lacks a required identifier is a
// shared.ProtocolError.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rox-lucas-sh/image-scan-vision/internal/config"
	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/shared"
)

const (
	OpUpload         = "upload"
	OpScan           = "scan"
	OpScanVerify     = "scan verify"
	OpPointsGenerate = "points generate"
	OpPointsVerify   = "points verify"
)

// ErrNoToken is returned by authenticated calls made without a bearer token
var ErrNoToken = errors.New("no auth token available")

// PointsRequest is the body of a points generation call
type PointsRequest struct {
	Value  float64         `json:"value"`
	Params json.RawMessage `json:"params"`
	NFID   string          `json:"nfid"`
}

// PointsStatus is the reward system's view of a points transaction
type PointsStatus struct {
	Status  string          `json:"status"`
	Points  json.RawMessage `json:"points"`
	Matched []entry.Rule    `json:"matched,omitempty"`
}

// Resolved reports whether the transaction produced a usable amount
func (s PointsStatus) Resolved() bool {
	return s.Status == "generated" && entry.Truthy(s.Points)
}

// Client calls the upstream services over HTTP
type Client struct {
	httpClient *http.Client
	cfg        *config.UpstreamConfig
	logger     *slog.Logger
}

// NewClient creates a client with the configured per-request timeout
func NewClient(logger *slog.Logger, cfg *config.UpstreamConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
	}
}

// Upload sends the normalized image and returns the upstream image id
func (c *Client) Upload(ctx context.Context, image []byte, contentType string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="receipt.jpg"`)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("failed to write image to multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.UploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	raw, status, err := c.do(req, OpUpload)
	if err != nil {
		return "", err
	}
	return identifier(raw, status, OpUpload, "image_id")
}

// Scan starts OCR for an uploaded image and returns the scan id
func (c *Client) Scan(ctx context.Context, imageID string) (string, error) {
	req, err := c.jsonRequest(ctx, http.MethodPost, c.cfg.ScanURL, map[string]string{"image_id": imageID}, "")
	if err != nil {
		return "", err
	}
	raw, status, err := c.do(req, OpScan)
	if err != nil {
		return "", err
	}
	return identifier(raw, status, OpScan, "scan_id")
}

// VerifyScan fetches the current OCR result text for a scan
func (c *Client) VerifyScan(ctx context.Context, scanID string) ([]byte, error) {
	req, err := c.jsonRequest(ctx, http.MethodPost, c.cfg.ScanVerifyURL, map[string]string{"scan_id": scanID}, "")
	if err != nil {
		return nil, err
	}
	raw, _, err := c.do(req, OpScanVerify)
	return raw, err
}

// GeneratePoints asks the reward system to compute points for a receipt
func (c *Client) GeneratePoints(ctx context.Context, token string, pr PointsRequest) (string, error) {
	if token == "" {
		return "", ErrNoToken
	}
	if len(pr.Params) == 0 {
		pr.Params = json.RawMessage("{}")
	}
	req, err := c.jsonRequest(ctx, http.MethodPost, c.cfg.PointsGenerateURL, pr, token)
	if err != nil {
		return "", err
	}
	raw, status, err := c.do(req, OpPointsGenerate)
	if err != nil {
		return "", err
	}
	return identifier(raw, status, OpPointsGenerate, "transactionId")
}

// VerifyPoints fetches the status of a points transaction
func (c *Client) VerifyPoints(ctx context.Context, token, transactionID string) (PointsStatus, error) {
	if token == "" {
		return PointsStatus{}, ErrNoToken
	}
	target := strings.TrimRight(c.cfg.PointsVerifyURL, "/") + "/" + url.PathEscape(transactionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return PointsStatus{}, fmt.Errorf("failed to build points verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	raw, status, err := c.do(req, OpPointsVerify)
	if err != nil {
		return PointsStatus{}, err
	}

	var ps PointsStatus
	if err := json.Unmarshal(raw, &ps); err != nil {
		return PointsStatus{}, &shared.NetworkError{Op: OpPointsVerify, StatusCode: status, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return ps, nil
}

func (c *Client) jsonRequest(ctx context.Context, method, target string, payload any, token string) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do executes the request and returns the body of a 2xx response
func (c *Client) do(req *http.Request, op string) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &shared.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, &shared.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("Upstream returned non-success status",
			"op", op,
			"status", resp.StatusCode,
			"body", snippet(raw),
		)
		var cause error
		if s := snippet(raw); s != "" {
			cause = errors.New(s)
		}
		return nil, resp.StatusCode, &shared.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: cause}
	}

	return raw, resp.StatusCode, nil
}

// identifier extracts a string or numeric id field from a JSON object body
func identifier(raw []byte, status int, op, field string) (string, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", &shared.NetworkError{Op: op, StatusCode: status, Err: fmt.Errorf("malformed response: %w", err)}
	}

	value, ok := body[field]
	if !ok {
		return "", &shared.ProtocolError{Op: op, Field: field}
	}

	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		if s == "" {
			return "", &shared.ProtocolError{Op: op, Field: field}
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(value, &n); err == nil {
		if _, err := strconv.ParseFloat(n.String(), 64); err == nil {
			return n.String(), nil
		}
	}
	return "", &shared.ProtocolError{Op: op, Field: field}
}

const maxSnippetBytes = 200

// snippet trims a response body for logging without splitting a UTF-8 sequence
func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) <= maxSnippetBytes {
		return s
	}
	cut := maxSnippetBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
