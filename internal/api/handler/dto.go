package handler

import (
	"encoding/json"
	"time"

	"github.com/rox-lucas-sh/image-scan-vision/internal/api/service"
	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
)

// RetryOCRRequest optionally supplies a scan id for an entry that lacks one
type RetryOCRRequest struct {
	ScanID string `json:"scan_id"`
}

// RetryPointsRequest optionally supplies an existing reward transaction
type RetryPointsRequest struct {
	TransactionID string `json:"transaction_id"`
}

type SelectEntryRequest struct {
	EntryID string `json:"entry_id" binding:"required"`
}

type SetTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=50" binding:"min=1,max=200"`
}

// ImageResponse describes the entry image without inlining its bytes
type ImageResponse struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// EntryResponse represents an entry in API responses. Points is omitted
// while never requested, null while unresolved and a number once resolved.
type EntryResponse struct {
	ID            string          `json:"id"`
	Timestamp     string          `json:"timestamp"`
	Status        string          `json:"status"`
	Image         *ImageResponse  `json:"image"`
	Data          json.RawMessage `json:"data,omitempty"`
	Error         string          `json:"error,omitempty"`
	Points        *entry.Points   `json:"points,omitempty"`
	PointsError   string          `json:"points_error,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Matched       []entry.Rule    `json:"matched,omitempty"`
	ScanID        string          `json:"scan_id,omitempty"`
	UpdatedAt     string          `json:"updated_at"`
}

// TokenStatusResponse never echoes the token itself
type TokenStatusResponse struct {
	Present   bool    `json:"present"`
	ExpiresAt *string `json:"expires_at,omitempty"`
}

func mapEntryToResponse(e entry.Entry) EntryResponse {
	res := EntryResponse{
		ID:            e.ID,
		Timestamp:     e.Timestamp.UTC().Format(time.RFC3339Nano),
		Status:        string(e.Status),
		Data:          e.Data,
		Error:         e.Error,
		PointsError:   e.PointsError,
		TransactionID: e.TransactionID,
		Matched:       e.Matched,
		ScanID:        e.ScanID,
		UpdatedAt:     e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !e.Image.IsZero() {
		res.Image = &ImageResponse{
			Kind: string(e.Image.Kind),
			URL:  "/api/v1/entries/" + e.ID + "/image",
		}
	}
	if e.Points.Requested() {
		p := e.Points
		res.Points = &p
	}
	return res
}

func mapEntriesToResponse(entries []entry.Entry) []EntryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, mapEntryToResponse(e))
	}
	return out
}

func mapTokenStatusToResponse(s service.TokenStatus) TokenStatusResponse {
	res := TokenStatusResponse{Present: s.Present}
	if s.ExpiresAt != nil {
		exp := s.ExpiresAt.UTC().Format(time.RFC3339)
		res.ExpiresAt = &exp
	}
	return res
}
