package entry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCorruptSnapshot is returned by snapshot repositories when stored data cannot be decoded
var ErrCorruptSnapshot = errors.New("corrupt entry snapshot")

// SnapshotRepository stores the whole ordered entry collection as one flat snapshot
type SnapshotRepository interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
}

// Record is the persisted form of an Entry. Times are RFC 3339 text and
// the image is always durable or absent.
type Record struct {
	ID            string `json:"id" bson:"id"`
	Position      int    `json:"-" bson:"position"`
	Timestamp     string `json:"timestamp" bson:"timestamp"`
	Image         *Image `json:"image" bson:"image"`
	Status        Status `json:"status" bson:"status"`
	Data          string `json:"data,omitempty" bson:"data,omitempty"`
	Error         string `json:"error,omitempty" bson:"error,omitempty"`
	PointsState   string `json:"points_state" bson:"points_state"`
	Points        *int   `json:"points" bson:"points"`
	PointsError   string `json:"points_error,omitempty" bson:"points_error,omitempty"`
	TransactionID string `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	Matched       []Rule `json:"matched,omitempty" bson:"matched,omitempty"`
	ImageID       string `json:"image_id,omitempty" bson:"image_id,omitempty"`
	ScanID        string `json:"scan_id,omitempty" bson:"scan_id,omitempty"`
	Generation    uint64 `json:"generation" bson:"generation"`
	UpdatedAt     string `json:"updated_at" bson:"updated_at"`
}

// ToRecord converts an entry into its persisted form
func ToRecord(e Entry) Record {
	r := Record{
		ID:            e.ID,
		Timestamp:     e.Timestamp.UTC().Format(time.RFC3339Nano),
		Status:        e.Status,
		Error:         e.Error,
		PointsState:   string(e.Points.State),
		PointsError:   e.PointsError,
		TransactionID: e.TransactionID,
		Matched:       e.Matched,
		ImageID:       e.ImageID,
		ScanID:        e.ScanID,
		Generation:    e.Generation,
		UpdatedAt:     e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !e.Image.IsZero() {
		img := e.Image
		r.Image = &img
	}
	if len(e.Data) > 0 {
		r.Data = string(e.Data)
	}
	if e.Points.IsResolved() {
		v := e.Points.Value
		r.Points = &v
	}
	if r.PointsState == "" {
		r.PointsState = string(PointsUnrequested)
	}
	return r
}

// ToEntry converts a persisted record back into an entry
func (r Record) ToEntry() (Entry, error) {
	if r.ID == "" {
		return Entry{}, fmt.Errorf("%w: record without id", ErrCorruptSnapshot)
	}
	if !r.Status.IsValid() {
		return Entry{}, fmt.Errorf("%w: entry %s has unknown status %q", ErrCorruptSnapshot, r.ID, r.Status)
	}

	ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: entry %s has bad timestamp: %v", ErrCorruptSnapshot, r.ID, err)
	}
	updated := ts
	if r.UpdatedAt != "" {
		if updated, err = time.Parse(time.RFC3339Nano, r.UpdatedAt); err != nil {
			return Entry{}, fmt.Errorf("%w: entry %s has bad updated_at: %v", ErrCorruptSnapshot, r.ID, err)
		}
	}

	e := Entry{
		ID:            r.ID,
		Timestamp:     ts,
		Status:        r.Status,
		Error:         r.Error,
		PointsError:   r.PointsError,
		TransactionID: r.TransactionID,
		Matched:       r.Matched,
		ImageID:       r.ImageID,
		ScanID:        r.ScanID,
		Generation:    r.Generation,
		UpdatedAt:     updated,
	}
	if r.Image != nil {
		e.Image = *r.Image
	}
	if r.Data != "" {
		if !json.Valid([]byte(r.Data)) {
			return Entry{}, fmt.Errorf("%w: entry %s has malformed data", ErrCorruptSnapshot, r.ID)
		}
		e.Data = json.RawMessage(r.Data)
	}

	switch PointsState(r.PointsState) {
	case PointsResolved:
		if r.Points == nil {
			e.Points = UnresolvedPoints()
		} else {
			e.Points = ResolvedPoints(*r.Points)
		}
	case PointsUnresolved:
		e.Points = UnresolvedPoints()
	default:
		e.Points = Points{State: PointsUnrequested}
	}
	return e, nil
}
