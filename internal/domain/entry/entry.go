// Package entry models a document moving through the scan and reward pipeline.
// An Entry is a value: the store hands out copies and every change goes
// through the transition methods below so status and points can only move
// along their allowed edges.
package entry

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EffectType is how a matched reward rule changes the amount
type EffectType string

const (
	EffectAdd      EffectType = "add"
	EffectMultiply EffectType = "multiply"
)

// Effect is the numeric change a rule applied
type Effect struct {
	Type  EffectType `json:"type" bson:"type"`
	Value float64    `json:"value" bson:"value"`
}

// Rule describes a reward rule that matched the document
type Rule struct {
	Name   string `json:"name" bson:"name"`
	Effect Effect `json:"effect" bson:"effect"`
}

// Entry tracks one document image through upload, OCR and points
type Entry struct {
	ID            string
	Timestamp     time.Time
	Image         Image
	Status        Status
	Data          json.RawMessage // parsed OCR payload, or the raw text as a JSON string
	Error         string
	Points        Points
	PointsError   string
	TransactionID string
	Matched       []Rule
	ImageID       string // upstream upload id
	ScanID        string // upstream OCR scan id
	Generation    uint64 // liveness token, bumped on every (re)start, retry and cancel
	UpdatedAt     time.Time
}

// New creates a processing entry for the given image
func New(image Image, now time.Time) Entry {
	now = now.UTC()
	return Entry{
		ID:        uuid.NewString(),
		Timestamp: now,
		Image:     image,
		Status:    StatusProcessing,
		Points:    Points{State: PointsUnrequested},
		UpdatedAt: now,
	}
}

// Clone returns a copy that shares no mutable state with e
func (e Entry) Clone() Entry {
	c := e
	if e.Data != nil {
		c.Data = append(json.RawMessage(nil), e.Data...)
	}
	if e.Matched != nil {
		c.Matched = append([]Rule(nil), e.Matched...)
	}
	return c
}

// Resolve records the OCR classification. Only valid or invalid are accepted.
func (e *Entry) Resolve(status Status, data json.RawMessage) error {
	if status != StatusValid && status != StatusInvalid {
		return ErrIllegalTransition{From: e.Status, To: status}
	}
	if err := e.transition(status, ""); err != nil {
		return err
	}
	e.Data = data
	return nil
}

// Fail moves a processing entry to error with the given message
func (e *Entry) Fail(message string) error {
	return e.transition(StatusError, message)
}

// Cancel moves a processing entry to cancelled with the given message
func (e *Entry) Cancel(message string) error {
	return e.transition(StatusCancelled, message)
}

// Reset puts the entry back into processing for a retry
func (e *Entry) Reset() {
	e.Status = StatusProcessing
	e.Error = ""
}

// FailPoints records a failed points request. A resolved amount is never undone.
func (e *Entry) FailPoints(message string) error {
	if e.Points.IsResolved() {
		return ErrIllegalPointsTransition{From: e.Points.State, To: PointsUnresolved}
	}
	e.Points = UnresolvedPoints()
	e.PointsError = message
	return nil
}

// ResolvePoints stores the awarded amount and the rules that produced it
func (e *Entry) ResolvePoints(value int, matched []Rule) error {
	if e.Points.IsResolved() {
		return ErrIllegalPointsTransition{From: e.Points.State, To: PointsResolved}
	}
	e.Points = ResolvedPoints(value)
	e.PointsError = ""
	e.Matched = matched
	return nil
}

// ResetPoints returns points to unrequested for a retry
func (e *Entry) ResetPoints() {
	e.Points = Points{State: PointsUnrequested}
	e.PointsError = ""
	e.Matched = nil
}

func (e *Entry) transition(to Status, message string) error {
	if e.Status != StatusProcessing {
		return ErrIllegalTransition{From: e.Status, To: to}
	}
	if to.carriesError() && message == "" {
		message = "processing failed"
	}
	e.Status = to
	e.Error = message
	return nil
}
