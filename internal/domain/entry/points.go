package entry

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// PointsState distinguishes "never requested" from "requested but unresolved"
type PointsState string

const (
	PointsUnrequested PointsState = "unrequested"
	PointsUnresolved  PointsState = "unresolved"
	PointsResolved    PointsState = "resolved"
)

// Points is the reward amount attached to an entry.
// The zero value is an unrequested amount.
type Points struct {
	State PointsState
	Value int
}

func UnresolvedPoints() Points {
	return Points{State: PointsUnresolved}
}

// ResolvedPoints builds a resolved amount, clamping negatives to zero
func ResolvedPoints(value int) Points {
	if value < 0 {
		value = 0
	}
	return Points{State: PointsResolved, Value: value}
}

// Requested reports whether points were ever asked for
func (p Points) Requested() bool {
	return p.State == PointsUnresolved || p.State == PointsResolved
}

func (p Points) IsResolved() bool {
	return p.State == PointsResolved
}

// MarshalJSON renders resolved points as a number and everything else as null.
// Callers that must distinguish "unrequested" omit the field entirely.
func (p Points) MarshalJSON() ([]byte, error) {
	if p.State != PointsResolved {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value)
}

// ClampPoints converts a raw points value from the reward system into a
// non-negative integer. Strings and numbers are accepted; anything that does
// not parse yields 0.
func ClampPoints(raw json.RawMessage) int {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}

	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

// Truthy reports whether a raw JSON value would count as present:
// not null, not false, not zero, not an empty string.
func Truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	}
	return true
}
