package shared

import (
	"errors"
	"fmt"
	"time"
)

// ErrUserCancelled marks work stopped because the user cancelled it
var ErrUserCancelled = errors.New("processing cancelled by user")

// NetworkError covers transport failures and non-2xx upstream responses.
// StatusCode is 0 when no response was received.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s failed with status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return e.Op + " failed"
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ProtocolError is a well-formed upstream response that lacks a required field
type ProtocolError struct {
	Op    string
	Field string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s response is missing %s", e.Op, e.Field)
}

// TimeoutError is a polling loop that reached its deadline without resolving
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
}
