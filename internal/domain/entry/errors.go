package entry

import "fmt"

// ErrEntryNotFound indicates a missing entry
type ErrEntryNotFound struct {
	ID string
}

func (e ErrEntryNotFound) Error() string {
	return "entry not found: " + e.ID
}

// Is matches any ErrEntryNotFound when the target ID is empty
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	if t.ID == "" {
		return true
	}
	return e.ID == t.ID
}

// ErrIllegalTransition indicates a status change outside the allowed graph
type ErrIllegalTransition struct {
	From Status
	To   Status
}

func (e ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal status transition from %s to %s", e.From, e.To)
}

// Is matches any ErrIllegalTransition regardless of the states involved
func (e ErrIllegalTransition) Is(target error) bool {
	_, ok := target.(ErrIllegalTransition)
	return ok
}

// ErrIllegalPointsTransition indicates an attempt to move points backwards
type ErrIllegalPointsTransition struct {
	From PointsState
	To   PointsState
}

func (e ErrIllegalPointsTransition) Error() string {
	return fmt.Sprintf("illegal points transition from %s to %s", e.From, e.To)
}

func (e ErrIllegalPointsTransition) Is(target error) bool {
	_, ok := target.(ErrIllegalPointsTransition)
	return ok
}
