package persist

import (
	"errors"
	"fmt"
)

// Persistence errors.
var (
	// ErrUnresolvableSource indicates the source yields neither a local
	// path nor a readable stream.
	ErrUnresolvableSource = errors.New("unresolvable source")

	// ErrNoDestination indicates a save with no destination bound.
	ErrNoDestination = errors.New("no save destination")

	// ErrReadOnly indicates an edit or save on read-only content.
	ErrReadOnly = errors.New("content is read-only")

	// ErrNoContent indicates an edit with no content bound.
	ErrNoContent = errors.New("no content bound")

	// ErrClosed indicates the editor has been closed.
	ErrClosed = errors.New("editor closed")
)

// OperationError records a failed open or save and the target it was
// working on.
type OperationError struct {
	Op     string // "open", "load", "save"
	Target string // source name
	Err    error
}

// NewOperationError creates a new OperationError.
func NewOperationError(op, target string, err error) *OperationError {
	return &OperationError{Op: op, Target: target, Err: err}
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}

	msg := e.Op
	if e.Target != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Target)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the wrapper instance itself or anything it wraps.
func (e *OperationError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*OperationError); ok {
		return e == t
	}
	return errors.Is(e.Err, target)
}
