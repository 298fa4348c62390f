package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates an unknown artifact id.
	ErrNotFound = errors.New("registry: artifact not found")
	// ErrInvalidState indicates an operation on an artifact whose state
	// forbids it (activating a disabled artifact).
	ErrInvalidState = errors.New("registry: invalid artifact state")
	// ErrNoActive indicates that no artifact is currently active.
	ErrNoActive = errors.New("registry: no active artifact")
)

// ValidationError carries field-level detail for rejected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("registry: %s: %s", e.Field, e.Reason)
}
