package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/hall-scheduler/internal/lifecycle"
	"github.com/example/hall-scheduler/internal/scheduler"
)

var (
	// ErrNotFound is returned when the requested room, slot or booking does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrRoomInUse is returned when deleting a room that slots or bookings still reference.
	ErrRoomInUse = errors.New("application: room in use")
	// ErrConflict is matched by every *ConflictError.
	ErrConflict = errors.New("application: conflict")
	// ErrInvalidState is matched by every *InvalidStateError.
	ErrInvalidState = errors.New("application: invalid state")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func newValidationError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// ConflictError reports every occupant a candidate collides with.
type ConflictError struct {
	Conflicts []scheduler.Conflict
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	ids := make([]string, 0, len(e.Conflicts))
	for _, conflict := range e.Conflicts {
		ids = append(ids, fmt.Sprintf("%s %s", conflict.Kind, conflict.ID))
	}
	return fmt.Sprintf("conflicts with %s", strings.Join(ids, ", "))
}

// Is lets errors.Is match ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// InvalidStateError reports a rejected booking status change.
type InvalidStateError struct {
	BookingID string
	From      lifecycle.Status
	To        lifecycle.Status
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("booking %s cannot move from %s to %s", e.BookingID, e.From, e.To)
}

// Is lets errors.Is match ErrInvalidState and lifecycle.ErrInvalidTransition.
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState || target == lifecycle.ErrInvalidTransition
}
