// Package lifecycle defines the booking status state machine.
//
//	pending ──► approved ──► cancelled
//	   └────────────────────────┘
//
// Nothing transitions into pending and nothing leaves cancelled.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a one-off booking.
type Status string

const (
	// StatusPending is the initial state; the booking does not occupy the room.
	StatusPending Status = "pending"
	// StatusApproved occupies the room until cancelled.
	StatusApproved Status = "approved"
	// StatusCancelled is terminal.
	StatusCancelled Status = "cancelled"
)

var (
	// ErrUnknownStatus is returned when parsing an unsupported status value.
	ErrUnknownStatus = errors.New("lifecycle: unknown status")
	// ErrInvalidTransition is wrapped by TransitionError.
	ErrInvalidTransition = errors.New("lifecycle: invalid transition")
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusCancelled},
	StatusApproved: {StatusCancelled},
}

// ParseStatus converts a raw value into a Status.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, value)
	}
	return status, nil
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCancelled:
		return true
	}
	return false
}

// Occupies reports whether a booking in this state reserves its room.
func (s Status) Occupies() bool {
	return s == StatusApproved
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("lifecycle: cannot move booking from %s to %s", e.From, e.To)
}

// Unwrap exposes ErrInvalidTransition to errors.Is.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Transition validates from -> to and returns the new state.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, &TransitionError{From: from, To: to}
	}
	return to, nil
}
