package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same key already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a stored value breaks a check constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a reference points to a missing
	// record or a referenced record is being removed.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrStaleStatus is returned when a guarded status update finds a different current status.
	ErrStaleStatus = errors.New("persistence: stale status")
)
