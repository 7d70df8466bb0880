// Package roomlock serializes writes to a single room's occupancy so the
// check-then-commit sequence of slot creation and booking approval cannot
// interleave with another writer for the same room.
package roomlock

import (
	"context"
	"errors"
)

// ErrNotHeld is returned by a release when the lock was no longer owned by
// the caller, for example because its TTL elapsed.
var ErrNotHeld = errors.New("roomlock: lock not held")

// ReleaseFunc gives the room back. It must be called exactly once.
type ReleaseFunc func(ctx context.Context) error

// Locker grants exclusive access to a room until the returned ReleaseFunc is
// called. Acquire blocks until the room is free or ctx is done.
type Locker interface {
	Acquire(ctx context.Context, roomID string) (ReleaseFunc, error)
}
