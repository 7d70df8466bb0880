package roomlock

import (
	"context"
	"fmt"
	"sync"
)

// Local is an in-process Locker. Each room gets a one-slot semaphore that is
// dropped again once no goroutine holds or waits for it.
type Local struct {
	mu    sync.Mutex
	rooms map[string]*localEntry
}

type localEntry struct {
	sem  chan struct{}
	refs int
}

// NewLocal constructs an empty in-process locker.
func NewLocal() *Local {
	return &Local{rooms: make(map[string]*localEntry)}
}

// Acquire implements Locker.
func (l *Local) Acquire(ctx context.Context, roomID string) (ReleaseFunc, error) {
	entry := l.ref(roomID)

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(roomID)
		return nil, fmt.Errorf("roomlock: acquire %s: %w", roomID, ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		released := false
		once.Do(func() {
			<-entry.sem
			l.unref(roomID)
			released = true
		})
		if !released {
			return ErrNotHeld
		}
		return nil
	}, nil
}

func (l *Local) ref(roomID string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.rooms[roomID]
	if !ok {
		entry = &localEntry{sem: make(chan struct{}, 1)}
		l.rooms[roomID] = entry
	}
	entry.refs++
	return entry
}

func (l *Local) unref(roomID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.rooms[roomID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.rooms, roomID)
	}
}

func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}
