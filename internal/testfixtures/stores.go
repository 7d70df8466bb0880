package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/hall-scheduler/internal/persistence"
	"github.com/example/hall-scheduler/internal/persistence/memory"
	"github.com/example/hall-scheduler/internal/persistence/sqldb"
)

// NewSQLiteStore opens a migrated SQLite store in a temporary directory and
// registers its Close with tb.
func NewSQLiteStore(tb testing.TB) *sqldb.Storage {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "hall.db")
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	storage, err := sqldb.Open(context.Background(), "sqlite", dsn)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() {
		_ = storage.Close()
	})
	return storage
}

// StoreFactory builds a fresh, empty store.
type StoreFactory struct {
	Name string
	New  func(tb testing.TB) persistence.Store
}

// Stores lists every backend a repository contract must hold for.
func Stores() []StoreFactory {
	return []StoreFactory{
		{Name: "memory", New: func(testing.TB) persistence.Store { return memory.New() }},
		{Name: "sqlite", New: func(tb testing.TB) persistence.Store { return NewSQLiteStore(tb) }},
	}
}

// Seed stores the given records in dependency order and fails tb on error.
func Seed(tb testing.TB, store persistence.Store, rooms []persistence.Room, slots []persistence.RecurringSlot, bookings []persistence.Booking) {
	tb.Helper()

	ctx := context.Background()
	for _, room := range rooms {
		if err := store.Rooms().CreateRoom(ctx, room); err != nil {
			tb.Fatalf("seed room %s: %v", room.ID, err)
		}
	}
	for _, slot := range slots {
		if err := store.Slots().CreateSlot(ctx, slot); err != nil {
			tb.Fatalf("seed slot %s: %v", slot.ID, err)
		}
	}
	for _, booking := range bookings {
		if err := store.Bookings().CreateBooking(ctx, booking); err != nil {
			tb.Fatalf("seed booking %s: %v", booking.ID, err)
		}
	}
}
