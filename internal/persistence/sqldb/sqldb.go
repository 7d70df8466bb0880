// Package sqldb implements persistence.Store on database/sql for SQLite
// (modernc.org/sqlite) and PostgreSQL (pgx). Both dialects share one schema
// managed by embedded goose migrations.
package sqldb

import (
	"context"
	"fmt"

	"github.com/example/hall-scheduler/internal/persistence"
)

// Storage bundles the SQL repositories behind persistence.Store.
type Storage struct {
	pool     *ConnectionPool
	rooms    *RoomRepository
	slots    *SlotRepository
	bookings *BookingRepository
}

var _ persistence.Store = (*Storage)(nil)

// Open connects to dsn with the given driver and migrates the schema.
func Open(ctx context.Context, driver, dsn string) (*Storage, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	pool, err := NewConnectionPool(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := Migrate(ctx, pool); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("migrate %s: %w", dialect, err)
	}
	return New(pool), nil
}

// New wraps an already migrated pool.
func New(pool *ConnectionPool) *Storage {
	return &Storage{
		pool:     pool,
		rooms:    NewRoomRepository(pool),
		slots:    NewSlotRepository(pool),
		bookings: NewBookingRepository(pool),
	}
}

// Rooms implements persistence.Store.
func (s *Storage) Rooms() persistence.RoomRepository { return s.rooms }

// Slots implements persistence.Store.
func (s *Storage) Slots() persistence.SlotRepository { return s.slots }

// Bookings implements persistence.Store.
func (s *Storage) Bookings() persistence.BookingRepository { return s.bookings }

// Ping checks database connectivity.
func (s *Storage) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close closes the connection pool.
func (s *Storage) Close() error { return s.pool.Close() }
