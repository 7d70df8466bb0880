package persistence

import (
	"context"
	"time"

	"github.com/example/hall-scheduler/internal/lifecycle"
	"github.com/example/hall-scheduler/internal/timewindow"
)

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	// DeleteRoom fails with ErrForeignKeyViolation while slots or bookings reference the room.
	DeleteRoom(ctx context.Context, id string) error
}

// SlotFilter narrows recurring slot queries.
type SlotFilter struct {
	RoomID   string
	ActiveOn *timewindow.Date
}

// SlotRepository stores recurring slots.
type SlotRepository interface {
	CreateSlot(ctx context.Context, slot RecurringSlot) error
	UpdateSlot(ctx context.Context, slot RecurringSlot) error
	GetSlot(ctx context.Context, id string) (RecurringSlot, error)
	// ListSlots returns matching slots ordered by start clock then ID.
	ListSlots(ctx context.Context, filter SlotFilter) ([]RecurringSlot, error)
	DeleteSlot(ctx context.Context, id string) error
}

// BookingFilter narrows booking queries. With time bounds set, a booking
// matches when it overlaps [From, To).
type BookingFilter struct {
	RoomID   string
	From     *time.Time
	To       *time.Time
	Statuses []lifecycle.Status
}

// BookingRepository stores one-off bookings.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	// ListBookings returns matching bookings ordered by start then ID.
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	// UpdateBookingStatus moves the booking to status to only while it is
	// still in from. ErrStaleStatus reports that it no longer is.
	UpdateBookingStatus(ctx context.Context, id string, from, to lifecycle.Status, updatedAt time.Time) error
}

// Store groups the repositories of one backend.
type Store interface {
	Rooms() RoomRepository
	Slots() SlotRepository
	Bookings() BookingRepository
	Ping(ctx context.Context) error
	Close() error
}
