// Package memory provides an in-process persistence.Store backed by maps.
// Slots and bookings are indexed by room so per-room queries touch only the
// records of that room.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/example/hall-scheduler/internal/lifecycle"
	"github.com/example/hall-scheduler/internal/persistence"
)

// Storage implements persistence.Store in memory.
type Storage struct {
	mu           sync.RWMutex
	rooms        map[string]persistence.Room
	slots        map[string]persistence.RecurringSlot
	bookings     map[string]persistence.Booking
	roomSlots    map[string]map[string]struct{}
	roomBookings map[string]map[string]struct{}
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		rooms:        make(map[string]persistence.Room),
		slots:        make(map[string]persistence.RecurringSlot),
		bookings:     make(map[string]persistence.Booking),
		roomSlots:    make(map[string]map[string]struct{}),
		roomBookings: make(map[string]map[string]struct{}),
	}
}

// Rooms implements persistence.Store.
func (s *Storage) Rooms() persistence.RoomRepository { return s }

// Slots implements persistence.Store.
func (s *Storage) Slots() persistence.SlotRepository { return s }

// Bookings implements persistence.Store.
func (s *Storage) Bookings() persistence.BookingRepository { return s }

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error { return nil }

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error { return nil }

// --- RoomRepository implementation ---

// CreateRoom stores a new room.
func (s *Storage) CreateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("memory: room %s: %w", room.ID, persistence.ErrDuplicate)
	}
	if room.Capacity <= 0 || room.HourlyRate.IsNegative() {
		return persistence.ErrConstraintViolation
	}

	s.rooms[room.ID] = room
	return nil
}

// UpdateRoom updates an existing room.
func (s *Storage) UpdateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rooms[room.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if room.Capacity <= 0 || room.HourlyRate.IsNegative() {
		return persistence.ErrConstraintViolation
	}

	room.CreatedAt = existing.CreatedAt
	s.rooms[room.ID] = room
	return nil
}

// GetRoom retrieves a room by ID.
func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

// ListRooms returns all rooms ordered by name then ID.
func (s *Storage) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name == rooms[j].Name {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Name < rooms[j].Name
	})
	return rooms, nil
}

// DeleteRoom removes a room that nothing references.
func (s *Storage) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	if len(s.roomSlots[id]) > 0 || len(s.roomBookings[id]) > 0 {
		return persistence.ErrForeignKeyViolation
	}

	delete(s.rooms, id)
	return nil
}

// --- SlotRepository implementation ---

// CreateSlot stores a new recurring slot.
func (s *Storage) CreateSlot(ctx context.Context, slot persistence.RecurringSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slots[slot.ID]; ok {
		return fmt.Errorf("memory: slot %s: %w", slot.ID, persistence.ErrDuplicate)
	}
	if err := s.checkSlotLocked(slot); err != nil {
		return err
	}

	s.slots[slot.ID] = cloneSlot(slot)
	index(s.roomSlots, slot.RoomID, slot.ID)
	return nil
}

// UpdateSlot replaces an existing recurring slot, possibly moving it to another room.
func (s *Storage) UpdateSlot(ctx context.Context, slot persistence.RecurringSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.slots[slot.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.checkSlotLocked(slot); err != nil {
		return err
	}

	slot.CreatedAt = existing.CreatedAt
	unindex(s.roomSlots, existing.RoomID, slot.ID)
	s.slots[slot.ID] = cloneSlot(slot)
	index(s.roomSlots, slot.RoomID, slot.ID)
	return nil
}

// GetSlot retrieves a recurring slot by ID.
func (s *Storage) GetSlot(ctx context.Context, id string) (persistence.RecurringSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.slots[id]
	if !ok {
		return persistence.RecurringSlot{}, persistence.ErrNotFound
	}
	return cloneSlot(slot), nil
}

// ListSlots returns slots matching filter ordered by start clock then ID.
func (s *Storage) ListSlots(ctx context.Context, filter persistence.SlotFilter) ([]persistence.RecurringSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := make([]persistence.RecurringSlot, 0)
	collect := func(slot persistence.RecurringSlot) {
		if filter.ActiveOn != nil && !slot.ActiveOn(*filter.ActiveOn) {
			return
		}
		slots = append(slots, cloneSlot(slot))
	}
	if filter.RoomID != "" {
		for id := range s.roomSlots[filter.RoomID] {
			collect(s.slots[id])
		}
	} else {
		for _, slot := range s.slots {
			collect(slot)
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Start == slots[j].Start {
			return slots[i].ID < slots[j].ID
		}
		return slots[i].Start < slots[j].Start
	})
	return slots, nil
}

// DeleteSlot removes a recurring slot by ID.
func (s *Storage) DeleteSlot(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[id]
	if !ok {
		return persistence.ErrNotFound
	}
	delete(s.slots, id)
	unindex(s.roomSlots, slot.RoomID, id)
	return nil
}

func (s *Storage) checkSlotLocked(slot persistence.RecurringSlot) error {
	if _, ok := s.rooms[slot.RoomID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	if slot.Start >= slot.End || !slot.Weekdays.Valid() {
		return persistence.ErrConstraintViolation
	}
	return nil
}

// --- BookingRepository implementation ---

// CreateBooking stores a new booking.
func (s *Storage) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[booking.ID]; ok {
		return fmt.Errorf("memory: booking %s: %w", booking.ID, persistence.ErrDuplicate)
	}
	if _, ok := s.rooms[booking.RoomID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	if !booking.StartsAt.Before(booking.EndsAt) || !booking.Status.Valid() {
		return persistence.ErrConstraintViolation
	}

	s.bookings[booking.ID] = cloneBooking(booking)
	index(s.roomBookings, booking.RoomID, booking.ID)
	return nil
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booking, ok := s.bookings[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return cloneBooking(booking), nil
}

// ListBookings returns bookings matching filter ordered by start then ID.
func (s *Storage) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bookings := make([]persistence.Booking, 0)
	collect := func(booking persistence.Booking) {
		if matchesBookingFilter(booking, filter) {
			bookings = append(bookings, cloneBooking(booking))
		}
	}
	if filter.RoomID != "" {
		for id := range s.roomBookings[filter.RoomID] {
			collect(s.bookings[id])
		}
	} else {
		for _, booking := range s.bookings {
			collect(booking)
		}
	}

	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].StartsAt.Equal(bookings[j].StartsAt) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].StartsAt.Before(bookings[j].StartsAt)
	})
	return bookings, nil
}

// UpdateBookingStatus performs a guarded status change.
func (s *Storage) UpdateBookingStatus(ctx context.Context, id string, from, to lifecycle.Status, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if booking.Status != from {
		return persistence.ErrStaleStatus
	}
	if !to.Valid() {
		return persistence.ErrConstraintViolation
	}

	booking.Status = to
	booking.UpdatedAt = updatedAt
	s.bookings[id] = booking
	return nil
}

func matchesBookingFilter(booking persistence.Booking, filter persistence.BookingFilter) bool {
	if filter.RoomID != "" && booking.RoomID != filter.RoomID {
		return false
	}
	if filter.To != nil && !booking.StartsAt.Before(*filter.To) {
		return false
	}
	if filter.From != nil && !booking.EndsAt.After(*filter.From) {
		return false
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, booking.Status) {
		return false
	}
	return true
}

func index(idx map[string]map[string]struct{}, roomID, id string) {
	ids, ok := idx[roomID]
	if !ok {
		ids = make(map[string]struct{})
		idx[roomID] = ids
	}
	ids[id] = struct{}{}
}

func unindex(idx map[string]map[string]struct{}, roomID, id string) {
	ids, ok := idx[roomID]
	if !ok {
		return
	}
	delete(ids, id)
	if len(ids) == 0 {
		delete(idx, roomID)
	}
}

func cloneSlot(slot persistence.RecurringSlot) persistence.RecurringSlot {
	cloned := slot
	if slot.ValidUntil != nil {
		until := *slot.ValidUntil
		cloned.ValidUntil = &until
	}
	return cloned
}

func cloneBooking(booking persistence.Booking) persistence.Booking {
	cloned := booking
	if booking.OccupantID != nil {
		occupant := *booking.OccupantID
		cloned.OccupantID = &occupant
	}
	return cloned
}
