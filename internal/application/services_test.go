package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/example/hall-scheduler/internal/availability"
	"github.com/example/hall-scheduler/internal/lifecycle"
	"github.com/example/hall-scheduler/internal/persistence"
	"github.com/example/hall-scheduler/internal/persistence/memory"
	"github.com/example/hall-scheduler/internal/roomlock"
	"github.com/example/hall-scheduler/internal/scheduler"
	"github.com/example/hall-scheduler/internal/timewindow"
	"github.com/shopspring/decimal"
)

var testZone = time.FixedZone("JST", 9*60*60)

type serviceHarness struct {
	store    *memory.Storage
	services *Services
	now      time.Time
	seq      int
}

func newServiceHarness(t *testing.T, overrides ...func(*Options)) *serviceHarness {
	t.Helper()

	h := &serviceHarness{
		store: memory.New(),
		now:   time.Date(2025, time.January, 15, 9, 0, 0, 0, testZone),
	}
	opts := Options{
		Location:    testZone,
		IDGenerator: h.nextID,
		Now:         func() time.Time { return h.now },
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, override := range overrides {
		override(&opts)
	}
	h.services = NewServices(h.store, opts)
	return h
}

func (h *serviceHarness) nextID() string {
	h.seq++
	return fmt.Sprintf("id-%03d", h.seq)
}

func (h *serviceHarness) room(t *testing.T, name string) Room {
	t.Helper()
	room, err := h.services.Rooms.CreateRoom(context.Background(), RoomInput{Name: name, Capacity: 30, HourlyRate: decimal.NewFromInt(1000)})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

func (h *serviceHarness) approvedBooking(t *testing.T, roomID string, start, end time.Time) Booking {
	t.Helper()
	ctx := context.Background()
	booking, err := h.services.Bookings.CreateBooking(ctx, BookingInput{RoomID: roomID, StartsAt: start, EndsAt: end})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	approved, err := h.services.Bookings.ApproveBooking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("approve booking: %v", err)
	}
	return approved
}

func date(y int, m time.Month, d int) timewindow.Date {
	return timewindow.NewDate(y, m, d)
}

func datePtr(y int, m time.Month, d int) *timewindow.Date {
	value := date(y, m, d)
	return &value
}

func at(d timewindow.Date, hour, minute int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, testZone)
}

func slotA(roomID string) SlotInput {
	return SlotInput{
		RoomID:     roomID,
		OccupantID: "course-a",
		Weekdays:   timewindow.NewWeekdaySet(time.Monday, time.Wednesday, time.Friday),
		Start:      timewindow.NewClock(9, 0),
		End:        timewindow.NewClock(11, 0),
		ValidFrom:  date(2025, time.January, 1),
		ValidUntil: datePtr(2025, time.March, 31),
	}
}

func TestSlotService_OverlappingSlotIsRejected(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	room := h.room(t, "Hall R")

	a, err := h.services.Slots.CreateSlot(ctx, slotA(room.ID))
	if err != nil {
		t.Fatalf("create slot A: %v", err)
	}

	_, err = h.services.Slots.CreateSlot(ctx, SlotInput{
		RoomID:     room.ID,
		OccupantID: "course-b",
		Weekdays:   timewindow.NewWeekdaySet(time.Monday),
		Start:      timewindow.NewClock(10, 0),
		End:        timewindow.NewClock(12, 0),
		ValidFrom:  date(2025, time.February, 1),
		ValidUntil: datePtr(2025, time.February, 28),
	})

	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(conflictErr.Conflicts) != 1 || conflictErr.Conflicts[0].ID != a.ID || conflictErr.Conflicts[0].Kind != scheduler.KindSlot {
		t.Fatalf("expected single conflict with slot A, got %+v", conflictErr.Conflicts)
	}

	slots, err := h.services.Slots.ListRoomSlots(ctx, room.ID)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("expected rejected slot not to be stored, got %d slots", len(slots))
	}
}

func TestSlotService_CreateSlotValidation(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	room := h.room(t, "Hall R")

	tests := []struct {
		name   string
		mutate func(*SlotInput)
		field  string
	}{
		{name: "missing occupant", mutate: func(in *SlotInput) { in.OccupantID = " " }, field: "occupant_id"},
		{name: "no weekdays", mutate: func(in *SlotInput) { in.Weekdays = 0 }, field: "weekdays"},
		{name: "end before start", mutate: func(in *SlotInput) { in.End = timewindow.NewClock(8, 0) }, field: "end_time"},
		{name: "empty clock range", mutate: func(in *SlotInput) { in.End = in.Start }, field: "end_time"},
		{name: "start at midnight end", mutate: func(in *SlotInput) { in.Start = timewindow.MinutesPerDay }, field: "start_time"},
		{name: "missing valid from", mutate: func(in *SlotInput) { in.ValidFrom = timewindow.Date{} }, field: "valid_from"},
		{name: "validity reversed", mutate: func(in *SlotInput) { in.ValidUntil = datePtr(2024, time.December, 31) }, field: "valid_until"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := slotA(room.ID)
			tt.mutate(&input)

			_, err := h.services.Slots.CreateSlot(ctx, input)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := vErr.FieldErrors[tt.field]; !ok {
				t.Fatalf("expected %s validation error, got %v", tt.field, vErr.FieldErrors)
			}
		})
	}

	t.Run("unknown room", func(t *testing.T) {
		_, err := h.services.Slots.CreateSlot(ctx, slotA("missing"))
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSlotService_TouchingSlotsAreAccepted(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	room := h.room(t, "Hall R")

	if _, err := h.services.Slots.CreateSlot(ctx, slotA(room.ID)); err != nil {
		t.Fatalf("create slot A: %v", err)
	}

	next := slotA(room.ID)
	next.OccupantID = "course-c"
	next.Start = timewindow.NewClock(11, 0)
	next.End = timewindow.NewClock(12, 30)
	if _, err := h.services.Slots.CreateSlot(ctx, next); err != nil {
		t.Fatalf("expected touching slot to be accepted, got %v", err)
	}

	later := slotA(room.ID)
	later.OccupantID = "course-d"
	later.ValidFrom = date(2025, time.April, 1)
	later.ValidUntil = nil
	if _, err := h.services.Slots.CreateSlot(ctx, later); err != nil {
		t.Fatalf("expected slot after validity to be accepted, got %v", err)
	}
}

func TestSlotService_UpdateSlot(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	room := h.room(t, "Hall R")
	other := h.room(t, "Hall S")

	a, err := h.services.Slots.CreateSlot(ctx, slotA(room.ID))
	if err != nil {
		t.Fatalf("create slot A: %v", err)
	}
	b := slotA(room.ID)
	b.OccupantID = "course-b"
	b.Start = timewindow.NewClock(13, 0)
	b.End = timewindow.NewClock(15, 0)
	slotB, err := h.services.Slots.CreateSlot(ctx, b)
	if err != nil {
		t.Fatalf("create slot B: %v", err)
	}

	t.Run("does not collide with itself", func(t *testing.T) {
		input := slotA(room.ID)
		input.End = timewindow.NewClock(11, 30)
		updated, err := h.services.Slots.UpdateSlot(ctx, a.ID, input)
		if err != nil {
			t.Fatalf("expected update to succeed, got %v", err)
		}
		if updated.End != timewindow.NewClock(11, 30) || !updated.CreatedAt.Equal(a.CreatedAt) {
			t.Fatalf("unexpected updated slot %+v", updated)
		}
	})

	t.Run("rejects collisions with other slots", func(t *testing.T) {
		input := slotA(room.ID)
		input.End = timewindow.NewClock(14, 0)
		_, err := h.services.Slots.UpdateSlot(ctx, a.ID, input)
		var conflictErr *ConflictError
		if !errors.As(err, &conflictErr) || conflictErr.Conflicts[0].ID != slotB.ID {
			t.Fatalf("expected conflict with slot B, got %v", err)
		}
	})

	t.Run("moves to another room", func(t *testing.T) {
		input := slotA(other.ID)
		input.Start = timewindow.NewClock(13, 0)
		input.End = timewindow.NewClock(15, 0)
		moved, err := h.services.Slots.UpdateSlot(ctx, a.ID, input)
		if err != nil {
			t.Fatalf("expected move to succeed, got %v", err)
		}
		if moved.RoomID != other.ID {
			t.Fatalf("expected slot in room %s, got %s", other.ID, moved.RoomID)
		}
	})

	t.Run("missing slot", func(t *testing.T) {
		if _, err := h.services.Slots.UpdateSlot(ctx, "missing", slotA(room.ID)); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

// relocatingLocker runs a pending relocation the next time a room lock is
// requested, so a slot changes rooms between a service's unlocked read and
// its lock acquisition.
type relocatingLocker struct {
	roomlock.Locker

	mu       sync.Mutex
	pending  func()
	acquired []string
}

func (l *relocatingLocker) arm(fn func()) {
	l.mu.Lock()
	l.pending = fn
	l.mu.Unlock()
}

func (l *relocatingLocker) Acquire(ctx context.Context, roomID string) (roomlock.ReleaseFunc, error) {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.acquired = append(l.acquired, roomID)
	l.mu.Unlock()

	if pending != nil {
		pending()
	}
	return l.Locker.Acquire(ctx, roomID)
}

func (l *relocatingLocker) acquiredRooms() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.acquired)
}

func TestSlotService_LocksRoomSlotMovedTo(t *testing.T) {
	locker := &relocatingLocker{Locker: roomlock.NewLocal()}
	h := newServiceHarness(t, func(opts *Options) { opts.Locker = locker })
	ctx := context.Background()
	origin := h.room(t, "Hall R")
	target := h.room(t, "Hall S")
	elsewhere := h.room(t, "Hall T")

	moveElsewhere := func(slotID string) func() {
		return func() {
			stored, err := h.store.GetSlot(ctx, slotID)
			if err != nil {
				t.Errorf("get slot: %v", err)
				return
			}
			stored.RoomID = elsewhere.ID
			if err := h.store.UpdateSlot(ctx, stored); err != nil {
				t.Errorf("relocate slot: %v", err)
			}
		}
	}

	t.Run("update", func(t *testing.T) {
		slot, err := h.services.Slots.CreateSlot(ctx, slotA(origin.ID))
		if err != nil {
			t.Fatalf("create slot: %v", err)
		}
		locker.arm(moveElsewhere(slot.ID))

		updated, err := h.services.Slots.UpdateSlot(ctx, slot.ID, slotA(target.ID))
		if err != nil {
			t.Fatalf("expected update to succeed, got %v", err)
		}
		if updated.RoomID != target.ID {
			t.Fatalf("expected slot in room %s, got %s", target.ID, updated.RoomID)
		}
		if !slices.Contains(locker.acquiredRooms(), elsewhere.ID) {
			t.Fatalf("expected lock on %s, acquired %v", elsewhere.ID, locker.acquiredRooms())
		}
	})

	t.Run("delete", func(t *testing.T) {
		input := slotA(origin.ID)
		input.OccupantID = "course-d"
		slot, err := h.services.Slots.CreateSlot(ctx, input)
		if err != nil {
			t.Fatalf("create slot: %v", err)
		}
		generation := h.services.Slots.cache.Generation(elsewhere.ID)
		locker.arm(moveElsewhere(slot.ID))

		if err := h.services.Slots.DeleteSlot(ctx, slot.ID); err != nil {
			t.Fatalf("delete slot: %v", err)
		}
		if h.services.Slots.cache.Generation(elsewhere.ID) == generation {
			t.Fatalf("expected cache of %s to be invalidated", elsewhere.ID)
		}
		if _, err := h.services.Slots.GetSlot(ctx, slot.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected slot to be gone, got %v", err)
		}
	})
}

func TestSlotService_ListActiveOnAndDelete(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	room := h.room(t, "Hall R")

	late := slotA(room.ID)
	late.OccupantID = "course-late"
	late.Start = timewindow.NewClock(18, 0)
	late.End = timewindow.NewClock(20, 0)
	lateSlot, err := h.services.Slots.CreateSlot(ctx, late)
	if err != nil {
		t.Fatalf("create late slot: %v", err)
	}
	early, err := h.services.Slots.CreateSlot(ctx, slotA(room.ID))
	if err != nil {
		t.Fatalf("create early slot: %v", err)
	}

	monday := date(2025, time.February, 3)
	active, err := h.services.Slots.ListActiveOn(ctx, room.ID, monday)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 || active[0].ID != early.ID || active[1].ID != lateSlot.ID {
		t.Fatalf("expected slots ordered by start, got %+v", active)
	}

	tuesday := monday.AddDays(1)
	if active, err := h.services.Slots.ListActiveOn(ctx, room.ID, tuesday); err != nil || len(active) != 0 {
		t.Fatalf("expected no slots on tuesday, got %d (%v)", len(active), err)
	}

	if err := h.services.Slots.DeleteSlot(ctx, early.ID); err != nil {
		t.Fatalf("delete slot: %v", err)
	}
	if _, err := h.services.Slots.GetSlot(ctx, early.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted slot to be gone, got %v", err)
	}
	if err := h.services.Slots.DeleteSlot(ctx, early.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := h.services.Slots.ListActiveOn(ctx, "missing", monday); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown room, got %v", err)
	}
}

func TestBookingService_ApproveConflictKeepsPending(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	room := h.room(t, "Hall R")
	day := date(2025, time.February, 4)

	existing := h.approvedBooking(t, room.ID, at(day, 13, 0), at(day, 14, 0))

	pending, err := h.services.Bookings.CreateBooking(ctx, BookingInput{
		RoomID:   room.ID,
		StartsAt: at(day, 13, 30),
		EndsAt:   at(day, 15, 0),
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if pending.Status != lifecycle.StatusPending {
		t.Fatalf("expected new booking to be pending, got %s", pending.Status)
	}

	_, err = h.services.Bookings.ApproveBooking(ctx, pending.ID)
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(conflictErr.Conflicts) != 1 || conflictErr.Conflicts[0].ID != existing.ID {
		t.Fatalf("expected conflict with %s, got %+v", existing.ID, conflictErr.Conflicts)
	}

	reloaded, err := h.services.Bookings.GetBooking(ctx, pending.ID)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	if reloaded.Status != lifecycle.StatusPending {
		t.Fatalf("expected booking to stay pending, got %s", reloaded.Status)
	}
}

func TestBookingService_ApproveAgainstSlots(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	room := h.room(t, "Hall R")
	slot, err := h.services.Slots.CreateSlot(ctx, slotA(room.ID))
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}

	monday := date(2025, time.February, 3)
	clash, err := h.services.Bookings.CreateBooking(ctx, BookingInput{RoomID: room.ID, StartsAt: at(monday, 10, 0), EndsAt: at(monday, 10, 30)})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	_, err = h.services.Bookings.ApproveBooking(ctx, clash.ID)
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) || conflictErr.Conflicts[0].ID != slot.ID {
		t.Fatalf("expected conflict with slot, got %v", err)
	}

	tuesday := monday.AddDays(1)
	free, err := h.services.Bookings.CreateBooking(ctx, BookingInput{RoomID: room.ID, StartsAt: at(tuesday, 10, 0), EndsAt: at(tuesday, 10, 30)})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if _, err := h.services.Bookings.ApproveBooking(ctx, free.ID); err != nil {
		t.Fatalf("expected booking on inactive weekday to be approved, got %v", err)
	}

	touching := h.approvedBooking(t, room.ID, at(monday, 11, 0), at(monday, 12, 0))
	if touching.Status != lifecycle.StatusApproved {
		t.Fatalf("expected touching booking to be approved, got %s", touching.Status)
	}
}

func TestBookingService_PendingBookingsDoNotBlock(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	room := h.room(t, "Hall R")
	day := date(2025, time.February, 4)

	first, err := h.services.Bookings.CreateBooking(ctx, BookingInput{RoomID: room.ID, StartsAt: at(day, 13, 0), EndsAt: at(day, 14, 0)})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := h.services.Bookings.CreateBooking(ctx, BookingInput{RoomID: room.ID, StartsAt: at(day, 13, 0), EndsAt: at(day, 14, 0)})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	if _, err := h.services.Bookings.ApproveBooking(ctx, second.ID); err != nil {
		t.Fatalf("expected second booking to be approved, got %v", err)
	}
	if _, err := h.services.Bookings.ApproveBooking(ctx, first.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected first booking to conflict once second is approved, got %v", err)
	}
}

func TestBookingService_Lifecycle(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	room := h.room(t, "Hall R")
	day := date(2025, time.February, 4)

	booking := h.approvedBooking(t, room.ID, at(day, 9, 0), at(day, 10, 0))

	t.Run("approving twice is invalid", func(t *testing.T) {
		_, err := h.services.Bookings.ApproveBooking(ctx, booking.ID)
		var stateErr *InvalidStateError
		if !errors.As(err, &stateErr) || stateErr.From != lifecycle.StatusApproved {
			t.Fatalf("expected InvalidStateError from approved, got %v", err)
		}
	})

	t.Run("cancel approved booking", func(t *testing.T) {
		cancelled, err := h.services.Bookings.CancelBooking(ctx, booking.ID)
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if cancelled.Status != lifecycle.StatusCancelled {
			t.Fatalf("expected cancelled, got %s", cancelled.Status)
		}
	})

	t.Run("cancelling twice always fails", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := h.services.Bookings.CancelBooking(ctx, booking.ID)
			if !errors.Is(err, ErrInvalidState) {
				t.Fatalf("attempt %d: expected ErrInvalidState, got %v", i, err)
			}
		}
	})

	t.Run("cancelled booking cannot be approved", func(t *testing.T) {
		if _, err := h.services.Bookings.ApproveBooking(ctx, booking.ID); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("freed window can be approved again", func(t *testing.T) {
		h.approvedBooking(t, room.ID, at(day, 9, 0), at(day, 10, 0))
	})

	t.Run("missing booking", func(t *testing.T) {
		if _, err := h.services.Bookings.CancelBooking(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestBookingService_CreateBookingValidation(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	room := h.room(t, "Hall R")
	day := date(2025, time.February, 4)

	tests := []struct {
		name  string
		input BookingInput
		field string
	}{
		{name: "missing room", input: BookingInput{StartsAt: at(day, 9, 0), EndsAt: at(day, 10, 0)}, field: "room_id"},
		{name: "missing start", input: BookingInput{RoomID: room.ID, EndsAt: at(day, 10, 0)}, field: "starts_at"},
		{name: "reversed", input: BookingInput{RoomID: room.ID, StartsAt: at(day, 10, 0), EndsAt: at(day, 9, 0)}, field: "ends_at"},
		{name: "spans two dates", input: BookingInput{RoomID: room.ID, StartsAt: at(day, 22, 0), EndsAt: at(day.AddDays(1), 1, 0)}, field: "ends_at"},
		{name: "sub-minute start", input: BookingInput{RoomID: room.ID, StartsAt: at(day, 9, 0).Add(30 * time.Second), EndsAt: at(day, 10, 0)}, field: "starts_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.services.Bookings.CreateBooking(ctx, tt.input)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := vErr.FieldErrors[tt.field]; !ok {
				t.Fatalf("expected %s validation error, got %v", tt.field, vErr.FieldErrors)
			}
		})
	}

	t.Run("ending at next midnight is accepted", func(t *testing.T) {
		booking := h.approvedBooking(t, room.ID, at(day, 22, 0), at(day.AddDays(1), 0, 0))
		if booking.Status != lifecycle.StatusApproved {
			t.Fatalf("expected approved booking, got %s", booking.Status)
		}
	})

	t.Run("blank occupant is dropped", func(t *testing.T) {
		blank := "  "
		booking, err := h.services.Bookings.CreateBooking(ctx, BookingInput{RoomID: room.ID, OccupantID: &blank, StartsAt: at(day, 8, 0), EndsAt: at(day, 9, 0)})
		if err != nil {
			t.Fatalf("create booking: %v", err)
		}
		if booking.OccupantID != nil {
			t.Fatalf("expected nil occupant, got %q", *booking.OccupantID)
		}
	})
}

func TestBookingService_ListRoomBookings(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	room := h.room(t, "Hall R")
	day := date(2025, time.February, 4)

	approved := h.approvedBooking(t, room.ID, at(day, 9, 0), at(day, 10, 0))
	pending, err := h.services.Bookings.CreateBooking(ctx, BookingInput{RoomID: room.ID, StartsAt: at(day.AddDays(1), 9, 0), EndsAt: at(day.AddDays(1), 10, 0)})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	all, err := h.services.Bookings.ListRoomBookings(ctx, room.ID, BookingQuery{})
	if err != nil || len(all) != 2 {
		t.Fatalf("expected two bookings, got %d (%v)", len(all), err)
	}

	status := lifecycle.StatusPending
	onlyPending, err := h.services.Bookings.ListRoomBookings(ctx, room.ID, BookingQuery{Status: &status})
	if err != nil || len(onlyPending) != 1 || onlyPending[0].ID != pending.ID {
		t.Fatalf("expected only pending booking, got %+v (%v)", onlyPending, err)
	}

	from, to := at(day, 0, 0), at(day.AddDays(1), 0, 0)
	firstDay, err := h.services.Bookings.ListRoomBookings(ctx, room.ID, BookingQuery{From: &from, To: &to})
	if err != nil || len(firstDay) != 1 || firstDay[0].ID != approved.ID {
		t.Fatalf("expected only first day booking, got %+v (%v)", firstDay, err)
	}

	if _, err := h.services.Bookings.ListRoomBookings(ctx, room.ID, BookingQuery{From: &to, To: &from}); err == nil {
		t.Fatalf("expected validation error for reversed range")
	}
}

func TestConflictService_CheckConflict(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	room := h.room(t, "Hall R")
	a, err := h.services.Slots.CreateSlot(ctx, slotA(room.ID))
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	monday := date(2025, time.February, 3)
	booking := h.approvedBooking(t, room.ID, at(monday, 13, 0), at(monday, 14, 0))

	t.Run("slot candidate lists every collision", func(t *testing.T) {
		conflicts, err := h.services.Conflicts.CheckConflict(ctx, CandidateInput{
			Weekdays:  timewindow.NewWeekdaySet(time.Monday),
			Start:     timewindow.NewClock(10, 0),
			End:       timewindow.NewClock(13, 30),
			ValidFrom: date(2025, time.February, 1),
		}, room.ID, "")
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if len(conflicts) != 2 || conflicts[0].ID != a.ID || conflicts[1].ID != booking.ID {
			t.Fatalf("expected slot then booking conflicts, got %+v", conflicts)
		}
	})

	t.Run("exclude id ignores the occupant", func(t *testing.T) {
		start, end := at(monday, 10, 0), at(monday, 11, 0)
		conflicts, err := h.services.Conflicts.CheckConflict(ctx, CandidateInput{StartsAt: &start, EndsAt: &end}, room.ID, a.ID)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %+v", conflicts)
		}
	})

	t.Run("booking candidate touching the slot", func(t *testing.T) {
		start, end := at(monday, 11, 0), at(monday, 13, 0)
		conflicts, err := h.services.Conflicts.CheckConflict(ctx, CandidateInput{StartsAt: &start, EndsAt: &end}, room.ID, "")
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if len(conflicts) != 0 {
			t.Fatalf("expected touching candidate to fit, got %+v", conflicts)
		}
	})

	t.Run("incomplete booking candidate", func(t *testing.T) {
		start := at(monday, 11, 0)
		_, err := h.services.Conflicts.CheckConflict(ctx, CandidateInput{StartsAt: &start}, room.ID, "")
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["ends_at"] == "" {
			t.Fatalf("expected ends_at validation error, got %v", err)
		}
	})

	t.Run("unknown room", func(t *testing.T) {
		_, err := h.services.Conflicts.CheckConflict(ctx, CandidateInput{
			Weekdays:  timewindow.NewWeekdaySet(time.Monday),
			Start:     timewindow.NewClock(10, 0),
			End:       timewindow.NewClock(11, 0),
			ValidFrom: date(2025, time.February, 1),
		}, "missing", "")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestAvailabilityService_ComputeFreePeriods(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	room := h.room(t, "Hall R")
	if _, err := h.services.Slots.CreateSlot(ctx, slotA(room.ID)); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	monday := date(2025, time.February, 3)
	h.approvedBooking(t, room.ID, at(monday, 13, 0), at(monday, 14, 0))
	if _, err := h.services.Bookings.CreateBooking(ctx, BookingInput{RoomID: room.ID, StartsAt: at(monday, 16, 0), EndsAt: at(monday, 17, 0)}); err != nil {
		t.Fatalf("create pending booking: %v", err)
	}

	periods, err := h.services.Availability.ComputeFreePeriods(ctx, room.ID, monday, 60)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	want := []struct {
		start, end timewindow.Clock
		subSlots   int
	}{
		{timewindow.NewClock(8, 0), timewindow.NewClock(9, 0), 1},
		{timewindow.NewClock(11, 0), timewindow.NewClock(13, 0), 2},
		{timewindow.NewClock(14, 0), timewindow.NewClock(22, 0), 8},
	}
	if len(periods) != len(want) {
		t.Fatalf("expected %d periods, got %+v", len(want), periods)
	}
	for i, w := range want {
		if periods[i].Start != w.start || periods[i].End != w.end || len(periods[i].SubSlots) != w.subSlots {
			t.Fatalf("period %d: expected %s-%s with %d sub-slots, got %+v", i, w.start, w.end, w.subSlots, periods[i])
		}
	}

	t.Run("validation", func(t *testing.T) {
		if _, err := h.services.Availability.ComputeFreePeriods(ctx, room.ID, monday, -1); err == nil {
			t.Fatalf("expected error for negative sub-slot")
		}
		if _, err := h.services.Availability.ComputeFreePeriods(ctx, room.ID, monday, 15*60); err == nil {
			t.Fatalf("expected error for sub-slot longer than working hours")
		}
		if _, err := h.services.Availability.ComputeFreePeriods(ctx, "missing", monday, 0); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestAvailabilityService_CacheInvalidation(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	room := h.room(t, "Hall R")
	monday := date(2025, time.February, 3)

	before, err := h.services.Availability.ComputeFreePeriods(ctx, room.ID, monday, 0)
	if err != nil || len(before) != 1 {
		t.Fatalf("expected whole day free, got %+v (%v)", before, err)
	}

	// Written behind the services, so only the cached result is visible.
	if err := h.store.CreateSlot(ctx, persistence.RecurringSlot{
		ID:         "hidden",
		RoomID:     room.ID,
		OccupantID: "course-x",
		Weekdays:   timewindow.NewWeekdaySet(time.Monday),
		Start:      timewindow.NewClock(8, 0),
		End:        timewindow.NewClock(9, 0),
		ValidFrom:  monday,
	}); err != nil {
		t.Fatalf("store slot: %v", err)
	}
	cached, err := h.services.Availability.ComputeFreePeriods(ctx, room.ID, monday, 0)
	if err != nil || len(cached) != 1 || cached[0].Start != timewindow.NewClock(8, 0) {
		t.Fatalf("expected cached result, got %+v (%v)", cached, err)
	}

	h.approvedBooking(t, room.ID, at(monday, 12, 0), at(monday, 13, 0))

	after, err := h.services.Availability.ComputeFreePeriods(ctx, room.ID, monday, 0)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(after) != 2 || after[0].Start != timewindow.NewClock(9, 0) || after[0].End != timewindow.NewClock(12, 0) {
		t.Fatalf("expected approval to invalidate cache, got %+v", after)
	}
}

func TestAvailabilityService_DeletedRoom(t *testing.T) {
	h := newServiceHarness(t, func(opts *Options) { opts.CacheTTL = time.Minute })
	ctx := context.Background()
	room := h.room(t, "Hall R")
	monday := date(2025, time.February, 3)

	if _, err := h.services.Availability.ComputeFreePeriods(ctx, room.ID, monday, 0); err != nil {
		t.Fatalf("compute: %v", err)
	}
	generation := h.services.Availability.cache.Generation(room.ID)

	if err := h.services.Rooms.DeleteRoom(ctx, room.ID); err != nil {
		t.Fatalf("delete room: %v", err)
	}
	if got := h.services.Availability.cache.Generation(room.ID); got == generation {
		t.Fatalf("expected room deletion to invalidate cached periods")
	}

	periods, err := h.services.Availability.ComputeFreePeriods(ctx, room.ID, monday, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %+v (%v)", periods, err)
	}
}

func TestCalendarService_ListOccurrences(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	room := h.room(t, "Hall R")
	if _, err := h.services.Slots.CreateSlot(ctx, slotA(room.ID)); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	tuesday := date(2025, time.February, 4)
	booking := h.approvedBooking(t, room.ID, at(tuesday, 13, 0), at(tuesday, 14, 0))

	occurrences, err := h.services.Calendar.ListOccurrences(ctx, room.ID, date(2025, time.February, 3), date(2025, time.February, 9))
	if err != nil {
		t.Fatalf("list occurrences: %v", err)
	}
	if len(occurrences) != 4 {
		t.Fatalf("expected Mon/Wed/Fri slot occurrences plus one booking, got %+v", occurrences)
	}
	if occurrences[1].Kind != scheduler.KindBooking || occurrences[1].SourceID != booking.ID {
		t.Fatalf("expected booking second in start order, got %+v", occurrences[1])
	}

	if _, err := h.services.Calendar.ListOccurrences(ctx, room.ID, date(2025, time.January, 1), date(2026, time.January, 2)); err == nil {
		t.Fatalf("expected validation error for a range over 366 days")
	}
}

func TestFreePeriodCache(t *testing.T) {
	t.Parallel()

	current := time.Date(2025, time.February, 1, 9, 0, 0, 0, time.UTC)
	cache := newFreePeriodCache(time.Minute, 2, func() time.Time { return current })
	key := freePeriodKey{roomID: "room-1", date: date(2025, time.February, 3)}
	periods := []availability.FreePeriod{{Start: 480, End: 600, SubSlots: []availability.Interval{{Start: 480, End: 540}}}}

	t.Run("stores copies", func(t *testing.T) {
		cache.Store(key, cache.Generation("room-1"), periods)
		periods[0].SubSlots[0].End = 0

		got, ok := cache.Get(key)
		if !ok || got[0].SubSlots[0].End != 540 {
			t.Fatalf("expected independent copy, got %+v (hit=%v)", got, ok)
		}
	})

	t.Run("stale generation is not stored", func(t *testing.T) {
		generation := cache.Generation("room-2")
		cache.InvalidateRoom("room-2")
		staleKey := freePeriodKey{roomID: "room-2", date: key.date}
		cache.Store(staleKey, generation, periods)
		if _, ok := cache.Get(staleKey); ok {
			t.Fatalf("expected stale result to be dropped")
		}
	})

	t.Run("entries expire", func(t *testing.T) {
		current = current.Add(2 * time.Minute)
		if _, ok := cache.Get(key); ok {
			t.Fatalf("expected entry to expire")
		}
	})

	t.Run("nil cache is a no-op", func(t *testing.T) {
		var disabled *freePeriodCache
		disabled.Store(key, 0, periods)
		disabled.InvalidateRoom("room-1")
		if _, ok := disabled.Get(key); ok {
			t.Fatalf("expected nil cache to miss")
		}
	})
}

// Random create and approve sequences must never leave two occupants of one
// room overlapping.
func TestServices_NoOverlapInvariant(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	rooms := []Room{h.room(t, "Hall R"), h.room(t, "Hall S")}
	rng := rand.New(rand.NewPCG(2025, 2))
	base := date(2025, time.February, 1)

	var pending []string
	for step := 0; step < 300; step++ {
		room := rooms[rng.IntN(len(rooms))]
		accepted := false

		switch rng.IntN(3) {
		case 0:
			start := timewindow.Clock(8*60 + 30*rng.IntN(24))
			from := base.AddDays(rng.IntN(40))
			until := from.AddDays(rng.IntN(60))
			_, err := h.services.Slots.CreateSlot(ctx, SlotInput{
				RoomID:     room.ID,
				OccupantID: "course",
				Weekdays:   timewindow.WeekdaySet(1 + rng.IntN(127)),
				Start:      start,
				End:        start + timewindow.Clock(30*(1+rng.IntN(4))),
				ValidFrom:  from,
				ValidUntil: &until,
			})
			accepted = err == nil
			if err != nil && !errors.Is(err, ErrConflict) {
				t.Fatalf("step %d: unexpected slot error %v", step, err)
			}
		case 1:
			day := base.AddDays(rng.IntN(60))
			startMinute := 8*60 + 15*rng.IntN(48)
			start := at(day, startMinute/60, startMinute%60)
			booking, err := h.services.Bookings.CreateBooking(ctx, BookingInput{
				RoomID:   room.ID,
				StartsAt: start,
				EndsAt:   start.Add(time.Duration(15*(1+rng.IntN(8))) * time.Minute),
			})
			if err != nil {
				t.Fatalf("step %d: unexpected booking error %v", step, err)
			}
			pending = append(pending, booking.ID)
		default:
			if len(pending) == 0 {
				continue
			}
			i := rng.IntN(len(pending))
			id := pending[i]
			pending = append(pending[:i], pending[i+1:]...)
			_, err := h.services.Bookings.ApproveBooking(ctx, id)
			accepted = err == nil
			if err != nil && !errors.Is(err, ErrConflict) {
				t.Fatalf("step %d: unexpected approve error %v", step, err)
			}
		}

		if accepted {
			assertNoOverlap(t, h, rooms, step)
		}
	}
}

func assertNoOverlap(t *testing.T, h *serviceHarness, rooms []Room, step int) {
	t.Helper()
	ctx := context.Background()

	for _, room := range rooms {
		slots, err := h.store.ListSlots(ctx, persistence.SlotFilter{RoomID: room.ID})
		if err != nil {
			t.Fatalf("list slots: %v", err)
		}
		bookings, err := h.store.ListBookings(ctx, persistence.BookingFilter{RoomID: room.ID, Statuses: []lifecycle.Status{lifecycle.StatusApproved}})
		if err != nil {
			t.Fatalf("list bookings: %v", err)
		}

		var occupants []scheduler.Occupant
		for _, slot := range slots {
			occupants = append(occupants, slotOccupant(slot))
		}
		for _, booking := range bookings {
			occupants = append(occupants, bookingOccupant(booking, testZone))
		}
		for i := range occupants {
			for j := i + 1; j < len(occupants); j++ {
				if timewindow.Overlaps(occupants[i].Window, occupants[j].Window) {
					t.Fatalf("step %d: %s %s overlaps %s %s", step, occupants[i].Kind, occupants[i].ID, occupants[j].Kind, occupants[j].ID)
				}
			}
		}
	}
}
