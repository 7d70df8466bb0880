package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/hall-scheduler/internal/lifecycle"
	"github.com/example/hall-scheduler/internal/persistence"
	"github.com/example/hall-scheduler/internal/timewindow"
)

func TestStorageReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := New()

	if err := store.CreateRoom(ctx, persistence.Room{ID: "hall", Name: "Hall", Capacity: 10, HourlyRate: decimal.Zero}); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	until := timewindow.NewDate(2025, time.March, 31)
	slot := persistence.RecurringSlot{
		ID:         "slot",
		RoomID:     "hall",
		OccupantID: "course",
		Weekdays:   timewindow.NewWeekdaySet(time.Monday),
		Start:      timewindow.NewClock(9, 0),
		End:        timewindow.NewClock(10, 0),
		ValidFrom:  timewindow.NewDate(2025, time.January, 6),
		ValidUntil: &until,
	}
	if err := store.CreateSlot(ctx, slot); err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}
	until = timewindow.NewDate(2030, time.January, 1)

	fetched, err := store.GetSlot(ctx, "slot")
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if *fetched.ValidUntil != timewindow.NewDate(2025, time.March, 31) {
		t.Fatalf("expected stored slot to be isolated from caller, got %v", *fetched.ValidUntil)
	}
	*fetched.ValidUntil = timewindow.NewDate(2026, time.January, 1)
	again, _ := store.GetSlot(ctx, "slot")
	if *again.ValidUntil != timewindow.NewDate(2025, time.March, 31) {
		t.Fatalf("expected stored slot to be isolated from readers, got %v", *again.ValidUntil)
	}

	occupant := "club"
	start := time.Date(2025, time.January, 6, 13, 0, 0, 0, time.UTC)
	booking := persistence.Booking{ID: "b", RoomID: "hall", OccupantID: &occupant, StartsAt: start, EndsAt: start.Add(time.Hour), Status: lifecycle.StatusPending}
	if err := store.CreateBooking(ctx, booking); err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	occupant = "other"

	list, err := store.ListBookings(ctx, persistence.BookingFilter{RoomID: "hall"})
	if err != nil || len(list) != 1 {
		t.Fatalf("ListBookings: %v %v", list, err)
	}
	if *list[0].OccupantID != "club" {
		t.Fatalf("expected stored booking to be isolated, got %q", *list[0].OccupantID)
	}
}

func TestSlotMovesBetweenRoomIndexes(t *testing.T) {
	ctx := context.Background()
	store := New()
	for _, id := range []string{"a", "b"} {
		if err := store.CreateRoom(ctx, persistence.Room{ID: id, Name: id, Capacity: 1}); err != nil {
			t.Fatalf("CreateRoom: %v", err)
		}
	}

	slot := persistence.RecurringSlot{
		ID:         "slot",
		RoomID:     "a",
		OccupantID: "course",
		Weekdays:   timewindow.NewWeekdaySet(time.Friday),
		Start:      timewindow.NewClock(9, 0),
		End:        timewindow.NewClock(10, 0),
		ValidFrom:  timewindow.NewDate(2025, time.January, 1),
	}
	if err := store.CreateSlot(ctx, slot); err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}
	slot.RoomID = "b"
	if err := store.UpdateSlot(ctx, slot); err != nil {
		t.Fatalf("UpdateSlot: %v", err)
	}

	if err := store.DeleteRoom(ctx, "a"); err != nil {
		t.Fatalf("expected room a to be free after the move, got %v", err)
	}
	inB, _ := store.ListSlots(ctx, persistence.SlotFilter{RoomID: "b"})
	if len(inB) != 1 {
		t.Fatalf("expected slot indexed under room b, got %v", inB)
	}
}
