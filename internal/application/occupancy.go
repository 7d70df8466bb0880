package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/example/hall-scheduler/internal/lifecycle"
	"github.com/example/hall-scheduler/internal/persistence"
	"github.com/example/hall-scheduler/internal/roomlock"
	"github.com/example/hall-scheduler/internal/scheduler"
	"github.com/example/hall-scheduler/internal/timewindow"
)

// occupancyLoader builds per-room occupancy indexes from room-filtered
// repository queries.
type occupancyLoader struct {
	slots    persistence.SlotRepository
	bookings persistence.BookingRepository
	location *time.Location
}

// forWindow loads the occupants that could collide with w: every slot of
// the room (or only those active on the date for single-day windows) and
// the approved bookings inside w's validity range.
func (l occupancyLoader) forWindow(ctx context.Context, roomID string, w timewindow.Window) (scheduler.RoomOccupancy, error) {
	slotFilter := persistence.SlotFilter{RoomID: roomID}
	if until := w.Validity.Until; until != nil && *until == w.Validity.From {
		day := w.Validity.From
		slotFilter.ActiveOn = &day
	}

	from := w.Validity.From.In(l.location)
	bookingFilter := persistence.BookingFilter{
		RoomID:   roomID,
		From:     &from,
		Statuses: []lifecycle.Status{lifecycle.StatusApproved},
	}
	if w.Validity.Until != nil {
		to := w.Validity.Until.AddDays(1).In(l.location)
		bookingFilter.To = &to
	}

	return l.load(ctx, roomID, slotFilter, bookingFilter)
}

// forDate loads the occupants holding the room on d.
func (l occupancyLoader) forDate(ctx context.Context, roomID string, d timewindow.Date) (scheduler.RoomOccupancy, error) {
	return l.forWindow(ctx, roomID, timewindow.Window{
		Days:     timewindow.NewWeekdaySet(d.Weekday()),
		Start:    0,
		End:      timewindow.MinutesPerDay,
		Validity: timewindow.SingleDay(d),
	})
}

func (l occupancyLoader) load(ctx context.Context, roomID string, slotFilter persistence.SlotFilter, bookingFilter persistence.BookingFilter) (scheduler.RoomOccupancy, error) {
	slots, err := l.slots.ListSlots(ctx, slotFilter)
	if err != nil {
		return scheduler.RoomOccupancy{}, fmt.Errorf("list slots: %w", err)
	}
	bookings, err := l.bookings.ListBookings(ctx, bookingFilter)
	if err != nil {
		return scheduler.RoomOccupancy{}, fmt.Errorf("list bookings: %w", err)
	}

	slotOccupants := make([]scheduler.Occupant, 0, len(slots))
	for _, slot := range slots {
		slotOccupants = append(slotOccupants, slotOccupant(slot))
	}
	bookingOccupants := make([]scheduler.Occupant, 0, len(bookings))
	for _, booking := range bookings {
		bookingOccupants = append(bookingOccupants, bookingOccupant(booking, l.location))
	}
	return scheduler.NewRoomOccupancy(roomID, slotOccupants, bookingOccupants), nil
}

func slotOccupant(slot RecurringSlot) scheduler.Occupant {
	return scheduler.Occupant{
		Kind:       scheduler.KindSlot,
		ID:         slot.ID,
		RoomID:     slot.RoomID,
		OccupantID: slot.OccupantID,
		Window:     slot.Window(),
	}
}

func bookingOccupant(booking Booking, loc *time.Location) scheduler.Occupant {
	occupant := scheduler.Occupant{
		Kind:   scheduler.KindBooking,
		ID:     booking.ID,
		RoomID: booking.RoomID,
		Window: bookingWindow(booking, loc),
		Status: booking.Status,
	}
	if booking.OccupantID != nil {
		occupant.OccupantID = *booking.OccupantID
	}
	return occupant
}

// bookingWindow reduces a stored booking to its single-date window. Records
// spanning several dates in loc (written under another zone) are clamped to
// the end of their first date.
func bookingWindow(booking Booking, loc *time.Location) timewindow.Window {
	if w, ok := timewindow.FromInstants(booking.StartsAt, booking.EndsAt, loc); ok {
		return w
	}
	start := booking.StartsAt.In(loc)
	return timewindow.ForDate(timewindow.DateOf(start), timewindow.ClockOf(start), timewindow.MinutesPerDay)
}

// withRoomLocks runs fn while holding the locks of every distinct room in
// roomIDs. Locks are taken in sorted order so two writers spanning the same
// rooms cannot deadlock.
func withRoomLocks(ctx context.Context, locker roomlock.Locker, logger *slog.Logger, roomIDs []string, fn func() error) error {
	ids := slices.Clone(roomIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	releases := make([]roomlock.ReleaseFunc, 0, len(ids))
	defer func() {
		releaseCtx := context.WithoutCancel(ctx)
		for i := len(releases) - 1; i >= 0; i-- {
			if err := releases[i](releaseCtx); err != nil {
				logger.WarnContext(ctx, "failed to release room lock", "room_id", ids[i], "error", err)
			}
		}
	}()

	for _, id := range ids {
		release, err := locker.Acquire(ctx, id)
		if err != nil {
			return err
		}
		releases = append(releases, release)
	}
	return fn()
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
