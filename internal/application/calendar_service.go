package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/hall-scheduler/internal/lifecycle"
	"github.com/example/hall-scheduler/internal/persistence"
	"github.com/example/hall-scheduler/internal/recurrence"
	"github.com/example/hall-scheduler/internal/scheduler"
	"github.com/example/hall-scheduler/internal/timewindow"
)

// CalendarService lists the dated occupations of a room.
type CalendarService struct {
	*engine
	expander *recurrence.Engine
}

func (s *CalendarService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CalendarService", operation, attrs...)
}

// ListOccurrences expands the room's slots and approved bookings into dated
// occurrences between from and to inclusive.
func (s *CalendarService) ListOccurrences(ctx context.Context, roomID string, from, to timewindow.Date) (occurrences []Occurrence, err error) {
	if s == nil || s.engine == nil {
		err = fmt.Errorf("CalendarService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListOccurrences",
		"room_id", roomID,
		"from", from.String(),
		"to", to.String(),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list occurrences", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(occurrences)).DebugContext(ctx, "occurrences listed")
	}()

	if vErr := validateCalendarRange(from, to); vErr.HasErrors() {
		err = vErr
		return
	}
	if err = s.requireRoom(ctx, roomID); err != nil {
		return
	}

	slots, err := s.slots.ListSlots(ctx, persistence.SlotFilter{RoomID: roomID})
	if err != nil {
		return nil, err
	}
	lower := from.In(s.location)
	upper := to.AddDays(1).In(s.location)
	bookings, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{
		RoomID:   roomID,
		From:     &lower,
		To:       &upper,
		Statuses: []lifecycle.Status{lifecycle.StatusApproved},
	})
	if err != nil {
		return nil, err
	}

	occupants := make([]scheduler.Occupant, 0, len(slots)+len(bookings))
	for _, slot := range slots {
		occupants = append(occupants, slotOccupant(slot))
	}
	for _, booking := range bookings {
		occupants = append(occupants, bookingOccupant(booking, s.location))
	}

	occurrences, err = s.expander.ExpandAll(occupants, from, to)
	if errors.Is(err, recurrence.ErrInvalidWindow) {
		err = newValidationError("to", "range must be ordered and at most 366 days")
	}
	return
}

func validateCalendarRange(from, to timewindow.Date) *ValidationError {
	vErr := &ValidationError{}
	if from.IsZero() {
		vErr.add("from", "from is required")
	}
	if to.IsZero() {
		vErr.add("to", "to is required")
	}
	if vErr.HasErrors() {
		return vErr
	}
	if to.Before(from) {
		vErr.add("to", "to must not be before from")
	} else if to.DaysSince(from) >= recurrence.MaxRangeDays {
		vErr.add("to", "range must be at most 366 days")
	}
	return vErr
}
