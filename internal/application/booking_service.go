package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/hall-scheduler/internal/lifecycle"
	"github.com/example/hall-scheduler/internal/persistence"
	"github.com/example/hall-scheduler/internal/scheduler"
	"github.com/example/hall-scheduler/internal/timewindow"
)

// BookingService records one-off bookings and drives their lifecycle.
type BookingService struct {
	*engine
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// CreateBooking validates input and stores a pending booking. Pending
// bookings do not occupy the room, so no conflict check runs here.
func (s *BookingService) CreateBooking(ctx context.Context, input BookingInput) (booking Booking, err error) {
	if s == nil || s.engine == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateBooking", "room_id", input.RoomID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_id", booking.ID).InfoContext(ctx, "booking created")
	}()

	input.RoomID = strings.TrimSpace(input.RoomID)
	input.OccupantID = normalizeOptionalString(input.OccupantID)
	if vErr := s.validateBookingInput(input); vErr.HasErrors() {
		err = vErr
		return
	}
	if err = s.requireRoom(ctx, input.RoomID); err != nil {
		return
	}

	now := s.now()
	candidate := Booking{
		ID:         s.idGenerator(),
		RoomID:     input.RoomID,
		OccupantID: input.OccupantID,
		StartsAt:   input.StartsAt,
		EndsAt:     input.EndsAt,
		Status:     lifecycle.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err = s.bookings.CreateBooking(ctx, candidate); err != nil {
		err = mapRepoError(err)
		return
	}
	booking = candidate
	return
}

// ApproveBooking moves a pending booking to approved unless it collides with
// an approved booking or an active slot of the room. On collision the
// booking stays pending and a *ConflictError lists every colliding occupant.
func (s *BookingService) ApproveBooking(ctx context.Context, bookingID string) (booking Booking, err error) {
	if s == nil || s.engine == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ApproveBooking", "booking_id", bookingID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to approve booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", booking.RoomID).InfoContext(ctx, "booking approved")
	}()

	var existing Booking
	existing, err = s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if err = checkTransition(existing, lifecycle.StatusApproved); err != nil {
		return
	}

	err = withRoomLocks(ctx, s.locker, logger, []string{existing.RoomID}, func() error {
		current, err := s.bookings.GetBooking(ctx, bookingID)
		if err != nil {
			return mapRepoError(err)
		}
		if err := checkTransition(current, lifecycle.StatusApproved); err != nil {
			return err
		}

		window := bookingWindow(current, s.location)
		occupancy, err := s.loader.forWindow(ctx, current.RoomID, window)
		if err != nil {
			return err
		}
		if conflicts := scheduler.Detect(occupancy, window, current.ID); len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}

		current.UpdatedAt = s.now()
		if err := s.updateStatus(ctx, current, lifecycle.StatusApproved); err != nil {
			return err
		}
		s.cache.InvalidateRoom(current.RoomID)
		current.Status = lifecycle.StatusApproved
		booking = current
		return nil
	})
	return
}

// CancelBooking moves a pending or approved booking to cancelled.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID string) (booking Booking, err error) {
	if s == nil || s.engine == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CancelBooking", "booking_id", bookingID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", booking.RoomID).InfoContext(ctx, "booking cancelled")
	}()

	var existing Booking
	existing, err = s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if err = checkTransition(existing, lifecycle.StatusCancelled); err != nil {
		return
	}

	err = withRoomLocks(ctx, s.locker, logger, []string{existing.RoomID}, func() error {
		current, err := s.bookings.GetBooking(ctx, bookingID)
		if err != nil {
			return mapRepoError(err)
		}
		if err := checkTransition(current, lifecycle.StatusCancelled); err != nil {
			return err
		}

		current.UpdatedAt = s.now()
		if err := s.updateStatus(ctx, current, lifecycle.StatusCancelled); err != nil {
			return err
		}
		if current.Status.Occupies() {
			s.cache.InvalidateRoom(current.RoomID)
		}
		current.Status = lifecycle.StatusCancelled
		booking = current
		return nil
	})
	return
}

// GetBooking returns a single booking.
func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (Booking, error) {
	if s == nil || s.engine == nil {
		return Booking{}, fmt.Errorf("BookingService is nil")
	}
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, mapRepoError(err)
	}
	return booking, nil
}

// ListRoomBookings returns the room's bookings overlapping the query range,
// optionally narrowed to one status.
func (s *BookingService) ListRoomBookings(ctx context.Context, roomID string, query BookingQuery) (bookings []Booking, err error) {
	if s == nil || s.engine == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListRoomBookings", "room_id", roomID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list bookings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(bookings)).DebugContext(ctx, "bookings listed")
	}()

	if query.From != nil && query.To != nil && !query.From.Before(*query.To) {
		err = newValidationError("to", "to must be after from")
		return
	}
	if err = s.requireRoom(ctx, roomID); err != nil {
		return
	}

	filter := persistence.BookingFilter{RoomID: roomID, From: query.From, To: query.To}
	if query.Status != nil {
		filter.Statuses = []lifecycle.Status{*query.Status}
	}
	bookings, err = s.bookings.ListBookings(ctx, filter)
	return
}

func (s *BookingService) updateStatus(ctx context.Context, booking Booking, to lifecycle.Status) error {
	err := s.bookings.UpdateBookingStatus(ctx, booking.ID, booking.Status, to, booking.UpdatedAt)
	if errors.Is(err, persistence.ErrStaleStatus) {
		latest, getErr := s.bookings.GetBooking(ctx, booking.ID)
		if getErr != nil {
			return mapRepoError(getErr)
		}
		return &InvalidStateError{BookingID: booking.ID, From: latest.Status, To: to}
	}
	return mapRepoError(err)
}

func (s *BookingService) validateBookingInput(input BookingInput) *ValidationError {
	vErr := &ValidationError{}

	if input.RoomID == "" {
		vErr.add("room_id", "room id is required")
	}
	if input.StartsAt.IsZero() {
		vErr.add("starts_at", "start time is required")
	}
	if input.EndsAt.IsZero() {
		vErr.add("ends_at", "end time is required")
	}
	if vErr.HasErrors() {
		return vErr
	}

	if !input.StartsAt.Equal(input.StartsAt.Truncate(time.Minute)) {
		vErr.add("starts_at", "start time must be a whole minute")
	}
	if !input.EndsAt.Equal(input.EndsAt.Truncate(time.Minute)) {
		vErr.add("ends_at", "end time must be a whole minute")
	}
	if vErr.HasErrors() {
		return vErr
	}

	if !input.StartsAt.Before(input.EndsAt) {
		vErr.add("ends_at", "end time must be after start time")
		return vErr
	}
	if _, ok := timewindow.FromInstants(input.StartsAt, input.EndsAt, s.location); !ok {
		vErr.add("ends_at", "booking must end on its start date")
	}
	return vErr
}

func checkTransition(booking Booking, to lifecycle.Status) error {
	if _, err := lifecycle.Transition(booking.Status, to); err != nil {
		return &InvalidStateError{BookingID: booking.ID, From: booking.Status, To: to}
	}
	return nil
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
