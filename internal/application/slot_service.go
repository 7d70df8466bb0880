package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/hall-scheduler/internal/persistence"
	"github.com/example/hall-scheduler/internal/scheduler"
	"github.com/example/hall-scheduler/internal/timewindow"
)

// SlotService stores recurring class slots and keeps them collision free.
type SlotService struct {
	*engine
}

func (s *SlotService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SlotService", operation, attrs...)
}

// CreateSlot validates input and persists the slot unless it collides with
// another slot or an approved booking of the room.
func (s *SlotService) CreateSlot(ctx context.Context, input SlotInput) (slot RecurringSlot, err error) {
	if s == nil || s.engine == nil {
		err = fmt.Errorf("SlotService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateSlot", "room_id", input.RoomID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create slot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("slot_id", slot.ID).InfoContext(ctx, "slot created")
	}()

	input = normalizeSlotInput(input)
	if vErr := validateSlotInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	candidate := RecurringSlot{
		ID:         s.idGenerator(),
		RoomID:     input.RoomID,
		OccupantID: input.OccupantID,
		Weekdays:   input.Weekdays,
		Start:      input.Start,
		End:        input.End,
		ValidFrom:  input.ValidFrom,
		ValidUntil: input.ValidUntil,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = withRoomLocks(ctx, s.locker, logger, []string{input.RoomID}, func() error {
		if err := s.checkSlot(ctx, candidate, ""); err != nil {
			return err
		}
		if err := s.slots.CreateSlot(ctx, candidate); err != nil {
			return mapRepoError(err)
		}
		s.cache.InvalidateRoom(candidate.RoomID)
		return nil
	})
	if err != nil {
		return
	}
	slot = candidate
	return
}

// UpdateSlot replaces an existing slot, checking the new shape against every
// other occupant of its (possibly new) room.
func (s *SlotService) UpdateSlot(ctx context.Context, slotID string, input SlotInput) (slot RecurringSlot, err error) {
	if s == nil || s.engine == nil {
		err = fmt.Errorf("SlotService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateSlot", "slot_id", slotID, "room_id", input.RoomID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update slot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "slot updated")
	}()

	var existing RecurringSlot
	existing, err = s.slots.GetSlot(ctx, slotID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	input = normalizeSlotInput(input)
	if vErr := validateSlotInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.withSlotRoomLocks(ctx, logger, slotID, existing.RoomID, input.RoomID, func(current RecurringSlot) error {
		updated := current
		updated.RoomID = input.RoomID
		updated.OccupantID = input.OccupantID
		updated.Weekdays = input.Weekdays
		updated.Start = input.Start
		updated.End = input.End
		updated.ValidFrom = input.ValidFrom
		updated.ValidUntil = input.ValidUntil
		updated.UpdatedAt = s.now()

		if err := s.checkSlot(ctx, updated, slotID); err != nil {
			return err
		}
		if err := s.slots.UpdateSlot(ctx, updated); err != nil {
			return mapRepoError(err)
		}
		s.cache.InvalidateRoom(current.RoomID)
		s.cache.InvalidateRoom(updated.RoomID)
		slot = updated
		return nil
	})
	return
}

// DeleteSlot removes a slot.
func (s *SlotService) DeleteSlot(ctx context.Context, slotID string) (err error) {
	if s == nil || s.engine == nil {
		return fmt.Errorf("SlotService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteSlot", "slot_id", slotID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete slot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "slot deleted")
	}()

	var existing RecurringSlot
	existing, err = s.slots.GetSlot(ctx, slotID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	err = s.withSlotRoomLocks(ctx, logger, slotID, existing.RoomID, existing.RoomID, func(current RecurringSlot) error {
		if err := s.slots.DeleteSlot(ctx, slotID); err != nil {
			return mapRepoError(err)
		}
		s.cache.InvalidateRoom(current.RoomID)
		return nil
	})
	return
}

// errSlotMoved reports that a slot changed rooms between the unlocked read
// and lock acquisition.
var errSlotMoved = errors.New("slot moved to another room while waiting for its lock")

const maxSlotLockAttempts = 3

// withSlotRoomLocks runs fn holding the locks of the slot's room and of
// targetRoomID. The slot is re-read under the locks; when a concurrent update
// moved it away from roomID the locks are released and taken again for the
// room it now lives in.
func (s *SlotService) withSlotRoomLocks(ctx context.Context, logger *slog.Logger, slotID, roomID, targetRoomID string, fn func(current RecurringSlot) error) error {
	for attempt := 1; ; attempt++ {
		err := withRoomLocks(ctx, s.locker, logger, []string{roomID, targetRoomID}, func() error {
			current, err := s.slots.GetSlot(ctx, slotID)
			if err != nil {
				return mapRepoError(err)
			}
			if current.RoomID != roomID {
				roomID = current.RoomID
				return errSlotMoved
			}
			return fn(current)
		})
		if !errors.Is(err, errSlotMoved) || attempt == maxSlotLockAttempts {
			return err
		}
		logger.DebugContext(ctx, "slot moved before lock, retrying", "room_id", roomID, "attempt", attempt)
	}
}

// GetSlot returns a single slot.
func (s *SlotService) GetSlot(ctx context.Context, slotID string) (RecurringSlot, error) {
	if s == nil || s.engine == nil {
		return RecurringSlot{}, fmt.Errorf("SlotService is nil")
	}
	slot, err := s.slots.GetSlot(ctx, slotID)
	if err != nil {
		return RecurringSlot{}, mapRepoError(err)
	}
	return slot, nil
}

// ListActiveOn returns the room's slots occupying it on date, ordered by
// start clock then ID.
func (s *SlotService) ListActiveOn(ctx context.Context, roomID string, date timewindow.Date) (slots []RecurringSlot, err error) {
	if s == nil || s.engine == nil {
		err = fmt.Errorf("SlotService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListActiveOn", "room_id", roomID, "date", date.String())
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list active slots", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(slots)).DebugContext(ctx, "active slots listed")
	}()

	if date.IsZero() {
		err = newValidationError("date", "date is required")
		return
	}
	if err = s.requireRoom(ctx, roomID); err != nil {
		return
	}
	slots, err = s.slots.ListSlots(ctx, persistence.SlotFilter{RoomID: roomID, ActiveOn: &date})
	return
}

// ListRoomSlots returns every slot of the room regardless of date.
func (s *SlotService) ListRoomSlots(ctx context.Context, roomID string) (slots []RecurringSlot, err error) {
	if s == nil || s.engine == nil {
		err = fmt.Errorf("SlotService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListRoomSlots", "room_id", roomID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list room slots", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if err = s.requireRoom(ctx, roomID); err != nil {
		return
	}
	slots, err = s.slots.ListSlots(ctx, persistence.SlotFilter{RoomID: roomID})
	return
}

// checkSlot must run under the lock of slot.RoomID.
func (s *SlotService) checkSlot(ctx context.Context, slot RecurringSlot, excludeID string) error {
	if err := s.requireRoom(ctx, slot.RoomID); err != nil {
		return err
	}
	window := slot.Window()
	occupancy, err := s.loader.forWindow(ctx, slot.RoomID, window)
	if err != nil {
		return err
	}
	if conflicts := scheduler.Detect(occupancy, window, excludeID); len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}
	return nil
}

func normalizeSlotInput(input SlotInput) SlotInput {
	input.RoomID = strings.TrimSpace(input.RoomID)
	input.OccupantID = strings.TrimSpace(input.OccupantID)
	return input
}

func validateSlotInput(input SlotInput) *ValidationError {
	vErr := &ValidationError{}

	if input.RoomID == "" {
		vErr.add("room_id", "room id is required")
	}
	if input.OccupantID == "" {
		vErr.add("occupant_id", "occupant id is required")
	}
	if !input.Weekdays.Valid() {
		vErr.add("weekdays", "at least one weekday is required")
	}
	vErr.merge(validateClockRange(input.Start, input.End))
	vErr.merge(validateValidity(input.ValidFrom, input.ValidUntil))

	return vErr
}

func validateClockRange(start, end timewindow.Clock) *ValidationError {
	vErr := &ValidationError{}
	if !start.Valid() || start >= timewindow.MinutesPerDay {
		vErr.add("start_time", "start time must be between 00:00 and 23:59")
	}
	if !end.Valid() {
		vErr.add("end_time", "end time must be between 00:01 and 24:00")
	}
	if !vErr.HasErrors() && end <= start {
		vErr.add("end_time", "end time must be after start time")
	}
	return vErr
}

func validateValidity(from timewindow.Date, until *timewindow.Date) *ValidationError {
	vErr := &ValidationError{}
	if from.IsZero() {
		vErr.add("valid_from", "valid from is required")
		return vErr
	}
	if until != nil && until.Before(from) {
		vErr.add("valid_until", "valid until must not be before valid from")
	}
	return vErr
}
