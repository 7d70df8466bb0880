package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/hall-scheduler/internal/availability"
	"github.com/example/hall-scheduler/internal/timewindow"
)

// AvailabilityService computes free periods of a room.
type AvailabilityService struct {
	*engine
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AvailabilityService", operation, attrs...)
}

// WorkingHours returns the configured bookable part of a day.
func (s *AvailabilityService) WorkingHours() availability.Interval {
	return s.hours
}

// ComputeFreePeriods returns the gaps inside working hours on date that no
// approved booking or active slot of roomID occupies. A positive
// subSlotMinutes splits every gap into full sub-slots of that length.
func (s *AvailabilityService) ComputeFreePeriods(ctx context.Context, roomID string, date timewindow.Date, subSlotMinutes int) (periods []availability.FreePeriod, err error) {
	if s == nil || s.engine == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}

	cached := false
	logger := s.loggerWith(ctx, "ComputeFreePeriods",
		"room_id", roomID,
		"date", date.String(),
		"sub_slot_minutes", subSlotMinutes,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute free periods", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("period_count", len(periods), "cached", cached).DebugContext(ctx, "free periods computed")
	}()

	vErr := &ValidationError{}
	if date.IsZero() {
		vErr.add("date", "date is required")
	}
	if subSlotMinutes < 0 {
		vErr.add("sub_slot_minutes", "sub slot minutes must not be negative")
	} else if subSlotMinutes > s.hours.Minutes() {
		vErr.add("sub_slot_minutes", "sub slot minutes must not exceed working hours")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.requireRoom(ctx, roomID); err != nil {
		return
	}

	key := freePeriodKey{roomID: roomID, date: date, subSlotMinutes: subSlotMinutes}
	if hit, ok := s.cache.Get(key); ok {
		cached = true
		periods = hit
		return
	}
	generation := s.cache.Generation(roomID)

	occupancy, err := s.loader.forDate(ctx, roomID, date)
	if err != nil {
		return nil, err
	}
	occupied := availability.FromOccupants(occupancy.ActiveOn(date))
	periods = availability.FreePeriods(s.hours, occupied, subSlotMinutes)

	s.cache.Store(key, generation, periods)
	return
}
