package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/hall-scheduler/internal/scheduler"
	"github.com/example/hall-scheduler/internal/timewindow"
)

// ConflictService answers whether a candidate window may occupy a room
// without writing anything.
type ConflictService struct {
	*engine
}

func (s *ConflictService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ConflictService", operation, attrs...)
}

// CheckConflict returns every occupant of roomID the candidate collides
// with, ordered by start clock, kind and ID. excludeID names an occupant to
// ignore, typically the slot or booking being replaced. An empty result
// means the candidate fits.
func (s *ConflictService) CheckConflict(ctx context.Context, candidate CandidateInput, roomID, excludeID string) (conflicts []scheduler.Conflict, err error) {
	if s == nil || s.engine == nil {
		err = fmt.Errorf("ConflictService is nil")
		return
	}

	roomID = strings.TrimSpace(roomID)
	logger := s.loggerWith(ctx, "CheckConflict", "room_id", roomID, "exclude_id", excludeID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to check conflicts", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("conflict_count", len(conflicts)).DebugContext(ctx, "conflicts checked")
	}()

	window, vErr := s.candidateWindow(candidate)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if err = s.requireRoom(ctx, roomID); err != nil {
		return
	}

	occupancy, err := s.loader.forWindow(ctx, roomID, window)
	if err != nil {
		return nil, err
	}
	conflicts = scheduler.Detect(occupancy, window, strings.TrimSpace(excludeID))
	return
}

func (s *ConflictService) candidateWindow(candidate CandidateInput) (timewindow.Window, *ValidationError) {
	vErr := &ValidationError{}

	if !candidate.IsBooking() {
		if !candidate.Weekdays.Valid() {
			vErr.add("weekdays", "at least one weekday is required")
		}
		vErr.merge(validateClockRange(candidate.Start, candidate.End))
		vErr.merge(validateValidity(candidate.ValidFrom, candidate.ValidUntil))
		return timewindow.Window{
			Days:     candidate.Weekdays,
			Start:    candidate.Start,
			End:      candidate.End,
			Validity: timewindow.DateRange{From: candidate.ValidFrom, Until: candidate.ValidUntil},
		}, vErr
	}

	if candidate.StartsAt == nil || candidate.StartsAt.IsZero() {
		vErr.add("starts_at", "start time is required")
	}
	if candidate.EndsAt == nil || candidate.EndsAt.IsZero() {
		vErr.add("ends_at", "end time is required")
	}
	if vErr.HasErrors() {
		return timewindow.Window{}, vErr
	}
	if !candidate.StartsAt.Before(*candidate.EndsAt) {
		vErr.add("ends_at", "end time must be after start time")
		return timewindow.Window{}, vErr
	}
	window, ok := timewindow.FromInstants(*candidate.StartsAt, *candidate.EndsAt, s.location)
	if !ok {
		vErr.add("ends_at", "booking must end on its start date")
	}
	return window, vErr
}
