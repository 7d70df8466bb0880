package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/hall-scheduler/internal/application"
	"github.com/example/hall-scheduler/internal/availability"
	"github.com/example/hall-scheduler/internal/scheduler"
	"github.com/example/hall-scheduler/internal/timewindow"
)

type availabilityService interface {
	ComputeFreePeriods(ctx context.Context, roomID string, date timewindow.Date, subSlotMinutes int) ([]availability.FreePeriod, error)
	WorkingHours() availability.Interval
}

type conflictService interface {
	CheckConflict(ctx context.Context, candidate application.CandidateInput, roomID, excludeID string) ([]scheduler.Conflict, error)
}

type calendarService interface {
	ListOccurrences(ctx context.Context, roomID string, from, to timewindow.Date) ([]application.Occurrence, error)
}

// OccupancyHandler serves the read side of a room: free periods, dated
// occurrences and conflict checks.
type OccupancyHandler struct {
	availability availabilityService
	conflicts    conflictService
	calendar     calendarService
	location     *time.Location
	responder    responder
	logger       *slog.Logger
}

// NewOccupancyHandler builds an OccupancyHandler rendering instants in location (UTC when nil).
func NewOccupancyHandler(availability availabilityService, conflicts conflictService, calendar calendarService, location *time.Location, logger *slog.Logger) *OccupancyHandler {
	base := defaultLogger(logger)
	if location == nil {
		location = time.UTC
	}
	return &OccupancyHandler{
		availability: availability,
		conflicts:    conflicts,
		calendar:     calendar,
		location:     location,
		responder:    newResponder(base),
		logger:       base,
	}
}

func (h *OccupancyHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "OccupancyHandler", operation, attrs...)
}

// Availability handles GET /rooms/{id}/availability?date=&sub_slot_minutes=.
func (h *OccupancyHandler) Availability(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	var parser fieldParser
	values := r.URL.Query()
	date := parser.date("date", values.Get("date"))
	subSlotMinutes := parser.integer("sub_slot_minutes", values.Get("sub_slot_minutes"))
	if err := parser.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	periods, err := h.availability.ComputeFreePeriods(r.Context(), roomID, date, subSlotMinutes)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	hours := h.availability.WorkingHours()
	resp := availabilityResponse{
		RoomID:       roomID,
		Date:         date.String(),
		WorkingHours: h.intervalDTO(date, hours),
		FreePeriods:  make([]freePeriodDTO, 0, len(periods)),
	}
	for _, period := range periods {
		dto := freePeriodDTO{
			intervalDTO: h.intervalDTO(date, period.Interval()),
			SubSlots:    make([]intervalDTO, 0, len(period.SubSlots)),
		}
		for _, sub := range period.SubSlots {
			dto.SubSlots = append(dto.SubSlots, h.intervalDTO(date, sub))
		}
		resp.FreePeriods = append(resp.FreePeriods, dto)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// Occurrences handles GET /rooms/{id}/occurrences?from=&to=.
func (h *OccupancyHandler) Occurrences(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	var parser fieldParser
	values := r.URL.Query()
	from := parser.date("from", values.Get("from"))
	to := parser.date("to", values.Get("to"))
	if err := parser.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	occurrences, err := h.calendar.ListOccurrences(r.Context(), roomID, from, to)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := occurrencesResponse{
		RoomID:      roomID,
		From:        from.String(),
		To:          to.String(),
		Occurrences: make([]occurrenceDTO, 0, len(occurrences)),
	}
	for _, occurrence := range occurrences {
		resp.Occurrences = append(resp.Occurrences, occurrenceDTO{
			Kind:       string(occurrence.Kind),
			SourceID:   occurrence.SourceID,
			OccupantID: occurrence.OccupantID,
			Date:       occurrence.Date.String(),
			Start:      formatInstant(occurrence.Start, h.location),
			End:        formatInstant(occurrence.End, h.location),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// CheckConflicts handles POST /rooms/{id}/conflicts. The body is either
// booking-shaped (starts_at, ends_at) or slot-shaped (weekdays, clocks and
// validity).
func (h *OccupancyHandler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	var req conflictRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "CheckConflicts", "room_id", roomID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode conflict request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	candidate, err := req.toCandidate()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	conflicts, err := h.conflicts.CheckConflict(r.Context(), candidate, roomID, req.ExcludeID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, conflictCheckResponse{
		Available: len(conflicts) == 0,
		Conflicts: toConflictDTOs(conflicts),
	})
}

func (h *OccupancyHandler) intervalDTO(date timewindow.Date, interval availability.Interval) intervalDTO {
	return intervalDTO{
		Start:     formatInstant(interval.Start.On(date, h.location), h.location),
		End:       formatInstant(interval.End.On(date, h.location), h.location),
		StartTime: interval.Start.String(),
		EndTime:   interval.End.String(),
	}
}

type conflictRequest struct {
	ExcludeID  string   `json:"exclude_id"`
	StartsAt   *string  `json:"starts_at"`
	EndsAt     *string  `json:"ends_at"`
	Weekdays   []string `json:"weekdays"`
	StartTime  string   `json:"start_time"`
	EndTime    string   `json:"end_time"`
	ValidFrom  string   `json:"valid_from"`
	ValidUntil *string  `json:"valid_until"`
}

func (r conflictRequest) toCandidate() (application.CandidateInput, error) {
	var parser fieldParser
	if r.StartsAt != nil || r.EndsAt != nil {
		candidate := application.CandidateInput{
			StartsAt: parser.optionalTimestamp("starts_at", r.StartsAt),
			EndsAt:   parser.optionalTimestamp("ends_at", r.EndsAt),
		}
		return candidate, parser.err()
	}

	candidate := application.CandidateInput{
		Weekdays:   parser.weekdays("weekdays", r.Weekdays),
		Start:      parser.clock("start_time", r.StartTime),
		End:        parser.clock("end_time", r.EndTime),
		ValidFrom:  parser.date("valid_from", r.ValidFrom),
		ValidUntil: parser.optionalDate("valid_until", r.ValidUntil),
	}
	return candidate, parser.err()
}

type intervalDTO struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type freePeriodDTO struct {
	intervalDTO
	SubSlots []intervalDTO `json:"sub_slots"`
}

type availabilityResponse struct {
	RoomID       string          `json:"room_id"`
	Date         string          `json:"date"`
	WorkingHours intervalDTO     `json:"working_hours"`
	FreePeriods  []freePeriodDTO `json:"free_periods"`
}

type occurrenceDTO struct {
	Kind       string `json:"kind"`
	SourceID   string `json:"source_id"`
	OccupantID string `json:"occupant_id,omitempty"`
	Date       string `json:"date"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

type occurrencesResponse struct {
	RoomID      string          `json:"room_id"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Occurrences []occurrenceDTO `json:"occurrences"`
}

type conflictCheckResponse struct {
	Available bool          `json:"available"`
	Conflicts []conflictDTO `json:"conflicts"`
}
