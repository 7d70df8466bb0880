package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/hall-scheduler/internal/application"
	"github.com/example/hall-scheduler/internal/timewindow"
)

type slotService interface {
	CreateSlot(ctx context.Context, input application.SlotInput) (application.RecurringSlot, error)
	UpdateSlot(ctx context.Context, slotID string, input application.SlotInput) (application.RecurringSlot, error)
	DeleteSlot(ctx context.Context, slotID string) error
	GetSlot(ctx context.Context, slotID string) (application.RecurringSlot, error)
	ListActiveOn(ctx context.Context, roomID string, date timewindow.Date) ([]application.RecurringSlot, error)
	ListRoomSlots(ctx context.Context, roomID string) ([]application.RecurringSlot, error)
}

// SlotHandler serves recurring slot endpoints.
type SlotHandler struct {
	service   slotService
	responder responder
	logger    *slog.Logger
}

// NewSlotHandler builds a SlotHandler over service.
func NewSlotHandler(service slotService, logger *slog.Logger) *SlotHandler {
	base := defaultLogger(logger)
	return &SlotHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SlotHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "SlotHandler", operation, attrs...)
}

func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode slot request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	slot, err := h.service.CreateSlot(r.Context(), input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, slotResponse{Slot: toSlotDTO(slot)})
}

func (h *SlotHandler) Get(w http.ResponseWriter, r *http.Request) {
	slotID, err := pathID(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	slot, err := h.service.GetSlot(r.Context(), slotID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, slotResponse{Slot: toSlotDTO(slot)})
}

func (h *SlotHandler) Update(w http.ResponseWriter, r *http.Request) {
	slotID, err := pathID(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	var req slotRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Update", "slot_id", slotID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode slot update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	slot, err := h.service.UpdateSlot(r.Context(), slotID, input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, slotResponse{Slot: toSlotDTO(slot)})
}

func (h *SlotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	slotID, err := pathID(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	if err := h.service.DeleteSlot(r.Context(), slotID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// ListForRoom lists a room's slots, narrowed to those active on ?date= when given.
func (h *SlotHandler) ListForRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	var (
		slots []application.RecurringSlot
		raw   = r.URL.Query().Get("date")
	)
	if raw == "" {
		slots, err = h.service.ListRoomSlots(r.Context(), roomID)
	} else {
		var parser fieldParser
		date := parser.date("date", raw)
		if err := parser.err(); err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		slots, err = h.service.ListActiveOn(r.Context(), roomID, date)
	}
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]slotDTO, 0, len(slots))
	for _, slot := range slots {
		out = append(out, toSlotDTO(slot))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSlotsResponse{Slots: out})
}

type slotRequest struct {
	RoomID     string   `json:"room_id"`
	OccupantID string   `json:"occupant_id"`
	Weekdays   []string `json:"weekdays"`
	StartTime  string   `json:"start_time"`
	EndTime    string   `json:"end_time"`
	ValidFrom  string   `json:"valid_from"`
	ValidUntil *string  `json:"valid_until"`
}

func (r slotRequest) toInput() (application.SlotInput, error) {
	var parser fieldParser
	input := application.SlotInput{
		RoomID:     r.RoomID,
		OccupantID: r.OccupantID,
		Weekdays:   parser.weekdays("weekdays", r.Weekdays),
		Start:      parser.clock("start_time", r.StartTime),
		End:        parser.clock("end_time", r.EndTime),
		ValidFrom:  parser.date("valid_from", r.ValidFrom),
		ValidUntil: parser.optionalDate("valid_until", r.ValidUntil),
	}
	return input, parser.err()
}

type slotResponse struct {
	Slot slotDTO `json:"slot"`
}

type listSlotsResponse struct {
	Slots []slotDTO `json:"slots"`
}

type slotDTO struct {
	ID         string   `json:"id"`
	RoomID     string   `json:"room_id"`
	OccupantID string   `json:"occupant_id"`
	Weekdays   []string `json:"weekdays"`
	StartTime  string   `json:"start_time"`
	EndTime    string   `json:"end_time"`
	ValidFrom  string   `json:"valid_from"`
	ValidUntil *string  `json:"valid_until,omitempty"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

func toSlotDTO(slot application.RecurringSlot) slotDTO {
	return slotDTO{
		ID:         slot.ID,
		RoomID:     slot.RoomID,
		OccupantID: slot.OccupantID,
		Weekdays:   slot.Weekdays.Names(),
		StartTime:  slot.Start.String(),
		EndTime:    slot.End.String(),
		ValidFrom:  slot.ValidFrom.String(),
		ValidUntil: formatOptionalDate(slot.ValidUntil),
		CreatedAt:  slot.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  slot.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
