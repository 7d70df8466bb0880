package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/hall-scheduler/internal/application"
	"github.com/example/hall-scheduler/internal/lifecycle"
)

type bookingService interface {
	CreateBooking(ctx context.Context, input application.BookingInput) (application.Booking, error)
	ApproveBooking(ctx context.Context, bookingID string) (application.Booking, error)
	CancelBooking(ctx context.Context, bookingID string) (application.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (application.Booking, error)
	ListRoomBookings(ctx context.Context, roomID string, query application.BookingQuery) ([]application.Booking, error)
}

// BookingHandler serves one-off booking endpoints. Instants are rendered in
// the engine location.
type BookingHandler struct {
	service   bookingService
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

// NewBookingHandler builds a BookingHandler rendering instants in location (UTC when nil).
func NewBookingHandler(service bookingService, location *time.Location, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	if location == nil {
		location = time.UTC
	}
	return &BookingHandler{service: service, location: location, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode booking request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingResponse{Booking: h.toDTO(booking)})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withBooking(w, r, h.service.GetBooking)
}

func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.withBooking(w, r, h.service.ApproveBooking)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.withBooking(w, r, h.service.CancelBooking)
}

func (h *BookingHandler) withBooking(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (application.Booking, error)) {
	bookingID, err := pathID(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	booking, err := op(r.Context(), bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: h.toDTO(booking)})
}

// ListForRoom lists a room's bookings filtered by ?from=, ?to= and ?status=.
func (h *BookingHandler) ListForRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathID(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	values := r.URL.Query()
	var (
		parser fieldParser
		query  application.BookingQuery
	)
	if raw := values.Get("from"); raw != "" {
		query.From = parser.optionalTimestamp("from", &raw)
	}
	if raw := values.Get("to"); raw != "" {
		query.To = parser.optionalTimestamp("to", &raw)
	}
	if raw := values.Get("status"); raw != "" {
		status, err := lifecycle.ParseStatus(raw)
		if err != nil {
			parser.add("status", "unknown status")
		} else {
			query.Status = &status
		}
	}
	if err := parser.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	bookings, err := h.service.ListRoomBookings(r.Context(), roomID, query)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]bookingDTO, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, h.toDTO(booking))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: out})
}

type bookingRequest struct {
	RoomID     string  `json:"room_id"`
	OccupantID *string `json:"occupant_id"`
	StartsAt   string  `json:"starts_at"`
	EndsAt     string  `json:"ends_at"`
}

func (r bookingRequest) toInput() (application.BookingInput, error) {
	var parser fieldParser
	input := application.BookingInput{
		RoomID:     r.RoomID,
		OccupantID: r.OccupantID,
		StartsAt:   parser.timestamp("starts_at", r.StartsAt),
		EndsAt:     parser.timestamp("ends_at", r.EndsAt),
	}
	return input, parser.err()
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type listBookingsResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

type bookingDTO struct {
	ID         string  `json:"id"`
	RoomID     string  `json:"room_id"`
	OccupantID *string `json:"occupant_id,omitempty"`
	StartsAt   string  `json:"starts_at"`
	EndsAt     string  `json:"ends_at"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

func (h *BookingHandler) toDTO(booking application.Booking) bookingDTO {
	return bookingDTO{
		ID:         booking.ID,
		RoomID:     booking.RoomID,
		OccupantID: booking.OccupantID,
		StartsAt:   formatInstant(booking.StartsAt, h.location),
		EndsAt:     formatInstant(booking.EndsAt, h.location),
		Status:     string(booking.Status),
		CreatedAt:  booking.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  booking.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
