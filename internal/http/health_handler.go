package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the backing store answers.
type HealthHandler struct {
	store     pinger
	timeout   time.Duration
	responder responder
	logger    *slog.Logger
}

// NewHealthHandler builds a HealthHandler that pings store.
func NewHealthHandler(store pinger, logger *slog.Logger) *HealthHandler {
	base := defaultLogger(logger)
	return &HealthHandler{store: store, timeout: 2 * time.Second, responder: newResponder(base), logger: base}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		handlerLogger(r.Context(), h.logger, "HealthHandler", "Check").ErrorContext(r.Context(), "storage ping failed", "error", err)
		h.responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}
