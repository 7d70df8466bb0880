package http

import (
	"net/http"
)

// RouterConfig lists the handlers to mount. Nil handlers are skipped.
type RouterConfig struct {
	Health     *HealthHandler
	Rooms      *RoomHandler
	Slots      *SlotHandler
	Bookings   *BookingHandler
	Occupancy  *OccupancyHandler
	Middleware []func(http.Handler) http.Handler
}

// NewRouter registers every configured handler and wraps the mux in
// cfg.Middleware, the first entry outermost.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Health != nil {
		mux.HandleFunc("GET /healthz", cfg.Health.Check)
	}

	if cfg.Rooms != nil {
		mux.HandleFunc("GET /rooms", cfg.Rooms.List)
		mux.HandleFunc("POST /rooms", cfg.Rooms.Create)
		mux.HandleFunc("GET /rooms/{id}", cfg.Rooms.Get)
		mux.HandleFunc("PUT /rooms/{id}", cfg.Rooms.Update)
		mux.HandleFunc("DELETE /rooms/{id}", cfg.Rooms.Delete)
	}

	if cfg.Slots != nil {
		mux.HandleFunc("POST /slots", cfg.Slots.Create)
		mux.HandleFunc("GET /slots/{id}", cfg.Slots.Get)
		mux.HandleFunc("PUT /slots/{id}", cfg.Slots.Update)
		mux.HandleFunc("DELETE /slots/{id}", cfg.Slots.Delete)
		mux.HandleFunc("GET /rooms/{id}/slots", cfg.Slots.ListForRoom)
	}

	if cfg.Bookings != nil {
		mux.HandleFunc("POST /bookings", cfg.Bookings.Create)
		mux.HandleFunc("GET /bookings/{id}", cfg.Bookings.Get)
		mux.HandleFunc("POST /bookings/{id}/approve", cfg.Bookings.Approve)
		mux.HandleFunc("POST /bookings/{id}/cancel", cfg.Bookings.Cancel)
		mux.HandleFunc("GET /rooms/{id}/bookings", cfg.Bookings.ListForRoom)
	}

	if cfg.Occupancy != nil {
		mux.HandleFunc("GET /rooms/{id}/availability", cfg.Occupancy.Availability)
		mux.HandleFunc("GET /rooms/{id}/occurrences", cfg.Occupancy.Occurrences)
		mux.HandleFunc("POST /rooms/{id}/conflicts", cfg.Occupancy.CheckConflicts)
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
