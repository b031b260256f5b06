// Package api exposes the scheduling engine over HTTP/JSON.
package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"salonbook/internal/booking"
	"salonbook/internal/store"
)

// Server is the HTTP front of the scheduling engine. Authentication is left
// to an upstream gateway; the actor identity arrives in X-Actor-ID and
// X-Actor-Role headers.
type Server struct {
	engine *booking.Engine
	store  store.Store
	log    zerolog.Logger

	limitRPS   rate.Limit
	limitBurst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer creates the API server. rps/burst of zero disables rate limiting
// on booking creation.
func NewServer(engine *booking.Engine, st store.Store, log zerolog.Logger, rps, burst int) *Server {
	return &Server{
		engine:     engine,
		store:      st,
		log:        log,
		limitRPS:   rate.Limit(rps),
		limitBurst: burst,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Handler returns the routing mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/shops/", s.routeShops)
	mux.HandleFunc("/api/bookings", s.routeBookings)
	mux.HandleFunc("/api/bookings/", s.routeBookingAction)
	return mux
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeEngineError maps engine sentinels onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, booking.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_input")
	case errors.Is(err, booking.ErrInvalidTimeRange):
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_time_range")
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, err.Error(), "slot_unavailable")
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error(), "invalid_transition")
	case errors.Is(err, booking.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error(), "unauthorized")
	default:
		s.log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error", "internal")
	}
}

func actorFrom(r *http.Request) booking.Actor {
	return booking.Actor{
		ID:   r.Header.Get("X-Actor-ID"),
		Role: booking.Role(r.Header.Get("X-Actor-Role")),
	}
}

func optionalID(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// limiterFor returns the per-client limiter, keyed by remote IP.
func (s *Server) limiterFor(r *http.Request) *rate.Limiter {
	if s.limitRPS <= 0 {
		return nil
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[host]
	if !ok {
		l = rate.NewLimiter(s.limitRPS, s.limitBurst)
		s.limiters[host] = l
	}
	return l
}
