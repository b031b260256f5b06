package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"salonbook/internal/booking"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

// CreateBookingRequest is the body for POST /api/bookings.
type CreateBookingRequest struct {
	CustomerID string `json:"customer_id"`
	ShopID     string `json:"shop_id"`
	ServiceID  string `json:"service_id"`
	StylistID  string `json:"stylist_id,omitempty"` // empty means no preference
	Date       string `json:"date"`                 // Format: YYYY-MM-DD
	StartTime  string `json:"start_time"`           // Format: HH:MM
	Notes      string `json:"notes,omitempty"`
}

func (s *Server) routeBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateBooking(w, r)
	case http.MethodGet:
		s.handleListBookings(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
	}
}

// handleCreateBooking submits a booking in pending status.
// POST /api/bookings
func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")

	if l := s.limiterFor(r); l != nil && !l.Allow() {
		writeError(w, http.StatusTooManyRequests, "too many booking attempts; slow down", "rate_limited")
		return
	}

	var req CreateBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "invalid_input")
		return
	}

	b, err := s.engine.CreateBooking(r.Context(), booking.CreateRequest{
		CustomerID: req.CustomerID,
		ShopID:     req.ShopID,
		ServiceID:  req.ServiceID,
		StylistID:  optionalID(req.StylistID),
		Date:       req.Date,
		StartTime:  req.StartTime,
		Notes:      req.Notes,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

// handleListBookings lists bookings matching query filters.
// GET /api/bookings?shop_id=&customer_id=&stylist_id=&date=&status=
func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_bookings")

	q := r.URL.Query()
	f := store.Filter{
		ShopID:     q.Get("shop_id"),
		CustomerID: q.Get("customer_id"),
		StylistID:  q.Get("stylist_id"),
		Date:       q.Get("date"),
		Status:     model.BookingStatus(q.Get("status")),
	}
	if f.ShopID == "" && f.CustomerID == "" {
		writeError(w, http.StatusBadRequest, "shop_id or customer_id is required", "invalid_input")
		return
	}

	bookings, err := s.engine.ListBookings(r.Context(), f)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// handleBookingAction applies confirm/cancel/complete to one booking.
// POST /api/bookings/{id}/{action}
func (s *Server) routeBookingAction(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking_action")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST", "method_not_allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/bookings/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusBadRequest, "expected /api/bookings/{id}/{action}", "invalid_input")
		return
	}
	id, action := parts[0], booking.Action(parts[1])

	actor := actorFrom(r)
	if actor.ID == "" || actor.Role == "" {
		writeError(w, http.StatusForbidden, "X-Actor-ID and X-Actor-Role headers are required", "unauthorized")
		return
	}

	b, err := s.engine.UpdateBookingStatus(r.Context(), id, action, actor)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}
