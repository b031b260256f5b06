package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"salonbook/internal/booking"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
	"salonbook/internal/report"
	"salonbook/internal/store"
)

func (s *Server) routeShops(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/shops/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found", "not_found")
		return
	}
	shopID := parts[0]

	switch parts[1] {
	case "slots":
		s.handleShopSlots(w, r, shopID)
	case "timeline":
		s.handleShopTimeline(w, r, shopID)
	case "report":
		s.handleShopReport(w, r, shopID)
	default:
		writeError(w, http.StatusNotFound, "not found", "not_found")
	}
}

// handleShopSlots returns the advisory slot list for one date.
// GET /api/shops/{id}/slots?date=YYYY-MM-DD&service_id=&stylist_id=
func (s *Server) handleShopSlots(w http.ResponseWriter, r *http.Request, shopID string) {
	metrics.IncHTTP("shop_slots")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
		return
	}

	q := r.URL.Query()
	date := q.Get("date")
	serviceID := q.Get("service_id")
	if date == "" || serviceID == "" {
		writeError(w, http.StatusBadRequest, "date and service_id are required", "invalid_input")
		return
	}

	slots, err := s.engine.AvailableSlots(r.Context(), shopID, date, serviceID, optionalID(q.Get("stylist_id")))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"shop_id": shopID,
		"date":    date,
		"slots":   slots,
	})
}

// handleShopTimeline returns slot lists for a span of consecutive dates.
// GET /api/shops/{id}/timeline?start_date=YYYY-MM-DD&days=N&service_id=&stylist_id=
func (s *Server) handleShopTimeline(w http.ResponseWriter, r *http.Request, shopID string) {
	metrics.IncHTTP("shop_timeline")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
		return
	}

	q := r.URL.Query()
	startDate := q.Get("start_date")
	serviceID := q.Get("service_id")
	if startDate == "" || serviceID == "" {
		writeError(w, http.StatusBadRequest, "start_date and service_id are required", "invalid_input")
		return
	}
	days := 7
	if v := q.Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be an integer", "invalid_input")
			return
		}
		days = n
	}

	timeline, err := s.engine.AvailableSlotsRange(r.Context(), shopID, startDate, days, serviceID, optionalID(q.Get("stylist_id")))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"shop_id":    shopID,
		"start_date": startDate,
		"days":       days,
		"timeline":   timeline,
	})
}

// handleShopReport streams the shop's bookings as an XLSX workbook. Owners
// get their own shop; admins get any.
// GET /api/shops/{id}/report?date=YYYY-MM-DD&status=
func (s *Server) handleShopReport(w http.ResponseWriter, r *http.Request, shopID string) {
	metrics.IncHTTP("shop_report")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
		return
	}

	actor := actorFrom(r)
	shop, err := s.store.GetShop(r.Context(), shopID)
	if err != nil {
		s.writeEngineError(w, fmt.Errorf("shop %s: %w", shopID, booking.ErrNotFound))
		return
	}
	switch actor.Role {
	case booking.RoleAdmin:
	case booking.RoleOwner:
		if shop.OwnerID != actor.ID {
			writeError(w, http.StatusForbidden, "report belongs to another owner", "unauthorized")
			return
		}
	default:
		writeError(w, http.StatusForbidden, "owner or admin role required", "unauthorized")
		return
	}

	q := r.URL.Query()
	bookings, err := s.engine.ListBookings(r.Context(), store.Filter{
		ShopID: shopID,
		Date:   q.Get("date"),
		Status: model.BookingStatus(q.Get("status")),
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	lookups := s.reportLookups(r, bookings)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "bookings-"+shopID+".xlsx"))
	if err := report.WriteBookingsXLSX(w, shop.Name, bookings, lookups); err != nil {
		s.log.Error().Err(err).Str("shop_id", shopID).Msg("report generation failed")
	}
}

// reportLookups resolves service and stylist display names for the report.
// Failed lookups degrade to raw IDs.
func (s *Server) reportLookups(r *http.Request, bookings []model.Booking) report.Lookups {
	lookups := report.Lookups{
		ServiceNames: make(map[string]string),
		StylistNames: make(map[string]string),
	}
	for i := range bookings {
		b := &bookings[i]
		if _, ok := lookups.ServiceNames[b.ServiceID]; !ok {
			if svc, err := s.store.GetService(r.Context(), b.ServiceID); err == nil {
				lookups.ServiceNames[b.ServiceID] = svc.Name
			}
		}
		if b.StylistID != nil {
			if _, ok := lookups.StylistNames[*b.StylistID]; !ok {
				if st, err := s.store.GetStylist(r.Context(), *b.StylistID); err == nil {
					lookups.StylistNames[*b.StylistID] = st.Name
				}
			}
		}
	}
	return lookups
}
