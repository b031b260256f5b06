package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salonbook/internal/booking"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

var testNow = time.Date(2026, 2, 28, 9, 0, 0, 0, time.Local)

func seedStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := t.Context()
	mem := store.NewMemoryStore()

	shop := &model.Shop{
		ID: "shop-1", OwnerID: "own-1", Name: "Scissor House",
		SlotIntervalMinutes: 30, ApprovalStatus: model.ApprovalApproved, IsActive: true,
	}
	for d := 0; d < 7; d++ {
		shop.OperatingHours = append(shop.OperatingHours, model.OperatingHours{
			DayOfWeek: d, OpenTime: "10:00", CloseTime: "20:00", IsClosed: d == 0,
		})
	}
	require.NoError(t, mem.PutShop(ctx, shop))
	require.NoError(t, mem.PutService(ctx, &model.Service{
		ID: "svc-cut", ShopID: "shop-1", Name: "Cut", DurationMinutes: 60, IsActive: true,
	}))
	require.NoError(t, mem.PutStylist(ctx, &model.Stylist{
		ID: "st-1", ShopID: "shop-1", Name: "Kim", RegularDaysOff: []int{0}, IsActive: true,
	}))
	return mem
}

func newTestServer(t *testing.T, rps, burst int) (*Server, *store.MemoryStore) {
	t.Helper()
	mem := seedStore(t)
	engine := booking.NewEngine(mem, booking.Rules{}, zerolog.Nop(),
		booking.WithClock(func() time.Time { return testNow }))
	return NewServer(engine, mem, zerolog.Nop(), rps, burst), mem
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func createBody(start string) CreateBookingRequest {
	return CreateBookingRequest{
		CustomerID: "cust-1",
		ShopID:     "shop-1",
		ServiceID:  "svc-cut",
		StylistID:  "st-1",
		Date:       "2026-03-02",
		StartTime:  start,
	}
}

func TestCreateBookingEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 0, 0)
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/bookings", createBody("14:00"), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var b model.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.Equal(t, model.StatusPending, b.Status)
	assert.Equal(t, "15:00", b.EndTime)

	// Same slot again conflicts.
	w = doJSON(t, h, http.MethodPost, "/api/bookings", createBody("14:00"), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	var er errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &er))
	assert.Equal(t, "slot_unavailable", er.Code)
}

func TestCreateBookingEndpointBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, 0, 0)
	h := srv.Handler()

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"unknown field", map[string]any{"shop": "shop-1"}, http.StatusBadRequest, "invalid_input"},
		{"bad date", CreateBookingRequest{CustomerID: "c", ShopID: "shop-1", ServiceID: "svc-cut", Date: "03/02/2026", StartTime: "14:00"}, http.StatusBadRequest, "invalid_input"},
		{"unknown shop", CreateBookingRequest{CustomerID: "c", ShopID: "nope", ServiceID: "svc-cut", Date: "2026-03-02", StartTime: "14:00"}, http.StatusNotFound, "not_found"},
		{"midnight crossing", CreateBookingRequest{CustomerID: "c", ShopID: "shop-1", ServiceID: "svc-cut", Date: "2026-03-02", StartTime: "23:30"}, http.StatusBadRequest, "invalid_time_range"},
		{"closed sunday", CreateBookingRequest{CustomerID: "c", ShopID: "shop-1", ServiceID: "svc-cut", Date: "2026-03-01", StartTime: "14:00"}, http.StatusConflict, "slot_unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodPost, "/api/bookings", tt.body, nil)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			var er errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &er))
			assert.Equal(t, tt.wantCode, er.Code)
		})
	}
}

func TestCreateBookingRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, 1, 1)
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/bookings", createBody("14:00"), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, h, http.MethodPost, "/api/bookings", createBody("16:00"), nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var er errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &er))
	assert.Equal(t, "rate_limited", er.Code)
}

func TestBookingActionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 0, 0)
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/bookings", createBody("14:00"), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var b model.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))

	ownerHeaders := map[string]string{"X-Actor-ID": "own-1", "X-Actor-Role": "owner"}

	// Missing actor headers.
	w = doJSON(t, h, http.MethodPost, "/api/bookings/"+b.ID+"/confirm", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Owner confirms.
	w = doJSON(t, h, http.MethodPost, "/api/bookings/"+b.ID+"/confirm", nil, ownerHeaders)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated model.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, model.StatusConfirmed, updated.Status)

	// Confirming again is an illegal transition.
	w = doJSON(t, h, http.MethodPost, "/api/bookings/"+b.ID+"/confirm", nil, ownerHeaders)
	assert.Equal(t, http.StatusConflict, w.Code)
	var er errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &er))
	assert.Equal(t, "invalid_transition", er.Code)

	// Customer may not confirm.
	w = doJSON(t, h, http.MethodPost, "/api/bookings/"+b.ID+"/complete", nil,
		map[string]string{"X-Actor-ID": "cust-1", "X-Actor-Role": "customer"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Unknown booking.
	w = doJSON(t, h, http.MethodPost, "/api/bookings/missing/cancel", nil, ownerHeaders)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Unknown action.
	w = doJSON(t, h, http.MethodPost, "/api/bookings/"+b.ID+"/reschedule", nil, ownerHeaders)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShopSlotsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 0, 0)
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/bookings", createBody("14:00"), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/shops/shop-1/slots?date=2026-03-02&service_id=svc-cut&stylist_id=st-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Slots []model.TimeSlot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Slots)
	byTime := map[string]bool{}
	for _, s := range resp.Slots {
		byTime[s.Time] = s.IsAvailable
	}
	assert.False(t, byTime["14:00"])
	assert.True(t, byTime["15:00"])

	// Missing params.
	w = doJSON(t, h, http.MethodGet, "/api/shops/shop-1/slots?date=2026-03-02", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown shop.
	w = doJSON(t, h, http.MethodGet, "/api/shops/nope/slots?date=2026-03-02&service_id=svc-cut", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShopTimelineEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 0, 0)
	h := srv.Handler()

	w := doJSON(t, h, http.MethodGet, "/api/shops/shop-1/timeline?start_date=2026-02-28&days=7&service_id=svc-cut", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Timeline map[string][]model.TimeSlot `json:"timeline"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Timeline, 6, "Sunday is closed")
	assert.NotContains(t, resp.Timeline, "2026-03-01")

	w = doJSON(t, h, http.MethodGet, "/api/shops/shop-1/timeline?start_date=2026-02-28&days=abc&service_id=svc-cut", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/shops/shop-1/timeline?start_date=2026-02-28&days=500&service_id=svc-cut", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListBookingsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 0, 0)
	h := srv.Handler()

	for _, start := range []string{"14:00", "16:00"} {
		w := doJSON(t, h, http.MethodPost, "/api/bookings", createBody(start), nil)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, h, http.MethodGet, "/api/bookings?shop_id=shop-1&date=2026-03-02", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Bookings []model.Booking `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Bookings, 2)

	// At least one filter is required.
	w = doJSON(t, h, http.MethodGet, "/api/bookings", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShopReportEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 0, 0)
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/bookings", createBody("14:00"), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	// Customers get no report.
	w = doJSON(t, h, http.MethodGet, "/api/shops/shop-1/report", nil,
		map[string]string{"X-Actor-ID": "cust-1", "X-Actor-Role": "customer"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// A different owner gets no report either.
	w = doJSON(t, h, http.MethodGet, "/api/shops/shop-1/report", nil,
		map[string]string{"X-Actor-ID": "own-2", "X-Actor-Role": "owner"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/shops/shop-1/report", nil,
		map[string]string{"X-Actor-ID": "own-1", "X-Actor-Role": "owner"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "bookings-shop-1.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Cut", rows[1][5])
	assert.Equal(t, "Kim", rows[1][6])

	w = doJSON(t, h, http.MethodGet, "/api/shops/missing/report", nil,
		map[string]string{"X-Actor-ID": "a", "X-Actor-Role": "admin"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, 0, 0)
	h := srv.Handler()

	for _, path := range []string{
		"/api/shops/shop-1/slots?date=2026-03-02&service_id=svc-cut",
		"/api/shops/shop-1/timeline?start_date=2026-03-02&service_id=svc-cut",
	} {
		w := doJSON(t, h, http.MethodPost, path, nil, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, fmt.Sprintf("POST %s", path))
	}

	w := doJSON(t, h, http.MethodDelete, "/api/bookings", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
