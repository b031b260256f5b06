package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salonbook/internal/model"
)

func strptr(s string) *string { return &s }

func TestWriteBookingsXLSX(t *testing.T) {
	created := time.Date(2026, 2, 28, 9, 30, 0, 0, time.UTC)
	bookings := []model.Booking{
		{
			ID: "b-1", ShopID: "shop-1", ServiceID: "svc-cut", StylistID: strptr("st-1"),
			CustomerID: "cust-1", BookingDate: "2026-03-02", StartTime: "14:00",
			EndTime: "15:00", Status: model.StatusConfirmed, Notes: "first visit",
			CreatedAt: created,
		},
		{
			ID: "b-2", ShopID: "shop-1", ServiceID: "svc-color",
			CustomerID: "cust-2", BookingDate: "2026-03-02", StartTime: "16:00",
			EndTime: "17:30", Status: model.StatusPending, CreatedAt: created,
		},
	}
	lookups := Lookups{
		ServiceNames: map[string]string{"svc-cut": "Cut"},
		StylistNames: map[string]string{"st-1": "Kim"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBookingsXLSX(&buf, "Scissor House", bookings, lookups))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Booking ID", rows[0][0])
	assert.Equal(t, "b-1", rows[1][0])
	assert.Equal(t, "2:00 PM", rows[1][2])
	assert.Equal(t, "3:00 PM", rows[1][3])
	assert.Equal(t, "1h", rows[1][4])
	assert.Equal(t, "Cut", rows[1][5])
	assert.Equal(t, "Kim", rows[1][6])
	assert.Equal(t, "confirmed", rows[1][8])

	// Unknown service falls back to the ID; no stylist reads as "any".
	assert.Equal(t, "svc-color", rows[2][5])
	assert.Equal(t, "any", rows[2][6])
	assert.Equal(t, "1h 30m", rows[2][4])
}

func TestWriteBookingsXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBookingsXLSX(&buf, "Empty Shop", nil, Lookups{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}

func TestWriteBookingsXLSXBadTime(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBookingsXLSX(&buf, "Shop", []model.Booking{
		{ID: "b-bad", StartTime: "25:99", EndTime: "26:00"},
	}, Lookups{})
	assert.Error(t, err)
}
