// Package report renders booking data into downloadable XLSX workbooks for
// shop owners.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"salonbook/internal/model"
	"salonbook/internal/timeutil"
)

var bookingColumns = []string{
	"Booking ID", "Date", "Start", "End", "Duration",
	"Service", "Stylist", "Customer", "Status", "Notes", "Created At",
}

// Lookups resolves display names for the IDs stored on a booking. Missing
// entries fall back to the raw ID.
type Lookups struct {
	ServiceNames map[string]string
	StylistNames map[string]string
}

func (l Lookups) service(id string) string {
	if name, ok := l.ServiceNames[id]; ok {
		return name
	}
	return id
}

func (l Lookups) stylist(id *string) string {
	if id == nil {
		return "any"
	}
	if name, ok := l.StylistNames[*id]; ok {
		return name
	}
	return *id
}

// WriteBookingsXLSX writes one workbook with a single "Bookings" sheet, one
// row per booking in the order given.
func WriteBookingsXLSX(w io.Writer, shopName string, bookings []model.Booking, lookups Lookups) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Bookings"
	f.SetSheetName("Sheet1", sheet)

	if err := writeRow(f, sheet, 1, toCells(bookingColumns)); err != nil {
		return err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		endCell, _ := excelize.CoordinatesToCellName(len(bookingColumns), 1)
		_ = f.SetCellStyle(sheet, "A1", endCell, style)
	}

	for i, b := range bookings {
		start, err := timeutil.MinutesOf(b.StartTime)
		if err != nil {
			return fmt.Errorf("booking %s: %w", b.ID, err)
		}
		end, err := timeutil.MinutesOf(b.EndTime)
		if err != nil {
			return fmt.Errorf("booking %s: %w", b.ID, err)
		}
		row := []interface{}{
			b.ID,
			b.BookingDate,
			timeutil.Format12h(b.StartTime),
			timeutil.Format12h(b.EndTime),
			timeutil.FormatDuration(end - start),
			lookups.service(b.ServiceID),
			lookups.stylist(b.StylistID),
			b.CustomerID,
			string(b.Status),
			b.Notes,
			b.CreatedAt.Format("2006-01-02 15:04"),
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	// A little breathing room for the ID and notes columns.
	_ = f.SetColWidth(sheet, "A", "A", 38)
	_ = f.SetColWidth(sheet, "J", "J", 30)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook for %s: %w", shopName, err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []interface{}) error {
	for i, val := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, val); err != nil {
			return err
		}
	}
	return nil
}

func toCells(cols []string) []interface{} {
	out := make([]interface{}, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out
}
