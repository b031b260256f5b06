// Package slots computes bookable time slots and detects booking conflicts.
// Slot lists are advisory reads recomputed on every query; the conflict check
// is the authoritative gate re-run inside the engine's per-shop critical
// section at submission time.
package slots

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/model"
	"salonbook/internal/timeutil"
)

// BookingSource supplies the bookings consulted for occupancy.
type BookingSource interface {
	ListByShop(ctx context.Context, shopID, date string) ([]model.Booking, error)
}

// Generator produces candidate slot lists for a shop and date.
type Generator struct {
	source BookingSource
	now    func() time.Time
}

// NewGenerator creates a generator. now is injectable for tests; nil means
// time.Now.
func NewGenerator(source BookingSource, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{source: source, now: now}
}

// relevantTo reports whether an existing booking consumes capacity for a
// request targeting the given stylist. A booking without a stylist occupies
// shop-wide capacity, so it blocks every stylist and every stylist's booking
// blocks the no-preference pool.
func relevantTo(b *model.Booking, stylistID *string) bool {
	if b.Status == model.StatusCancelled {
		return false
	}
	if stylistID == nil || b.StylistID == nil {
		return true
	}
	return *b.StylistID == *stylistID
}

// AvailableSlots returns the candidate start times for date at the shop's
// slot interval, each marked available or not. Empty when the shop is closed
// that weekday or the stylist (when given) is off that date. The stylist must
// already be resolved by the caller; nil means no preference.
func (g *Generator) AvailableSlots(ctx context.Context, shop *model.Shop, date string, serviceDurationMinutes int, stylist *model.Stylist) ([]model.TimeSlot, error) {
	if serviceDurationMinutes <= 0 {
		return nil, fmt.Errorf("service duration must be positive, got %d", serviceDurationMinutes)
	}

	day, err := timeutil.ParseDate(date, g.now().Location())
	if err != nil {
		return nil, fmt.Errorf("parse date: %w", err)
	}

	hours := shop.HoursForDay(int(day.Weekday()))
	if hours == nil || hours.IsClosed {
		return []model.TimeSlot{}, nil
	}
	if stylist != nil && stylist.IsUnavailableOn(day) {
		return []model.TimeSlot{}, nil
	}

	base, err := timeutil.GenerateTimeSlots(hours.OpenTime, hours.CloseTime, shop.SlotIntervalMinutes)
	if err != nil {
		return nil, fmt.Errorf("generate slots: %w", err)
	}

	bookings, err := g.source.ListByShop(ctx, shop.ID, date)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	var stylistID *string
	if stylist != nil {
		stylistID = &stylist.ID
	}
	var occupied []model.Booking
	for _, b := range bookings {
		if relevantTo(&b, stylistID) {
			occupied = append(occupied, b)
		}
	}

	now := g.now()
	today := timeutil.DateString(now) == date
	nowTime := now.Format("15:04")

	out := make([]model.TimeSlot, 0, len(base))
	for _, slot := range base {
		available := true

		// The whole service must fit before closing, on the same day.
		if timeutil.CrossesMidnight(slot, serviceDurationMinutes) ||
			timeutil.AddMinutesToTime(slot, serviceDurationMinutes) > hours.CloseTime {
			available = false
		}

		// A slot is taken when the service interval starting there would
		// overlap an existing booking, not only when the slot itself falls
		// inside one.
		if available {
			end := timeutil.AddMinutesToTime(slot, serviceDurationMinutes)
			for i := range occupied {
				if slot < occupied[i].EndTime && end > occupied[i].StartTime {
					available = false
					break
				}
			}
		}

		if available && today && slot < nowTime {
			available = false
		}

		out = append(out, model.TimeSlot{Time: slot, IsAvailable: available})
	}
	return out, nil
}

// HasConflict reports whether a booking starting at startTime for the given
// duration would overlap any non-cancelled booking competing for the same
// capacity. Must be re-run at submission time: slot lists go stale between
// display and submit.
func (g *Generator) HasConflict(ctx context.Context, shopID string, stylistID *string, date, startTime string, durationMinutes int) (bool, error) {
	if durationMinutes <= 0 {
		return false, fmt.Errorf("duration must be positive, got %d", durationMinutes)
	}
	if _, err := timeutil.MinutesOf(startTime); err != nil {
		return false, fmt.Errorf("parse start time: %w", err)
	}
	if timeutil.CrossesMidnight(startTime, durationMinutes) {
		return false, fmt.Errorf("interval %s+%dm crosses midnight", startTime, durationMinutes)
	}
	endTime := timeutil.AddMinutesToTime(startTime, durationMinutes)

	bookings, err := g.source.ListByShop(ctx, shopID, date)
	if err != nil {
		return false, fmt.Errorf("list bookings: %w", err)
	}
	for i := range bookings {
		b := &bookings[i]
		if !relevantTo(b, stylistID) {
			continue
		}
		// Half-open overlap: [s1,e1) and [s2,e2) conflict iff s1 < e2 && e1 > s2.
		if startTime < b.EndTime && endTime > b.StartTime {
			return true, nil
		}
	}
	return false, nil
}
