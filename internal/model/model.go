// Package model defines the scheduling engine's domain entities.
package model

import (
	"fmt"
	"time"

	"salonbook/internal/timeutil"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

// ApprovalStatus is the moderation state of a shop.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// OperatingHours is the open/close window for one weekday
// (0=Sunday..6=Saturday).
type OperatingHours struct {
	DayOfWeek int    `json:"day_of_week"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
	IsClosed  bool   `json:"is_closed"`
}

// Validate checks the window is well-formed. Fixed-width "HH:MM" strings
// compare correctly lexicographically.
func (oh OperatingHours) Validate() error {
	if oh.DayOfWeek < 0 || oh.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week %d out of range", oh.DayOfWeek)
	}
	if oh.IsClosed {
		return nil
	}
	if _, err := timeutil.MinutesOf(oh.OpenTime); err != nil {
		return fmt.Errorf("open_time: %w", err)
	}
	if _, err := timeutil.MinutesOf(oh.CloseTime); err != nil {
		return fmt.Errorf("close_time: %w", err)
	}
	if oh.OpenTime >= oh.CloseTime {
		return fmt.Errorf("open_time %s must precede close_time %s", oh.OpenTime, oh.CloseTime)
	}
	return nil
}

// Shop is a bookable venue with a weekly schedule.
type Shop struct {
	ID                  string           `json:"id"`
	OwnerID             string           `json:"owner_id"`
	Name                string           `json:"name"`
	Address             string           `json:"address"`
	Phone               string           `json:"phone"`
	SlotIntervalMinutes int              `json:"slot_interval_minutes"`
	OperatingHours      []OperatingHours `json:"operating_hours"`
	ApprovalStatus      ApprovalStatus   `json:"approval_status"`
	IsActive            bool             `json:"is_active"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// HoursForDay returns the operating hours entry for a weekday, or nil.
func (s *Shop) HoursForDay(dayOfWeek int) *OperatingHours {
	for i := range s.OperatingHours {
		if s.OperatingHours[i].DayOfWeek == dayOfWeek {
			return &s.OperatingHours[i]
		}
	}
	return nil
}

// IsOpenOnDay reports whether the shop takes bookings on a weekday.
func (s *Shop) IsOpenOnDay(dayOfWeek int) bool {
	h := s.HoursForDay(dayOfWeek)
	return h != nil && !h.IsClosed
}

// Bookable reports whether the shop may receive bookings at all.
func (s *Shop) Bookable() bool {
	return s.IsActive && s.ApprovalStatus == ApprovalApproved
}

// Validate checks the weekly schedule covers each of the 7 days exactly once
// and that the slot interval is positive.
func (s *Shop) Validate() error {
	if s.SlotIntervalMinutes <= 0 {
		return fmt.Errorf("slot_interval_minutes must be positive, got %d", s.SlotIntervalMinutes)
	}
	if len(s.OperatingHours) != 7 {
		return fmt.Errorf("operating_hours must have 7 entries, got %d", len(s.OperatingHours))
	}
	seen := [7]bool{}
	for _, oh := range s.OperatingHours {
		if err := oh.Validate(); err != nil {
			return fmt.Errorf("day %d: %w", oh.DayOfWeek, err)
		}
		if seen[oh.DayOfWeek] {
			return fmt.Errorf("duplicate operating_hours entry for day %d", oh.DayOfWeek)
		}
		seen[oh.DayOfWeek] = true
	}
	return nil
}

// Service is a bookable offering with a fixed duration.
type Service struct {
	ID              string    `json:"id"`
	ShopID          string    `json:"shop_id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           int64     `json:"price"`
	Category        string    `json:"category"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Stylist is a staff member with recurring and one-off days off.
type Stylist struct {
	ID             string    `json:"id"`
	ShopID         string    `json:"shop_id"`
	Name           string    `json:"name"`
	Title          string    `json:"title"`
	RegularDaysOff []int     `json:"regular_days_off"` // weekdays, 0=Sunday
	DaysOff        []string  `json:"days_off"`         // "YYYY-MM-DD"
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsUnavailableOn reports whether the stylist is off on the given date,
// independent of shop operating hours.
func (st *Stylist) IsUnavailableOn(date time.Time) bool {
	dow := int(date.Weekday())
	for _, off := range st.RegularDaysOff {
		if off == dow {
			return true
		}
	}
	ds := timeutil.DateString(date)
	for _, off := range st.DaysOff {
		if off == ds {
			return true
		}
	}
	return false
}

// Booking is an appointment record. EndTime is computed once from the service
// duration at creation and stored, never recomputed.
type Booking struct {
	ID          string        `json:"id"`
	ShopID      string        `json:"shop_id"`
	ServiceID   string        `json:"service_id"`
	StylistID   *string       `json:"stylist_id,omitempty"`
	CustomerID  string        `json:"customer_id"`
	BookingDate string        `json:"booking_date"` // "YYYY-MM-DD"
	StartTime   string        `json:"start_time"`   // "HH:MM"
	EndTime     string        `json:"end_time"`     // "HH:MM"
	Status      BookingStatus `json:"status"`
	Notes       string        `json:"notes,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsTerminal reports whether the booking admits no further transitions.
func (b *Booking) IsTerminal() bool {
	return b.Status == StatusCompleted || b.Status == StatusCancelled
}

// SameStylistPool reports whether two bookings compete for the same capacity.
// A booking without a stylist consumes shop-wide capacity, so it shares a pool
// with every booking of the shop.
func (b *Booking) SameStylistPool(other *Booking) bool {
	if b.StylistID == nil || other.StylistID == nil {
		return true
	}
	return *b.StylistID == *other.StylistID
}

// OverlapsWith reports whether two bookings on the same shop, date and
// stylist pool have intersecting [StartTime, EndTime) intervals.
func (b *Booking) OverlapsWith(other *Booking) bool {
	if b.ShopID != other.ShopID || b.BookingDate != other.BookingDate {
		return false
	}
	if !b.SameStylistPool(other) {
		return false
	}
	// Half-open overlap: [s1,e1) and [s2,e2) intersect iff s1 < e2 && s2 < e1.
	return b.StartTime < other.EndTime && other.StartTime < b.EndTime
}

// TimeSlot is a derived candidate start time, recomputed on every query.
type TimeSlot struct {
	Time        string `json:"time"`
	IsAvailable bool   `json:"is_available"`
}
