// Package store defines the authoritative persistence contract for the
// scheduling engine and ships an in-memory and a SQLite adapter. The engine
// only depends on the Store interface, so a relational database or a remote
// API can be swapped in without touching scheduling logic.
package store

import (
	"context"
	"errors"

	"salonbook/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateID is returned by inserts when the ID already exists.
	ErrDuplicateID = errors.New("duplicate record id")
)

// Filter narrows booking listings. Zero-valued fields are ignored.
type Filter struct {
	ShopID     string
	CustomerID string
	StylistID  string
	Date       string // "YYYY-MM-DD"
	Status     model.BookingStatus
}

// Matches reports whether a booking satisfies the filter.
func (f Filter) Matches(b *model.Booking) bool {
	if f.ShopID != "" && b.ShopID != f.ShopID {
		return false
	}
	if f.CustomerID != "" && b.CustomerID != f.CustomerID {
		return false
	}
	if f.StylistID != "" && (b.StylistID == nil || *b.StylistID != f.StylistID) {
		return false
	}
	if f.Date != "" && b.BookingDate != f.Date {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	return true
}

// Store is the booking store contract. Individual calls must be atomic;
// the engine serializes booking-affecting writes per shop on top of this.
type Store interface {
	// Bookings.
	ListByShop(ctx context.Context, shopID, date string) ([]model.Booking, error)
	ListByCustomer(ctx context.Context, customerID string) ([]model.Booking, error)
	ListBookings(ctx context.Context, f Filter) ([]model.Booking, error)
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	// UpdateBookingStatus persists an already-validated transition and stamps
	// UpdatedAt. Status legality is the engine's concern, not the store's.
	UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus) (*model.Booking, error)

	// Reference data.
	GetShop(ctx context.Context, id string) (*model.Shop, error)
	GetService(ctx context.Context, id string) (*model.Service, error)
	GetStylist(ctx context.Context, id string) (*model.Stylist, error)
	PutShop(ctx context.Context, s *model.Shop) error
	PutService(ctx context.Context, s *model.Service) error
	PutStylist(ctx context.Context, s *model.Stylist) error
}
