package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"salonbook/internal/model"
)

// MemoryStore is a mutex-guarded in-memory Store, used by tests and as the
// default backend when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	bookings map[string]*model.Booking
	shops    map[string]*model.Shop
	services map[string]*model.Service
	stylists map[string]*model.Stylist
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings: make(map[string]*model.Booking),
		shops:    make(map[string]*model.Shop),
		services: make(map[string]*model.Service),
		stylists: make(map[string]*model.Stylist),
		now:      time.Now,
	}
}

func cloneBooking(b *model.Booking) *model.Booking {
	c := *b
	if b.StylistID != nil {
		id := *b.StylistID
		c.StylistID = &id
	}
	return &c
}

func (s *MemoryStore) listLocked(f Filter) []model.Booking {
	var out []model.Booking
	for _, b := range s.bookings {
		if f.Matches(b) {
			out = append(out, *cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BookingDate != out[j].BookingDate {
			return out[i].BookingDate < out[j].BookingDate
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryStore) ListByShop(_ context.Context, shopID, date string) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(Filter{ShopID: shopID, Date: date}), nil
}

func (s *MemoryStore) ListByCustomer(_ context.Context, customerID string) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(Filter{CustomerID: customerID}), nil
}

func (s *MemoryStore) ListBookings(_ context.Context, f Filter) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(f), nil
}

func (s *MemoryStore) GetBooking(_ context.Context, id string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBooking(b), nil
}

func (s *MemoryStore) InsertBooking(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bookings[b.ID]; exists {
		return ErrDuplicateID
	}
	s.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (s *MemoryStore) UpdateBookingStatus(_ context.Context, id string, status model.BookingStatus) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = s.now()
	return cloneBooking(b), nil
}

func (s *MemoryStore) GetShop(_ context.Context, id string) (*model.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shops[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *sh
	c.OperatingHours = append([]model.OperatingHours(nil), sh.OperatingHours...)
	return &c, nil
}

func (s *MemoryStore) GetService(_ context.Context, id string) (*model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *svc
	return &c, nil
}

func (s *MemoryStore) GetStylist(_ context.Context, id string) (*model.Stylist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stylists[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *st
	c.RegularDaysOff = append([]int(nil), st.RegularDaysOff...)
	c.DaysOff = append([]string(nil), st.DaysOff...)
	return &c, nil
}

func (s *MemoryStore) PutShop(_ context.Context, sh *model.Shop) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *sh
	c.OperatingHours = append([]model.OperatingHours(nil), sh.OperatingHours...)
	s.shops[sh.ID] = &c
	return nil
}

func (s *MemoryStore) PutService(_ context.Context, svc *model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *svc
	s.services[svc.ID] = &c
	return nil
}

func (s *MemoryStore) PutStylist(_ context.Context, st *model.Stylist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *st
	c.RegularDaysOff = append([]int(nil), st.RegularDaysOff...)
	c.DaysOff = append([]string(nil), st.DaysOff...)
	s.stylists[st.ID] = &c
	return nil
}
