// Package booking implements the appointment engine: slot queries, booking
// creation with an authoritative conflict recheck, and status transitions.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"salonbook/internal/cache"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
	"salonbook/internal/slots"
	"salonbook/internal/store"
	"salonbook/internal/timeutil"
)

// MaxRangeDays caps multi-day availability queries.
const MaxRangeDays = 90

// Rules are the shop-independent booking window limits.
type Rules struct {
	// MinAdvance is how far ahead of "now" a booking must start.
	MinAdvance time.Duration
	// MaxAdvanceDays is how many days ahead a booking date may lie. Zero
	// means the default of 60.
	MaxAdvanceDays int
	// MaxActivePerCustomer caps non-terminal bookings per customer per shop.
	// Zero means unlimited.
	MaxActivePerCustomer int
}

func (r Rules) maxAdvanceDays() int {
	if r.MaxAdvanceDays <= 0 {
		return 60
	}
	return r.MaxAdvanceDays
}

// Actor identifies who is invoking a mutating operation. Authentication is an
// external collaborator; the engine only checks role and ownership at its
// boundary.
type Actor struct {
	ID   string
	Role Role
}

// CreateRequest carries a customer's booking submission.
type CreateRequest struct {
	CustomerID string
	ShopID     string
	ServiceID  string
	StylistID  *string
	Date       string // "YYYY-MM-DD"
	StartTime  string // "HH:MM"
	Notes      string
}

// Engine is the scheduling engine facade. All methods are safe for
// concurrent use; booking-affecting writes are serialized per shop so the
// conflict recheck and the insert behave as one atomic unit.
type Engine struct {
	store  store.Store
	gen    *slots.Generator
	fsm    *StateMachine
	cache  *cache.SlotCache
	bus    *events.Bus
	rules  Rules
	logger zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	shopLocks map[string]*sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the engine's clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSlotCache attaches an optional availability cache.
func WithSlotCache(c *cache.SlotCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithEventBus attaches an optional lifecycle event bus.
func WithEventBus(bus *events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// NewEngine creates the engine over a booking store.
func NewEngine(st store.Store, rules Rules, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		fsm:       NewStateMachine(),
		rules:     rules,
		logger:    logger,
		now:       time.Now,
		shopLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.gen = slots.NewGenerator(st, e.now)
	return e
}

// lockShop returns the mutex serializing writes for one shop.
func (e *Engine) lockShop(shopID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.shopLocks[shopID]
	if !ok {
		l = &sync.Mutex{}
		e.shopLocks[shopID] = l
	}
	return l
}

func (e *Engine) resolveShop(ctx context.Context, shopID string) (*model.Shop, error) {
	shop, err := e.store.GetShop(ctx, shopID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("shop %s: %w", shopID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get shop: %w", err)
	}
	if !shop.Bookable() {
		return nil, fmt.Errorf("shop %s is not accepting bookings: %w", shopID, ErrNotFound)
	}
	return shop, nil
}

func (e *Engine) resolveService(ctx context.Context, shop *model.Shop, serviceID string) (*model.Service, error) {
	svc, err := e.store.GetService(ctx, serviceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("service %s: %w", serviceID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	if svc.ShopID != shop.ID || !svc.IsActive {
		return nil, fmt.Errorf("service %s: %w", serviceID, ErrNotFound)
	}
	return svc, nil
}

func (e *Engine) resolveStylist(ctx context.Context, shop *model.Shop, stylistID *string) (*model.Stylist, error) {
	if stylistID == nil {
		return nil, nil
	}
	st, err := e.store.GetStylist(ctx, *stylistID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("stylist %s: %w", *stylistID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get stylist: %w", err)
	}
	if st.ShopID != shop.ID || !st.IsActive {
		return nil, fmt.Errorf("stylist %s: %w", *stylistID, ErrNotFound)
	}
	return st, nil
}

// AvailableSlots returns the advisory slot list for one shop, date and
// service, optionally narrowed to a stylist.
func (e *Engine) AvailableSlots(ctx context.Context, shopID, date, serviceID string, stylistID *string) ([]model.TimeSlot, error) {
	metrics.IncSlotQuery()

	shop, err := e.resolveShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	svc, err := e.resolveService(ctx, shop, serviceID)
	if err != nil {
		return nil, err
	}
	stylist, err := e.resolveStylist(ctx, shop, stylistID)
	if err != nil {
		return nil, err
	}
	if _, err := timeutil.ParseDate(date, e.now().Location()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	key := cache.Key(shopID, date, svc.DurationMinutes, stylistID)
	if cached, ok := e.cache.Get(ctx, key); ok {
		return cached, nil
	}

	// Store failures propagate as-is; an unreadable store must never read
	// as "fully available".
	result, err := e.gen.AvailableSlots(ctx, shop, date, svc.DurationMinutes, stylist)
	if err != nil {
		return nil, err
	}
	e.cache.Set(ctx, key, result)
	return result, nil
}

// AvailableSlotsRange returns slot lists for up to MaxRangeDays consecutive
// dates starting at startDate, keyed by date. Closed days and past dates are
// omitted.
func (e *Engine) AvailableSlotsRange(ctx context.Context, shopID, startDate string, days int, serviceID string, stylistID *string) (map[string][]model.TimeSlot, error) {
	if days <= 0 || days > MaxRangeDays {
		return nil, fmt.Errorf("%w: days must be in 1..%d, got %d", ErrInvalidInput, MaxRangeDays, days)
	}

	shop, err := e.resolveShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	svc, err := e.resolveService(ctx, shop, serviceID)
	if err != nil {
		return nil, err
	}
	stylist, err := e.resolveStylist(ctx, shop, stylistID)
	if err != nil {
		return nil, err
	}

	start, err := timeutil.ParseDate(startDate, e.now().Location())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := e.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	out := make(map[string][]model.TimeSlot)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		if day.Before(today) {
			continue
		}
		if !shop.IsOpenOnDay(int(day.Weekday())) {
			continue
		}
		date := timeutil.DateString(day)
		daySlots, err := e.gen.AvailableSlots(ctx, shop, date, svc.DurationMinutes, stylist)
		if err != nil {
			return nil, fmt.Errorf("slots for %s: %w", date, err)
		}
		out[date] = daySlots
	}
	return out, nil
}

// HasConflict reports whether the proposed interval collides with an
// existing non-cancelled booking in the same capacity pool.
func (e *Engine) HasConflict(ctx context.Context, shopID string, stylistID *string, date, startTime string, durationMinutes int) (bool, error) {
	if durationMinutes <= 0 {
		return false, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	if _, err := timeutil.MinutesOf(startTime); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if timeutil.CrossesMidnight(startTime, durationMinutes) {
		return false, fmt.Errorf("%w: %s+%dm crosses midnight", ErrInvalidTimeRange, startTime, durationMinutes)
	}
	return e.gen.HasConflict(ctx, shopID, stylistID, date, startTime, durationMinutes)
}

func (e *Engine) validateWindow(day time.Time, startTime string) error {
	now := e.now()

	startMin, err := timeutil.MinutesOf(startTime)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	startAt := day.Add(time.Duration(startMin) * time.Minute)

	if startAt.Before(now.Add(e.rules.MinAdvance)) {
		return fmt.Errorf("%w: start %s is before the minimum advance window", ErrInvalidInput, startAt.Format(time.RFC3339))
	}
	if day.After(now.AddDate(0, 0, e.rules.maxAdvanceDays())) {
		return fmt.Errorf("%w: date %s is beyond the %d-day booking horizon", ErrInvalidInput, timeutil.DateString(day), e.rules.maxAdvanceDays())
	}
	return nil
}

func (e *Engine) checkActiveLimit(ctx context.Context, customerID, shopID string) error {
	if e.rules.MaxActivePerCustomer <= 0 {
		return nil
	}
	bookings, err := e.store.ListBookings(ctx, store.Filter{ShopID: shopID, CustomerID: customerID})
	if err != nil {
		return fmt.Errorf("list customer bookings: %w", err)
	}
	active := 0
	for i := range bookings {
		if !bookings[i].IsTerminal() {
			active++
		}
	}
	if active >= e.rules.MaxActivePerCustomer {
		return fmt.Errorf("%w: customer %s already has %d active bookings at this shop", ErrInvalidInput, customerID, active)
	}
	return nil
}

// CreateBooking validates the request, re-runs the conflict check inside the
// shop's critical section and inserts the booking in pending status. EndTime
// is computed once from the service duration and stored.
func (e *Engine) CreateBooking(ctx context.Context, req CreateRequest) (*model.Booking, error) {
	if req.CustomerID == "" || req.ShopID == "" || req.ServiceID == "" {
		return nil, fmt.Errorf("%w: customer, shop and service are required", ErrInvalidInput)
	}

	shop, err := e.resolveShop(ctx, req.ShopID)
	if err != nil {
		return nil, err
	}
	svc, err := e.resolveService(ctx, shop, req.ServiceID)
	if err != nil {
		return nil, err
	}
	stylist, err := e.resolveStylist(ctx, shop, req.StylistID)
	if err != nil {
		return nil, err
	}

	day, err := timeutil.ParseDate(req.Date, e.now().Location())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := timeutil.MinutesOf(req.StartTime); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := e.validateWindow(day, req.StartTime); err != nil {
		return nil, err
	}

	if timeutil.CrossesMidnight(req.StartTime, svc.DurationMinutes) {
		return nil, fmt.Errorf("%w: %s+%dm crosses midnight", ErrInvalidTimeRange, req.StartTime, svc.DurationMinutes)
	}
	endTime := timeutil.AddMinutesToTime(req.StartTime, svc.DurationMinutes)

	hours := shop.HoursForDay(int(day.Weekday()))
	if hours == nil || hours.IsClosed {
		return nil, fmt.Errorf("%w: shop is closed on %s", ErrSlotUnavailable, req.Date)
	}
	if req.StartTime < hours.OpenTime || endTime > hours.CloseTime {
		return nil, fmt.Errorf("%w: %s-%s falls outside opening hours %s-%s",
			ErrInvalidTimeRange, req.StartTime, endTime, hours.OpenTime, hours.CloseTime)
	}
	if stylist != nil && stylist.IsUnavailableOn(day) {
		return nil, fmt.Errorf("%w: stylist %s is off on %s", ErrSlotUnavailable, stylist.ID, req.Date)
	}

	if err := e.checkActiveLimit(ctx, req.CustomerID, req.ShopID); err != nil {
		return nil, err
	}

	// The recheck and the insert form one atomic unit per shop: two
	// concurrent submissions for the same slot must not both pass.
	lock := e.lockShop(shop.ID)
	lock.Lock()
	defer lock.Unlock()

	conflict, err := e.gen.HasConflict(ctx, shop.ID, req.StylistID, req.Date, req.StartTime, svc.DurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("conflict check: %w", err)
	}
	if conflict {
		metrics.IncSlotConflict()
		return nil, fmt.Errorf("%w: %s %s-%s", ErrSlotUnavailable, req.Date, req.StartTime, endTime)
	}

	now := e.now()
	b := &model.Booking{
		ID:          uuid.NewString(),
		ShopID:      shop.ID,
		ServiceID:   svc.ID,
		StylistID:   req.StylistID,
		CustomerID:  req.CustomerID,
		BookingDate: req.Date,
		StartTime:   req.StartTime,
		EndTime:     endTime,
		Status:      model.StatusPending,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.InsertBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	e.cache.Invalidate(ctx, shop.ID, req.Date)
	metrics.IncBookingCreated(string(b.Status))
	e.publish(events.TypeBookingCreated, b)
	e.logger.Info().
		Str("booking_id", b.ID).
		Str("shop_id", b.ShopID).
		Str("date", b.BookingDate).
		Str("start", b.StartTime).
		Msg("booking created")
	return b, nil
}

// isPast reports whether the booking's start lies before "now".
func (e *Engine) isPast(b *model.Booking) bool {
	day, err := timeutil.ParseDate(b.BookingDate, e.now().Location())
	if err != nil {
		return false
	}
	startMin, err := timeutil.MinutesOf(b.StartTime)
	if err != nil {
		return false
	}
	return day.Add(time.Duration(startMin) * time.Minute).Before(e.now())
}

// UpdateBookingStatus applies a confirm/cancel/complete action on behalf of
// an actor. Illegal transitions fail with ErrInvalidTransition and leave the
// booking untouched, including its UpdatedAt.
func (e *Engine) UpdateBookingStatus(ctx context.Context, id string, action Action, actor Actor) (*model.Booking, error) {
	target, ok := action.TargetStatus()
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, action)
	}

	b, err := e.store.GetBooking(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}

	// Authorization before transition legality, so a stranger probing a
	// terminal booking learns nothing about its state.
	switch actor.Role {
	case RoleCustomer:
		if b.CustomerID != actor.ID {
			return nil, fmt.Errorf("%w: booking belongs to another customer", ErrUnauthorized)
		}
	case RoleOwner:
		shop, err := e.store.GetShop(ctx, b.ShopID)
		if err != nil {
			return nil, fmt.Errorf("get shop: %w", err)
		}
		if shop.OwnerID != actor.ID {
			return nil, fmt.Errorf("%w: booking belongs to another shop", ErrUnauthorized)
		}
	case RoleAdmin:
		// Admins moderate every shop.
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrUnauthorized, actor.Role)
	}
	if !e.fsm.RoleAllows(actor.Role, target, e.isPast(b)) {
		return nil, fmt.Errorf("%w: role %s may not %s this booking", ErrUnauthorized, actor.Role, action)
	}

	if !e.fsm.CanTransition(b.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, target)
	}

	lock := e.lockShop(b.ShopID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock; a concurrent transition may have won.
	fresh, err := e.store.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if !e.fsm.CanTransition(fresh.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, fresh.Status, target)
	}

	updated, err := e.store.UpdateBookingStatus(ctx, id, target)
	if err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	// A cancellation frees capacity, so cached slot lists for that day are
	// stale either way.
	e.cache.Invalidate(ctx, updated.ShopID, updated.BookingDate)
	metrics.IncBookingTransition(string(target))
	e.publish(eventTypeFor(target), updated)
	e.logger.Info().
		Str("booking_id", updated.ID).
		Str("status", string(updated.Status)).
		Str("actor_role", string(actor.Role)).
		Msg("booking status updated")
	return updated, nil
}

// ListBookings returns bookings matching the filter.
func (e *Engine) ListBookings(ctx context.Context, f store.Filter) ([]model.Booking, error) {
	bookings, err := e.store.ListBookings(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

func eventTypeFor(status model.BookingStatus) string {
	switch status {
	case model.StatusConfirmed:
		return events.TypeBookingConfirmed
	case model.StatusCancelled:
		return events.TypeBookingCancelled
	case model.StatusCompleted:
		return events.TypeBookingCompleted
	}
	return events.TypeBookingCreated
}

func (e *Engine) publish(eventType string, b *model.Booking) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return
	}
	e.bus.Publish(events.Event{Type: eventType, Payload: payload})
}
