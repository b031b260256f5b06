// Package cache provides an optional Redis read-through cache for slot
// availability queries. Slot lists are advisory; the engine's conflict
// recheck stays authoritative, so a stale cache entry costs at most one
// SlotUnavailable round-trip.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"salonbook/internal/model"
)

// SlotCache caches availability responses with a TTL. A nil client or
// non-positive TTL disables it; all methods stay safe to call.
type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a slot cache. Pass a nil client to disable caching.
func New(client *redis.Client, ttl time.Duration) *SlotCache {
	return &SlotCache{client: client, ttl: ttl}
}

func (c *SlotCache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Key builds the cache key for one availability query.
func Key(shopID, date string, durationMinutes int, stylistID *string) string {
	st := "-"
	if stylistID != nil {
		st = *stylistID
	}
	return fmt.Sprintf("slots:%s:%s:%d:%s", shopID, date, durationMinutes, st)
}

// InvalidationPattern matches every cached query for a shop and date,
// regardless of duration or stylist.
func InvalidationPattern(shopID, date string) string {
	return fmt.Sprintf("slots:%s:%s:*", shopID, date)
}

// Get returns the cached slots for key, if present.
func (c *SlotCache) Get(ctx context.Context, key string) ([]model.TimeSlot, bool) {
	if !c.enabled() {
		return nil, false
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var slots []model.TimeSlot
	if err := json.Unmarshal([]byte(val), &slots); err != nil {
		return nil, false
	}
	return slots, true
}

// Set stores slots under key for the configured TTL. Failures are ignored;
// the cache is best-effort.
func (c *SlotCache) Set(ctx context.Context, key string, slots []model.TimeSlot) {
	if !c.enabled() {
		return
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, data, c.ttl).Err()
}

// Invalidate drops every cached availability entry for a shop and date.
// Called after each successful booking write.
func (c *SlotCache) Invalidate(ctx context.Context, shopID, date string) {
	if !c.enabled() {
		return
	}
	iter := c.client.Scan(ctx, 0, InvalidationPattern(shopID, date), 0).Iterator()
	for iter.Next(ctx) {
		_ = c.client.Del(ctx, iter.Val()).Err()
	}
}
