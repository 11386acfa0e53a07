package stats

import (
	"context"
	"fmt"
	"sync"
)

// Well-known cache keys. Day and month keys are derived per bucket.
const (
	KeyTotalPatients = "total_patients"
	KeyTotalVisits   = "total_visits"
)

// KeyVisitsOnDay returns the cache key for a day bucket (YYYY-MM-DD).
func KeyVisitsOnDay(date string) string {
	return "visits_day:" + date
}

// KeyVisitsInMonth returns the cache key for a month bucket (YYYY-MM).
func KeyVisitsInMonth(month string) string {
	return "visits_month:" + month
}

// ComputeFunc recomputes one statistic from the store.
type ComputeFunc func(ctx context.Context) (int, error)

// entry is one cached statistic. Entries are never removed; a stale
// entry carries a dirty bit until the next read recomputes it.
type entry struct {
	value      int
	dirty      bool
	compute    ComputeFunc
	recomputes int
}

// Cache holds derived counts with per-key dirty flags.
//
// Reads are pull-driven: Invalidate only marks entries stale, and the
// recompute runs on the next Value call for that key. A write that
// touches one bucket therefore never pays for recounting the others.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewCache creates an empty statistics cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

// Value returns the statistic for key, computing it with fn if the entry
// is absent or dirty. fn is retained for later recomputes of the same
// key. A failed compute leaves the entry dirty and returns the error;
// it never serves zero as if it were a real count.
func (c *Cache) Value(ctx context.Context, key string, fn ComputeFunc) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &entry{dirty: true}
		c.entries[key] = e
	}
	if fn != nil {
		e.compute = fn
	}

	if !e.dirty {
		return e.value, nil
	}

	if e.compute == nil {
		return 0, fmt.Errorf("stats: no compute function for %q", key)
	}

	value, err := e.compute(ctx)
	if err != nil {
		return 0, fmt.Errorf("recomputing %q: %w", key, err)
	}

	e.value = value
	e.dirty = false
	e.recomputes++
	return value, nil
}

// Invalidate marks the given keys stale. Unknown keys are ignored since
// an uncached key is recomputed on first read anyway. No recompute
// happens here.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		if e, ok := c.entries[key]; ok {
			e.dirty = true
		}
	}
}

// InvalidateAll marks every cached statistic stale.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		e.dirty = true
	}
}

// Recomputes reports how many times key has been recomputed. Test hook.
func (c *Cache) Recomputes(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		return e.recomputes
	}
	return 0
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
