package threat

import (
	"sync"
	"time"
)

// FeedCache holds the most recent successful fetch of one feed. Records are
// replaced wholesale and never mutated in place, so a slice returned by
// Snapshot stays valid after later refreshes.
type FeedCache[T any] struct {
	mu        sync.RWMutex
	records   []T
	refreshed time.Time
}

// NewFeedCache returns an empty cache.
func NewFeedCache[T any]() *FeedCache[T] { return &FeedCache[T]{} }

// Replace swaps in a new record set and stamps the refresh time.
func (c *FeedCache[T]) Replace(records []T, at time.Time) {
	owned := append([]T(nil), records...)
	c.mu.Lock()
	c.records = owned
	c.refreshed = at
	c.mu.Unlock()
}

// Snapshot returns the current records. The slice must be treated as read-only.
func (c *FeedCache[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.records
}

// Head returns a copy of at most n leading records.
func (c *FeedCache[T]) Head(n int) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n = max(0, min(n, len(c.records)))
	out := make([]T, n)
	copy(out, c.records)
	return out
}

func (c *FeedCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// LastRefreshed is the zero time until the first successful fetch.
func (c *FeedCache[T]) LastRefreshed() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshed
}

// Fresh reports whether the cache is populated and younger than window.
func (c *FeedCache[T]) Fresh(now time.Time, window time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records) > 0 && !c.refreshed.IsZero() && now.Sub(c.refreshed) < window
}
