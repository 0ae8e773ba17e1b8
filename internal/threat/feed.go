package threat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"threatdash/internal/metrics"
)

const (
	VulnerabilityWindow = time.Hour
	BlacklistWindow     = 4 * time.Hour
)

// Feed binds a Fetcher to its cache and freshness window. It is the only
// writer of the cache.
type Feed[T any] struct {
	fetcher Fetcher[T]
	cache   *FeedCache[T]
	window  time.Duration
	now     func() time.Time
	group   singleflight.Group
}

// NewFeed creates a feed with an empty cache.
func NewFeed[T any](f Fetcher[T], window time.Duration) *Feed[T] {
	return &Feed[T]{
		fetcher: f,
		cache:   NewFeedCache[T](),
		window:  window,
		now:     time.Now,
	}
}

func (f *Feed[T]) Name() string { return f.fetcher.Name() }

// Cache exposes the read side.
func (f *Feed[T]) Cache() *FeedCache[T] { return f.cache }

// Len is the number of cached records.
func (f *Feed[T]) Len() int { return f.cache.Len() }

// Refresh fetches unless the cache is populated and inside its freshness
// window. A failed fetch leaves the cache untouched.
func (f *Feed[T]) Refresh(ctx context.Context) error {
	if f.cache.Fresh(f.now(), f.window) {
		return nil
	}
	return f.fetch(ctx)
}

// EnsurePopulated fetches immediately if the cache is empty, regardless of
// the scheduler.
func (f *Feed[T]) EnsurePopulated(ctx context.Context) error {
	if f.cache.Len() > 0 {
		return nil
	}
	return f.fetch(ctx)
}

// fetch coalesces concurrent callers into one outbound request. The request
// runs detached from any single caller's cancellation, bounded by
// FetchTimeout; a caller whose ctx ends stops waiting without aborting it.
func (f *Feed[T]) fetch(ctx context.Context) error {
	ch := f.group.DoChan("fetch", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FetchTimeout)
		defer cancel()
		return nil, f.doFetch(fctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Feed[T]) doFetch(ctx context.Context) error {
	name := f.fetcher.Name()
	start := time.Now()
	records, err := f.fetcher.Fetch(ctx)
	if errors.Is(err, ErrNoCredential) {
		metrics.FeedFetches.WithLabelValues(name, "skipped").Inc()
		return err
	}
	metrics.FeedFetchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FeedFetches.WithLabelValues(name, "error").Inc()
		return fmt.Errorf("refresh %s: %w", name, err)
	}

	at := f.now()
	f.cache.Replace(records, at)
	metrics.FeedFetches.WithLabelValues(name, "ok").Inc()
	metrics.FeedRecords.WithLabelValues(name).Set(float64(len(records)))
	metrics.FeedLastRefresh.WithLabelValues(name).Set(float64(at.Unix()))
	slog.Info("feed refreshed", "feed", name, "records", len(records))
	return nil
}
