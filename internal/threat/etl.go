package threat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// RefreshInterval is how often the scheduler revisits every feed.
const RefreshInterval = 30 * time.Minute

// Refresher is the scheduler's view of a feed.
type Refresher interface {
	Name() string
	Refresh(ctx context.Context) error
	Len() int
}

// RefreshFunc observes the outcome of one feed refresh.
type RefreshFunc func(name string, records int, err error)

// Scheduler periodically refreshes registered feeds.
type Scheduler struct {
	feeds     []Refresher
	interval  time.Duration
	observers []RefreshFunc
}

// NewScheduler creates a scheduler ticking every interval. A non-positive
// interval selects RefreshInterval.
func NewScheduler(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = RefreshInterval
	}
	return &Scheduler{interval: interval}
}

// Register adds a feed to the scheduler.
func (s *Scheduler) Register(f Refresher) {
	s.feeds = append(s.feeds, f)
}

// OnRefresh adds an observer called after every refresh attempt. Observers
// must be registered before Run.
func (s *Scheduler) OnRefresh(fn RefreshFunc) {
	s.observers = append(s.observers, fn)
}

// RunOnce refreshes all feeds concurrently. Failures are logged and
// reported to observers; the cache of a failing feed is left as it was.
func (s *Scheduler) RunOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, f := range s.feeds {
		wg.Add(1)
		go func(feed Refresher) {
			defer wg.Done()
			err := feed.Refresh(ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrNoCredential):
				slog.Info("feed credential not set, keeping cached data", "source", feed.Name())
			case ctx.Err() != nil:
				slog.Debug("refresh interrupted", "source", feed.Name(), "err", err)
			default:
				slog.Error("fetch failed", "source", feed.Name(), "err", err)
			}
			for _, fn := range s.observers {
				fn(feed.Name(), feed.Len(), err)
			}
		}(f)
	}
	wg.Wait()
}

// Run refreshes immediately and then on every tick until ctx is done.
// Cancellation is a normal shutdown and returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			slog.Info("refresh scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}
