package stream

import (
	"sync"

	"github.com/willf/bloom"
)

// sourceTracker estimates how many distinct source addresses have been
// streamed. False positives make it undercount slightly.
type sourceTracker struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	count  int
}

func newSourceTracker() *sourceTracker {
	return &sourceTracker{filter: bloom.New(100000, 5)}
}

func (t *sourceTracker) observe(addr string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.filter.TestAndAddString(addr) {
		t.count++
	}
	return t.count
}
