package synth

import (
	"math"
	"math/rand/v2"
	"sync"
)

// Rand is a goroutine-safe random source.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand wraps src. A nil src is seeded from the runtime.
func NewRand(src rand.Source) *Rand {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Rand{r: rand.New(src)}
}

// IntN returns a uniform int in [0,n).
func (r *Rand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.IntN(n)
}

// Uniform returns a uniform float in [lo,hi).
func (r *Rand) Uniform(lo, hi float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo + (hi-lo)*r.r.Float64()
}

type weighted[T any] struct {
	value  T
	weight int
}

// choose picks one option with probability proportional to its weight.
func choose[T any](r *Rand, opts []weighted[T]) T {
	total := 0
	for _, o := range opts {
		total += o.weight
	}
	n := r.IntN(total)
	for _, o := range opts {
		if n < o.weight {
			return o.value
		}
		n -= o.weight
	}
	return opts[len(opts)-1].value
}

func pick[T any](r *Rand, items []T) T {
	return items[r.IntN(len(items))]
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
