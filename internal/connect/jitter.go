package connect

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Jitter draws uniformly distributed delays. It is safe for concurrent use.
type Jitter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewJitter seeds a Jitter from the runtime's random source.
func NewJitter() *Jitter {
	return &Jitter{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededJitter returns a deterministic Jitter.
func NewSeededJitter(seed uint64) *Jitter {
	return &Jitter{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Between returns a duration in [low, high]. Swapped bounds are reordered.
func (j *Jitter) Between(low, high time.Duration) time.Duration {
	if high < low {
		low, high = high, low
	}
	if high == low {
		return low
	}
	j.mu.Lock()
	n := j.rng.Int64N(int64(high-low) + 1)
	j.mu.Unlock()
	return low + time.Duration(n)
}

// SendDelay draws the pause that follows every send attempt.
func (j *Jitter) SendDelay(s Settings) time.Duration {
	return j.Between(s.MinDelay(), s.MaxDelay())
}
