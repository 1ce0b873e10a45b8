package ratelimit

import (
	"math/rand"
	"sync"
	"time"
)

// Pacer draws the delay between page advances or UI actions from
// [Base, Base+Jitter) so the access pattern is not mechanically regular.
type Pacer struct {
	Base   time.Duration
	Jitter time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPacer creates a pacer with its own random source
func NewPacer(base, jitter time.Duration) *Pacer {
	return &Pacer{
		Base:   base,
		Jitter: jitter,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fixed creates a pacer that always returns d
func Fixed(d time.Duration) *Pacer {
	return &Pacer{Base: d}
}

// Next returns the next delay
func (p *Pacer) Next() time.Duration {
	if p == nil {
		return 0
	}
	base := p.Base
	if base < 0 {
		base = 0
	}
	if p.Jitter <= 0 {
		return base
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return base + time.Duration(p.rng.Int63n(int64(p.Jitter)))
}
