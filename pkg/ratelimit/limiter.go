package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter caps how many operations run per period
type Limiter interface {
	// Allow takes a slot if one is free now
	Allow() bool
	// Wait blocks for a slot or until ctx ends
	Wait(ctx context.Context) error
	Reset()
}

// TokenBucket allows capacity operations per period, refilling continuously
type TokenBucket struct {
	capacity int
	period   time.Duration

	mu  sync.Mutex
	lim *rate.Limiter
}

func NewTokenBucket(capacity int, period time.Duration) *TokenBucket {
	tb := &TokenBucket{capacity: max(capacity, 1), period: period}
	tb.Reset()
	return tb
}

func (tb *TokenBucket) limiter() *rate.Limiter {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lim
}

func (tb *TokenBucket) Allow() bool { return tb.limiter().Allow() }

func (tb *TokenBucket) Wait(ctx context.Context) error { return tb.limiter().Wait(ctx) }

// Remaining is the number of whole tokens available now
func (tb *TokenBucket) Remaining() int { return int(tb.limiter().Tokens()) }

// Reset refills the bucket
func (tb *TokenBucket) Reset() {
	every := rate.Inf
	if tb.period > 0 {
		every = rate.Every(tb.period / time.Duration(tb.capacity))
	}
	tb.mu.Lock()
	tb.lim = rate.NewLimiter(every, tb.capacity)
	tb.mu.Unlock()
}

// SlidingWindow allows at most limit operations within any window. It backs
// the hourly cap on follow/unfollow actions, where a burst refill after a
// quiet stretch is not wanted.
type SlidingWindow struct {
	limit  int
	window time.Duration

	mu    sync.Mutex
	times []time.Time // oldest first
}

func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{limit: limit, window: window, times: make([]time.Time, 0, max(limit, 0))}
}

func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.expire(now)
	if len(sw.times) >= sw.limit {
		return false
	}
	sw.times = append(sw.times, now)
	return true
}

func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for !sw.Allow() {
		timer := time.NewTimer(max(sw.NextSlot(), 10*time.Millisecond))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return nil
}

// NextSlot is how long until the oldest operation leaves the window
func (sw *SlidingWindow) NextSlot() time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.expire(now)
	if len(sw.times) == 0 || len(sw.times) < sw.limit {
		return 0
	}
	return sw.times[0].Add(sw.window).Sub(now)
}

func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	sw.times = sw.times[:0]
	sw.mu.Unlock()
}

func (sw *SlidingWindow) expire(now time.Time) {
	cutoff := now.Add(-sw.window)
	n := 0
	for n < len(sw.times) && !sw.times[n].After(cutoff) {
		n++
	}
	sw.times = append(sw.times[:0], sw.times[n:]...)
}
