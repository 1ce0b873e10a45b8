package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "xscraper/pkg/errors"
)

// BackoffStrategy maps a 1-based retry attempt to the delay before it.
// Attempt 0 never waits.
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ErrorAwareBackoff picks a delay from the failure that triggered the retry
type ErrorAwareBackoff interface {
	BackoffStrategy
	NextDelayFor(attempt int, err error) time.Duration
}

// ExponentialBackoff grows BaseDelay by Multiplier per attempt up to
// MaxDelay, then spreads it by ±JitterFactor
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2,
		JitterFactor: 0.1,
	}
}

func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	growth := math.Max(b.Multiplier, 1)
	delay := float64(b.BaseDelay) * math.Pow(growth, float64(attempt-1))
	if b.MaxDelay > 0 {
		delay = math.Min(delay, float64(b.MaxDelay))
	}
	return jitter(delay, b.JitterFactor)
}

// ConstantBackoff waits Delay before every retry
type ConstantBackoff struct {
	Delay time.Duration
}

func (b *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return b.Delay
}

func jitter(delay, factor float64) time.Duration {
	if factor > 0 {
		spread := delay * factor
		delay += rand.Float64()*2*spread - spread
	}
	return time.Duration(math.Max(delay, 0))
}

// ErrorTypeBackoff chooses a strategy by the error type of the failure.
// Types without an entry, and untyped errors, use Default.
type ErrorTypeBackoff struct {
	ByType  map[errs.ErrorType]BackoffStrategy
	Default BackoffStrategy
}

// NewErrorTypeBackoff uses base for everything except rate limits, which
// start at 30s and cap at 5m
func NewErrorTypeBackoff(base BackoffStrategy) *ErrorTypeBackoff {
	if base == nil {
		base = DefaultExponentialBackoff()
	}
	return &ErrorTypeBackoff{
		Default: base,
		ByType: map[errs.ErrorType]BackoffStrategy{
			errs.ErrorTypeRateLimit: &ExponentialBackoff{
				BaseDelay:    30 * time.Second,
				MaxDelay:     5 * time.Minute,
				Multiplier:   1.5,
				JitterFactor: 0.3,
			},
			errs.ErrorTypePersistence: &ExponentialBackoff{
				BaseDelay:    500 * time.Millisecond,
				MaxDelay:     10 * time.Second,
				Multiplier:   2,
				JitterFactor: 0.1,
			},
		},
	}
}

func (b *ErrorTypeBackoff) strategy(t errs.ErrorType) BackoffStrategy {
	if s, ok := b.ByType[t]; ok && s != nil {
		return s
	}
	if b.Default != nil {
		return b.Default
	}
	return DefaultExponentialBackoff()
}

func (b *ErrorTypeBackoff) NextDelay(attempt int) time.Duration {
	return b.strategy(errs.ErrorTypeUnknown).NextDelay(attempt)
}

func (b *ErrorTypeBackoff) NextDelayFor(attempt int, err error) time.Duration {
	return b.strategy(errs.TypeOf(err)).NextDelay(attempt)
}

// Wait sleeps for delay unless ctx ends first
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
