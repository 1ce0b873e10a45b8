package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xscraper/pkg/config"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
)

// Operation is retried by Do until it succeeds, fails permanently or runs
// out of attempts
type Operation func(ctx context.Context) error

type OperationWithResult[T any] func(ctx context.Context) (T, error)

// Config controls Do. Nil fields fall back to the defaults.
type Config struct {
	MaxAttempts int // 0 retries until RetryIf refuses or ctx ends
	Backoff     BackoffStrategy
	RetryIf     func(error) bool
	OnRetry     func(attempt int, err error, delay time.Duration) // before each wait
	Logger      logger.Logger
}

// DefaultConfig makes three attempts with exponential backoff
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.GetLogger(),
	}
}

// FromConfig builds a retry configuration from the retry section of the app config.
// A disabled section yields a single attempt.
func FromConfig(rc config.RetryConfig, log logger.Logger) *Config {
	cfg := &Config{
		MaxAttempts: rc.MaxAttempts,
		Backoff: NewErrorTypeBackoff(&ExponentialBackoff{
			BaseDelay:    rc.BaseDelay,
			MaxDelay:     rc.MaxDelay,
			Multiplier:   rc.Multiplier,
			JitterFactor: rc.JitterFactor,
		}),
		RetryIf: DefaultRetryIf,
		Logger:  log,
	}
	if !rc.Enabled || cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return cfg
}

// DefaultRetryIf retries typed errors by their classification, never retries
// context errors, and retries anything else.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var typed *errs.Error
	if errors.As(err, &typed) {
		return errs.IsRetryable(typed.Type)
	}

	return true
}

// Do runs op, waiting between failed attempts. The last error is returned
// wrapped once attempts are exhausted; a non-retryable error is returned
// as is.
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = DefaultExponentialBackoff()
	}
	log := logger.OrNop(cfg.Logger)

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		switch {
		case err == nil:
			if attempt > 1 {
				log.DebugWithFields("Operation succeeded after retry", map[string]interface{}{"attempt": attempt})
			}
			return nil
		case !retryIf(err):
			return err
		case cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts:
			log.ErrorWithFields("Giving up after retries", map[string]interface{}{
				"attempts": attempt,
				"error":    err.Error(),
			})
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, err)
		}

		delay := delayFor(backoff, attempt, err)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		log.WarnWithFields("Retrying", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": cfg.MaxAttempts,
			"error":        err.Error(),
			"delay":        delay.String(),
		})
		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T
	err := Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = op(ctx)
		return err
	}, cfg)
	return result, err
}

func delayFor(b BackoffStrategy, attempt int, err error) time.Duration {
	if aware, ok := b.(ErrorAwareBackoff); ok {
		return aware.NextDelayFor(attempt, err)
	}
	return b.NextDelay(attempt)
}
