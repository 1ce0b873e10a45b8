// Package retry provides backoff strategies and a retry loop for transient
// failures: page loads, follow/unfollow clicks, media downloads and snapshot
// store calls.
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		return actor.Follow(ctx, handle)
//	}, retry.FromConfig(cfg.Retry, log))
//
// Typed errors from pkg/errors are retried according to their type; context
// cancellation is never retried. FromConfig wraps the configured exponential
// backoff in an ErrorTypeBackoff so rate-limit failures wait longer.
package retry
