// Package actions runs follow and unfollow actions over a list of handles
// with an hourly cap, jittered pacing between actions and retries.
package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"xscraper/pkg/config"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/ratelimit"
	"xscraper/pkg/record"
	"xscraper/pkg/retry"
	"xscraper/pkg/snapshot"
	"xscraper/pkg/twitter"
)

// Kind is the relationship change to apply
type Kind string

const (
	Follow   Kind = "follow"
	Unfollow Kind = "unfollow"
)

// ParseKind accepts "follow" or "unfollow"
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Follow, Unfollow:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown action %q (want follow or unfollow)", s)
	}
}

// Actor applies relationship changes on the site
type Actor interface {
	Follow(ctx context.Context, handle string) error
	Unfollow(ctx context.Context, handle string) error
}

// Outcome of one handle
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
	OutcomeDryRun  Outcome = "dry_run"
	OutcomeFailed  Outcome = "failed"
	OutcomeNotRun  Outcome = "not_run"
)

// Item is the result for one handle
type Item struct {
	Handle  string
	Outcome Outcome
	Err     error
	At      time.Time
}

// Report summarises a run
type Report struct {
	Kind     Kind
	Items    []Item
	Started  time.Time
	Finished time.Time
}

// Count returns how many items ended with outcome
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, it := range r.Items {
		if it.Outcome == outcome {
			n++
		}
	}
	return n
}

// Pacer supplies the delay between two actions
type Pacer interface {
	Next() time.Duration
}

// Runner applies one kind of action to many handles
type Runner struct {
	Actor   Actor
	Limiter ratelimit.Limiter
	Pacer   Pacer
	Retry   *retry.Config
	DryRun  bool
	Logger  logger.Logger
	// OnItem observes every finished handle
	OnItem func(Item)
}

// NewRunner builds a runner from the actions and retry sections of the configuration
func NewRunner(actor Actor, cfg *config.Config, log logger.Logger) *Runner {
	log = logger.OrNop(log)
	r := &Runner{
		Actor:  actor,
		Pacer:  ratelimit.NewPacer(cfg.Actions.Delay, cfg.Actions.DelayJitter),
		Retry:  retry.FromConfig(cfg.Retry, log),
		DryRun: cfg.Actions.DryRun,
		Logger: log,
	}
	if cfg.Actions.MaxPerHour > 0 {
		r.Limiter = ratelimit.NewSlidingWindow(cfg.Actions.MaxPerHour, time.Hour)
	}
	return r
}

// Run applies kind to every distinct handle in order. A terminal error (an
// expired session) or cancellation stops the run; the remaining handles are
// reported as not run and the error is returned with the report.
func (r *Runner) Run(ctx context.Context, kind Kind, handles []string) (*Report, error) {
	log := logger.OrNop(r.Logger).WithField("action", string(kind))
	handles = Dedupe(handles)
	report := &Report{Kind: kind, Started: time.Now()}
	defer func() { report.Finished = time.Now() }()

	finish := func(i int, err error) (*Report, error) {
		for _, h := range handles[i:] {
			report.Items = append(report.Items, Item{Handle: h, Outcome: OutcomeNotRun})
		}
		return report, err
	}

	for i, handle := range handles {
		if err := ctx.Err(); err != nil {
			return finish(i, err)
		}

		item := Item{Handle: handle}
		if r.DryRun {
			item.Outcome = OutcomeDryRun
			log.WithField("handle", handle).Info("Dry run, action not sent")
		} else {
			if err := r.waitForSlot(ctx, log); err != nil {
				return finish(i, err)
			}
			err := retry.Do(ctx, func(ctx context.Context) error {
				return r.apply(ctx, kind, handle)
			}, r.retryConfig())

			switch {
			case err == nil:
				item.Outcome = OutcomeDone
			case errors.Is(err, twitter.ErrAlreadyInState):
				item.Outcome = OutcomeSkipped
			case ctx.Err() != nil:
				return finish(i, ctx.Err())
			default:
				item.Outcome = OutcomeFailed
				item.Err = err
				log.WithError(err).WithField("handle", handle).Warn("Action failed")
			}
		}
		item.At = time.Now()
		report.Items = append(report.Items, item)
		if r.OnItem != nil {
			r.OnItem(item)
		}

		if item.Err != nil && errs.IsTerminal(item.Err) {
			return finish(i+1, item.Err)
		}

		if i < len(handles)-1 && !r.DryRun && r.Pacer != nil {
			if err := retry.Wait(ctx, r.Pacer.Next()); err != nil {
				return finish(i+1, err)
			}
		}
	}

	log.InfoWithFields("Actions finished", map[string]interface{}{
		"done":    report.Count(OutcomeDone),
		"skipped": report.Count(OutcomeSkipped),
		"failed":  report.Count(OutcomeFailed),
		"dry_run": report.Count(OutcomeDryRun),
	})
	return report, nil
}

func (r *Runner) apply(ctx context.Context, kind Kind, handle string) error {
	if kind == Unfollow {
		return r.Actor.Unfollow(ctx, handle)
	}
	return r.Actor.Follow(ctx, handle)
}

func (r *Runner) waitForSlot(ctx context.Context, log logger.Logger) error {
	if r.Limiter == nil || r.Limiter.Allow() {
		return nil
	}
	if sw, ok := r.Limiter.(*ratelimit.SlidingWindow); ok {
		logger.LogRateLimit(log, "relationship action", sw.NextSlot())
	}
	return r.Limiter.Wait(ctx)
}

func (r *Runner) retryConfig() *retry.Config {
	cfg := retry.Config{MaxAttempts: 1}
	if r.Retry != nil {
		cfg = *r.Retry
	}
	base := cfg.RetryIf
	if base == nil {
		base = retry.DefaultRetryIf
	}
	cfg.RetryIf = func(err error) bool {
		return !errors.Is(err, twitter.ErrAlreadyInState) && !errs.IsTerminal(err) && base(err)
	}
	return &cfg
}

// Dedupe drops empty and repeated handles, comparing case-insensitively and
// ignoring a leading "@"
func Dedupe(handles []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(handles))
	for _, h := range handles {
		key := record.Key(h)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, twitter.Handle(h))
	}
	return out
}

// HandlesFromDelta picks handles from a delta file written by the exporter:
// added records for follow (follow back new followers) and removed records for
// unfollow (drop accounts that stopped following)
func HandlesFromDelta(path string, kind Kind) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read delta file: %w", err)
	}
	var delta snapshot.Delta
	if err := json.Unmarshal(data, &delta); err != nil {
		return nil, fmt.Errorf("failed to parse delta file: %w", err)
	}

	records := delta.Added
	if kind == Unfollow {
		records = delta.Removed
	}
	handles := make([]string, 0, len(records))
	for _, rec := range records {
		handles = append(handles, rec.ID)
	}
	return handles, nil
}
