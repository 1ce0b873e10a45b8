package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/record"
	"xscraper/pkg/retry"
)

// DefaultRetryCeiling is used when Options.RetryCeiling is not positive
const DefaultRetryCeiling = 3

// View is the rendered content source a collection walks through.
// ExtractPage returns what is visible now without changing the view;
// AdvancePage reveals more content.
type View interface {
	ExtractPage(ctx context.Context) ([]record.Record, error)
	AdvancePage(ctx context.Context) error
}

// Pacer supplies the delay to wait after each advance
type Pacer interface {
	Next() time.Duration
}

// State is what termination decisions are made from
type State struct {
	Iteration          int
	SinceLastNewRecord int
	TotalCollected     int
	// TargetCount is 0 when no target was set
	TargetCount int
}

// PageEvent is reported once per iteration, after the page has been merged
type PageEvent struct {
	State
	Added int
	// Revisited counts seeded records seen on this page for the first time
	Revisited   int
	Accumulator *record.Accumulator
}

// StopReason says why a collection ended
type StopReason string

const (
	StopStable        StopReason = "stable"
	StopTarget        StopReason = "target"
	StopMaxIterations StopReason = "max_iterations"
	StopDone          StopReason = "done"
	StopCancelled     StopReason = "cancelled"
	StopAborted       StopReason = "aborted"
)

// Options configures one collection run
type Options struct {
	// Subject is used for logging only
	Subject string
	// TargetCount stops the run once this many records are held; 0 collects until stable
	TargetCount int
	// RetryCeiling is the number of consecutive iterations without growth that ends the run
	RetryCeiling int
	// MaxIterations is a hard stop; 0 means no limit
	MaxIterations int
	Pacer         Pacer
	// IsDone is an extra termination predicate evaluated after every merge
	IsDone func(State) bool
	// Seed pre-loads records, e.g. from a checkpoint. Seeded records are not
	// reported as added, but the first sighting of each one still counts as
	// movement, so a view reopened at the top of the list is not mistaken for
	// a stalled one while it scrolls back past the seeded part.
	Seed   []record.Record
	OnPage func(PageEvent)
	Logger logger.Logger
}

// Result is the outcome of a run. It is returned even when the run fails so
// that partial data is never lost.
type Result struct {
	Accumulator        *record.Accumulator
	Iterations         int
	SinceLastNewRecord int
	// Skipped counts records dropped for having no identifier
	Skipped  int
	Reason   StopReason
	Started  time.Time
	Finished time.Time
}

// Complete reports whether the run saw the whole list. Target and iteration
// limits stop short of the end and are not complete.
func (r *Result) Complete() bool {
	switch r.Reason {
	case StopStable, StopDone:
		return true
	default:
		return false
	}
}

// Records returns the collected records in first-seen order
func (r *Result) Records() []record.Record {
	return r.Accumulator.Records()
}

// Collect runs the extract, merge and advance loop against view until the
// content is stable, the target is reached, the iteration limit is hit, IsDone
// returns true, or ctx is cancelled. Extract and advance strictly alternate.
func Collect(ctx context.Context, view View, opts Options) (*Result, error) {
	log := logger.OrNop(opts.Logger)
	if opts.Subject != "" {
		log = log.WithField("subject", opts.Subject)
	}

	ceiling := opts.RetryCeiling
	if ceiling <= 0 {
		ceiling = DefaultRetryCeiling
	}
	target := opts.TargetCount
	if target < 0 {
		target = 0
	}

	res := &Result{Accumulator: record.NewAccumulator(), Started: time.Now()}
	defer func() { res.Finished = time.Now() }()

	// unseen holds seeded keys the view has not shown yet in this run
	unseen := make(map[string]struct{}, len(opts.Seed))
	for _, r := range opts.Seed {
		if target > 0 && res.Accumulator.Len() >= target {
			break
		}
		if res.Accumulator.Add(r) {
			unseen[r.Key()] = struct{}{}
		}
	}
	if len(opts.Seed) > 0 {
		log.WithField("seeded", res.Accumulator.Len()).Info("Resuming collection from checkpoint")
	}

	for {
		if err := ctx.Err(); err != nil {
			return cancelled(res, log, err)
		}

		res.Iterations++
		before := res.Accumulator.Len()

		page, err := view.ExtractPage(ctx)
		if err != nil {
			if abort, stop := classify(ctx, err); stop {
				return finishWithError(res, log, abort, err, "extract page")
			}
			log.WithError(err).WithField("iteration", res.Iterations).Warn("Page extraction failed, treating as empty page")
		}

		revisited := 0
		for _, r := range page {
			if target > 0 && res.Accumulator.Len() >= target {
				break
			}
			key := r.Key()
			if key == "" {
				res.Skipped++
				continue
			}
			if _, ok := unseen[key]; ok {
				delete(unseen, key)
				revisited++
				continue
			}
			res.Accumulator.Add(r)
		}

		added := res.Accumulator.Len() - before
		if added > 0 || revisited > 0 {
			res.SinceLastNewRecord = 0
		} else {
			res.SinceLastNewRecord++
		}

		state := State{
			Iteration:          res.Iterations,
			SinceLastNewRecord: res.SinceLastNewRecord,
			TotalCollected:     res.Accumulator.Len(),
			TargetCount:        target,
		}
		logger.LogCollectProgress(log, opts.Subject, state.Iteration, state.TotalCollected, state.SinceLastNewRecord)
		if opts.OnPage != nil {
			opts.OnPage(PageEvent{State: state, Added: added, Revisited: revisited, Accumulator: res.Accumulator})
		}

		if reason, stop := shouldStop(state, ceiling, opts); stop {
			res.Reason = reason
			log.InfoWithFields("Collection finished", map[string]interface{}{
				"reason":     string(reason),
				"iterations": res.Iterations,
				"collected":  res.Accumulator.Len(),
				"skipped":    res.Skipped,
			})
			return res, nil
		}

		if err := view.AdvancePage(ctx); err != nil {
			if abort, stop := classify(ctx, err); stop {
				return finishWithError(res, log, abort, err, "advance page")
			}
			log.WithError(err).WithField("iteration", res.Iterations).Warn("Advancing the view failed")
		}

		var delay time.Duration
		if opts.Pacer != nil {
			delay = opts.Pacer.Next()
		}
		if err := retry.Wait(ctx, delay); err != nil {
			return cancelled(res, log, err)
		}
	}
}

func shouldStop(s State, ceiling int, opts Options) (StopReason, bool) {
	switch {
	case s.TargetCount > 0 && s.TotalCollected >= s.TargetCount:
		return StopTarget, true
	case s.SinceLastNewRecord >= ceiling:
		return StopStable, true
	case opts.MaxIterations > 0 && s.Iteration >= opts.MaxIterations:
		return StopMaxIterations, true
	case opts.IsDone != nil && opts.IsDone(s):
		return StopDone, true
	default:
		return "", false
	}
}

// classify decides whether a view error ends the run.
// The first return value is true when the run was aborted rather than cancelled.
func classify(ctx context.Context, err error) (bool, bool) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, true
	}
	if errs.IsTerminal(err) {
		return true, true
	}
	return false, false
}

func finishWithError(res *Result, log logger.Logger, aborted bool, err error, op string) (*Result, error) {
	if !aborted {
		return cancelled(res, log, err)
	}
	res.Reason = StopAborted
	log.WithError(err).WithField("collected", res.Accumulator.Len()).Error("Collection aborted")
	return res, fmt.Errorf("%s: %w", op, err)
}

func cancelled(res *Result, log logger.Logger, err error) (*Result, error) {
	res.Reason = StopCancelled
	log.WithField("collected", res.Accumulator.Len()).Warn("Collection cancelled, keeping partial result")
	return res, err
}
