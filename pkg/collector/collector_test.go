package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/ratelimit"
	"xscraper/pkg/record"
)

// scriptedView returns pages in order and keeps repeating the last one
type scriptedView struct {
	pages      [][]record.Record
	extractErr map[int]error
	advanceErr map[int]error
	extracts   int
	advances   int
	calls      []string
}

func (v *scriptedView) ExtractPage(ctx context.Context) ([]record.Record, error) {
	v.calls = append(v.calls, "extract")
	i := v.extracts
	v.extracts++
	if err := v.extractErr[i]; err != nil {
		return nil, err
	}
	if len(v.pages) == 0 {
		return nil, nil
	}
	if i >= len(v.pages) {
		i = len(v.pages) - 1
	}
	return v.pages[i], nil
}

func (v *scriptedView) AdvancePage(ctx context.Context) error {
	v.calls = append(v.calls, "advance")
	i := v.advances
	v.advances++
	return v.advanceErr[i]
}

func ids(ids ...string) []record.Record {
	out := make([]record.Record, len(ids))
	for i, id := range ids {
		out[i] = record.New(id, map[string]any{"page_id": id})
	}
	return out
}

func keys(res *Result) []string {
	return res.Accumulator.Keys()
}

func TestCollectExampleScenario(t *testing.T) {
	view := &scriptedView{pages: [][]record.Record{
		ids("u1", "u2"),
		ids("u1", "u2", "u3"),
		ids("u1", "u2", "u3"),
		ids("u1", "u2", "u3"),
	}}

	res, err := Collect(context.Background(), view, Options{RetryCeiling: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"u1", "u2", "u3"}, keys(res))
	assert.Equal(t, 4, res.Iterations)
	assert.Equal(t, StopStable, res.Reason)
	assert.Equal(t, 2, res.SinceLastNewRecord)
	assert.True(t, res.Complete())
	assert.Equal(t, 3, view.advances)
}

func TestCollectAlternatesExtractAndAdvance(t *testing.T) {
	view := &scriptedView{pages: [][]record.Record{ids("a"), ids("b")}}
	_, err := Collect(context.Background(), view, Options{RetryCeiling: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"extract", "advance", "extract", "advance", "extract"}, view.calls)
}

func TestCollectFirstWriteWins(t *testing.T) {
	first := record.New("Alice", map[string]any{"bio": "first"})
	later := record.New("alice", map[string]any{"bio": "later"})
	view := &scriptedView{pages: [][]record.Record{{first, record.New("bob", nil), later}, {later}}}

	res, err := Collect(context.Background(), view, Options{RetryCeiling: 1})
	require.NoError(t, err)

	require.Equal(t, 2, res.Accumulator.Len())
	got, ok := res.Accumulator.Get("ALICE")
	require.True(t, ok)
	assert.Equal(t, "first", got.String("bio"))
	assert.Equal(t, "Alice", got.ID)
}

func TestCollectTerminatesWithinCeilingPlusOne(t *testing.T) {
	for ceiling := 1; ceiling <= 5; ceiling++ {
		t.Run(fmt.Sprintf("ceiling_%d", ceiling), func(t *testing.T) {
			// three growing pages, then the source is exhausted
			view := &scriptedView{pages: [][]record.Record{ids("a"), ids("a", "b"), ids("a", "b", "c")}}
			res, err := Collect(context.Background(), view, Options{RetryCeiling: ceiling})
			require.NoError(t, err)

			assert.LessOrEqual(t, res.Iterations, 3+ceiling+1)
			assert.Equal(t, 3+ceiling, res.Iterations)
			assert.Equal(t, StopStable, res.Reason)
		})
	}
}

func TestCollectRespectsTarget(t *testing.T) {
	view := &scriptedView{pages: [][]record.Record{
		ids("a", "b", "c"),
		ids("a", "b", "c", "d", "e", "f"),
		ids("g", "h"),
	}}

	res, err := Collect(context.Background(), view, Options{TargetCount: 5, RetryCeiling: 3})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Accumulator.Len())
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, keys(res))
	assert.Equal(t, StopTarget, res.Reason)
	assert.Equal(t, 2, res.Iterations)
	assert.False(t, res.Complete(), "a target stop has not seen the rest of the list")
}

func TestCollectTargetReachedOnFirstPage(t *testing.T) {
	view := &scriptedView{pages: [][]record.Record{ids("a", "b", "c")}}
	res, err := Collect(context.Background(), view, Options{TargetCount: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Accumulator.Len())
	assert.Equal(t, 0, view.advances)
}

func TestCollectMaxIterations(t *testing.T) {
	n := 0
	view := &growingView{next: func() string { n++; return fmt.Sprintf("user%d", n) }}

	res, err := Collect(context.Background(), view, Options{MaxIterations: 7, RetryCeiling: 2})
	require.NoError(t, err)

	assert.Equal(t, 7, res.Iterations)
	assert.Equal(t, StopMaxIterations, res.Reason)
	assert.Equal(t, 7, res.Accumulator.Len())
	assert.False(t, res.Complete())
}

func TestCollectIsDone(t *testing.T) {
	n := 0
	view := &growingView{next: func() string { n++; return fmt.Sprintf("p%d", n) }}

	var seen []State
	res, err := Collect(context.Background(), view, Options{
		IsDone: func(s State) bool {
			seen = append(seen, s)
			return s.TotalCollected >= 3
		},
	})
	require.NoError(t, err)

	assert.Equal(t, StopDone, res.Reason)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, State{Iteration: 1, TotalCollected: 1}, seen[0])
}

func TestCollectSkipsRecordsWithoutIdentifier(t *testing.T) {
	page := append(ids("a"), record.New("", map[string]any{"broken": true}), record.New(" @ ", nil))
	view := &scriptedView{pages: [][]record.Record{page}}

	res, err := Collect(context.Background(), view, Options{RetryCeiling: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Accumulator.Len())
	assert.Equal(t, 4, res.Skipped)
}

func TestCollectTreatsExtractionErrorAsEmptyPage(t *testing.T) {
	view := &scriptedView{
		pages:      [][]record.Record{ids("a"), ids("a"), ids("a", "b")},
		extractErr: map[int]error{1: errors.New("selector timed out")},
	}
	tl := logger.NewTestLogger()

	res, err := Collect(context.Background(), view, Options{RetryCeiling: 2, Logger: tl})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, keys(res))
	assert.True(t, tl.HasMessage("Page extraction failed"))
}

func TestCollectAdvanceErrorIsNotFatal(t *testing.T) {
	view := &scriptedView{
		pages:      [][]record.Record{ids("a"), ids("a", "b")},
		advanceErr: map[int]error{0: errs.New(errs.ErrorTypeNetwork, "scroll failed")},
	}

	res, err := Collect(context.Background(), view, Options{RetryCeiling: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Accumulator.Len())
}

func TestCollectAbortsOnSubjectNotFound(t *testing.T) {
	view := &scriptedView{
		pages:      [][]record.Record{ids("a", "b")},
		extractErr: map[int]error{1: errs.SubjectNotFound("ghost")},
	}

	res, err := Collect(context.Background(), view, Options{RetryCeiling: 3})
	require.Error(t, err)
	require.NotNil(t, res)

	assert.True(t, errs.IsType(err, errs.ErrorTypeSubjectNotFound))
	assert.Equal(t, StopAborted, res.Reason)
	assert.Equal(t, 2, res.Accumulator.Len())
}

func TestCollectCancellationKeepsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	view := &growingView{next: func() string { n++; return fmt.Sprintf("u%d", n) }}

	res, err := Collect(ctx, view, Options{
		OnPage: func(ev PageEvent) {
			if ev.Iteration == 2 {
				cancel()
			}
		},
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StopCancelled, res.Reason)
	assert.Equal(t, 2, res.Accumulator.Len())
}

func TestCollectCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	view := &scriptedView{pages: [][]record.Record{ids("a"), ids("b")}}

	start := time.Now()
	res, err := Collect(ctx, view, Options{Pacer: ratelimit.Fixed(time.Hour)})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Minute)
	assert.Equal(t, 1, res.Accumulator.Len())
}

func TestCollectSeedDoesNotCountAsGrowth(t *testing.T) {
	view := &scriptedView{pages: [][]record.Record{ids("a", "b", "c")}}
	var added []int
	res, err := Collect(context.Background(), view, Options{
		RetryCeiling: 1,
		Seed:         ids("a", "b"),
		OnPage:       func(ev PageEvent) { added = append(added, ev.Added) },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, keys(res))
	assert.Equal(t, []int{1, 0}, added)
	assert.Equal(t, 2, res.Iterations)
}

func TestCollectResumedViewScrollsPastSeed(t *testing.T) {
	// The view reopens at the top and shows one more known record per page.
	view := &scriptedView{pages: [][]record.Record{
		ids("a"),
		ids("a", "b"),
		ids("a", "b", "c"),
		ids("a", "b", "c", "d"),
		ids("a", "b", "c", "d", "e"),
	}}
	var revisited, added []int
	res, err := Collect(context.Background(), view, Options{
		RetryCeiling: 2,
		Seed:         ids("a", "b", "c", "d"),
		OnPage: func(ev PageEvent) {
			revisited = append(revisited, ev.Revisited)
			added = append(added, ev.Added)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, keys(res))
	assert.Equal(t, StopStable, res.Reason)
	assert.True(t, res.Complete())
	assert.Equal(t, 7, res.Iterations)
	assert.Equal(t, []int{1, 1, 1, 1, 0, 0, 0}, revisited)
	assert.Equal(t, []int{0, 0, 0, 0, 1, 0, 0}, added)
}

func TestCollectResumedViewStallsInsideSeed(t *testing.T) {
	view := &scriptedView{pages: [][]record.Record{ids("a", "b")}}
	res, err := Collect(context.Background(), view, Options{
		RetryCeiling: 2,
		Seed:         ids("a", "b", "c"),
	})
	require.NoError(t, err)

	assert.Equal(t, StopStable, res.Reason)
	assert.Equal(t, 3, res.Iterations, "a view that stops moving still ends after the ceiling")
	assert.Equal(t, []string{"a", "b", "c"}, keys(res))
}

func TestCollectOnPageReportsProgress(t *testing.T) {
	view := &scriptedView{pages: [][]record.Record{ids("a"), ids("a", "b"), ids("a", "b")}}
	var added []int
	_, err := Collect(context.Background(), view, Options{
		RetryCeiling: 1,
		OnPage:       func(ev PageEvent) { added = append(added, ev.Added) },
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 0}, added)
}

func TestCollectEmptySource(t *testing.T) {
	res, err := Collect(context.Background(), &scriptedView{}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Accumulator.Len())
	assert.Equal(t, DefaultRetryCeiling, res.Iterations)
}

// growingView reveals one new record per page forever
type growingView struct {
	next func() string
	seen []record.Record
}

func (v *growingView) ExtractPage(ctx context.Context) ([]record.Record, error) {
	v.seen = append(v.seen, record.New(v.next(), nil))
	return v.seen, nil
}

func (v *growingView) AdvancePage(ctx context.Context) error { return nil }
