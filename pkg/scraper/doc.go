// Package scraper runs one collection end to end.
//
// A run opens a view of a surface (followers, posts, a search...), drives the
// incremental collector over it, compares the result with the previous
// snapshot of the same subject, stores the new generation and exports both
// the records and the delta.
//
// Architecture:
//
// The Scraper struct coordinates:
//   - the view opener (headless browser or saved pages)
//   - checkpointing, so an interrupted run can be resumed with Job.Resume
//   - the snapshot store and the differ
//   - JSON/CSV export to files or stdout
//   - optional media downloads through a bounded worker pool
//   - progress reporting to a progress line or the TUI
//
// Usage:
//
//	store, err := snapshot.Open(ctx, cfg, log)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	s, err := scraper.New(cfg, twitter.NewReplay("./pages", log), store, log)
//	if err != nil {
//	    return err
//	}
//	outcome, err := s.Run(ctx, scraper.Job{Subject: "jack", Surface: twitter.SurfaceFollowers})
//
// Interrupted runs:
//
// A cancelled or aborted collection still exports what was gathered, marked
// with a "partial" suffix, and keeps its checkpoint. It is not stored as a
// snapshot generation, so it never produces a delta.
package scraper
