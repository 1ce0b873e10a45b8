// Package collector implements the incremental scroll, extract and dedupe loop.
//
// Collect alternates View.ExtractPage and View.AdvancePage, merging every
// page into a first-write-wins accumulator. A run ends when no new record
// has appeared for RetryCeiling consecutive iterations, when TargetCount
// records are held, when MaxIterations is reached, or when IsDone says so.
// Stability cannot tell the end of a list from a loading stall, so results
// are best effort; Result.Reason and the counters report how a run ended.
package collector
