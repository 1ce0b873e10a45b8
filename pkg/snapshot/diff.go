package snapshot

import (
	"time"

	"xscraper/pkg/record"
)

// Delta is the added/removed partition between two snapshots of one subject.
// It is derived on demand and never stored on its own.
type Delta struct {
	Subject string `json:"subject"`
	// FirstRun is set when there was no comparable previous snapshot
	FirstRun bool            `json:"first_run"`
	Previous *time.Time      `json:"previous,omitempty"`
	Current  time.Time       `json:"current"`
	Added    []record.Record `json:"added"`
	Removed  []record.Record `json:"removed"`
}

// Changed reports whether anything was added or removed
func (d Delta) Changed() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0
}

// Diff compares two generations of a subject by normalised record key.
// A nil previous snapshot or one for a different subject yields an empty
// delta marked FirstRun. Neither snapshot is modified.
func Diff(previous, current *Snapshot) Delta {
	delta := Delta{
		Added:   []record.Record{},
		Removed: []record.Record{},
	}
	if current == nil {
		delta.FirstRun = true
		return delta
	}
	delta.Subject = current.Subject
	delta.Current = current.CapturedAt

	if previous == nil || !SameSubject(previous.Subject, current.Subject) {
		delta.FirstRun = true
		return delta
	}

	prevAt := previous.CapturedAt
	delta.Previous = &prevAt

	before := previous.index()
	after := current.index()

	seen := make(map[string]struct{})
	for _, r := range current.Records {
		key := r.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := before[key]; !ok {
			delta.Added = append(delta.Added, r)
		}
	}

	seen = make(map[string]struct{})
	for _, r := range previous.Records {
		key := r.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := after[key]; !ok {
			delta.Removed = append(delta.Removed, r)
		}
	}

	return delta
}
