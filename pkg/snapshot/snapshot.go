// Package snapshot persists finished collections and computes the
// added/removed delta between two generations of the same subject.
package snapshot

import (
	"strings"
	"time"

	"xscraper/pkg/record"
)

// Snapshot is an immutable, timestamped collection for one subject
type Snapshot struct {
	Subject    string          `json:"subject"`
	CapturedAt time.Time       `json:"captured_at"`
	Count      int             `json:"count"`
	Complete   bool            `json:"complete"`
	Records    []record.Record `json:"records"`
}

// New creates a snapshot captured now. The record slice is copied.
func New(subject string, records []record.Record, complete bool) *Snapshot {
	copied := make([]record.Record, len(records))
	copy(copied, records)
	return &Snapshot{
		Subject:    NormalizeSubject(subject),
		CapturedAt: time.Now().UTC(),
		Count:      len(copied),
		Complete:   complete,
		Records:    copied,
	}
}

// SubjectID names what was collected: the surface and the normalised handle or query
func SubjectID(surface, handle string) string {
	return NormalizeSubject(surface + ":" + record.Key(handle))
}

// NormalizeSubject makes subject identifiers compare case-insensitively
func NormalizeSubject(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}

// SameSubject reports whether two subject identifiers refer to the same thing
func SameSubject(a, b string) bool {
	return NormalizeSubject(a) == NormalizeSubject(b)
}

// index maps record keys to records
func (s *Snapshot) index() map[string]struct{} {
	keys := make(map[string]struct{}, len(s.Records))
	for _, r := range s.Records {
		keys[r.Key()] = struct{}{}
	}
	return keys
}
