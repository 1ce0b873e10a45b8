package snapshot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xscraper/pkg/record"
)

func snap(subject string, ids ...string) *Snapshot {
	records := make([]record.Record, len(ids))
	for i, id := range ids {
		records[i] = record.New(id, map[string]any{"display_name": "name of " + id})
	}
	return New(subject, records, true)
}

func recordIDs(records []record.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestDiffAddedAndRemoved(t *testing.T) {
	a := snap("followers:jack", "a", "b", "c")
	b := snap("followers:jack", "b", "c", "d")

	delta := Diff(a, b)

	assert.False(t, delta.FirstRun)
	assert.Equal(t, []string{"d"}, recordIDs(delta.Added))
	assert.Equal(t, []string{"a"}, recordIDs(delta.Removed))
	assert.Equal(t, "name of a", delta.Removed[0].String("display_name"))
	require.NotNil(t, delta.Previous)
	assert.True(t, delta.Previous.Equal(a.CapturedAt))
	assert.True(t, delta.Changed())
}

func TestDiffFirstRun(t *testing.T) {
	b := snap("followers:jack", "b", "c", "d")

	delta := Diff(nil, b)
	assert.True(t, delta.FirstRun)
	assert.Empty(t, delta.Added)
	assert.Empty(t, delta.Removed)
	assert.NotNil(t, delta.Added)
	assert.Nil(t, delta.Previous)
	assert.False(t, delta.Changed())
}

func TestDiffDifferentSubjectIsFirstRun(t *testing.T) {
	delta := Diff(snap("followers:jack", "a"), snap("following:jack", "b"))
	assert.True(t, delta.FirstRun)
	assert.Empty(t, delta.Added)
	assert.Empty(t, delta.Removed)
}

func TestDiffIsCaseInsensitive(t *testing.T) {
	prev := snap("Followers:Jack", "Alice", "@bob")
	cur := snap("followers:jack", "alice", "BOB", "carol")

	delta := Diff(prev, cur)
	assert.False(t, delta.FirstRun)
	assert.Equal(t, []string{"carol"}, recordIDs(delta.Added))
	assert.Empty(t, delta.Removed)
}

func TestDiffIdenticalSnapshots(t *testing.T) {
	delta := Diff(snap("s", "a", "b"), snap("s", "b", "a"))
	assert.False(t, delta.FirstRun)
	assert.False(t, delta.Changed())
}

func TestDiffDoesNotMutateInputs(t *testing.T) {
	a := snap("s", "a", "b")
	b := snap("s", "b", "c")
	aJSON, _ := json.Marshal(a)
	bJSON, _ := json.Marshal(b)

	_ = Diff(a, b)

	afterA, _ := json.Marshal(a)
	afterB, _ := json.Marshal(b)
	assert.JSONEq(t, string(aJSON), string(afterA))
	assert.JSONEq(t, string(bJSON), string(afterB))
}

func TestNewCopiesRecords(t *testing.T) {
	records := []record.Record{record.New("a", nil)}
	s := New(" Followers:Jack ", records, false)
	records[0].ID = "changed"

	assert.Equal(t, "a", s.Records[0].ID)
	assert.Equal(t, "followers:jack", s.Subject)
	assert.Equal(t, 1, s.Count)
	assert.False(t, s.Complete)
}

func TestSubjectID(t *testing.T) {
	assert.Equal(t, "followers:jack", SubjectID("followers", "@Jack"))
	assert.Equal(t, "hashtag:golang", SubjectID("Hashtag", " golang "))
	assert.True(t, SameSubject("FOLLOWERS:jack", "followers:JACK"))
}

func TestDeltaJSONShape(t *testing.T) {
	prev := snap("s", "a")
	prev.CapturedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	delta := Diff(prev, snap("s", "b"))

	data, err := json.Marshal(delta)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"subject", "first_run", "previous", "current", "added", "removed"} {
		assert.Contains(t, decoded, key)
	}
	added := decoded["added"].([]any)
	assert.Equal(t, "b", added[0].(map[string]any)["id"])
}
