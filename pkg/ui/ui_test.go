package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xscraper/pkg/config"
	"xscraper/pkg/record"
	"xscraper/pkg/snapshot"
)

type fakeSender struct {
	titles []string
}

func (f *fakeSender) Send(title, message string) error {
	f.titles = append(f.titles, title)
	return errors.New("not supported")
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Output
	Output = &buf
	t.Cleanup(func() { Output = prev })
	return &buf
}

func TestQuietModeSilencesPrinting(t *testing.T) {
	buf := captureOutput(t)

	SetQuietMode(true)
	PrintSuccess("hidden")
	SetQuietMode(false)
	PrintSuccess("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNotifierRespectsSettings(t *testing.T) {
	captureOutput(t)
	sender := &fakeSender{}

	n := NewNotifierWithSender(sender, config.NotificationConfig{
		Enabled:          true,
		OnComplete:       true,
		OnError:          false,
		OnChange:         true,
		NotificationType: "desktop",
	})
	n.SendSuccess("DONE", "ok")
	n.SendError("FAILED", "boom")
	n.SendChange("followers:jack", 2, 1)

	assert.Equal(t, []string{"DONE", "CHANGES DETECTED"}, sender.titles)
}

func TestNotifierTerminalOnly(t *testing.T) {
	buf := captureOutput(t)
	sender := &fakeSender{}

	n := NewNotifierWithSender(sender, config.NotificationConfig{
		Enabled:          true,
		OnComplete:       true,
		NotificationType: "terminal",
	})
	n.SendSuccess("DONE", "ok")

	assert.Empty(t, sender.titles)
	assert.Contains(t, buf.String(), "DONE")
}

func TestProgressDisplayLine(t *testing.T) {
	p := NewProgressDisplay("followers:jack", 10, false)
	p.SetOutput(&bytes.Buffer{})

	p.Page(3, 5, 1)
	line := p.Line()
	assert.Contains(t, line, "followers:jack")
	assert.Contains(t, line, "5/10")
	assert.Contains(t, line, "page 3")
	assert.Contains(t, line, "1 idle")
	assert.Contains(t, line, "[━━━━━━━━━━──────────]")

	p.CompleteDownload("1001_0.jpg", 2048)
	p.FailDownload("1001_1.jpg", errors.New("timeout"))
	line = p.Line()
	assert.Contains(t, line, "1 media • 2.0 KB")
	assert.Contains(t, line, "1 errors")
}

func TestProgressDisplayDebugOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay("posts:jack", 0, true)
	p.SetOutput(&buf)

	p.Page(1, 4, 0)
	p.Complete("stable")

	assert.Contains(t, buf.String(), "Page 1: 4 collected")
	assert.Contains(t, buf.String(), "Collected 4 records from posts:jack (stable)")
}

func TestActionTrackerProgress(t *testing.T) {
	tr := NewActionTracker(4)
	tr.Record("done")
	tr.Record("done")
	tr.Record("skipped")
	tr.Record("failed")

	assert.Equal(t, 2, tr.Done)
	assert.Equal(t, 1, tr.Skipped)
	assert.Equal(t, 1, tr.Failed)
	assert.Equal(t, "[██████████░░░░░░░░░░] 2/4", tr.GetBatchProgress())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 MB", FormatBytes(1536*1024))
	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h30m", FormatDuration(90*time.Minute))
}

func TestRenderDelta(t *testing.T) {
	prev := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	delta := snapshot.Delta{
		Subject:  "followers:jack",
		Previous: &prev,
		Current:  prev.Add(24 * time.Hour),
		Added:    []record.Record{record.New("carol", map[string]any{"display_name": "Carol"})},
		Removed:  []record.Record{record.New("bob", nil)},
	}

	var buf bytes.Buffer
	RenderDelta(&buf, delta)
	out := buf.String()

	assert.Contains(t, out, "carol")
	assert.Contains(t, out, "Carol")
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "+1 / -1")
}

func TestRenderHistory(t *testing.T) {
	older := snapshot.New("followers:jack", []record.Record{record.New("alice", nil), record.New("bob", nil)}, true)
	newer := snapshot.New("followers:jack", []record.Record{record.New("alice", nil), record.New("carol", nil), record.New("dave", nil)}, false)

	var buf bytes.Buffer
	RenderHistory(&buf, "followers:jack", []*snapshot.Snapshot{newer, older})
	out := buf.String()

	require.NotEmpty(t, out)
	assert.Contains(t, out, "+2")
	assert.Contains(t, out, "-1")
	assert.Contains(t, out, "partial")
	assert.Equal(t, 1, strings.Count(out, "followers:jack"))
}
