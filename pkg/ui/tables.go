package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"xscraper/pkg/record"
	"xscraper/pkg/snapshot"
)

const labelWidth = 60

// RenderDelta writes the added and removed records of delta as a table
func RenderDelta(w io.Writer, delta snapshot.Delta) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(deltaTitle(delta))
	t.AppendHeader(table.Row{"Change", "ID", "Label"})

	for _, r := range delta.Added {
		t.AppendRow(table.Row{text.FgGreen.Sprint("+"), r.ID, label(r)})
	}
	for _, r := range delta.Removed {
		t.AppendRow(table.Row{text.FgRed.Sprint("-"), r.ID, label(r)})
	}

	t.AppendFooter(table.Row{"", fmt.Sprintf("+%d / -%d", len(delta.Added), len(delta.Removed)), ""})
	t.Render()
}

func deltaTitle(delta snapshot.Delta) string {
	if delta.FirstRun {
		return fmt.Sprintf("%s: first snapshot", delta.Subject)
	}
	if delta.Previous == nil {
		return delta.Subject
	}
	return fmt.Sprintf("%s: %s → %s", delta.Subject,
		delta.Previous.Local().Format(time.DateTime), delta.Current.Local().Format(time.DateTime))
}

// label picks the most readable field of a record
func label(r record.Record) string {
	for _, name := range []string{"display_name", "text", "url"} {
		if s := r.String(name); s != "" {
			s = strings.Join(strings.Fields(s), " ")
			return text.Trim(s, labelWidth)
		}
	}
	return ""
}

// RenderHistory writes stored generations, newest first, with the change against the next older one
func RenderHistory(w io.Writer, subject string, snaps []*snapshot.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(subject)
	t.AppendHeader(table.Row{"#", "Captured", "Records", "Complete", "Added", "Removed"})

	for i, snap := range snaps {
		added, removed := "", ""
		if i+1 < len(snaps) {
			d := snapshot.Diff(snaps[i+1], snap)
			added = fmt.Sprintf("+%d", len(d.Added))
			removed = fmt.Sprintf("-%d", len(d.Removed))
		}
		complete := text.FgGreen.Sprint("yes")
		if !snap.Complete {
			complete = text.FgYellow.Sprint("partial")
		}
		t.AppendRow(table.Row{
			i + 1,
			snap.CapturedAt.Local().Format(time.DateTime),
			snap.Count,
			complete,
			added,
			removed,
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	t.Render()
}
