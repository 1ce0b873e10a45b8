// Package export writes collections and deltas as JSON or CSV.
//
// JSON is a lossless serialisation. CSV projects records onto a fixed column
// list: absent fields become empty cells and list values are joined with a
// separator, so CSV output does not round-trip back into records.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"xscraper/pkg/record"
	"xscraper/pkg/snapshot"
)

// Format is an output format
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts json or csv in any case
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Extension returns the file extension for the format
func (f Format) Extension() string {
	return string(f)
}

// ChangeColumn is the leading CSV column of an exported delta
const ChangeColumn = "change"

// Exporter serialises records and deltas
type Exporter struct {
	Format Format
	// Columns is the CSV projection; when empty the id column plus every field seen is used
	Columns       []string
	ListSeparator string
	PrettyJSON    bool
}

// New creates an exporter with the default list separator
func New(format Format, columns []string) *Exporter {
	return &Exporter{Format: format, Columns: columns, ListSeparator: "|", PrettyJSON: true}
}

// ExportRecords writes records to dest under name
func (e *Exporter) ExportRecords(name string, records []record.Record, dest Destination) (string, error) {
	return dest.Write(name, e.Format, func(w io.Writer) error {
		return e.WriteRecords(w, records)
	})
}

// ExportDelta writes a delta to dest under name
func (e *Exporter) ExportDelta(name string, delta snapshot.Delta, dest Destination) (string, error) {
	return dest.Write(name, e.Format, func(w io.Writer) error {
		return e.WriteDelta(w, delta)
	})
}

// WriteRecords serialises records to w
func (e *Exporter) WriteRecords(w io.Writer, records []record.Record) error {
	if records == nil {
		records = []record.Record{}
	}
	switch e.Format {
	case FormatJSON, "":
		return e.writeJSON(w, records)
	case FormatCSV:
		cols := e.columns(records)
		cw := csv.NewWriter(w)
		if err := cw.Write(cols); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		for _, r := range records {
			if err := cw.Write(e.row(r, cols)); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unsupported export format %q", e.Format)
	}
}

// WriteDelta serialises a delta to w. CSV rows carry an "added" or "removed" change column.
func (e *Exporter) WriteDelta(w io.Writer, delta snapshot.Delta) error {
	switch e.Format {
	case FormatJSON, "":
		return e.writeJSON(w, delta)
	case FormatCSV:
		all := append(append([]record.Record{}, delta.Added...), delta.Removed...)
		cols := e.columns(all)
		cw := csv.NewWriter(w)
		if err := cw.Write(append([]string{ChangeColumn}, cols...)); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		for _, part := range []struct {
			change  string
			records []record.Record
		}{{"added", delta.Added}, {"removed", delta.Removed}} {
			for _, r := range part.records {
				if err := cw.Write(append([]string{part.change}, e.row(r, cols)...)); err != nil {
					return fmt.Errorf("write csv row: %w", err)
				}
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unsupported export format %q", e.Format)
	}
}

func (e *Exporter) writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if e.PrettyJSON {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// columns returns the configured projection, or id plus every field in first-seen order
func (e *Exporter) columns(records []record.Record) []string {
	if len(e.Columns) > 0 {
		return e.Columns
	}

	cols := []string{record.FieldID}
	seen := map[string]bool{record.FieldID: true, record.FieldCapturedAt: true}
	for _, r := range records {
		var names []string
		for name := range r.Fields {
			if !seen[name] {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			seen[name] = true
			cols = append(cols, name)
		}
	}
	return append(cols, record.FieldCapturedAt)
}

func (e *Exporter) row(r record.Record, cols []string) []string {
	out := make([]string, len(cols))
	for i, col := range cols {
		switch col {
		case record.FieldID:
			out[i] = r.ID
		case record.FieldCapturedAt:
			if !r.CapturedAt.IsZero() {
				out[i] = r.CapturedAt.UTC().Format(time.RFC3339)
			}
		default:
			if v, ok := r.Fields[col]; ok {
				out[i] = e.cell(v)
			}
		}
	}
	return out
}

// cell flattens a field value into CSV text
func (e *Exporter) cell(v any) string {
	sep := e.ListSeparator
	if sep == "" {
		sep = "|"
	}

	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []string:
		return strings.Join(val, sep)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = e.cell(item)
		}
		return strings.Join(parts, sep)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
