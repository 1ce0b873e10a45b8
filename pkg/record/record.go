// Package record defines the extracted item and the deduplicating accumulator
// a collection run fills.
package record

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"
)

// Reserved JSON keys of a flat record
const (
	FieldID         = "id"
	FieldCapturedAt = "captured_at"
)

// Record is one extracted item: a natural identifier, its attributes and the capture time.
// Field values are strings, numbers, booleans or string lists.
type Record struct {
	ID         string
	Fields     map[string]any
	CapturedAt time.Time
}

// New creates a record captured now. Attributes named like the reserved
// id and captured_at keys are kept under a "field_" prefix.
func New(id string, fields map[string]any) Record {
	if fields == nil {
		fields = map[string]any{}
	}
	return Record{ID: id, Fields: renameReserved(fields), CapturedAt: time.Now().UTC()}
}

func reserved(name string) bool {
	return name == FieldID || name == FieldCapturedAt
}

// fieldName is the name an attribute is written under in the flat form
func fieldName(fields map[string]any, name string) string {
	if !reserved(name) {
		return name
	}
	renamed := "field_" + name
	for {
		if _, taken := fields[renamed]; !taken {
			return renamed
		}
		renamed = "field_" + renamed
	}
}

// renameReserved returns fields, or a copy with reserved names moved aside
func renameReserved(fields map[string]any) map[string]any {
	if _, id := fields[FieldID]; !id {
		if _, at := fields[FieldCapturedAt]; !at {
			return fields
		}
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if !reserved(k) {
			out[k] = v
		}
	}
	for _, k := range []string{FieldID, FieldCapturedAt} {
		if v, ok := fields[k]; ok {
			out[fieldName(out, k)] = v
		}
	}
	return out
}

// Key returns the normalised identity of the record
func (r Record) Key() string {
	return Key(r.ID)
}

// Key normalises an identifier: surrounding whitespace and one leading "@" are
// dropped and the rest is lower-cased. Handles compare case-insensitively.
func Key(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "@")
	return strings.ToLower(strings.TrimSpace(id))
}

// Get returns a field value
func (r Record) Get(name string) (any, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// String returns a field as text, or "" when absent
func (r Record) String(name string) string {
	v, ok := r.Fields[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Strings returns a list field, accepting []string and decoded []any
func (r Record) Strings(name string) []string {
	switch v := r.Fields[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON writes the record as a single flat object
func (r Record) MarshalJSON() ([]byte, error) {
	flat := maps.Clone(renameReserved(r.Fields))
	if flat == nil {
		flat = make(map[string]any, 2)
	}
	flat[FieldID] = r.ID
	if !r.CapturedAt.IsZero() {
		flat[FieldCapturedAt] = r.CapturedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reads a flat object written by MarshalJSON
func (r *Record) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	id, ok := flat[FieldID].(string)
	if !ok {
		return fmt.Errorf("record has no string %q field", FieldID)
	}
	delete(flat, FieldID)

	var capturedAt time.Time
	if raw, ok := flat[FieldCapturedAt].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", FieldCapturedAt, err)
		}
		capturedAt = t
		delete(flat, FieldCapturedAt)
	}

	*r = Record{ID: id, Fields: flat, CapturedAt: capturedAt}
	return nil
}
