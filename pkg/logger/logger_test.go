package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"xscraper/pkg/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"json format", &config.LoggingConfig{Level: "info", Format: "json"}, false},
		{"invalid level", &config.LoggingConfig{Level: "loud"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "x.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown too")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %s", len(entries), buf.String())
	}
	if entries[0]["level"] != "warn" || entries[1]["level"] != "error" {
		t.Errorf("unexpected levels: %v", entries)
	}
	if entries[0]["app"] != "xscraper" {
		t.Errorf("missing app field: %v", entries[0])
	}
}

func TestWithFieldsAreImmutable(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, zerolog.DebugLevel)
	child := base.WithField("subject", "followers:jack")
	grandchild := child.WithFields(map[string]interface{}{"iteration": 3})

	base.Info("base")
	grandchild.Info("grandchild")

	entries := decodeLines(t, &buf)
	if _, ok := entries[0]["subject"]; ok {
		t.Error("parent logger picked up child field")
	}
	if entries[1]["subject"] != "followers:jack" || entries[1]["iteration"] != float64(3) {
		t.Errorf("child fields missing: %v", entries[1])
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel)

	l.WithError(errors.New("boom")).Error("failed")
	if l.WithError(nil) != l {
		t.Error("WithError(nil) should return the same logger")
	}

	entries := decodeLines(t, &buf)
	if entries[0]["error"] != "boom" {
		t.Errorf("expected error field, got %v", entries[0])
	}
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel)

	l.InfoWithFields("typed", map[string]interface{}{
		"str":   "v",
		"int":   7,
		"bool":  true,
		"dur":   2 * time.Second,
		"strs":  []string{"a", "b"},
		"cause": errors.New("inner"),
	})

	entry := decodeLines(t, &buf)[0]
	if entry["str"] != "v" || entry["int"] != float64(7) || entry["bool"] != true {
		t.Errorf("scalar fields wrong: %v", entry)
	}
	if entry["cause"] != "inner" {
		t.Errorf("error field wrong: %v", entry["cause"])
	}
	if strs, ok := entry["strs"].([]interface{}); !ok || len(strs) != 2 {
		t.Errorf("slice field wrong: %v", entry["strs"])
	}
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewWithWriter(&buf, zerolog.InfoLevel))
	defer SetLogger(NewNopLogger())

	WithField("component", "collector").Info("global")
	LogComponentStop("collector", "stable")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1]["reason"] != "stable" {
		t.Errorf("unexpected entry: %v", entries[1])
	}
}

func TestTestLoggerCapturesChildren(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("subject", "s").WithError(errors.New("e"))
	child.WarnWithFields("retrying", map[string]interface{}{"attempt": 2})
	tl.Info("done")

	msgs := tl.GetMessages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Fields["subject"] != "s" || msgs[0].Fields["attempt"] != 2 || msgs[0].Error == nil {
		t.Errorf("child message incomplete: %+v", msgs[0])
	}
	if !tl.HasMessage("retry") || tl.HasError() {
		t.Error("HasMessage/HasError mismatch")
	}
	if len(tl.GetMessagesByLevel("WARN")) != 1 {
		t.Error("expected one WARN message")
	}
	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear did not drop messages")
	}
}

func TestLogDelta(t *testing.T) {
	tl := NewTestLogger()
	LogDelta(tl, "followers:jack", true, 0, 0)
	LogDelta(tl, "followers:jack", false, 2, 1)

	msgs := tl.GetMessages()
	if !strings.Contains(msgs[0].Message, "First snapshot") {
		t.Errorf("unexpected first-run message %q", msgs[0].Message)
	}
	if msgs[1].Fields["added"] != 2 || msgs[1].Fields["removed"] != 1 {
		t.Errorf("unexpected delta fields %v", msgs[1].Fields)
	}
}
