package logger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// LogCollectProgress logs one collector iteration
func LogCollectProgress(l Logger, subject string, iteration, collected, sinceLastNew int) {
	l.DebugWithFields("Collection progress", map[string]interface{}{
		"subject":        subject,
		"iteration":      iteration,
		"collected":      collected,
		"since_last_new": sinceLastNew,
	})
}

// LogDelta logs the outcome of a snapshot comparison
func LogDelta(l Logger, subject string, firstRun bool, added, removed int) {
	if firstRun {
		l.WithField("subject", subject).Info("First snapshot for subject, no delta")
		return
	}
	l.InfoWithFields("Snapshot delta computed", map[string]interface{}{
		"subject": subject,
		"added":   added,
		"removed": removed,
	})
}

// LogDownload logs a media download outcome
func LogDownload(l Logger, recordID, url string, success bool, err error) {
	entry := l.WithFields(map[string]interface{}{
		"record_id": recordID,
		"url":       url,
		"success":   success,
	})

	switch {
	case err != nil:
		entry.WithError(err).Error("Download failed")
	case success:
		entry.Debug("Download completed")
	default:
		entry.Warn("Download skipped")
	}
}

// LogRateLimit logs a wait imposed by a limiter
func LogRateLimit(l Logger, operation string, wait fmt.Stringer) {
	l.WithFields(map[string]interface{}{
		"operation": operation,
		"wait":      wait.String(),
		"action":    "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// OrNop returns l, or a no-op logger when l is nil
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}

// NewNopLogger creates a no-operation logger
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
