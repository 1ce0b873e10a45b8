package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// ActionTracker counts follow/unfollow actions against the hourly cap
type ActionTracker struct {
	mu         sync.Mutex
	Done       int
	Skipped    int
	Failed     int
	MaxPerHour int
	StartTime  time.Time
}

// NewActionTracker creates a tracker for maxPerHour actions per hour
func NewActionTracker(maxPerHour int) *ActionTracker {
	return &ActionTracker{
		MaxPerHour: maxPerHour,
		StartTime:  time.Now(),
	}
}

// Record counts one outcome; outcome uses the action runner's values
func (t *ActionTracker) Record(outcome string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch outcome {
	case "done", "dry_run":
		t.Done++
	case "skipped":
		t.Skipped++
	case "failed":
		t.Failed++
	}
}

// GetBatchProgress returns a bar of actions sent against the hourly cap
func (t *ActionTracker) GetBatchProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	const width = 20
	if t.MaxPerHour <= 0 {
		return fmt.Sprintf("[%s] %d", strings.Repeat(ProgressBar, width), t.Done)
	}
	filled := t.Done * width / t.MaxPerHour
	if filled > width {
		filled = width
	}

	bar := strings.Repeat(ProgressBar, filled) +
		strings.Repeat(ProgressEmpty, width-filled)

	return fmt.Sprintf("[%s] %d/%d", bar, t.Done, t.MaxPerHour)
}

// GetElapsedTime returns the elapsed time since tracking started
func (t *ActionTracker) GetElapsedTime() time.Duration {
	return time.Since(t.StartTime)
}

// PrintProgress prints the current progress line for handle
func (t *ActionTracker) PrintProgress(handle, outcome string) {
	label := Green("[" + strings.ToUpper(outcome) + "]")
	switch outcome {
	case "failed":
		label = Red("[FAILED]")
	case "skipped", "not_run":
		label = Dim("[" + strings.ToUpper(outcome) + "]")
	}
	printf("%s @%s %s\n", label, handle, t.GetBatchProgress())
}
