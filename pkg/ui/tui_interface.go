package ui

import "time"

// CollectionObserver follows the scroll-and-extract loop
type CollectionObserver interface {
	UpdateCollection(subject string, iteration, collected, sinceLastNew int)
	// IsPaused is polled between iterations; the loop waits while it is true
	IsPaused() bool
}

// DownloadObserver follows media downloads and the download budget
type DownloadObserver interface {
	StartDownload(id, subject, filename string)
	CompleteDownload(id string, size int64)
	FailDownload(id string, err error)
	UpdateRateLimit(used, max int, resetAt time.Time)
}

// EventLog receives human-readable run events
type EventLog interface {
	LogInfo(format string, args ...interface{})
	LogSuccess(format string, args ...interface{})
	LogWarning(format string, args ...interface{})
	LogError(format string, args ...interface{})
}

// TUI is a full-screen view of a scrape
type TUI interface {
	CollectionObserver
	DownloadObserver
	EventLog
}
