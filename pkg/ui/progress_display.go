package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay draws a single progress line for a collection and its media downloads
type ProgressDisplay struct {
	mu              sync.Mutex
	out             io.Writer
	subject         string
	target          int
	iteration       int
	collected       int
	sinceLastNew    int
	downloadedCount int
	currentFile     string
	startTime       time.Time
	bytesDownloaded int64
	errors          int
	isDebug         bool
}

// NewProgressDisplay creates a display; target is 0 when collecting until stable
func NewProgressDisplay(subject string, target int, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       Output,
		subject:   subject,
		target:    target,
		startTime: time.Now(),
		isDebug:   debug,
	}
}

// SetOutput redirects the display
func (p *ProgressDisplay) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = w
}

// Page records one collector iteration
func (p *ProgressDisplay) Page(iteration, collected, sinceLastNew int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.iteration = iteration
	p.collected = collected
	p.sinceLastNew = sinceLastNew

	if p.isDebug {
		p.write("\n%s Page %d: %d collected, %d without growth\n", Magenta("→"), iteration, collected, sinceLastNew)
		return
	}
	p.printProgress()
}

// StartDownload marks the start of a media download
func (p *ProgressDisplay) StartDownload(file string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.currentFile = file
	if !p.isDebug {
		p.printProgress()
	}
}

// CompleteDownload marks a media download as complete
func (p *ProgressDisplay) CompleteDownload(file string, size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.downloadedCount++
	p.bytesDownloaded += size

	if p.isDebug {
		p.write("\n%s %s • %s\n", Green("✓"), file, FormatBytes(size))
		return
	}
	p.printProgress()
}

// FailDownload marks a media download as failed
func (p *ProgressDisplay) FailDownload(file string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errors++
	if p.isDebug {
		p.write("\n%s Failed: %s - %v\n", Red("✗"), file, err)
		return
	}
	p.printProgress()
}

// RateLimitWarning shows a rate limit warning
func (p *ProgressDisplay) RateLimitWarning(waitTime time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.write("\n%s Rate limit reached. Waiting %s...\n", Yellow("⚠"), FormatDuration(waitTime))
}

// Complete prints the summary of the run
func (p *ProgressDisplay) Complete(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)
	p.write("\n\n%s Collected %d records from %s (%s)\n", Green("✓"), p.collected, p.subject, reason)
	p.write("  %s %d pages in %s\n", Dim("•"), p.iteration, FormatDuration(elapsed))

	if p.downloadedCount > 0 {
		p.write("  %s %d media files, %s\n", Dim("•"), p.downloadedCount, FormatBytes(p.bytesDownloaded))
	}
	if p.errors > 0 {
		p.write("  %s %d downloads failed\n", Dim("•"), p.errors)
	}
}

// Line returns the current progress line without colour codes
func (p *ProgressDisplay) Line() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line(func(s string) string { return s })
}

func (p *ProgressDisplay) line(color func(string) string) string {
	count := fmt.Sprintf("%d", p.collected)
	if p.target > 0 {
		count = fmt.Sprintf("%d/%d", p.collected, p.target)
	}

	parts := []string{
		color(p.subject),
		p.bar(),
		count,
		fmt.Sprintf("page %d", p.iteration),
	}
	if p.sinceLastNew > 0 {
		parts = append(parts, fmt.Sprintf("%d idle", p.sinceLastNew))
	}
	if p.downloadedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d media • %s", p.downloadedCount, FormatBytes(p.bytesDownloaded)))
	}
	if p.currentFile != "" {
		parts = append(parts, p.currentFile)
	}
	if p.errors > 0 {
		parts = append(parts, fmt.Sprintf("%d errors", p.errors))
	}
	return strings.Join(parts, " • ")
}

func (p *ProgressDisplay) bar() string {
	const width = 20
	filled := 0
	if p.target > 0 {
		filled = p.collected * width / p.target
	} else if p.collected > 0 {
		// Unknown total: show motion rather than a fraction
		filled = p.iteration % (width + 1)
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("━", filled) + strings.Repeat("─", width-filled) + "]"
}

func (p *ProgressDisplay) printProgress() {
	line := p.line(Cyan)
	p.write("\r%s\r%s", strings.Repeat(" ", 120), line)
}

func (p *ProgressDisplay) write(format string, args ...interface{}) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintf(p.out, format, args...)
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
