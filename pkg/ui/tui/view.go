package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"xscraper/pkg/ui"
)

const banner = `
╔═══════════════════════════════════════════╗
║  ██╗  ██╗    SCROLL • EXTRACT • DEDUPE    ║
║  ╚██╗██╔╝                                 ║
║   ╚███╔╝     timeline snapshot utility    ║
║   ██╔██╗                                  ║
║  ██╔╝ ██╗                                 ║
║  ╚═╝  ╚═╝                                 ║
╚═══════════════════════════════════════════╝`

const (
	visibleLogLines  = 10
	visibleCompleted = 3
	visibleFailed    = 2
)

func newHelp() help.Model {
	h := help.New()
	h.Styles.ShortKey = styles.label
	h.Styles.ShortDesc = styles.faint
	h.Styles.FullKey = styles.label
	h.Styles.FullDesc = styles.faint
	return h
}

// View renders the dashboard
func (m *Model) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	col := (m.width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left, m.collectionPanel(col), m.mediaPanel(col))
	right := lipgloss.JoinVertical(lipgloss.Left, m.budgetPanel(col), m.logPanel(col))

	return lipgloss.NewStyle().Width(m.width).Height(m.height).Render(lipgloss.JoinVertical(lipgloss.Left,
		styles.logo.Width(m.width).Render(banner),
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
		styles.footer.Render(m.help.View(keys)),
	))
}

// panel draws a titled box; an empty body shows placeholder instead
func panel(width int, name string, body []string, placeholder string) string {
	content := strings.Join(body, "\n")
	if content == "" {
		content = styles.faint.Render(placeholder)
	}
	return styles.panel.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, styles.title.Render(" "+name+" "), content),
	)
}

func stat(label, value string) string {
	return styles.label.Render(label+":") + " " + value
}

func (m *Model) collectionPanel(width int) string {
	c := m.collection
	elapsed := time.Since(m.sessionStartTime)

	var rate float64
	if elapsed.Minutes() > 0 {
		rate = float64(c.Collected) / elapsed.Minutes()
	}

	count := styles.value.Render(fmt.Sprint(c.Collected))
	progress := c.Progress()
	if progress >= 0 {
		count = GetProgressBarStyle(progress*100).Render(fmt.Sprintf("%d / %d", c.Collected, c.Target))
	}

	body := []string{
		stat("Subject", styles.value.Render(c.Subject)),
		stat("Collected", count+" "+m.spinner.View()),
		stat("Page", styles.value.Render(fmt.Sprint(c.Iteration))),
		stat("Rate", styles.value.Render(fmt.Sprintf("%.1f/min", rate))),
		stat("Session", styles.value.Render(formatDuration(elapsed))),
		stat("Idle pages", m.idle()),
	}
	if progress >= 0 {
		bar := m.progressBar
		bar.Width = width - 8
		body = append(body, bar.ViewAs(progress))
	}
	if m.isPaused {
		body = append(body, styles.paused.Render("⏸  PAUSED"))
	}
	return panel(width, "COLLECTION", body, "")
}

// idle shows how close the run is to stopping for lack of growth
func (m *Model) idle() string {
	idle := m.collection.SinceLastNew
	if m.ceiling <= 0 {
		return styles.value.Render(fmt.Sprint(idle))
	}
	usage := float64(idle) / float64(m.ceiling) * 100
	return GetRateLimitStyle(usage).Render(fmt.Sprintf("%d/%d", idle, m.ceiling))
}

func (m *Model) mediaPanel(width int) string {
	if len(m.downloadOrder) == 0 {
		return panel(width, "MEDIA", nil, "No media downloads")
	}

	body := []string{stat("Saved", styles.value.Render(
		fmt.Sprintf("%d files, %s", m.totalDownloaded, ui.FormatBytes(m.totalSize))))}

	for _, d := range m.downloadsIn(DownloadActive) {
		body = append(body, styles.active.Render("↓ "+d.Filename))
	}
	for _, d := range tail(m.downloadsIn(DownloadCompleted), visibleCompleted) {
		body = append(body, styles.done.Render("✓ "+d.Filename))
	}
	if failed := m.downloadsIn(DownloadFailed); len(failed) > 0 {
		body = append(body, styles.failed.Render(fmt.Sprintf("✗ %d failed", len(failed))))
		for _, d := range tail(failed, visibleFailed) {
			body = append(body, styles.done.Render("• "+d.Filename))
		}
	}
	return panel(width, "MEDIA", body, "")
}

func (m *Model) budgetPanel(width int) string {
	if m.rateLimitMax <= 0 {
		return panel(width, "RATE LIMIT", nil, "No limit reported")
	}

	usage := min(float64(m.rateLimitUsed)/float64(m.rateLimitMax)*100, 100)
	barWidth := max(width-8, 0)
	filled := int(usage * float64(barWidth) / 100)
	color := GetRateLimitStyle(usage)

	return panel(width, "RATE LIMIT", []string{
		stat("Usage", color.Render(fmt.Sprintf("%d/%d (%.0f%%)", m.rateLimitUsed, m.rateLimitMax, usage))),
		color.Render(strings.Repeat("█", filled)) + styles.faint.Render(strings.Repeat("░", barWidth-filled)),
		stat("Reset in", styles.value.Render(formatDuration(max(time.Until(m.rateLimitResetAt), 0)))),
	}, "")
}

func (m *Model) logPanel(width int) string {
	limit := width - 25
	var body []string
	for _, entry := range tail(m.logMessages, visibleLogLines) {
		msg := entry.Message
		if limit > 3 && len(msg) > limit {
			msg = msg[:limit-3] + "..."
		}
		level := lipgloss.NewStyle().Foreground(entry.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", entry.Level))
		body = append(body, styles.timestamp.Render(entry.Time.Format("15:04:05"))+" "+level+" "+styles.value.Render(msg))
	}

	content := panel(width, "LOG", body, "No logs yet...")
	return lipgloss.NewStyle().Height(max(m.height-30, 5)).Render(content)
}

func tail[T any](items []T, n int) []T {
	if len(items) > n {
		return items[len(items)-n:]
	}
	return items
}

// formatDuration renders d as mm:ss, or hh:mm:ss past an hour
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
