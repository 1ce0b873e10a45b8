package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// palette follows the dark X theme
var (
	accent  = lipgloss.Color("#1D9BF0")
	good    = lipgloss.Color("#00BA7C")
	caution = lipgloss.Color("#FFD400")
	warn    = lipgloss.Color("#FF7A00")
	bad     = lipgloss.Color("#F4212E")
	surface = lipgloss.Color("#16181C")
	muted   = lipgloss.Color("#71767B")
	text    = lipgloss.Color("#E7E9EA")
)

// theme groups the styles of the dashboard
type theme struct {
	logo      lipgloss.Style
	panel     lipgloss.Style
	title     lipgloss.Style
	label     lipgloss.Style
	value     lipgloss.Style
	faint     lipgloss.Style
	active    lipgloss.Style
	done      lipgloss.Style
	failed    lipgloss.Style
	paused    lipgloss.Style
	timestamp lipgloss.Style
	footer    lipgloss.Style
}

var styles = newTheme()

func newTheme() theme {
	return theme{
		logo:      lipgloss.NewStyle().Foreground(accent).Bold(true).Align(lipgloss.Center),
		panel:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Background(surface).Padding(0, 1),
		title:     lipgloss.NewStyle().Background(accent).Foreground(lipgloss.Color("#000000")).Bold(true).Padding(0, 1).MarginBottom(1),
		label:     lipgloss.NewStyle().Foreground(accent).Bold(true),
		value:     lipgloss.NewStyle().Foreground(text),
		faint:     lipgloss.NewStyle().Foreground(muted),
		active:    lipgloss.NewStyle().Foreground(good).Bold(true).PaddingLeft(2),
		done:      lipgloss.NewStyle().Foreground(muted).PaddingLeft(2),
		failed:    lipgloss.NewStyle().Foreground(bad).Bold(true),
		paused:    lipgloss.NewStyle().Foreground(warn).Bold(true),
		timestamp: lipgloss.NewStyle().Foreground(muted),
		footer:    lipgloss.NewStyle().Padding(1, 0, 0, 2),
	}
}

// levelColor maps a log level to its color
func levelColor(level string) lipgloss.Color {
	switch level {
	case "ERROR":
		return bad
	case "WARN":
		return warn
	case "SUCCESS":
		return good
	case "INFO":
		return accent
	default:
		return muted
	}
}

// GetProgressBarStyle colors the target counter as it fills up
func GetProgressBarStyle(percentage float64) lipgloss.Style {
	switch {
	case percentage >= 80:
		return lipgloss.NewStyle().Foreground(good)
	case percentage >= 40:
		return lipgloss.NewStyle().Foreground(caution)
	default:
		return lipgloss.NewStyle().Foreground(accent)
	}
}

// GetRateLimitStyle colors a usage percentage: green, then orange from 70, red from 90
func GetRateLimitStyle(usage float64) lipgloss.Style {
	switch {
	case usage >= 90:
		return lipgloss.NewStyle().Foreground(bad)
	case usage >= 70:
		return lipgloss.NewStyle().Foreground(warn)
	default:
		return lipgloss.NewStyle().Foreground(good)
	}
}
