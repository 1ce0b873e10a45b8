package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI runs the dashboard program and forwards scrape events to it.
// It satisfies ui.TUI; every method is safe to call from any goroutine.
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI builds a dashboard for subject; see NewModel for target and ceiling
func NewTUI(subject string, target, ceiling int, opts ...tea.ProgramOption) *TUI {
	model := NewModel(subject, target, ceiling)
	return &TUI{
		model:   model,
		program: tea.NewProgram(model, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...),
	}
}

// Start blocks until Stop is called or the user quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

func (t *TUI) Stop() { t.program.Quit() }

// IsPaused reports whether scrolling is paused from the keyboard
func (t *TUI) IsPaused() bool { return t.model.Paused() }

func (t *TUI) send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TUI) UpdateCollection(_ string, iteration, collected, sinceLastNew int) {
	t.send(CollectionMsg{Iteration: iteration, Collected: collected, SinceLastNew: sinceLastNew})
}

func (t *TUI) StartDownload(id, subject, filename string) {
	t.send(DownloadStartMsg{ID: id, Subject: subject, Filename: filename})
}

func (t *TUI) CompleteDownload(id string, size int64) {
	t.send(DownloadCompleteMsg{ID: id, Size: size})
}

func (t *TUI) FailDownload(id string, err error) {
	t.send(DownloadErrorMsg{ID: id, Error: err})
}

func (t *TUI) UpdateRateLimit(used, max int, resetAt time.Time) {
	t.send(RateLimitUpdateMsg{Used: used, Max: max, ResetAt: resetAt})
}

func (t *TUI) logf(level, format string, args []interface{}) {
	t.send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (t *TUI) LogInfo(format string, args ...interface{})    { t.logf("INFO", format, args) }
func (t *TUI) LogSuccess(format string, args ...interface{}) { t.logf("SUCCESS", format, args) }
func (t *TUI) LogWarning(format string, args ...interface{}) { t.logf("WARN", format, args) }
func (t *TUI) LogError(format string, args ...interface{})   { t.logf("ERROR", format, args) }
