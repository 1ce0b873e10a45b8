package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// CollectionMsg is sent after every collector iteration
type CollectionMsg struct {
	Iteration    int
	Collected    int
	SinceLastNew int
}

// DownloadStartMsg is sent when a media download starts
type DownloadStartMsg struct {
	ID       string
	Subject  string
	Filename string
}

// DownloadCompleteMsg carries the size of a saved file
type DownloadCompleteMsg struct {
	ID   string
	Size int64
}

// DownloadErrorMsg is sent when a download fails
type DownloadErrorMsg struct {
	ID    string
	Error error
}

// RateLimitUpdateMsg reports download budget usage
type RateLimitUpdateMsg struct {
	Used    int
	Max     int
	ResetAt time.Time
}

// LogMsg appends a line to the log panel
type LogMsg struct {
	Level   string
	Message string
}

type tickMsg time.Time

const refreshInterval = 250 * time.Millisecond

// keyMap is the dashboard's bindings; it satisfies help.KeyMap
type keyMap struct {
	Quit  key.Binding
	Pause key.Binding
	Clear key.Binding
	Help  key.Binding
}

var keys = keyMap{
	Quit:  key.NewBinding(key.WithKeys("q", "Q", "ctrl+c"), key.WithHelp("q", "stop run (checkpoint kept)")),
	Pause: key.NewBinding(key.WithKeys("p", "P", " "), key.WithHelp("p", "pause/resume scrolling")),
	Clear: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear log")),
	Help:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Pause, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit, k.Pause}, {k.Clear, k.Help}}
}

// Update applies one message to the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.mu.Unlock()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		return m, tick()

	case CollectionMsg:
		m.UpdateCollection(msg.Iteration, msg.Collected, msg.SinceLastNew)

	case DownloadStartMsg:
		m.StartDownload(msg.ID, msg.Subject, msg.Filename)

	case DownloadCompleteMsg:
		m.CompleteDownload(msg.ID, msg.Size)

	case DownloadErrorMsg:
		m.FailDownload(msg.ID, msg.Error)
		if msg.Error != nil {
			m.AddLogMessage("ERROR", msg.ID+": "+msg.Error.Error())
		}

	case RateLimitUpdateMsg:
		m.UpdateRateLimit(msg.Used, msg.Max, msg.ResetAt)

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit

	case key.Matches(msg, keys.Pause):
		if m.togglePause() {
			m.AddLogMessage("WARN", "Scrolling paused")
		} else {
			m.AddLogMessage("INFO", "Scrolling resumed")
		}

	case key.Matches(msg, keys.Help):
		m.mu.Lock()
		m.help.ShowAll = !m.help.ShowAll
		m.mu.Unlock()

	case key.Matches(msg, keys.Clear):
		m.mu.Lock()
		m.logMessages = nil
		m.mu.Unlock()
	}
	return nil
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
