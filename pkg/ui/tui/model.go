package tui

import (
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DownloadState represents the state of a media download
type DownloadState int

const (
	DownloadActive DownloadState = iota
	DownloadCompleted
	DownloadFailed
)

// DownloadItem represents a single media download
type DownloadItem struct {
	ID        string
	Subject   string
	Filename  string
	Size      int64
	State     DownloadState
	StartTime time.Time
	Error     error
}

// Collection is the state of the running scroll-and-extract loop
type Collection struct {
	Subject      string
	Target       int
	Iteration    int
	Collected    int
	SinceLastNew int
	UpdatedAt    time.Time
}

// Progress returns the fraction of the target collected, or -1 without a target
func (c Collection) Progress() float64 {
	if c.Target <= 0 {
		return -1
	}
	p := float64(c.Collected) / float64(c.Target)
	if p > 1 {
		p = 1
	}
	return p
}

// Model represents the TUI model
type Model struct {
	spinner     spinner.Model
	progressBar progress.Model
	help        help.Model

	collection Collection
	ceiling    int

	downloads     map[string]*DownloadItem
	downloadOrder []string
	activeCount   int

	totalDownloaded  int
	totalFailed      int
	totalSize        int64
	sessionStartTime time.Time

	rateLimitMax     int
	rateLimitUsed    int
	rateLimitResetAt time.Time

	width          int
	height         int
	isPaused       bool
	logMessages    []LogMessage
	maxLogMessages int

	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a model for subject. target is 0 when collecting until
// stable; ceiling is the number of idle pages that ends the run.
func NewModel(subject string, target, ceiling int) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return &Model{
		spinner:          s,
		progressBar:      bar,
		help:             newHelp(),
		collection:       Collection{Subject: subject, Target: target},
		ceiling:          ceiling,
		downloads:        make(map[string]*DownloadItem),
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

// UpdateCollection records one collector iteration
func (m *Model) UpdateCollection(iteration, collected, sinceLastNew int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.collection.Iteration = iteration
	m.collection.Collected = collected
	m.collection.SinceLastNew = sinceLastNew
	m.collection.UpdatedAt = time.Now()
}

// Collection returns a copy of the collection state
func (m *Model) Collection() Collection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collection
}

// StartDownload adds an active download
func (m *Model) StartDownload(id, subject, filename string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.downloads[id]; exists {
		return
	}
	m.downloads[id] = &DownloadItem{
		ID:        id,
		Subject:   subject,
		Filename:  filename,
		State:     DownloadActive,
		StartTime: time.Now(),
	}
	m.downloadOrder = append(m.downloadOrder, id)
	m.activeCount++
}

// CompleteDownload marks a download as completed
func (m *Model) CompleteDownload(id string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if download, ok := m.downloads[id]; ok && download.State == DownloadActive {
		download.State = DownloadCompleted
		download.Size = size
		m.activeCount--
		m.totalDownloaded++
		m.totalSize += size
	}
}

// FailDownload marks a download as failed
func (m *Model) FailDownload(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if download, ok := m.downloads[id]; ok && download.State == DownloadActive {
		download.State = DownloadFailed
		download.Error = err
		m.activeCount--
		m.totalFailed++
	}
}

// UpdateRateLimit updates the rate limit status
func (m *Model) UpdateRateLimit(used, max int, resetAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rateLimitUsed = used
	m.rateLimitMax = max
	m.rateLimitResetAt = resetAt
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   levelColor(level),
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Paused reports whether the user paused the run
func (m *Model) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

func (m *Model) togglePause() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isPaused = !m.isPaused
	return m.isPaused
}

// downloadsIn returns the downloads in state, in start order. Callers hold mu.
func (m *Model) downloadsIn(state DownloadState) []*DownloadItem {
	var out []*DownloadItem
	for _, id := range m.downloadOrder {
		if d := m.downloads[id]; d != nil && d.State == state {
			out = append(out, d)
		}
	}
	return out
}

// GetActiveDownloads returns the running downloads
func (m *Model) GetActiveDownloads() []*DownloadItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.downloadsIn(DownloadActive)
}

// GetCompletedDownloads returns the finished downloads
func (m *Model) GetCompletedDownloads() []*DownloadItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.downloadsIn(DownloadCompleted)
}

// GetFailedDownloads returns the failed downloads
func (m *Model) GetFailedDownloads() []*DownloadItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.downloadsIn(DownloadFailed)
}

// Rate returns records collected per minute
func (m *Model) Rate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.sessionStartTime).Minutes()
	if elapsed <= 0 {
		return 0
	}
	return float64(m.collection.Collected) / elapsed
}
