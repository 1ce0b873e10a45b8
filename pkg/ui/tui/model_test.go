package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xscraper/pkg/ui"
)

var _ ui.TUI = (*TUI)(nil)

func TestModelDownloads(t *testing.T) {
	model := NewModel("posts:jack", 0, 3)

	model.StartDownload("a", "posts:jack", "1001_0.jpg")
	model.StartDownload("b", "posts:jack", "1001_1.jpg")
	model.StartDownload("a", "posts:jack", "1001_0.jpg")

	assert.Len(t, model.GetActiveDownloads(), 2)

	model.CompleteDownload("a", 2048)
	model.FailDownload("b", errors.New("timeout"))
	model.CompleteDownload("b", 10)

	assert.Empty(t, model.GetActiveDownloads())
	assert.Len(t, model.GetCompletedDownloads(), 1)
	assert.Len(t, model.GetFailedDownloads(), 1)
	assert.Equal(t, 1, model.totalDownloaded)
	assert.Equal(t, int64(2048), model.totalSize)
	assert.Equal(t, 0, model.activeCount)
}

func TestModelCollectionProgress(t *testing.T) {
	model := NewModel("followers:jack", 10, 3)
	model.UpdateCollection(4, 5, 1)

	c := model.Collection()
	assert.Equal(t, 4, c.Iteration)
	assert.Equal(t, 5, c.Collected)
	assert.Equal(t, 1, c.SinceLastNew)
	assert.InDelta(t, 0.5, c.Progress(), 1e-9)

	model.UpdateCollection(9, 25, 0)
	assert.InDelta(t, 1.0, model.Collection().Progress(), 1e-9)

	unbounded := NewModel("followers:jack", 0, 3)
	assert.Equal(t, -1.0, unbounded.Collection().Progress())
}

func TestModelLogTrimming(t *testing.T) {
	model := NewModel("x", 0, 3)
	for i := 0; i < 60; i++ {
		model.AddLogMessage("INFO", "line")
	}
	assert.Len(t, model.logMessages, 50)
}

func TestUpdateMessages(t *testing.T) {
	model := NewModel("posts:jack", 0, 3)

	model.Update(CollectionMsg{Iteration: 2, Collected: 7})
	model.Update(DownloadStartMsg{ID: "a", Filename: "a.jpg"})
	model.Update(DownloadErrorMsg{ID: "a", Error: errors.New("boom")})
	model.Update(RateLimitUpdateMsg{Used: 5, Max: 60, ResetAt: time.Now().Add(time.Minute)})

	assert.Equal(t, 7, model.Collection().Collected)
	assert.Len(t, model.GetFailedDownloads(), 1)
	assert.Equal(t, 5, model.rateLimitUsed)
	require.NotEmpty(t, model.logMessages)
	assert.Equal(t, "ERROR", model.logMessages[len(model.logMessages)-1].Level)
}

func TestPauseKey(t *testing.T) {
	model := NewModel("x", 0, 3)

	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	assert.True(t, model.Paused())

	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	assert.False(t, model.Paused())
}

func TestViewRenders(t *testing.T) {
	model := NewModel("followers:jack", 10, 3)
	assert.Equal(t, "Initializing...", model.View())

	model.Update(tea.WindowSizeMsg{Width: 140, Height: 50})
	model.UpdateCollection(3, 4, 2)
	model.StartDownload("a", "followers:jack", "avatar.jpg")

	out := model.View()
	assert.True(t, strings.Contains(out, "followers:jack"))
	assert.True(t, strings.Contains(out, "avatar.jpg"))
	assert.True(t, strings.Contains(out, "2/3"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:45", formatDuration(45*time.Second))
	assert.Equal(t, "01:02:03", formatDuration(time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "00:00", formatDuration(-time.Second))
}

func TestHelpAndClearKeys(t *testing.T) {
	model := NewModel("x", 0, 3)
	model.AddLogMessage("INFO", "hello")

	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.True(t, model.help.ShowAll)

	model.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Empty(t, model.logMessages)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
