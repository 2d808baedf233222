package monitor

import (
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

const testURL = "http://localhost:9191"

func TestNewModel(t *testing.T) {
	model := NewModel(testURL, 5*time.Second)
	assert.Equal(t, testURL, model.serverURL)
	assert.Equal(t, 5*time.Second, model.interval)
	assert.False(t, model.quitting)
}

func TestModel_Init(t *testing.T) {
	model := NewModel(testURL, 5*time.Second)
	assert.NotNil(t, model.Init())
}

func TestModel_Update_QuitKey(t *testing.T) {
	model := NewModel(testURL, 5*time.Second)

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	assert.True(t, updated.(Model).quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, updated.View())
}

func TestModel_Update_RefreshKey(t *testing.T) {
	model := NewModel(testURL, 5*time.Second)

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})

	assert.False(t, updated.(Model).quitting)
	assert.NotNil(t, cmd)
}

func TestModel_Update_TickMsg(t *testing.T) {
	model := NewModel(testURL, 5*time.Second)

	_, cmd := model.Update(tickMsg(time.Now()))
	assert.NotNil(t, cmd)
}

func TestModel_Update_StatsMsg(t *testing.T) {
	model := NewModel(testURL, 5*time.Second)
	model.err = fmt.Errorf("stale")

	updated, cmd := model.Update(statsMsg{TotalChunks: 10, LatestVersionChunks: 6, ExpiredChunks: 2})
	m := updated.(Model)

	assert.Nil(t, cmd)
	assert.Nil(t, m.err)
	assert.Equal(t, 10, m.stats.TotalChunks)
	assert.Equal(t, []float64{10}, m.totalHistory)
	assert.Equal(t, []float64{6}, m.latestHistory)
	assert.Equal(t, []float64{2}, m.expiredHistory)
	assert.False(t, m.lastUpdate.IsZero())
}

func TestModel_HistoryIsBounded(t *testing.T) {
	var m tea.Model = NewModel(testURL, time.Second)
	for i := 0; i < historySize+5; i++ {
		m, _ = m.Update(statsMsg{TotalChunks: i})
	}
	h := m.(Model).totalHistory
	assert.Len(t, h, historySize)
	assert.Equal(t, float64(historySize+4), h[len(h)-1])
}

func TestModel_Update_ErrMsg(t *testing.T) {
	model := NewModel(testURL, 5*time.Second)

	updated, cmd := model.Update(errMsg{fmt.Errorf("connection refused")})
	m := updated.(Model)

	assert.Nil(t, cmd)
	assert.ErrorContains(t, m.err, "connection refused")
}

func TestModel_View_WithStats(t *testing.T) {
	model := NewModel(testURL, 5*time.Second)
	updated, _ := model.Update(statsMsg{TotalChunks: 12_345, LatestVersionChunks: 40, ExpiredChunks: 7})
	m := updated.(Model)
	m.lastUpdate = time.Date(2024, 1, 1, 12, 34, 56, 0, time.UTC)

	view := m.View()

	assert.Contains(t, view, "tempora Monitor")
	assert.Contains(t, view, "12:34:56")
	assert.Contains(t, view, "Chunks")
	assert.Contains(t, view, "12.3k")
	assert.Contains(t, view, "40")
	assert.Contains(t, view, "Expiry")
	assert.Contains(t, view, "[q]")
	assert.Contains(t, view, "[r]")
}

func TestModel_View_WithError(t *testing.T) {
	model := NewModel(testURL, 5*time.Second)
	model.err = fmt.Errorf("connection refused")

	view := model.View()

	assert.Contains(t, view, "Cannot reach tempora server")
	assert.Contains(t, view, "connection refused")
	assert.Contains(t, view, testURL)
}

func TestModel_View_NoData(t *testing.T) {
	view := NewModel(testURL, 5*time.Second).View()

	assert.Contains(t, view, "tempora Monitor")
	assert.Contains(t, view, "no data")
}

func TestExpiredBadge(t *testing.T) {
	assert.Contains(t, expiredBadge(0), "✓")
	assert.Contains(t, expiredBadge(0.2), "⚠")
	assert.Contains(t, expiredBadge(0.5), "✗")
}
