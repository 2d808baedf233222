// Package monitor implements a terminal dashboard for a running tempora
// server.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/tempora/internal/docindex"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
)

// Model is the bubbletea dashboard model.
type Model struct {
	serverURL  string
	interval   time.Duration
	started    time.Time
	lastUpdate time.Time
	stats      docindex.Statistics
	err        error
	quitting   bool

	totalHistory   []float64
	latestHistory  []float64
	expiredHistory []float64

	latestProgress  progress.Model
	expiredProgress progress.Model
}

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard polling serverURL every interval.
func NewModel(serverURL string, interval time.Duration) Model {
	return Model{
		serverURL: serverURL,
		interval:  interval,
		started:   time.Now(),
		latestProgress: progress.New(
			progress.WithGradient("#00ffff", "#00ff00"),
			progress.WithWidth(40),
		),
		expiredProgress: progress.New(
			progress.WithGradient("#00ff00", "#ff0000"),
			progress.WithWidth(40),
		),
		totalHistory:   make([]float64, 0, historySize),
		latestHistory:  make([]float64, 0, historySize),
		expiredHistory: make([]float64, 0, historySize),
	}
}

// expiredBadge grades the share of chunks waiting for cleanup.
func expiredBadge(share float64) string {
	if share < 0.1 {
		return healthyStyle.Render("[✓]")
	} else if share < 0.3 {
		return warningStyle.Render("[⚠]")
	}
	return errorStyle.Render("[✗]")
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()
	return sparklineStyle.Render(spark.View())
}

type tickMsg time.Time
type statsMsg docindex.Statistics
type errMsg struct{ err error }

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchStats(m.serverURL),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchStats(serverURL string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		st, err := NewStatsClient(serverURL).Stats(ctx)
		if err != nil {
			return errMsg{err}
		}
		return statsMsg(*st)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchStats(m.serverURL)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchStats(m.serverURL),
		)

	case statsMsg:
		m.stats = docindex.Statistics(msg)
		m.totalHistory = appendToHistory(m.totalHistory, float64(m.stats.TotalChunks))
		m.latestHistory = appendToHistory(m.latestHistory, float64(m.stats.LatestVersionChunks))
		m.expiredHistory = appendToHistory(m.expiredHistory, float64(m.stats.ExpiredChunks))
		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	header := headerStyle.Render("tempora Index Dashboard")

	var content string
	content += "\n"
	content += errorStyle.Render("⚠ Cannot reach tempora server") + "\n"
	content += "\n"
	content += dimStyle.Render("URL: ") + valueStyle.Render(m.serverURL) + "\n"
	content += dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n"
	content += "\n"
	content += dimStyle.Render("Start one with: tempora serve") + "\n"
	content += "\n"
	content += footerStyle.Render("[q] quit  [r] retry") + "\n"

	return containerStyle.Render(header + "\n" + content)
}

func (m Model) renderDashboard() string {
	var content string

	lastUpdateStr := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("3:04:05 PM")
	}
	watching := FormatDuration(int64(time.Since(m.started).Seconds()))

	st := m.stats
	latestShare := ratio(st.LatestVersionChunks, st.TotalChunks)
	expiredShare := ratio(st.ExpiredChunks, st.TotalChunks)

	content += headerStyle.Render(" tempora Monitor ") + "\n"
	content += fmt.Sprintf("%s   %s   %s   %s",
		expiredBadge(expiredShare),
		dimStyle.Render("Watching:"),
		valueStyle.Render(watching),
		dimStyle.Render(lastUpdateStr)) + "\n"

	content += "\n" + sectionStyle.Render("┃ Chunks") + "\n"
	content += labelStyle.Render("  Total: ") +
		valueStyle.Render(FormatCount(st.TotalChunks)) +
		"   " + createSparkline(m.totalHistory) + "\n"
	content += labelStyle.Render("  Latest: ") +
		valueStyle.Render(FormatCount(st.LatestVersionChunks)) +
		"   " + createSparkline(m.latestHistory) + "\n"
	content += labelStyle.Render("  Current: ") +
		m.latestProgress.ViewAs(latestShare) +
		" " + dimStyle.Render(FormatPercentage(latestShare)) + "\n"

	content += "\n" + sectionStyle.Render("┃ Expiry") + "\n"
	content += labelStyle.Render("  Expired: ") +
		valueStyle.Render(FormatCount(st.ExpiredChunks)) +
		"   " + createSparkline(m.expiredHistory) + "\n"
	content += labelStyle.Render("  Pending cleanup: ") +
		m.expiredProgress.ViewAs(expiredShare) +
		" " + dimStyle.Render(FormatPercentage(expiredShare)) + "\n"

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))
	content += "\n" + footer

	return containerStyle.Render(content)
}

// Run starts the dashboard and blocks until the user quits.
func Run(serverURL string, interval time.Duration) error {
	_, err := tea.NewProgram(NewModel(serverURL, interval), tea.WithAltScreen()).Run()
	return err
}
