// Package viewer implements the terminal report-history viewer.
// It polls the privacyd API and renders the saved privacy reports.
package viewer

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/privacycheck/privacycheck/internal/report"
	"github.com/privacycheck/privacycheck/pkg/buildinfo"
)

// Model is the Bubbletea model for the report viewer.
type Model struct {
	apiAddr  string
	interval time.Duration
	viewport viewport.Model
	reports  []report.Report
	selected int
	lastPoll time.Time
	err      error
	width    int
	height   int
	ready    bool
}

// New creates a viewer polling the API at apiAddr (host:port).
func New(apiAddr string, interval time.Duration) Model {
	return Model{
		apiAddr:  apiAddr,
		interval: interval,
	}
}

// pollMsg carries the report history from a poll tick.
type pollMsg struct {
	reports []report.Report
	err     error
}

// tickMsg triggers the next poll.
type tickMsg struct{}

// pollAPI fetches the report history from the daemon.
func pollAPI(addr string) tea.Cmd {
	return func() tea.Msg {
		url := fmt.Sprintf("http://%s/api/v1/reports", addr)
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(url)
		if err != nil {
			return pollMsg{err: fmt.Errorf("connect to %s: %w", addr, err)}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return pollMsg{err: fmt.Errorf("API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
		}

		var reports []report.Report
		if err := json.NewDecoder(resp.Body).Decode(&reports); err != nil {
			return pollMsg{err: fmt.Errorf("decode response: %w", err)}
		}
		return pollMsg{reports: reports}
	}
}

// scheduleTick returns a command that sends a tickMsg after the interval.
func scheduleTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(_ time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Init starts the first poll and schedules the tick loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(pollAPI(m.apiAddr), scheduleTick(m.interval))
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentH := msg.Height - 6 // reserve for header/footer
		if contentH < 5 {
			contentH = 5
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, contentH)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = contentH
		}
		m.viewport.SetContent(m.renderContent())
		return m, nil

	case pollMsg:
		m.lastPoll = time.Now()
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.setReports(msg.reports)
		}
		m.refresh()
		return m, nil

	case tickMsg:
		return m, tea.Batch(pollAPI(m.apiAddr), scheduleTick(m.interval))

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			// Force refresh
			return m, pollAPI(m.apiAddr)
		case "n", "right", "tab":
			m.move(1)
			return m, nil
		case "p", "left", "shift+tab":
			m.move(-1)
			return m, nil
		}
	}

	// Delegate to viewport for scrolling
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// setReports replaces the history, keeping the selection on the same report
// when it is still present.
func (m *Model) setReports(reports []report.Report) {
	var keep string
	if cur := m.current(); cur != nil {
		keep = cur.ID
	}
	m.reports = reports
	m.selected = 0
	for i := range reports {
		if reports[i].ID == keep {
			m.selected = i
			break
		}
	}
}

func (m *Model) move(delta int) {
	if len(m.reports) == 0 {
		return
	}
	m.selected = (m.selected + delta + len(m.reports)) % len(m.reports)
	m.refresh()
	if m.ready {
		m.viewport.GotoTop()
	}
}

func (m *Model) refresh() {
	if m.ready {
		m.viewport.SetContent(m.renderContent())
	}
}

func (m Model) current() *report.Report {
	if m.selected < 0 || m.selected >= len(m.reports) {
		return nil
	}
	return &m.reports[m.selected]
}

// View renders the viewer.
func (m Model) View() string {
	var b strings.Builder

	header := headerStyle.Render(
		titleStyle.Render("privacycheck") +
			dimStyle.Render(" "+buildinfo.Version) +
			dimStyle.Render(" | Report History") +
			m.renderLastUpdate())
	b.WriteString(header)
	b.WriteString("\n")

	if !m.ready {
		b.WriteString("\n  Initializing...\n")
		return b.String()
	}

	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(footerStyle.Render(m.renderFooter()))

	return b.String()
}

func (m Model) renderLastUpdate() string {
	if m.lastPoll.IsZero() {
		return dimStyle.Render(" | Connecting...")
	}
	return dimStyle.Render(fmt.Sprintf(" | Updated %s", m.lastPoll.Format("15:04:05")))
}

func (m Model) renderContent() string {
	var b strings.Builder

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(criticalStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("  Press 'r' to retry | Check that privacyd is running"))
		b.WriteString("\n")
		return b.String()
	}

	if m.lastPoll.IsZero() {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("  Waiting for first poll..."))
		b.WriteString("\n")
		return b.String()
	}

	if len(m.reports) == 0 {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("  No reports yet. Generate one with 'privacycheck report'."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(renderHistoryList(m.reports, m.selected))
	b.WriteString("\n")
	b.WriteString(renderReport(m.reports[m.selected], m.width))
	return b.String()
}

func (m Model) renderFooter() string {
	connStatus := lowStyle.Render("Connected")
	if m.err != nil {
		connStatus = criticalStyle.Render("Disconnected")
	}

	return fmt.Sprintf(" [q] Quit  [r] Refresh  [n/p] Next/Prev report  | Polling every %s | %s to %s",
		m.interval, connStatus, m.apiAddr)
}
