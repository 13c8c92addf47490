// Package tui renders a live view of one node's gossiped membership —
// who it considers live, unreachable or quarantined, each endpoint's
// phi-accrual suspicion level, and the dynamic snitch's proximity score.
// Adapted from the teacher's cmd/interactive.go, which managed local
// child processes; a real gossip node doesn't spawn peers in-process, so
// this model shows gossiped state instead of a process table.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gossipdb/internal/management"
	"gossipdb/internal/membership"
	"gossipdb/internal/obslog"
)

const refreshInterval = 500 * time.Millisecond

// row is one endpoint's display-ready state, recomputed on every
// refreshTick from the management accessors.
type row struct {
	endpoint   membership.Endpoint
	status     string
	generation int64
	score      float64
	downtime   time.Duration
}

type model struct {
	local     membership.Endpoint
	accessors *management.Accessors
	logs      *obslog.RingBuffer

	rows []row
	err  error

	width, height int
}

// newModel builds the initial TUI model for the node identified by
// local, reading live state from accessors and recent log lines from
// logs.
func newModel(local membership.Endpoint, accessors *management.Accessors, logs *obslog.RingBuffer) model {
	return model{local: local, accessors: accessors, logs: logs}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(refreshTick(), fetchRows(m.accessors))
}

type refreshTickMsg struct{}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshTickMsg{} })
}

type rowsUpdatedMsg struct {
	rows []row
	err  error
}

func fetchRows(accessors *management.Accessors) tea.Cmd {
	return func() tea.Msg {
		states := accessors.AllEndpointStates()
		simple := accessors.SimpleStates()
		scores := accessors.Scores()

		rows := make([]row, 0, len(states))
		for ep := range states {
			gen, _ := accessors.CurrentGeneration(ep)
			rows = append(rows, row{
				endpoint:   ep,
				status:     simple[ep.String()],
				generation: gen,
				score:      scores[ep.String()],
				downtime:   accessors.EndpointDowntime(ep),
			})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].endpoint.String() < rows[j].endpoint.String() })
		return rowsUpdatedMsg{rows: rows}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case refreshTickMsg:
		return m, tea.Batch(refreshTick(), fetchRows(m.accessors))

	case rowsUpdatedMsg:
		m.rows, m.err = msg.rows, msg.err
		return m, nil
	}
	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).Padding(1, 2)
	upStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	downStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func (m model) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render(fmt.Sprintf("gossipdb — %s", m.local.String())))
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(downStyle.Render(fmt.Sprintf("error: %v", m.err)))
		s.WriteString("\n\n")
	}

	var body strings.Builder
	body.WriteString(fmt.Sprintf("%-22s %-6s %-6s %8s %10s\n", "ENDPOINT", "STATUS", "GEN", "SCORE", "DOWNTIME"))
	for _, r := range m.rows {
		statusText := r.status
		if statusText == "UP" {
			statusText = upStyle.Render(statusText)
		} else {
			statusText = downStyle.Render(statusText)
		}
		local := ""
		if r.endpoint == m.local {
			local = " (local)"
		}
		body.WriteString(fmt.Sprintf("%-22s %-15s %-6d %8.3f %10s%s\n",
			r.endpoint.String(), statusText, r.generation, r.score, r.downtime.Round(time.Second), local))
	}
	if len(m.rows) == 0 {
		body.WriteString("(no known endpoints yet)\n")
	}
	s.WriteString(boxStyle.Render(body.String()))
	s.WriteString("\n\n")

	if m.logs != nil {
		var logBody strings.Builder
		for _, entry := range m.logs.Recent(15) {
			logBody.WriteString(entry.Message)
			logBody.WriteString("\n")
		}
		if logBody.Len() == 0 {
			logBody.WriteString("(no logs yet)\n")
		}
		s.WriteString(boxStyle.Render("Logs:\n" + logBody.String()))
		s.WriteString("\n\n")
	}

	s.WriteString(dimStyle.Render("Q to quit"))
	return s.String()
}

// Run starts the bubbletea program and blocks until the user quits.
func Run(local membership.Endpoint, accessors *management.Accessors, logs *obslog.RingBuffer) error {
	_, err := tea.NewProgram(newModel(local, accessors, logs)).Run()
	return err
}
