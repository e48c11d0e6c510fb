package tui

import (
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/agentboard/internal/execution"
	"github.com/ShayCichocki/agentboard/pkg/models"
)

// AgentsTable shows the live status of every task agent in a run.
type AgentsTable struct {
	table    table.Model
	snapshot execution.Snapshot
	width    int

	summaryStyle lipgloss.Style
	runningStyle lipgloss.Style
	doneStyle    lipgloss.Style
	failedStyle  lipgloss.Style
}

// NewAgentsTable creates an empty AgentsTable.
func NewAgentsTable() *AgentsTable {
	t := table.New(
		table.WithColumns(agentColumns(80)),
		table.WithFocused(false),
		table.WithHeight(1),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("238")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = lipgloss.NewStyle()
	t.SetStyles(styles)

	return &AgentsTable{
		table: t,
		width: 80,

		summaryStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),

		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		failedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
	}
}

func agentColumns(width int) []table.Column {
	fixed := 4 + 12 + 10
	agent := 32
	errWidth := width - fixed - agent - 10
	if errWidth < 12 {
		errWidth = 12
	}
	return []table.Column{
		{Title: "#", Width: 4},
		{Title: "Agent", Width: agent},
		{Title: "Status", Width: 12},
		{Title: "Elapsed", Width: 10},
		{Title: "Error", Width: errWidth},
	}
}

// SetWidth resizes the table columns.
func (a *AgentsTable) SetWidth(width int) {
	a.width = width
	a.table.SetColumns(agentColumns(width))
	a.table.SetWidth(width)
}

// SetSnapshot replaces the displayed rows.
func (a *AgentsTable) SetSnapshot(s execution.Snapshot) {
	a.snapshot = s
	rows := make([]table.Row, 0, len(s.Agents))
	for _, ag := range s.Agents {
		rows = append(rows, table.Row{
			strconv.Itoa(ag.Index + 1),
			ag.Agent.String(),
			statusLabel(ag.Status),
			formatElapsed(ag.Elapsed),
			ag.Error,
		})
	}
	a.table.SetRows(rows)
	a.table.SetHeight(len(rows) + 2)
}

// View renders the table followed by a one-line summary.
func (a *AgentsTable) View() string {
	if len(a.snapshot.Agents) == 0 {
		return a.summaryStyle.Render("Waiting for agents to start...")
	}
	s := a.snapshot
	summary := a.runningStyle.Render(strconv.Itoa(s.Running)+" running") + "  " +
		a.doneStyle.Render(strconv.Itoa(s.Completed)+" completed") + "  " +
		a.failedStyle.Render(strconv.Itoa(s.FailedOrTimedOut())+" failed")
	return lipgloss.JoinVertical(lipgloss.Left, a.table.View(), "", summary)
}

// statusLabel returns a plain-text label; table cells are truncated by
// width so they cannot carry ANSI styling.
func statusLabel(s models.ExecutionStatus) string {
	switch s {
	case models.ExecutionRunning:
		return "● running"
	case models.ExecutionCompleted:
		return "✓ completed"
	case models.ExecutionFailed:
		return "✗ failed"
	case models.ExecutionTimeout:
		return "⏱ timeout"
	default:
		return "pending"
	}
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Minute {
		return d.Round(100 * time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
