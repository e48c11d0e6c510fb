package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/agentboard/internal/benchmark"
	"github.com/ShayCichocki/agentboard/internal/execution"
)

// StatusMsg carries a new progress snapshot.
type StatusMsg struct {
	Snapshot execution.Snapshot
}

// DoneMsg signals that the run has finished.
type DoneMsg struct {
	Report *benchmark.Report
	Err    error
}

// App is the bubbletea model for a single benchmark run.
type App struct {
	header      *Header
	agents      *AgentsTable
	leaderboard *LeaderboardView
	spinner     spinner.Model

	snapshot execution.Snapshot
	report   *benchmark.Report
	err      error
	done     bool
	quitting bool
	width    int
	height   int

	// Styles
	phaseStyle lipgloss.Style
	errorStyle lipgloss.Style
	doneStyle  lipgloss.Style
	hintStyle  lipgloss.Style
}

// NewApp creates an App for prompt.
func NewApp(prompt string) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &App{
		header:      NewHeader(prompt),
		agents:      NewAgentsTable(),
		leaderboard: NewLeaderboardView(),
		spinner:     s,

		phaseStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			a.quitting = true
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.header.SetWidth(msg.Width)
		a.agents.SetWidth(msg.Width)
		a.leaderboard.SetWidth(msg.Width)

	case spinner.TickMsg:
		if a.done {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case StatusMsg:
		a.snapshot = msg.Snapshot
		a.agents.SetSnapshot(msg.Snapshot)

	case DoneMsg:
		a.done = true
		a.report = msg.Report
		a.err = msg.Err
		a.leaderboard.SetReport(msg.Report)
	}

	return a, nil
}

// View implements tea.Model.
func (a *App) View() string {
	if a.Detached() {
		return "Waiting for the running agents to finish...\n"
	}

	var b strings.Builder
	b.WriteString(a.header.View())
	b.WriteString("\n")

	if !a.done {
		phase := "Running agents"
		if a.snapshot.AllTerminal {
			phase = "Evaluating results"
		}
		b.WriteString(a.spinner.View() + " " + a.phaseStyle.Render(phase))
		b.WriteString("\n\n")
		b.WriteString(a.agents.View())
		b.WriteString("\n\n")
		b.WriteString(a.hintStyle.Render("Press q to close this view; the run continues"))
		b.WriteString("\n")
		return b.String()
	}

	if a.err != nil {
		b.WriteString(a.errorStyle.Render(fmt.Sprintf("Error: %v", a.err)))
		b.WriteString("\n\n")
	}
	if a.report != nil {
		b.WriteString(a.phaseStyle.Render("Leaderboard"))
		if a.report.TaskID != 0 {
			b.WriteString(a.hintStyle.Render(fmt.Sprintf("  task %d", a.report.TaskID)))
		}
		b.WriteString(a.hintStyle.Render(fmt.Sprintf("  %s", a.report.Duration().Round(100*time.Millisecond))))
		b.WriteString("\n\n")
		b.WriteString(a.leaderboard.View())
		b.WriteString("\n")
	}
	b.WriteString(a.doneStyle.Render("Benchmark complete! Press q to exit."))
	b.WriteString("\n")
	return b.String()
}

// Done reports whether the run has finished.
func (a *App) Done() bool {
	return a.done
}

// Detached reports whether the user closed the view before the run
// finished.
func (a *App) Detached() bool {
	return a.quitting && !a.done
}

// Report returns the final report and error, once Done.
func (a *App) Report() (*benchmark.Report, error) {
	return a.report, a.err
}
