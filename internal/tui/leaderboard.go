package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/agentboard/internal/benchmark"
	"github.com/ShayCichocki/agentboard/internal/report"
	"github.com/ShayCichocki/agentboard/internal/state"
	"github.com/ShayCichocki/agentboard/internal/trace"
	"github.com/ShayCichocki/agentboard/pkg/models"
)

// Line limits for the winner's answer and tool-call tree.
const (
	maxAnswerLines   = 6
	maxToolCallLines = 12
)

// LeaderboardView renders the ranked outcome of a finished run.
type LeaderboardView struct {
	report *benchmark.Report
	width  int

	headerStyle  lipgloss.Style
	cellStyle    lipgloss.Style
	passStyle    lipgloss.Style
	failStyle    lipgloss.Style
	mutedStyle   lipgloss.Style
	winnerStyle  lipgloss.Style
	warningStyle lipgloss.Style
}

// NewLeaderboardView creates an empty LeaderboardView.
func NewLeaderboardView() *LeaderboardView {
	return &LeaderboardView{
		width: 80,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")),

		cellStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		passStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),

		failStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		mutedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		winnerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),

		warningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
	}
}

// SetReport sets the report to render.
func (v *LeaderboardView) SetReport(r *benchmark.Report) {
	v.report = r
}

// SetWidth sets the view width.
func (v *LeaderboardView) SetWidth(width int) {
	v.width = width
}

var leaderboardColumns = []struct {
	title string
	width int
}{
	{"Rank", 6},
	{"Agent", 32},
	{"Score", 7},
	{"Grade", 7},
	{"Duration", 10},
	{"Tokens", 9},
	{"Tools", 7},
	{"Status", 11},
}

// View renders the leaderboard, the winner and any warnings.
func (v *LeaderboardView) View() string {
	if v.report == nil {
		return v.mutedStyle.Render("No results.")
	}

	var b strings.Builder

	header := make([]string, len(leaderboardColumns))
	for i, c := range leaderboardColumns {
		header[i] = lipgloss.NewStyle().Width(c.width).Render(c.title)
	}
	b.WriteString(v.headerStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, header...)))
	b.WriteString("\n")

	if len(v.report.Leaderboard) == 0 {
		b.WriteString(v.mutedStyle.Render("  no executions recorded"))
		b.WriteString("\n")
	}
	for _, e := range v.report.Leaderboard {
		b.WriteString(v.renderRow(e))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if w, ok := v.report.Winner(); ok {
		b.WriteString(v.winnerStyle.Render(fmt.Sprintf("Winner: %s (%d/100)", w.Execution.Ref(), w.Score())))
		b.WriteString("\n")
		b.WriteString(v.renderDetail(w))
	} else {
		b.WriteString(v.mutedStyle.Render("No execution was evaluated."))
	}
	b.WriteString("\n")

	for _, err := range v.report.EvaluationErrors {
		b.WriteString(v.warningStyle.Render("! " + err.Error()))
		b.WriteString("\n")
	}
	if v.report.Degraded {
		b.WriteString(v.warningStyle.Render("Results were not fully persisted:"))
		b.WriteString("\n")
		for _, w := range v.report.Warnings {
			b.WriteString(v.mutedStyle.Render("  - " + w))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (v *LeaderboardView) renderRow(e state.LeaderboardEntry) string {
	score, grade := "-", "-"
	scoreStyle := v.mutedStyle
	if e.Evaluation != nil {
		score = strconv.Itoa(e.Evaluation.Score)
		grade = models.Grade(e.Evaluation.Score)
		scoreStyle = v.failStyle
		if models.IsPassing(e.Evaluation.Score) {
			scoreStyle = v.passStyle
		}
	}

	cells := []string{
		v.cellStyle.Render(strconv.Itoa(e.Rank)),
		v.cellStyle.Render(state.TruncatePrompt(e.Execution.Ref().String(), leaderboardColumns[1].width-1)),
		scoreStyle.Render(score),
		scoreStyle.Render(grade),
		v.cellStyle.Render(formatSeconds(e.Execution.DurationSeconds)),
		v.cellStyle.Render(formatTokens(e.Execution.TokenCount)),
		v.cellStyle.Render(strconv.Itoa(report.ToolCallCount(e.ToolCalls))),
		v.cellStyle.Render(string(e.Execution.Status)),
	}
	for i, c := range cells {
		cells[i] = lipgloss.NewStyle().Width(leaderboardColumns[i].width).Render(c)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

// renderDetail shows an entry's answer and tool-call tree, clipped to the
// line limits.
func (v *LeaderboardView) renderDetail(e state.LeaderboardEntry) string {
	var b strings.Builder
	b.WriteString(v.cellStyle.Bold(true).Render("Answer"))
	b.WriteString("\n")
	b.WriteString(v.clip(e.Answer, "(no answer)", maxAnswerLines))
	b.WriteString(v.cellStyle.Bold(true).Render("Tool calls"))
	b.WriteString("\n")
	b.WriteString(v.clip(trace.Render(e.ToolCalls), "(none)", maxToolCallLines))
	return b.String()
}

func (v *LeaderboardView) clip(text, empty string, maxLines int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return v.mutedStyle.Render("  "+empty) + "\n"
	}
	lines := strings.Split(text, "\n")
	more := 0
	if len(lines) > maxLines {
		more = len(lines) - maxLines
		lines = lines[:maxLines]
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(v.cellStyle.Render(state.TruncatePrompt("  "+l, max(v.width, 20))))
		b.WriteString("\n")
	}
	if more > 0 {
		b.WriteString(v.mutedStyle.Render(fmt.Sprintf("  ... %d more lines", more)))
		b.WriteString("\n")
	}
	return b.String()
}

func formatSeconds(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.2fs", *s)
}

func formatTokens(t *int64) string {
	if t == nil {
		return "-"
	}
	return strconv.FormatInt(*t, 10)
}
