// Package report renders leaderboards, history and performance metrics for
// the command line.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/agentboard/internal/benchmark"
	"github.com/ShayCichocki/agentboard/internal/state"
	"github.com/ShayCichocki/agentboard/internal/trace"
	"github.com/ShayCichocki/agentboard/pkg/models"
)

// Format selects an output encoding.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a --format value. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML, FormatMarkdown:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (table, markdown, json, yaml)", s)
	}
}

// WriteLeaderboard renders ranked entries.
func WriteLeaderboard(w io.Writer, format Format, entries []state.LeaderboardEntry) error {
	if entries == nil {
		entries = []state.LeaderboardEntry{}
	}
	switch format {
	case FormatJSON:
		return writeJSON(w, entries)
	case FormatYAML:
		return writeYAML(w, entries)
	case FormatMarkdown:
		return writeLeaderboardMarkdown(w, entries)
	default:
		return writeLeaderboardTable(w, entries)
	}
}

// WriteRun renders the outcome of a benchmark run: the leaderboard followed
// by the winner and any warnings. Structured formats encode the whole report.
func WriteRun(w io.Writer, format Format, r *benchmark.Report) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatYAML:
		return writeYAML(w, r)
	}

	if err := WriteLeaderboard(w, format, r.Leaderboard); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if winner, ok := r.Winner(); ok {
		fmt.Fprintf(w, "%s %s scored %d/100 (%s)\n",
			color.GreenString("Winner:"), winner.Execution.Ref(), winner.Score(), models.Grade(winner.Score()))
	} else {
		fmt.Fprintln(w, color.YellowString("No execution was evaluated."))
	}
	if r.TaskID != 0 {
		fmt.Fprintf(w, "Task %d finished in %s\n", r.TaskID, r.Duration().Round(100*time.Millisecond))
	}
	if u := r.EvaluationUsage; u != nil {
		fmt.Fprintf(w, "Evaluation agent used %d tokens in %d calls\n", u.Total(), u.Calls)
	}
	for _, err := range r.EvaluationErrors {
		fmt.Fprintf(w, "%s %v\n", color.YellowString("!"), err)
	}
	if r.Degraded {
		fmt.Fprintln(w, color.YellowString("Results were not fully persisted:"))
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  - %s\n", warn)
		}
	}
	return nil
}

// WriteHistory renders previously submitted tasks.
func WriteHistory(w io.Writer, format Format, tasks []state.TaskSummary) error {
	if tasks == nil {
		tasks = []state.TaskSummary{}
	}
	switch format {
	case FormatJSON:
		return writeJSON(w, tasks)
	case FormatYAML:
		return writeYAML(w, tasks)
	case FormatMarkdown:
		fmt.Fprintln(w, "| ID | Submitted | Prompt | Executions | Best |")
		fmt.Fprintln(w, "|---|---|---|---|---|")
		for _, t := range tasks {
			fmt.Fprintf(w, "| %d | %s | %s | %d | %s |\n",
				t.ID, t.SubmittedAt.Local().Format("2006-01-02 15:04"), escapeMarkdown(t.DisplayPrompt()),
				t.ExecutionCount, optionalScore(t.HighestScore))
		}
		return nil
	}

	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks yet. Run 'agentboard run <prompt>' to start.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSUBMITTED\tPROMPT\tEXECUTIONS\tBEST")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
			t.ID, t.SubmittedAt.Local().Format("2006-01-02 15:04"), t.DisplayPrompt(),
			t.ExecutionCount, optionalScore(t.HighestScore))
	}
	return tw.Flush()
}

// WritePerformance renders per-model aggregates.
func WritePerformance(w io.Writer, format Format, metrics []state.PerformanceMetric) error {
	if metrics == nil {
		metrics = []state.PerformanceMetric{}
	}
	switch format {
	case FormatJSON:
		return writeJSON(w, metrics)
	case FormatYAML:
		return writeYAML(w, metrics)
	case FormatMarkdown:
		fmt.Fprintln(w, "| Model | Runs | Avg duration | Std dev | Min | Max | Avg tokens | Tokens/s |")
		fmt.Fprintln(w, "|---|---|---|---|---|---|---|---|")
		for _, m := range metrics {
			fmt.Fprintf(w, "| %s | %d | %.2fs | %.2fs | %.2fs | %.2fs | %.0f | %.1f |\n",
				m.Ref(), m.Count, m.AvgDuration, m.StdDevDuration, m.MinDuration, m.MaxDuration,
				m.AvgTokens, m.TokensPerSecond())
		}
		return nil
	}

	if len(metrics) == 0 {
		fmt.Fprintln(w, "No completed executions yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tRUNS\tAVG DURATION\tSTD DEV\tMIN\tMAX\tAVG TOKENS\tTOKENS/S")
	for _, m := range metrics {
		fmt.Fprintf(tw, "%s\t%d\t%.2fs\t%.2fs\t%.2fs\t%.2fs\t%.0f\t%.1f\n",
			m.Ref(), m.Count, m.AvgDuration, m.StdDevDuration, m.MinDuration, m.MaxDuration,
			m.AvgTokens, m.TokensPerSecond())
	}
	return tw.Flush()
}

func writeLeaderboardTable(w io.Writer, entries []state.LeaderboardEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No executions recorded for this task.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tMODEL\tSCORE\tGRADE\tDURATION\tTOKENS\tTOOLS\tSTATUS")
	for _, e := range entries {
		score, grade := scoreCells(e)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.Rank, e.Execution.Ref(), score, grade,
			formatSeconds(e.Execution.DurationSeconds), formatTokens(e.Execution.TokenCount),
			ToolCallCount(e.ToolCalls), e.Execution.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, e := range entries {
		if e.Evaluation == nil || e.Evaluation.Explanation == "" {
			continue
		}
		fmt.Fprintf(w, "\n#%d %s\n  %s\n", e.Rank, e.Execution.Ref(), e.Evaluation.Explanation)
	}
	return nil
}

func writeLeaderboardMarkdown(w io.Writer, entries []state.LeaderboardEntry) error {
	fmt.Fprintln(w, "| Rank | Model | Score | Grade | Duration | Tokens | Tools | Status |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|---|")
	for _, e := range entries {
		score, grade := scoreCells(e)
		fmt.Fprintf(w, "| %d | %s | %s | %s | %s | %s | %d | %s |\n",
			e.Rank, e.Execution.Ref(), score, grade,
			formatSeconds(e.Execution.DurationSeconds), formatTokens(e.Execution.TokenCount),
			ToolCallCount(e.ToolCalls), e.Execution.Status)
	}
	return nil
}

// WriteDetails renders each entry's answer and tool-call tree after a
// leaderboard. JSON and YAML leaderboards already carry both, so nothing is
// written for them.
func WriteDetails(w io.Writer, format Format, entries []state.LeaderboardEntry) error {
	switch format {
	case FormatJSON, FormatYAML:
		return nil
	case FormatMarkdown:
		for _, e := range entries {
			writeDetailMarkdown(w, e)
		}
	default:
		for _, e := range entries {
			writeDetailText(w, e)
		}
	}
	return nil
}

func writeDetailText(w io.Writer, e state.LeaderboardEntry) {
	score, _ := scoreCells(e)
	fmt.Fprintf(w, "\n#%d %s  %s  score %s\n", e.Rank, e.Execution.Ref(), e.Execution.Status, score)
	if e.Execution.ErrorSummary != "" {
		fmt.Fprintf(w, "  Error: %s\n", e.Execution.ErrorSummary)
	}
	fmt.Fprintln(w, "  Answer:")
	fmt.Fprintln(w, indent(orNone(e.Answer, "(no answer)"), "    "))
	fmt.Fprintln(w, "  Tool calls:")
	fmt.Fprintln(w, indent(orNone(trace.Render(e.ToolCalls), "(none)"), "    "))
}

func writeDetailMarkdown(w io.Writer, e state.LeaderboardEntry) {
	score, _ := scoreCells(e)
	fmt.Fprintf(w, "\n### %d. %s (%s, score %s)\n\n", e.Rank, e.Execution.Ref(), e.Execution.Status, score)
	if e.Execution.ErrorSummary != "" {
		fmt.Fprintf(w, "**Error:** %s\n\n", escapeMarkdown(e.Execution.ErrorSummary))
	}
	fmt.Fprintln(w, "**Answer**")
	fmt.Fprintln(w)
	fmt.Fprintln(w, indent(orNone(e.Answer, "(no answer)"), "> "))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "**Tool calls**")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "```text")
	fmt.Fprintln(w, orNone(trace.Render(e.ToolCalls), "(none)"))
	fmt.Fprintln(w, "```")
}

func orNone(s, none string) string {
	if strings.TrimSpace(s) == "" {
		return none
	}
	return s
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(prefix+l, " ")
	}
	return strings.Join(lines, "\n")
}

// ToolCallCount counts every call in a tool-call tree.
func ToolCallCount(roots []*trace.ToolCallRecord) int {
	n := 0
	trace.Walk(roots, func(*trace.ToolCallRecord, int) { n++ })
	return n
}

func scoreCells(e state.LeaderboardEntry) (string, string) {
	if e.Evaluation == nil {
		return "-", "-"
	}
	return strconv.Itoa(e.Evaluation.Score), models.Grade(e.Evaluation.Score)
}

func optionalScore(s *int) string {
	if s == nil {
		return "-"
	}
	return strconv.Itoa(*s)
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

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
