package benchmark

import (
	"time"

	"github.com/ShayCichocki/agentboard/internal/api"
	"github.com/ShayCichocki/agentboard/internal/evaluation"
	"github.com/ShayCichocki/agentboard/internal/execution"
	"github.com/ShayCichocki/agentboard/internal/state"
	"github.com/ShayCichocki/agentboard/internal/trace"
)

// Report is everything one benchmark run produced.
type Report struct {
	RunID  string `json:"run_id" yaml:"run_id"`
	TaskID int64  `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	Prompt string `json:"prompt" yaml:"prompt"`

	Results     []execution.Result       `json:"-" yaml:"-"`
	Evaluations []evaluation.Evaluation  `json:"-" yaml:"-"`
	Leaderboard []state.LeaderboardEntry `json:"leaderboard" yaml:"leaderboard"`

	// Warnings lists persistence failures. Degraded is set when any
	// occurred or no store was configured.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Degraded bool     `json:"degraded" yaml:"degraded"`
	// EvaluationErrors holds *evaluation.Error values for executions left
	// unevaluated.
	EvaluationErrors []error `json:"-" yaml:"-"`
	// EvaluationUsage is the evaluation agent's token usage during the run.
	// Nil when its runner does not track usage.
	EvaluationUsage *api.Usage `json:"evaluation_usage,omitempty" yaml:"evaluation_usage,omitempty"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// Duration returns the wall-clock time of the whole run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Winner returns the top-ranked entry, if any entry was evaluated.
func (r *Report) Winner() (state.LeaderboardEntry, bool) {
	if len(r.Leaderboard) == 0 || r.Leaderboard[0].Evaluation == nil {
		return state.LeaderboardEntry{}, false
	}
	return r.Leaderboard[0], true
}

// RankResults builds leaderboard entries from in-memory results, using the
// same ordering as the store. executionIDs may be nil or hold zeros for
// unpersisted rows.
func RankResults(results []execution.Result, evaluations []evaluation.Evaluation, executionIDs []int64) []state.LeaderboardEntry {
	entries := make([]state.LeaderboardEntry, 0, len(results))
	for i, res := range results {
		o := res.Outcome
		seconds := o.Duration.Seconds()
		exec := state.Execution{
			Provider:        res.Agent.Ref.Provider,
			Model:           res.Agent.Ref.Model,
			Status:          o.Status,
			DurationSeconds: &seconds,
			Trace:           o.Trace,
			ErrorSummary:    o.Error,
		}
		if i < len(executionIDs) {
			exec.ID = executionIDs[i]
		}
		if o.Completed() || o.Tokens > 0 {
			tokens := o.Tokens
			exec.TokenCount = &tokens
		}

		entry := state.LeaderboardEntry{
			Execution: exec,
			Answer:    o.Text,
			ToolCalls: trace.BuildTree(o.Trace),
		}
		if i < len(evaluations) && evaluations[i].Err == nil {
			entry.Evaluation = &state.Evaluation{
				ExecutionID: exec.ID,
				Score:       evaluations[i].Result.Score,
				Explanation: evaluations[i].Result.Explanation,
			}
		}
		entries = append(entries, entry)
	}
	state.Rank(entries)
	return entries
}
