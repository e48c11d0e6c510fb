package state

import (
	"errors"
	"time"

	"github.com/ShayCichocki/agentboard/internal/trace"
	"github.com/ShayCichocki/agentboard/pkg/models"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when a write is rejected before reaching
	// the database.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidTransition is returned when an execution is not in a state
	// that allows the requested change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyEvaluated is returned for a second evaluation of one
	// execution.
	ErrAlreadyEvaluated = errors.New("execution already evaluated")
)

// maxDisplayPrompt is the history-view prompt width.
const maxDisplayPrompt = 60

// Task is one submitted prompt.
type Task struct {
	ID          int64     `json:"id" yaml:"id"`
	Prompt      string    `json:"prompt" yaml:"prompt"`
	SubmittedAt time.Time `json:"submitted_at" yaml:"submitted_at"`
}

// Execution is one agent's attempt at a task.
type Execution struct {
	ID              int64                  `json:"id" yaml:"id"`
	TaskID          int64                  `json:"task_id" yaml:"task_id"`
	Provider        models.Provider        `json:"provider" yaml:"provider"`
	Model           string                 `json:"model" yaml:"model"`
	Status          models.ExecutionStatus `json:"status" yaml:"status"`
	StartedAt       time.Time              `json:"started_at" yaml:"started_at"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	DurationSeconds *float64               `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`
	TokenCount      *int64                 `json:"token_count,omitempty" yaml:"token_count,omitempty"`
	Trace           trace.Trace            `json:"trace" yaml:"-"`
	ErrorSummary    string                 `json:"error_summary,omitempty" yaml:"error_summary,omitempty"`
}

// Ref returns the execution's provider and model.
func (e Execution) Ref() models.ModelRef {
	return models.ModelRef{Provider: e.Provider, Model: e.Model}
}

// Duration returns the recorded duration, or zero when not finished.
func (e Execution) Duration() time.Duration {
	if e.DurationSeconds == nil {
		return 0
	}
	return time.Duration(*e.DurationSeconds * float64(time.Second))
}

// ExecutionResult is the terminal write for an execution.
type ExecutionResult struct {
	Status       models.ExecutionStatus
	Duration     time.Duration
	Tokens       *int64
	Trace        trace.Trace
	ErrorSummary string
}

// Evaluation is the evaluator's verdict on one execution.
type Evaluation struct {
	ID          int64     `json:"id" yaml:"id"`
	ExecutionID int64     `json:"execution_id" yaml:"execution_id"`
	Score       int       `json:"score" yaml:"score"`
	Explanation string    `json:"explanation" yaml:"explanation"`
	EvaluatedAt time.Time `json:"evaluated_at" yaml:"evaluated_at"`
}

// LeaderboardEntry is one ranked row of a task's leaderboard. Evaluation is
// nil for executions that have not been scored. Answer is the agent's final
// text.
type LeaderboardEntry struct {
	Rank       int                     `json:"rank" yaml:"rank"`
	Execution  Execution               `json:"execution" yaml:"execution"`
	Evaluation *Evaluation             `json:"evaluation,omitempty" yaml:"evaluation,omitempty"`
	Answer     string                  `json:"answer,omitempty" yaml:"answer,omitempty"`
	ToolCalls  []*trace.ToolCallRecord `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
}

// Score returns the evaluation score, or 0 when unevaluated.
func (e LeaderboardEntry) Score() int {
	if e.Evaluation == nil {
		return 0
	}
	return e.Evaluation.Score
}

// TaskSummary is one row of the run history.
type TaskSummary struct {
	ID             int64     `json:"id" yaml:"id"`
	Prompt         string    `json:"prompt" yaml:"prompt"`
	SubmittedAt    time.Time `json:"submitted_at" yaml:"submitted_at"`
	ExecutionCount int       `json:"execution_count" yaml:"execution_count"`
	HighestScore   *int      `json:"highest_score,omitempty" yaml:"highest_score,omitempty"`
}

// DisplayPrompt returns the prompt cut to the history width.
func (s TaskSummary) DisplayPrompt() string {
	return TruncatePrompt(s.Prompt, maxDisplayPrompt)
}

// TruncatePrompt shortens prompt to at most max runes, ending in "...".
func TruncatePrompt(prompt string, max int) string {
	r := []rune(prompt)
	if len(r) <= max {
		return prompt
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// PerformanceMetric aggregates completed executions of one model.
type PerformanceMetric struct {
	Provider       models.Provider `json:"provider" yaml:"provider"`
	Model          string          `json:"model" yaml:"model"`
	Count          int             `json:"count" yaml:"count"`
	AvgDuration    float64         `json:"avg_duration_seconds" yaml:"avg_duration_seconds"`
	StdDevDuration float64         `json:"stddev_duration_seconds" yaml:"stddev_duration_seconds"`
	MinDuration    float64         `json:"min_duration_seconds" yaml:"min_duration_seconds"`
	MaxDuration    float64         `json:"max_duration_seconds" yaml:"max_duration_seconds"`
	AvgTokens      float64         `json:"avg_tokens" yaml:"avg_tokens"`
	StdDevTokens   float64         `json:"stddev_tokens" yaml:"stddev_tokens"`
}

// Ref returns the metric's provider and model.
func (m PerformanceMetric) Ref() models.ModelRef {
	return models.ModelRef{Provider: m.Provider, Model: m.Model}
}

// TokensPerSecond returns average throughput.
func (m PerformanceMetric) TokensPerSecond() float64 {
	return models.TokensPerSecond(int64(m.AvgTokens), m.AvgDuration)
}
