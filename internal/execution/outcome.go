// Package execution runs task agents: one at a time under a deadline
// (Executor) and in parallel batches with failure isolation (Orchestrator).
package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ShayCichocki/agentboard/internal/api"
	"github.com/ShayCichocki/agentboard/internal/tools"
	"github.com/ShayCichocki/agentboard/internal/trace"
	"github.com/ShayCichocki/agentboard/pkg/models"
)

// maxSummaryLen caps stored error summaries.
const maxSummaryLen = 500

// Agent is one configured task agent.
type Agent struct {
	Ref    models.ModelRef
	Runner api.Runner
	// Tools available to the agent. Nil means no tools.
	Tools *tools.Registry
	// System is an optional system prompt.
	System string
}

// Outcome is the terminal result of one execution. Status is always one of
// completed, failed or timeout.
type Outcome struct {
	Status   models.ExecutionStatus
	Text     string
	Trace    trace.Trace
	Duration time.Duration
	Tokens   int64
	// Error is the summary for failed and timed-out outcomes.
	Error string
}

// Completed reports whether the agent produced a final answer.
func (o Outcome) Completed() bool {
	return o.Status == models.ExecutionCompleted
}

func completedOutcome(resp *api.Response, elapsed time.Duration) Outcome {
	text := resp.Text
	if text == "" {
		text = resp.Trace.FinalText()
	}
	return Outcome{
		Status:   models.ExecutionCompleted,
		Text:     text,
		Trace:    resp.Trace,
		Duration: elapsed,
		Tokens:   resp.Tokens(),
	}
}

func failedOutcome(err error, partial trace.Trace, elapsed time.Duration, at time.Time) Outcome {
	summary := SummarizeError(err)
	return Outcome{
		Status:   models.ExecutionFailed,
		Trace:    partial.WithError(summary, at),
		Duration: elapsed,
		Error:    summary,
	}
}

func timedOutOutcome(timeout time.Duration, at time.Time) Outcome {
	summary := fmt.Sprintf("timed out after %s", timeout)
	return Outcome{
		Status:   models.ExecutionTimeout,
		Trace:    trace.Trace(nil).WithError(summary, at),
		Duration: timeout,
		Error:    summary,
	}
}

// SummarizeError returns the first line of err, capped at 500 characters.
func SummarizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = strings.TrimSpace(msg[:i])
	}
	if len(msg) > maxSummaryLen {
		cut := maxSummaryLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	if msg == "" {
		msg = "unknown error"
	}
	return msg
}

// isDeadline reports whether runCtx expired on its own deadline while the
// parent is still live.
func isDeadline(parent, runCtx context.Context) bool {
	return parent.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded)
}
