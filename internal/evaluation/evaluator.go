package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/agentboard/internal/api"
	"github.com/ShayCichocki/agentboard/internal/config"
	"github.com/ShayCichocki/agentboard/internal/execution"
	"github.com/ShayCichocki/agentboard/internal/trace"
	"github.com/ShayCichocki/agentboard/pkg/models"
)

// Error reports an evaluation failure for one task agent. It wraps one of
// ErrMalformedResponse, ErrScoreOutOfRange or ErrEvaluatorFailed.
type Error struct {
	Agent models.ModelRef
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("evaluate %s: %v", e.Agent, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result is a score for one execution.
type Result struct {
	Score       int    `json:"score"`
	Explanation string `json:"explanation"`
	// Skipped is true when the outcome was scored without calling the agent.
	Skipped  bool          `json:"skipped"`
	Duration time.Duration `json:"duration"`
	Tokens   int64         `json:"tokens"`
}

// Grade returns the letter grade for the score.
func (r Result) Grade() string {
	return models.Grade(r.Score)
}

// Evaluator scores outcomes with an evaluation agent.
type Evaluator struct {
	runner   api.Runner
	ref      models.ModelRef
	template string
	timeout  time.Duration
}

// New creates an evaluator from the evaluation agent's runner and settings.
func New(runner api.Runner, cfg config.EvaluationConfig) *Evaluator {
	template := cfg.Prompt
	if template == "" {
		template = config.DefaultEvaluationPrompt
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = config.DefaultEvalTimeoutSeconds * time.Second
	}
	return &Evaluator{
		runner:   runner,
		ref:      cfg.Ref(),
		template: template,
		timeout:  timeout,
	}
}

// Usage returns the evaluation agent's cumulative token usage, when its
// runner tracks it.
func (e *Evaluator) Usage() (api.Usage, bool) {
	return api.UsageOf(e.runner)
}

// Agent returns the evaluation agent's identity.
func (e *Evaluator) Agent() models.ModelRef {
	return e.ref
}

// Evaluate scores one outcome. Failed and timed-out outcomes score 0 with
// FailedExplanation and never reach the evaluation agent. Every completed
// outcome is evaluated on its own, even if another agent produced the same
// text. The agent sees the final text and the tool-call tree; an agent that
// answered only through tools is judged on the tree.
func (e *Evaluator) Evaluate(ctx context.Context, taskPrompt string, agent models.ModelRef, outcome execution.Outcome) (Result, error) {
	if !outcome.Completed() {
		return Result{Score: 0, Explanation: FailedExplanation, Skipped: true}, nil
	}

	evalCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.runner.Run(evalCtx, api.Request{
		Prompt: e.prompt(taskPrompt, outcome),
	})
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(evalCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s: %w", e.timeout, err)
		}
		log.Printf("[evaluation] %s: evaluator %s failed: %v", agent, e.ref, err)
		return Result{}, &Error{Agent: agent, Err: fmt.Errorf("%w: %w", ErrEvaluatorFailed, err)}
	}
	if resp == nil {
		return Result{}, &Error{Agent: agent, Err: fmt.Errorf("%w: empty response", ErrEvaluatorFailed)}
	}

	score, explanation, err := ParseResponse(resp.Text)
	if err != nil {
		log.Printf("[evaluation] %s: unparseable response: %v", agent, err)
		return Result{}, &Error{Agent: agent, Err: err}
	}

	return Result{
		Score:       score,
		Explanation: explanation,
		Duration:    elapsed,
		Tokens:      resp.Tokens(),
	}, nil
}

func (e *Evaluator) prompt(taskPrompt string, outcome execution.Outcome) string {
	toolCalls := trace.Render(trace.BuildTree(outcome.Trace))
	response := outcome.Text
	if strings.TrimSpace(response) == "" {
		response = toolCalls
	}
	if toolCalls == "" {
		toolCalls = NoToolCalls
	}
	return RenderPrompt(e.template, taskPrompt, response, toolCalls)
}

// Evaluation is the result of evaluating one execution result.
type Evaluation struct {
	Index  int
	Result Result
	// Err is non-nil (and an *Error) when the execution could not be scored.
	Err error
}

// EvaluateAll scores every result with at most concurrency calls in flight.
// The returned slice is in input order.
func (e *Evaluator) EvaluateAll(ctx context.Context, taskPrompt string, results []execution.Result, concurrency int) []Evaluation {
	if concurrency <= 0 {
		concurrency = len(results)
	}
	out := make([]Evaluation, len(results))

	var g errgroup.Group
	g.SetLimit(max(concurrency, 1))
	for i, r := range results {
		i, r := i, r
		g.Go(func() error {
			res, err := e.Evaluate(ctx, taskPrompt, r.Agent.Ref, r.Outcome)
			out[i] = Evaluation{Index: r.Index, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
