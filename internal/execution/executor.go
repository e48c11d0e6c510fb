package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/agentboard/internal/api"
	"github.com/ShayCichocki/agentboard/internal/trace"
)

// Executor runs a single agent against a prompt under a deadline and always
// returns a terminal Outcome. It never retries and never returns an error.
type Executor struct {
	now func() time.Time
}

// NewExecutor creates an executor using the wall clock.
func NewExecutor() *Executor {
	return &Executor{now: time.Now}
}

func (e *Executor) clock() time.Time {
	if e == nil || e.now == nil {
		return time.Now()
	}
	return e.now()
}

type runResult struct {
	resp *api.Response
	err  error
}

// Execute runs agent against prompt. The agent's context is cancelled when
// timeout elapses; the outcome is then TimedOut with Duration == timeout,
// even if the runner ignores cancellation. Panics inside the runner become
// Failed outcomes.
func (e *Executor) Execute(ctx context.Context, agent Agent, prompt string, timeout time.Duration) Outcome {
	start := e.clock()

	if timeout <= 0 {
		return failedOutcome(fmt.Errorf("timeout must be positive, got %s", timeout), nil, 0, start)
	}
	if agent.Runner == nil {
		return failedOutcome(errors.New("agent has no runner"), nil, 0, start)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan runResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- runResult{err: fmt.Errorf("agent panicked: %v", r)}
			}
		}()
		resp, err := agent.Runner.Run(runCtx, api.Request{
			System: agent.System,
			Prompt: prompt,
			Tools:  agent.Tools,
		})
		done <- runResult{resp: resp, err: err}
	}()

	select {
	case res := <-done:
		now := e.clock()
		elapsed := now.Sub(start)
		if res.err != nil {
			if isDeadline(ctx, runCtx) {
				return timedOutOutcome(timeout, now)
			}
			return failedOutcome(res.err, partialTrace(res.resp), elapsed, now)
		}
		if res.resp == nil {
			return failedOutcome(errors.New("agent returned no response"), nil, elapsed, now)
		}
		return completedOutcome(res.resp, elapsed)

	case <-runCtx.Done():
		now := e.clock()
		if isDeadline(ctx, runCtx) {
			return timedOutOutcome(timeout, now)
		}
		return failedOutcome(fmt.Errorf("canceled: %w", ctx.Err()), nil, now.Sub(start), now)
	}
}

func partialTrace(resp *api.Response) trace.Trace {
	if resp == nil {
		return nil
	}
	return resp.Trace
}
