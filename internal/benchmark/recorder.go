package benchmark

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/ShayCichocki/agentboard/internal/evaluation"
	"github.com/ShayCichocki/agentboard/internal/execution"
	"github.com/ShayCichocki/agentboard/internal/metrics"
	"github.com/ShayCichocki/agentboard/internal/state"
)

// recorder mirrors a run into the store. Each agent goroutine touches only
// its own executionIDs slot; warnings are shared and guarded by mu.
type recorder struct {
	store        state.Store
	report       *Report
	executionIDs []int64

	mu sync.Mutex
}

func newRecorder(store state.Store, report *Report, n int) *recorder {
	r := &recorder{
		store:        store,
		report:       report,
		executionIDs: make([]int64, n),
	}
	if store == nil {
		report.Degraded = true
	}
	return r
}

// warn records a persistence failure and switches the run to degraded mode.
func (r *recorder) warn(op string, err error) {
	metrics.RecordStoreError(op)
	msg := fmt.Sprintf("%s: %v", op, err)
	log.Printf("[benchmark] persistence failed, continuing in memory: %s", msg)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Warnings = append(r.report.Warnings, msg)
	r.report.Degraded = true
}

func (r *recorder) enabled() bool {
	return r.store != nil && r.report.TaskID != 0
}

func (r *recorder) createTask(ctx context.Context, prompt string) {
	if r.store == nil {
		return
	}
	id, err := r.store.CreateTask(ctx, prompt)
	if err != nil {
		r.warn("create task", err)
		return
	}
	r.report.TaskID = id
}

func (r *recorder) observer(ctx context.Context) execution.Observer {
	return &runObserver{rec: r, ctx: ctx}
}

func (r *recorder) saveEvaluation(ctx context.Context, index int, res evaluation.Result) {
	id := r.executionIDs[index]
	if !r.enabled() || id == 0 {
		return
	}
	if _, err := r.store.CreateEvaluation(ctx, id, res.Score, res.Explanation); err != nil {
		r.warn(fmt.Sprintf("save evaluation for execution %d", id), err)
	}
}

// runObserver writes the running row when an agent starts and the terminal
// row when it finishes.
type runObserver struct {
	rec *recorder
	ctx context.Context
}

func (o *runObserver) ExecutionStarted(index int, agent execution.Agent) {
	r := o.rec
	if !r.enabled() {
		return
	}
	id, err := r.store.CreateExecution(o.ctx, r.report.TaskID, agent.Ref)
	if err != nil {
		r.warn(fmt.Sprintf("create execution for %s", agent.Ref), err)
		return
	}
	r.executionIDs[index] = id
}

func (o *runObserver) ExecutionFinished(index int, agent execution.Agent, outcome execution.Outcome) {
	metrics.RecordExecution(agent.Ref, outcome.Status, outcome.Duration, outcome.Tokens)

	r := o.rec
	id := r.executionIDs[index]
	if !r.enabled() || id == 0 {
		return
	}
	if err := r.store.CompleteExecution(o.ctx, id, executionResult(outcome)); err != nil {
		r.warn(fmt.Sprintf("complete execution %d", id), err)
		// The row can no longer be scored.
		r.executionIDs[index] = 0
	}
}

func executionResult(o execution.Outcome) state.ExecutionResult {
	res := state.ExecutionResult{
		Status:       o.Status,
		Duration:     o.Duration,
		Trace:        o.Trace,
		ErrorSummary: o.Error,
	}
	if o.Completed() || o.Tokens > 0 {
		tokens := o.Tokens
		res.Tokens = &tokens
	}
	return res
}
