package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/agentboard/internal/config"
	"github.com/ShayCichocki/agentboard/pkg/models"
)

// ErrAgentCount is returned when a batch has too few or too many agents.
var ErrAgentCount = errors.New("invalid agent count")

// ErrDuplicateAgent is returned when two agents share a provider and model.
var ErrDuplicateAgent = errors.New("duplicate agent")

// Result pairs an agent with its outcome. Index is the agent's position in
// the input list.
type Result struct {
	Index   int
	Agent   Agent
	Outcome Outcome
}

// Observer receives per-agent lifecycle callbacks. Both hooks run on the
// agent's own goroutine, so an implementation must only touch state owned
// by that index. Panics in hooks are recovered and logged.
type Observer interface {
	ExecutionStarted(index int, agent Agent)
	ExecutionFinished(index int, agent Agent, outcome Outcome)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(orch *Orchestrator) { orch.observer = o }
}

// WithEmitter sets the emitter that receives status events.
func WithEmitter(e *EventEmitter) Option {
	return func(orch *Orchestrator) { orch.emitter = e }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(orch *Orchestrator) { orch.logger = l }
}

// WithExecutor replaces the default executor.
func WithExecutor(e *Executor) Option {
	return func(orch *Orchestrator) { orch.executor = e }
}

// WithRunID fixes the batch identifier instead of generating one.
func WithRunID(id string) Option {
	return func(orch *Orchestrator) { orch.runID = id }
}

// Orchestrator fans one prompt out to 2-5 agents and joins on all of them.
// Each agent gets its own deadline; no agent's failure, timeout or panic
// affects its siblings.
type Orchestrator struct {
	executor *Executor
	observer Observer
	emitter  *EventEmitter
	logger   *DebugLogger
	runID    string
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{}
	for _, opt := range opts {
		opt(o)
	}
	if o.executor == nil {
		o.executor = NewExecutor()
	}
	if o.logger == nil {
		o.logger = NopLogger()
	}
	if o.runID == "" {
		o.runID = uuid.New().String()[:8]
	}
	return o
}

// RunID returns the batch identifier stamped on emitted events.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Run executes every agent concurrently against prompt and returns one
// Result per agent, in input order, after all have reached a terminal state.
// The only errors are argument errors detected before any agent starts.
func (o *Orchestrator) Run(ctx context.Context, prompt string, agents []Agent, timeout time.Duration) ([]Result, error) {
	n := len(agents)
	if n < config.MinTaskAgents || n > config.MaxTaskAgents {
		return nil, fmt.Errorf("%w: need %d-%d agents, got %d", ErrAgentCount, config.MinTaskAgents, config.MaxTaskAgents, n)
	}
	refs := make([]models.ModelRef, n)
	seen := make(map[models.ModelRef]bool, n)
	for i, a := range agents {
		if seen[a.Ref] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAgent, a.Ref)
		}
		seen[a.Ref] = true
		refs[i] = a.Ref
	}

	o.logger.Log("[%s] batch start: %d agents, timeout %s", o.runID, n, timeout)
	o.emitter.Emit(Event{Type: EventBatchStarted, RunID: o.runID, Index: -1, Agents: refs, Timestamp: time.Now()})

	results := make([]Result, n)
	start := time.Now()

	// Each goroutine writes only its own slot; Wait is the join barrier.
	var g errgroup.Group
	g.SetLimit(n)
	for i, agent := range agents {
		i, agent := i, agent
		g.Go(func() error {
			results[i] = o.runOne(ctx, i, agent, prompt, timeout)
			return nil
		})
	}
	_ = g.Wait()

	o.logger.Log("[%s] batch done in %s", o.runID, time.Since(start).Round(time.Millisecond))
	o.emitter.Emit(Event{Type: EventBatchFinished, RunID: o.runID, Index: -1, Duration: time.Since(start), Timestamp: time.Now()})
	return results, nil
}

func (o *Orchestrator) runOne(ctx context.Context, index int, agent Agent, prompt string, timeout time.Duration) Result {
	o.notify(func() { o.observer.ExecutionStarted(index, agent) })
	o.emitter.Emit(Event{
		Type:      EventAgentStarted,
		RunID:     o.runID,
		Index:     index,
		Agent:     agent.Ref,
		Status:    models.ExecutionRunning,
		Timestamp: time.Now(),
	})
	o.logger.Log("[%s] agent %d (%s) running", o.runID, index, agent.Ref)

	outcome := o.executor.Execute(ctx, agent, prompt, timeout)

	o.logger.Log("[%s] agent %d (%s) %s in %s tokens=%d %s",
		o.runID, index, agent.Ref, outcome.Status, outcome.Duration.Round(time.Millisecond), outcome.Tokens, outcome.Error)
	o.notify(func() { o.observer.ExecutionFinished(index, agent, outcome) })
	o.emitter.Emit(Event{
		Type:      EventAgentFinished,
		RunID:     o.runID,
		Index:     index,
		Agent:     agent.Ref,
		Status:    outcome.Status,
		Duration:  outcome.Duration,
		Tokens:    outcome.Tokens,
		Error:     outcome.Error,
		Timestamp: time.Now(),
	})

	return Result{Index: index, Agent: agent, Outcome: outcome}
}

func (o *Orchestrator) notify(fn func()) {
	if o.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[execution] observer panicked: %v", r)
		}
	}()
	fn()
}
