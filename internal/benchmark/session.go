// Package benchmark runs one prompt against every configured task agent,
// scores the outcomes with the evaluation agent and ranks them.
//
// Persistence is best effort: when the store is missing or a write fails
// the session keeps going with its in-memory results and reports the
// problem in Report.Warnings.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ShayCichocki/agentboard/internal/api"
	"github.com/ShayCichocki/agentboard/internal/config"
	"github.com/ShayCichocki/agentboard/internal/evaluation"
	"github.com/ShayCichocki/agentboard/internal/execution"
	"github.com/ShayCichocki/agentboard/internal/metrics"
	"github.com/ShayCichocki/agentboard/internal/state"
	"github.com/ShayCichocki/agentboard/internal/tools"
)

// ErrEmptyPrompt is returned by Run for a blank prompt.
var ErrEmptyPrompt = errors.New("prompt must not be empty")

// RunnerFactory builds the model runner for one configured agent.
type RunnerFactory func(agent config.AgentConfig) (api.Runner, error)

// SessionConfig holds the collaborators of a Session.
type SessionConfig struct {
	// Config is copied; later changes to the caller's value are not seen.
	Config config.Config
	// Store persists tasks, executions and evaluations. Nil runs without
	// persistence.
	Store state.Store
	// Registry is the tool set agents draw from. Nil uses the builtins.
	Registry *tools.Registry
	// NewRunner overrides how runners are built, mainly for tests.
	NewRunner RunnerFactory
	// Emitter receives live status events. Optional.
	Emitter *execution.EventEmitter
	// Logger receives detailed run logs. Optional.
	Logger *execution.DebugLogger
	// Executor replaces the default task executor. Optional.
	Executor *execution.Executor
}

// Session runs benchmarks for a fixed configuration.
type Session struct {
	cfg       config.Config
	store     state.Store
	agents    []execution.Agent
	evaluator *evaluation.Evaluator
	emitter   *execution.EventEmitter
	logger    *execution.DebugLogger
	executor  *execution.Executor
}

// NewSession builds the task agents and evaluator described by sc.Config.
// The configuration is expected to have been validated.
func NewSession(sc SessionConfig) (*Session, error) {
	cfg := sc.Config

	newRunner := sc.NewRunner
	if newRunner == nil {
		opts := api.Options{MaxIterations: cfg.Execution.MaxIterations}
		newRunner = func(agent config.AgentConfig) (api.Runner, error) {
			return api.NewRunner(agent, opts)
		}
	}

	registry := sc.Registry
	if registry == nil {
		var err error
		registry, err = tools.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("build tool registry: %w", err)
		}
	}

	agents := make([]execution.Agent, 0, len(cfg.TaskAgents))
	for _, ac := range cfg.TaskAgents {
		runner, err := newRunner(ac)
		if err != nil {
			return nil, fmt.Errorf("create runner for %s: %w", ac.Ref(), err)
		}
		toolset, err := registry.Subset(ac.Tools)
		if err != nil {
			return nil, fmt.Errorf("tools for %s: %w", ac.Ref(), err)
		}
		agents = append(agents, execution.Agent{
			Ref:    ac.Ref(),
			Runner: runner,
			Tools:  toolset,
		})
	}

	evalRunner, err := newRunner(cfg.Evaluation.AgentConfig)
	if err != nil {
		return nil, fmt.Errorf("create evaluator %s: %w", cfg.Evaluation.Ref(), err)
	}

	logger := sc.Logger
	if logger == nil {
		logger = execution.NopLogger()
	}

	return &Session{
		cfg:       cfg,
		store:     sc.Store,
		agents:    agents,
		evaluator: evaluation.New(evalRunner, cfg.Evaluation),
		emitter:   sc.Emitter,
		logger:    logger,
		executor:  sc.Executor,
	}, nil
}

// Config returns the session's configuration value.
func (s *Session) Config() config.Config {
	return s.cfg
}

// Run executes one benchmark. Only a blank prompt or an invalid agent
// line-up produce an error; agent failures, evaluation failures and
// persistence failures are all part of the Report.
func (s *Session) Run(ctx context.Context, prompt string) (*Report, error) {
	return s.run(ctx, prompt, "")
}

// RunWithID is Run with a caller-chosen run identifier, so that a caller can
// subscribe to events before the run starts.
func (s *Session) RunWithID(ctx context.Context, prompt, runID string) (*Report, error) {
	return s.run(ctx, prompt, runID)
}

func (s *Session) run(ctx context.Context, prompt, runID string) (*Report, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	metrics.RecordRunStarted()
	report := &Report{Prompt: prompt, StartedAt: time.Now()}
	defer func() {
		metrics.RecordRunFinished(report.Degraded)
	}()

	// Writes must land even if the caller cancels mid-batch, otherwise rows
	// would be left in running.
	writeCtx := context.WithoutCancel(ctx)

	rec := newRecorder(s.store, report, len(s.agents))
	rec.createTask(writeCtx, prompt)

	opts := []execution.Option{
		execution.WithObserver(rec.observer(writeCtx)),
		execution.WithEmitter(s.emitter),
		execution.WithLogger(s.logger),
	}
	if runID != "" {
		opts = append(opts, execution.WithRunID(runID))
	}
	if s.executor != nil {
		opts = append(opts, execution.WithExecutor(s.executor))
	}
	orch := execution.NewOrchestrator(opts...)
	report.RunID = orch.RunID()

	log.Printf("[benchmark] run %s: %d agents", report.RunID, len(s.agents))
	results, err := orch.Run(ctx, prompt, s.agents, s.cfg.Execution.Timeout())
	if err != nil {
		return nil, err
	}
	report.Results = results

	before, tracked := s.evaluator.Usage()
	report.Evaluations = s.evaluator.EvaluateAll(ctx, prompt, results, s.cfg.Evaluation.Concurrency)
	if after, ok := s.evaluator.Usage(); tracked && ok {
		usage := after.Sub(before)
		report.EvaluationUsage = &usage
	}
	for i, ev := range report.Evaluations {
		agent := results[i].Agent.Ref
		if ev.Err != nil {
			metrics.RecordEvaluationError(agent)
			report.EvaluationErrors = append(report.EvaluationErrors, ev.Err)
			continue
		}
		metrics.RecordEvaluation(agent, ev.Result.Score)
		rec.saveEvaluation(writeCtx, i, ev.Result)
	}

	report.Leaderboard = s.leaderboard(writeCtx, rec, report)
	report.FinishedAt = time.Now()

	log.Printf("[benchmark] run %s: done in %s (%d warnings, %d evaluation errors)",
		report.RunID, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
		len(report.Warnings), len(report.EvaluationErrors))
	return report, nil
}

// leaderboard reads the ranked view from the store, falling back to ranking
// the in-memory results when persistence is unavailable.
func (s *Session) leaderboard(ctx context.Context, rec *recorder, report *Report) []state.LeaderboardEntry {
	if s.store != nil && !report.Degraded {
		entries, err := s.store.Leaderboard(ctx, report.TaskID)
		if err == nil {
			return entries
		}
		rec.warn("read leaderboard", err)
	}
	return RankResults(report.Results, report.Evaluations, rec.executionIDs)
}
