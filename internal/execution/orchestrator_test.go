package execution

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/agentboard/internal/api"
	"github.com/ShayCichocki/agentboard/internal/tools"
	"github.com/ShayCichocki/agentboard/internal/trace"
	"github.com/ShayCichocki/agentboard/pkg/models"
)

func sleepyAgent(model string, d time.Duration, text string) Agent {
	return stubAgent(model, func(ctx context.Context, req api.Request) (*api.Response, error) {
		select {
		case <-time.After(d):
			return &api.Response{Text: text}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func TestOrchestrator_PreservesOrderAndRunsInParallel(t *testing.T) {
	agents := []Agent{
		sleepyAgent("slow", 200*time.Millisecond, "one"),
		sleepyAgent("fast", 10*time.Millisecond, "two"),
		sleepyAgent("mid", 100*time.Millisecond, "three"),
	}

	start := time.Now()
	results, err := NewOrchestrator().Run(context.Background(), "p", agents, 5*time.Second)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, want := range []string{"one", "two", "three"} {
		if results[i].Index != i || results[i].Agent.Ref != agents[i].Ref {
			t.Errorf("result %d is for %v (index %d)", i, results[i].Agent.Ref, results[i].Index)
		}
		if results[i].Outcome.Text != want {
			t.Errorf("result %d text = %q, want %q", i, results[i].Outcome.Text, want)
		}
	}
	if elapsed >= 310*time.Millisecond {
		t.Errorf("batch took %v; agents did not run in parallel", elapsed)
	}
}

func TestOrchestrator_IsolatesFailures(t *testing.T) {
	agents := []Agent{
		sleepyAgent("ok", 30*time.Millisecond, "fine"),
		stubAgent("panics", func(ctx context.Context, req api.Request) (*api.Response, error) {
			panic("adapter bug")
		}),
		stubAgent("errors", func(ctx context.Context, req api.Request) (*api.Response, error) {
			return nil, errors.New("rate limited")
		}),
		stubAgent("hangs", blockingRunner),
	}

	results, err := NewOrchestrator().Run(context.Background(), "p", agents, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []models.ExecutionStatus{
		models.ExecutionCompleted,
		models.ExecutionFailed,
		models.ExecutionFailed,
		models.ExecutionTimeout,
	}
	for i, w := range want {
		if results[i].Outcome.Status != w {
			t.Errorf("agent %s: status = %s, want %s", agents[i].Ref, results[i].Outcome.Status, w)
		}
	}
	if results[0].Outcome.Text != "fine" {
		t.Errorf("healthy agent affected by siblings: %+v", results[0].Outcome)
	}
	if results[3].Outcome.Duration != 100*time.Millisecond {
		t.Errorf("timed-out duration = %v", results[3].Outcome.Duration)
	}
}

func TestOrchestrator_PrimeScenario(t *testing.T) {
	reg, err := tools.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	agentA := Agent{
		Ref:   models.ModelRef{Provider: models.ProviderOpenAI, Model: "gpt-4o-mini"},
		Tools: reg,
		Runner: api.RunnerFunc(func(ctx context.Context, req api.Request) (*api.Response, error) {
			rec := trace.NewRecorder()
			rec.Prompt(req.Prompt)
			input := []byte(`{"n":17}`)
			rec.Call("call_1", "check_prime", input)
			res := req.Tools.Execute(ctx, "check_prime", input)
			rec.Result("call_1", "check_prime", res.Content, res.IsError)
			if !strings.Contains(res.Content, `"is_prime":true`) {
				return &api.Response{Trace: rec.Trace()}, errors.New("unexpected tool result: " + res.Content)
			}
			rec.Text("17 is prime")
			return &api.Response{Text: "17 is prime", Trace: rec.Trace(), TokensIn: 10, TokensOut: 4}, nil
		}),
	}
	agentB := Agent{
		Ref:    models.ModelRef{Provider: models.ProviderAnthropic, Model: "claude-sonnet-4-5"},
		Runner: api.RunnerFunc(blockingRunner),
	}

	results, err := NewOrchestrator().Run(context.Background(), "Check if 17 is prime", []Agent{agentA, agentB}, 150*time.Millisecond)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	a, b := results[0].Outcome, results[1].Outcome
	if a.Status != models.ExecutionCompleted || a.Text != "17 is prime" {
		t.Errorf("agent A = %+v", a)
	}
	if a.Trace.ToolCalls() != 1 {
		t.Errorf("agent A tool calls = %d, want 1", a.Trace.ToolCalls())
	}
	if b.Status != models.ExecutionTimeout || b.Duration != 150*time.Millisecond {
		t.Errorf("agent B = %s after %v, want timeout after 150ms", b.Status, b.Duration)
	}
}

func TestOrchestrator_RejectsBadBatches(t *testing.T) {
	one := []Agent{sleepyAgent("a", 0, "")}
	six := make([]Agent, 6)
	for i := range six {
		six[i] = sleepyAgent(string(rune('a'+i)), 0, "")
	}
	dup := []Agent{sleepyAgent("a", 0, ""), sleepyAgent("a", 0, "")}

	orch := NewOrchestrator()
	if _, err := orch.Run(context.Background(), "p", one, time.Second); !errors.Is(err, ErrAgentCount) {
		t.Errorf("1 agent: err = %v, want ErrAgentCount", err)
	}
	if _, err := orch.Run(context.Background(), "p", six, time.Second); !errors.Is(err, ErrAgentCount) {
		t.Errorf("6 agents: err = %v, want ErrAgentCount", err)
	}
	if _, err := orch.Run(context.Background(), "p", dup, time.Second); !errors.Is(err, ErrDuplicateAgent) {
		t.Errorf("duplicates: err = %v, want ErrDuplicateAgent", err)
	}
}

// recordingObserver writes only to the slot of the index it is called for.
type recordingObserver struct {
	started  []bool
	finished []models.ExecutionStatus
}

func (o *recordingObserver) ExecutionStarted(index int, agent Agent) {
	o.started[index] = true
}

func (o *recordingObserver) ExecutionFinished(index int, agent Agent, outcome Outcome) {
	if !o.started[index] {
		panic("finished before started")
	}
	o.finished[index] = outcome.Status
}

func TestOrchestrator_Observer(t *testing.T) {
	agents := []Agent{
		sleepyAgent("a", 10*time.Millisecond, "x"),
		stubAgent("b", func(ctx context.Context, req api.Request) (*api.Response, error) {
			return nil, errors.New("nope")
		}),
	}
	obs := &recordingObserver{started: make([]bool, 2), finished: make([]models.ExecutionStatus, 2)}

	if _, err := NewOrchestrator(WithObserver(obs)).Run(context.Background(), "p", agents, time.Second); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !obs.started[0] || !obs.started[1] {
		t.Errorf("started = %v", obs.started)
	}
	if obs.finished[0] != models.ExecutionCompleted || obs.finished[1] != models.ExecutionFailed {
		t.Errorf("finished = %v", obs.finished)
	}
}

type panickingObserver struct{}

func (panickingObserver) ExecutionStarted(int, Agent)           { panic("observer bug") }
func (panickingObserver) ExecutionFinished(int, Agent, Outcome) { panic("observer bug") }

func TestOrchestrator_ObserverPanicDoesNotAbortBatch(t *testing.T) {
	agents := []Agent{sleepyAgent("a", 0, "x"), sleepyAgent("b", 0, "y")}
	results, err := NewOrchestrator(WithObserver(panickingObserver{})).Run(context.Background(), "p", agents, time.Second)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, r := range results {
		if r.Outcome.Status != models.ExecutionCompleted {
			t.Errorf("%s: status = %s", r.Agent.Ref, r.Outcome.Status)
		}
	}
}

func TestOrchestrator_EventsFeedTracker(t *testing.T) {
	emitter := NewEventEmitter(32)
	tracker := NewStatusTracker()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tracker.Consume(emitter.Events())
	}()

	agents := []Agent{
		sleepyAgent("a", 10*time.Millisecond, "x"),
		stubAgent("b", blockingRunner),
	}
	orch := NewOrchestrator(WithEmitter(emitter), WithRunID("run-1"))
	if _, err := orch.Run(context.Background(), "p", agents, 50*time.Millisecond); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	emitter.Close()
	wg.Wait()

	snap := tracker.Snapshot()
	if snap.RunID != "run-1" {
		t.Errorf("RunID = %q", snap.RunID)
	}
	if !snap.AllTerminal || !snap.Finished {
		t.Errorf("snapshot not terminal: %+v", snap)
	}
	if snap.Completed != 1 || snap.TimedOut != 1 || snap.Running != 0 {
		t.Errorf("counts = %+v", snap)
	}
	if snap.Agents[1].Agent.Model != "b" || snap.Agents[1].Status != models.ExecutionTimeout {
		t.Errorf("agent b = %+v", snap.Agents[1])
	}
	if emitter.DroppedCount() != 0 {
		t.Errorf("dropped %d events", emitter.DroppedCount())
	}
}
