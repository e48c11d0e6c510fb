package execution

import (
	"sync"
	"time"

	"github.com/ShayCichocki/agentboard/pkg/models"
)

// AgentStatus is one agent's row in a Snapshot. An empty Status means the
// agent has not started yet.
type AgentStatus struct {
	Index     int                    `json:"index"`
	Agent     models.ModelRef        `json:"agent"`
	Status    models.ExecutionStatus `json:"status"`
	StartedAt time.Time              `json:"started_at,omitzero"`
	// Elapsed is the running time so far, or the final duration.
	Elapsed time.Duration `json:"elapsed"`
	Error   string        `json:"error,omitempty"`
}

// Snapshot is a read-only view of a batch's progress.
type Snapshot struct {
	RunID       string        `json:"run_id"`
	Agents      []AgentStatus `json:"agents"`
	Running     int           `json:"running"`
	Completed   int           `json:"completed"`
	Failed      int           `json:"failed"`
	TimedOut    int           `json:"timed_out"`
	AllTerminal bool          `json:"all_terminal"`
	Finished    bool          `json:"finished"`
}

// FailedOrTimedOut returns the number of agents that did not complete.
func (s Snapshot) FailedOrTimedOut() int {
	return s.Failed + s.TimedOut
}

// StatusTracker folds execution events into a Snapshot. Executors never
// write to it directly; it is fed from an EventEmitter.
type StatusTracker struct {
	mu       sync.RWMutex
	runID    string
	agents   []AgentStatus
	finished bool
	updated  chan struct{}
	now      func() time.Time
}

// NewStatusTracker creates an empty tracker. The line-up is learned from
// the batch_started event.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{updated: make(chan struct{}), now: time.Now}
}

// Apply folds one event into the tracker.
func (t *StatusTracker) Apply(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case EventBatchStarted:
		t.runID = ev.RunID
		t.finished = false
		t.agents = make([]AgentStatus, len(ev.Agents))
		for i, ref := range ev.Agents {
			t.agents[i] = AgentStatus{Index: i, Agent: ref}
		}
	case EventAgentStarted:
		if a := t.slot(ev.Index); a != nil {
			a.Agent = ev.Agent
			a.Status = models.ExecutionRunning
			a.StartedAt = ev.Timestamp
		}
	case EventAgentFinished:
		if a := t.slot(ev.Index); a != nil {
			a.Agent = ev.Agent
			a.Status = ev.Status
			a.Elapsed = ev.Duration
			a.Error = ev.Error
		}
	case EventBatchFinished:
		t.finished = true
	}

	close(t.updated)
	t.updated = make(chan struct{})
}

func (t *StatusTracker) slot(i int) *AgentStatus {
	if i < 0 {
		return nil
	}
	for len(t.agents) <= i {
		t.agents = append(t.agents, AgentStatus{Index: len(t.agents)})
	}
	return &t.agents[i]
}

// Consume applies events until the channel is closed.
func (t *StatusTracker) Consume(events <-chan Event) {
	for ev := range events {
		t.Apply(ev)
	}
}

// Updated returns a channel that is closed on the next Apply. Take it
// before calling Snapshot to avoid missing a change.
func (t *StatusTracker) Updated() <-chan struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updated
}

// Snapshot returns the current progress.
func (t *StatusTracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		RunID:    t.runID,
		Agents:   make([]AgentStatus, len(t.agents)),
		Finished: t.finished,
	}
	copy(s.Agents, t.agents)

	now := t.now()
	terminal := 0
	for i := range s.Agents {
		a := &s.Agents[i]
		switch a.Status {
		case models.ExecutionRunning:
			s.Running++
			if !a.StartedAt.IsZero() {
				a.Elapsed = now.Sub(a.StartedAt)
			}
		case models.ExecutionCompleted:
			s.Completed++
		case models.ExecutionFailed:
			s.Failed++
		case models.ExecutionTimeout:
			s.TimedOut++
		}
		if a.Status.Terminal() {
			terminal++
		}
	}
	s.AllTerminal = len(s.Agents) > 0 && terminal == len(s.Agents)
	return s
}
