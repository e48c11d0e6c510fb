package execution

import (
	"testing"
	"time"

	"github.com/ShayCichocki/agentboard/pkg/models"
)

func TestStatusTracker_Apply(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewStatusTracker()
	tracker.now = func() time.Time { return base.Add(3 * time.Second) }

	a := models.ModelRef{Provider: models.ProviderOpenAI, Model: "a"}
	b := models.ModelRef{Provider: models.ProviderGroq, Model: "b"}

	tracker.Apply(Event{Type: EventBatchStarted, RunID: "r1", Index: -1, Agents: []models.ModelRef{a, b}})
	snap := tracker.Snapshot()
	if len(snap.Agents) != 2 || snap.Agents[0].Status != "" || snap.AllTerminal {
		t.Fatalf("initial snapshot = %+v", snap)
	}

	tracker.Apply(Event{Type: EventAgentStarted, Index: 0, Agent: a, Timestamp: base})
	tracker.Apply(Event{Type: EventAgentStarted, Index: 1, Agent: b, Timestamp: base.Add(time.Second)})
	snap = tracker.Snapshot()
	if snap.Running != 2 {
		t.Errorf("Running = %d, want 2", snap.Running)
	}
	if snap.Agents[0].Elapsed != 3*time.Second || snap.Agents[1].Elapsed != 2*time.Second {
		t.Errorf("elapsed = %v, %v", snap.Agents[0].Elapsed, snap.Agents[1].Elapsed)
	}

	tracker.Apply(Event{Type: EventAgentFinished, Index: 0, Agent: a, Status: models.ExecutionCompleted, Duration: 1500 * time.Millisecond})
	tracker.Apply(Event{Type: EventAgentFinished, Index: 1, Agent: b, Status: models.ExecutionFailed, Error: "boom"})
	snap = tracker.Snapshot()
	if !snap.AllTerminal || snap.Finished {
		t.Errorf("AllTerminal = %v, Finished = %v", snap.AllTerminal, snap.Finished)
	}
	if snap.Completed != 1 || snap.FailedOrTimedOut() != 1 {
		t.Errorf("counts = %+v", snap)
	}
	if snap.Agents[0].Elapsed != 1500*time.Millisecond {
		t.Errorf("final elapsed = %v", snap.Agents[0].Elapsed)
	}
	if snap.Agents[1].Error != "boom" {
		t.Errorf("error = %q", snap.Agents[1].Error)
	}

	tracker.Apply(Event{Type: EventBatchFinished, Index: -1})
	if !tracker.Snapshot().Finished {
		t.Error("expected Finished after batch_finished")
	}
}

func TestStatusTracker_UpdatedSignals(t *testing.T) {
	tracker := NewStatusTracker()
	ch := tracker.Updated()

	select {
	case <-ch:
		t.Fatal("Updated closed before any event")
	default:
	}

	tracker.Apply(Event{Type: EventAgentStarted, Index: 0})
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("Updated not closed after Apply")
	}
	if tracker.Updated() == ch {
		t.Error("Updated did not rotate")
	}
}

func TestStatusTracker_SnapshotIsCopy(t *testing.T) {
	tracker := NewStatusTracker()
	tracker.Apply(Event{Type: EventBatchStarted, Agents: []models.ModelRef{{Model: "a"}, {Model: "b"}}})

	snap := tracker.Snapshot()
	snap.Agents[0].Status = models.ExecutionFailed
	if tracker.Snapshot().Agents[0].Status != "" {
		t.Error("snapshot mutation leaked into tracker")
	}
}
