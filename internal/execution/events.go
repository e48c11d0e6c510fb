package execution

import (
	"time"

	"github.com/ShayCichocki/agentboard/pkg/models"
)

// EventType represents the type of execution event.
type EventType string

const (
	// EventBatchStarted is emitted once before any agent starts.
	EventBatchStarted EventType = "batch_started"
	// EventAgentStarted indicates an agent entered the running state.
	EventAgentStarted EventType = "agent_started"
	// EventAgentFinished indicates an agent reached a terminal state.
	EventAgentFinished EventType = "agent_finished"
	// EventBatchFinished is emitted after the join barrier.
	EventBatchFinished EventType = "batch_finished"
)

// Event is a status transition within one batch.
type Event struct {
	Type  EventType `json:"type"`
	RunID string    `json:"run_id"`
	// Index is the agent's position in the batch; -1 for batch events.
	Index  int                    `json:"index"`
	Agent  models.ModelRef        `json:"agent"`
	Status models.ExecutionStatus `json:"status,omitempty"`
	// Agents lists the batch line-up on EventBatchStarted.
	Agents    []models.ModelRef `json:"agents,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Tokens    int64             `json:"tokens,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
