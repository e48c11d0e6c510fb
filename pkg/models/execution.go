package models

// ExecutionStatus is the lifecycle state of one agent's attempt at a task.
type ExecutionStatus string

const (
	// ExecutionRunning is set when the executor starts.
	ExecutionRunning ExecutionStatus = "running"
	// ExecutionCompleted means the agent returned a final answer in time.
	ExecutionCompleted ExecutionStatus = "completed"
	// ExecutionFailed means the agent call returned an error.
	ExecutionFailed ExecutionStatus = "failed"
	// ExecutionTimeout means the deadline elapsed before the agent returned.
	ExecutionTimeout ExecutionStatus = "timeout"
)

// Valid returns true if the status is a known value.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionRunning, ExecutionCompleted, ExecutionFailed, ExecutionTimeout:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions can occur.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionTimeout:
		return true
	default:
		return false
	}
}

// TokensPerSecond returns token throughput, or 0 for a zero duration.
func TokensPerSecond(tokens int64, durationSeconds float64) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	return float64(tokens) / durationSeconds
}
