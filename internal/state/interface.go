package state

import (
	"context"
	"io"
	"time"

	"github.com/ShayCichocki/agentboard/pkg/models"
)

// TaskStore handles task submission persistence.
type TaskStore interface {
	CreateTask(ctx context.Context, prompt string) (int64, error)
	GetTask(ctx context.Context, id int64) (*Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// ExecutionStore handles agent execution persistence.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, taskID int64, ref models.ModelRef) (int64, error)
	CompleteExecution(ctx context.Context, id int64, res ExecutionResult) error
	GetExecution(ctx context.Context, id int64) (*Execution, error)
	ListExecutions(ctx context.Context, taskID int64) ([]Execution, error)
}

// EvaluationStore handles evaluation persistence.
type EvaluationStore interface {
	CreateEvaluation(ctx context.Context, executionID int64, score int, explanation string) (int64, error)
	GetEvaluation(ctx context.Context, executionID int64) (*Evaluation, error)
}

// ReportStore serves the read-side projections.
type ReportStore interface {
	Leaderboard(ctx context.Context, taskID int64) ([]LeaderboardEntry, error)
	TaskHistory(ctx context.Context, limit int) ([]TaskSummary, error)
	PerformanceMetrics(ctx context.Context, taskID *int64) ([]PerformanceMetric, error)
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate(ctx context.Context) error
}

// Store defines the interface for benchmark persistence.
// The benchmark session and HTTP server depend on this rather than on the
// concrete SQLite implementation.
type Store interface {
	io.Closer
	Migrator
	TaskStore
	ExecutionStore
	EvaluationStore
	ReportStore
	PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store           = (*DB)(nil)
	_ Migrator        = (*DB)(nil)
	_ TaskStore       = (*DB)(nil)
	_ ExecutionStore  = (*DB)(nil)
	_ EvaluationStore = (*DB)(nil)
	_ ReportStore     = (*DB)(nil)
)
