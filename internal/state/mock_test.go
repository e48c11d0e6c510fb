package state

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ShayCichocki/agentboard/pkg/models"
)

func setupMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
	})
	return Wrap(conn), mock
}

var errDiskFull = errors.New("database or disk is full")

func TestMock_CreateTaskInsertError(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO task_submissions")).
		WillReturnError(errDiskFull)

	_, err := db.CreateTask(context.Background(), "prompt")
	if !errors.Is(err, errDiskFull) {
		t.Errorf("error = %v, want wrapped disk error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMock_CompleteExecutionReportsCurrentStatus(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE agent_executions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM agent_executions")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("failed"))
	mock.ExpectRollback()

	err := db.CompleteExecution(context.Background(), 7, ExecutionResult{
		Status:   models.ExecutionCompleted,
		Duration: time.Second,
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMock_CompleteExecutionUpdateError(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE agent_executions")).
		WillReturnError(errDiskFull)
	mock.ExpectRollback()

	err := db.CompleteExecution(context.Background(), 1, ExecutionResult{
		Status:   models.ExecutionFailed,
		Duration: time.Second,
	})
	if !errors.Is(err, errDiskFull) {
		t.Errorf("error = %v, want wrapped disk error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMock_CreateEvaluationValidatesBeforeWrite(t *testing.T) {
	db, mock := setupMockDB(t)

	// No expectations: a rejected call must not touch the database.
	if _, err := db.CreateEvaluation(context.Background(), 1, 150, "x"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMock_CreateEvaluationCommitError(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM agent_executions")).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("completed"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM evaluations")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO evaluations")).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit().WillReturnError(errDiskFull)

	_, err := db.CreateEvaluation(context.Background(), 1, 80, "good")
	if !errors.Is(err, errDiskFull) {
		t.Errorf("error = %v, want commit error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMock_LeaderboardQueryError(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM leaderboard")).
		WillReturnError(errDiskFull)

	if _, err := db.Leaderboard(context.Background(), 1); !errors.Is(err, errDiskFull) {
		t.Errorf("error = %v, want wrapped disk error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMock_LeaderboardCorruptTrace(t *testing.T) {
	db, mock := setupMockDB(t)

	cols := []string{"execution_id", "task_id", "provider", "model", "status", "started_at",
		"completed_at", "duration_seconds", "token_count", "all_messages", "error_summary",
		"evaluation_id", "score", "explanation", "evaluated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM leaderboard")).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			1, 1, "openai", "gpt-4o", "completed", "2024-01-01T00:00:00.000000Z",
			"2024-01-01T00:00:01.000000Z", 1.0, 10, "{not json", nil,
			nil, nil, nil, nil))

	if _, err := db.Leaderboard(context.Background(), 1); err == nil {
		t.Error("expected error for corrupt trace column")
	}
}
