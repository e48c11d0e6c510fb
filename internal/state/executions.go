package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/agentboard/internal/trace"
	"github.com/ShayCichocki/agentboard/pkg/models"
)

const executionColumns = `id, task_id, provider, model, status, started_at, completed_at,
	duration_seconds, token_count, all_messages, error_summary`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// CreateExecution records that an agent has started on a task. The new row
// has status running.
func (db *DB) CreateExecution(ctx context.Context, taskID int64, ref models.ModelRef) (int64, error) {
	if !ref.Provider.Valid() {
		return 0, fmt.Errorf("%w: unknown provider %q", ErrInvalidInput, ref.Provider)
	}
	if strings.TrimSpace(ref.Model) == "" {
		return 0, fmt.Errorf("%w: model must not be empty", ErrInvalidInput)
	}

	result, err := db.exec(ctx, `
		INSERT INTO agent_executions (task_id, provider, model, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, taskID, string(ref.Provider), ref.Model, string(models.ExecutionRunning), formatTime(db.now()))
	if err != nil {
		return 0, fmt.Errorf("insert execution: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get execution id: %w", err)
	}
	return id, nil
}

// CompleteExecution writes the terminal state of a running execution. It
// fails with ErrInvalidTransition if the row has already been completed.
func (db *DB) CompleteExecution(ctx context.Context, id int64, res ExecutionResult) error {
	if !res.Status.Terminal() {
		return fmt.Errorf("%w: status %q is not terminal", ErrInvalidInput, res.Status)
	}
	if res.Duration < 0 {
		return fmt.Errorf("%w: negative duration %s", ErrInvalidInput, res.Duration)
	}
	if res.Tokens != nil && *res.Tokens < 0 {
		return fmt.Errorf("%w: negative token count %d", ErrInvalidInput, *res.Tokens)
	}

	messages, err := res.Trace.Marshal()
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}

	var tokens sql.NullInt64
	if res.Tokens != nil {
		tokens = sql.NullInt64{Int64: *res.Tokens, Valid: true}
	}
	var summary sql.NullString
	if res.ErrorSummary != "" {
		summary = sql.NullString{String: res.ErrorSummary, Valid: true}
	}

	return db.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE agent_executions
			SET status = ?, completed_at = ?, duration_seconds = ?, token_count = ?,
				all_messages = ?, error_summary = ?
			WHERE id = ? AND status = ?
		`, string(res.Status), formatTime(db.now()), res.Duration.Seconds(), tokens,
			string(messages), summary, id, string(models.ExecutionRunning))
		if err != nil {
			return fmt.Errorf("update execution: %w", err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if n == 1 {
			return nil
		}

		var current string
		err = tx.QueryRowContext(ctx, `SELECT status FROM agent_executions WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("execution %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get execution status: %w", err)
		}
		return fmt.Errorf("%w: execution %d is %s", ErrInvalidTransition, id, current)
	})
}

// GetExecution retrieves an execution by ID.
func (db *DB) GetExecution(ctx context.Context, id int64) (*Execution, error) {
	row := db.queryRow(ctx, `SELECT `+executionColumns+` FROM agent_executions WHERE id = ?`, id)
	e, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("execution %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListExecutions returns a task's executions in creation order.
func (db *DB) ListExecutions(ctx context.Context, taskID int64) ([]Execution, error) {
	rows, err := db.query(ctx, `
		SELECT `+executionColumns+` FROM agent_executions WHERE task_id = ? ORDER BY id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanExecution(s rowScanner, extra ...any) (*Execution, error) {
	var e Execution
	var provider, status, startedAt string
	var completedAt, messages, summary sql.NullString
	var duration sql.NullFloat64
	var tokens sql.NullInt64

	dest := []any{&e.ID, &e.TaskID, &provider, &e.Model, &status, &startedAt, &completedAt,
		&duration, &tokens, &messages, &summary}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	e.Provider = models.Provider(provider)
	e.Status = models.ExecutionStatus(status)

	var err error
	e.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	e.CompletedAt = parseNullableTime(completedAt)
	if duration.Valid {
		d := duration.Float64
		e.DurationSeconds = &d
	}
	if tokens.Valid {
		n := tokens.Int64
		e.TokenCount = &n
	}
	if messages.Valid {
		e.Trace, err = trace.Parse([]byte(messages.String))
		if err != nil {
			return nil, fmt.Errorf("parse trace for execution %d: %w", e.ID, err)
		}
	}
	e.ErrorSummary = summary.String
	return &e, nil
}
