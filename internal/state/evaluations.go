package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/agentboard/pkg/models"
)

// CreateEvaluation stores the evaluation of a terminal execution. Each
// execution can be evaluated once.
func (db *DB) CreateEvaluation(ctx context.Context, executionID int64, score int, explanation string) (int64, error) {
	if !models.ValidScore(score) {
		return 0, fmt.Errorf("%w: score %d outside %d-%d", ErrInvalidInput, score, models.MinScore, models.MaxScore)
	}
	if strings.TrimSpace(explanation) == "" {
		return 0, fmt.Errorf("%w: explanation must not be empty", ErrInvalidInput)
	}

	var id int64
	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM agent_executions WHERE id = ?`, executionID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("execution %d: %w", executionID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get execution status: %w", err)
		}
		if !models.ExecutionStatus(status).Terminal() {
			return fmt.Errorf("%w: execution %d is %s", ErrInvalidTransition, executionID, status)
		}

		var existing int64
		err = tx.QueryRowContext(ctx, `SELECT id FROM evaluations WHERE execution_id = ?`, executionID).Scan(&existing)
		if err == nil {
			return fmt.Errorf("%w: execution %d", ErrAlreadyEvaluated, executionID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check evaluation: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO evaluations (execution_id, score, explanation, evaluated_at)
			VALUES (?, ?, ?, ?)
		`, executionID, score, explanation, formatTime(db.now()))
		if err != nil {
			return fmt.Errorf("insert evaluation: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("get evaluation id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetEvaluation retrieves the evaluation of an execution.
func (db *DB) GetEvaluation(ctx context.Context, executionID int64) (*Evaluation, error) {
	var ev Evaluation
	var evaluatedAt string

	err := db.queryRow(ctx, `
		SELECT id, execution_id, score, explanation, evaluated_at
		FROM evaluations WHERE execution_id = ?
	`, executionID).Scan(&ev.ID, &ev.ExecutionID, &ev.Score, &ev.Explanation, &evaluatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("evaluation for execution %d: %w", executionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get evaluation: %w", err)
	}

	ev.EvaluatedAt, err = parseTime(evaluatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse evaluated_at: %w", err)
	}
	return &ev, nil
}
