package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateTask stores a new task submission and returns its ID.
func (db *DB) CreateTask(ctx context.Context, prompt string) (int64, error) {
	if strings.TrimSpace(prompt) == "" {
		return 0, fmt.Errorf("%w: prompt must not be empty", ErrInvalidInput)
	}

	result, err := db.exec(ctx, `
		INSERT INTO task_submissions (prompt, submitted_at) VALUES (?, ?)
	`, prompt, formatTime(db.now()))
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get task id: %w", err)
	}
	return id, nil
}

// GetTask retrieves a task by ID.
func (db *DB) GetTask(ctx context.Context, id int64) (*Task, error) {
	var t Task
	var submittedAt string

	err := db.queryRow(ctx, `
		SELECT id, prompt, submitted_at FROM task_submissions WHERE id = ?
	`, id).Scan(&t.ID, &t.Prompt, &submittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	t.SubmittedAt, err = parseTime(submittedAt)
	if err != nil {
		return nil, fmt.Errorf("parse submitted_at: %w", err)
	}
	return &t, nil
}

// DeleteTask removes a task and, by cascade, its executions and evaluations.
func (db *DB) DeleteTask(ctx context.Context, id int64) error {
	result, err := db.exec(ctx, `DELETE FROM task_submissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

// TaskHistory returns the most recent tasks, newest first, with their
// execution count and best score. A non-positive limit returns all tasks.
func (db *DB) TaskHistory(ctx context.Context, limit int) ([]TaskSummary, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.query(ctx, `
		SELECT t.id, t.prompt, t.submitted_at,
			COUNT(DISTINCT e.id), MAX(v.score)
		FROM task_submissions t
		LEFT JOIN agent_executions e ON e.task_id = t.id
		LEFT JOIN evaluations v ON v.execution_id = e.id
		GROUP BY t.id
		ORDER BY t.submitted_at DESC, t.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query task history: %w", err)
	}
	defer rows.Close()

	var out []TaskSummary
	for rows.Next() {
		var s TaskSummary
		var submittedAt string
		var best sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Prompt, &submittedAt, &s.ExecutionCount, &best); err != nil {
			return nil, fmt.Errorf("scan task summary: %w", err)
		}
		s.SubmittedAt, err = parseTime(submittedAt)
		if err != nil {
			return nil, fmt.Errorf("parse submitted_at: %w", err)
		}
		if best.Valid {
			score := int(best.Int64)
			s.HighestScore = &score
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
