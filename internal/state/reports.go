package state

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"

	"github.com/ShayCichocki/agentboard/internal/trace"
	"github.com/ShayCichocki/agentboard/pkg/models"
)

// Leaderboard returns a task's executions ranked by score descending, then
// duration ascending, then execution ID. Unevaluated executions sort after
// every evaluated one. Ranks start at 1.
func (db *DB) Leaderboard(ctx context.Context, taskID int64) ([]LeaderboardEntry, error) {
	rows, err := db.query(ctx, `
		SELECT execution_id, task_id, provider, model, status, started_at, completed_at,
			duration_seconds, token_count, all_messages, error_summary,
			evaluation_id, score, explanation, evaluated_at
		FROM leaderboard
		WHERE task_id = ?
		ORDER BY (score IS NULL), score DESC,
			(duration_seconds IS NULL), duration_seconds ASC,
			execution_id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []LeaderboardEntry
	for rows.Next() {
		var evalID, score sql.NullInt64
		var explanation, evaluatedAt sql.NullString

		e, err := scanExecution(rows, &evalID, &score, &explanation, &evaluatedAt)
		if err != nil {
			return nil, err
		}

		entry := LeaderboardEntry{
			Rank:      len(out) + 1,
			Execution: *e,
			Answer:    e.Trace.FinalText(),
			ToolCalls: trace.BuildTree(e.Trace),
		}
		if evalID.Valid {
			ev := &Evaluation{
				ID:          evalID.Int64,
				ExecutionID: e.ID,
				Score:       int(score.Int64),
				Explanation: explanation.String,
			}
			if t := parseNullableTime(evaluatedAt); t != nil {
				ev.EvaluatedAt = *t
			}
			entry.Evaluation = ev
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Less reports whether a ranks ahead of b under the leaderboard ordering.
func Less(a, b LeaderboardEntry) bool {
	if (a.Evaluation == nil) != (b.Evaluation == nil) {
		return a.Evaluation != nil
	}
	if a.Score() != b.Score() {
		return a.Score() > b.Score()
	}
	ad, bd := a.Execution.DurationSeconds, b.Execution.DurationSeconds
	if (ad == nil) != (bd == nil) {
		return ad != nil
	}
	if ad != nil && *ad != *bd {
		return *ad < *bd
	}
	return a.Execution.ID < b.Execution.ID
}

// Rank sorts entries with Less and assigns ranks from 1.
func Rank(entries []LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return Less(entries[i], entries[j]) })
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// PerformanceMetrics aggregates completed executions per provider and
// model, optionally restricted to one task. Results are sorted by provider
// then model.
func (db *DB) PerformanceMetrics(ctx context.Context, taskID *int64) ([]PerformanceMetric, error) {
	query := `
		SELECT provider, model, duration_seconds, token_count
		FROM agent_executions
		WHERE status = ? AND duration_seconds IS NOT NULL`
	args := []any{string(models.ExecutionCompleted)}
	if taskID != nil {
		query += ` AND task_id = ?`
		args = append(args, *taskID)
	}
	query += ` ORDER BY provider, model, id`

	rows, err := db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query performance metrics: %w", err)
	}
	defer rows.Close()

	type sample struct {
		durations []float64
		tokens    []float64
	}
	samples := make(map[models.ModelRef]*sample)
	var order []models.ModelRef

	for rows.Next() {
		var provider, model string
		var duration float64
		var tokens sql.NullInt64
		if err := rows.Scan(&provider, &model, &duration, &tokens); err != nil {
			return nil, fmt.Errorf("scan performance sample: %w", err)
		}
		ref := models.ModelRef{Provider: models.Provider(provider), Model: model}
		s, ok := samples[ref]
		if !ok {
			s = &sample{}
			samples[ref] = s
			order = append(order, ref)
		}
		s.durations = append(s.durations, duration)
		s.tokens = append(s.tokens, float64(tokens.Int64))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]PerformanceMetric, 0, len(order))
	for _, ref := range order {
		s := samples[ref]
		d := summarize(s.durations)
		tok := summarize(s.tokens)
		out = append(out, PerformanceMetric{
			Provider:       ref.Provider,
			Model:          ref.Model,
			Count:          d.count,
			AvgDuration:    d.mean,
			StdDevDuration: d.stddev,
			MinDuration:    d.min,
			MaxDuration:    d.max,
			AvgTokens:      tok.mean,
			StdDevTokens:   tok.stddev,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Model < out[j].Model
	})
	return out, nil
}

type stats struct {
	count        int
	mean, stddev float64
	min, max     float64
}

// summarize computes the mean, sample standard deviation and range. A
// single sample has zero deviation.
func summarize(xs []float64) stats {
	st := stats{count: len(xs)}
	if len(xs) == 0 {
		return st
	}
	st.min, st.max = xs[0], xs[0]
	var sum float64
	for _, x := range xs {
		sum += x
		st.min = math.Min(st.min, x)
		st.max = math.Max(st.max, x)
	}
	st.mean = sum / float64(len(xs))
	if len(xs) < 2 {
		return st
	}

	var sq float64
	for _, x := range xs {
		sq += (x - st.mean) * (x - st.mean)
	}
	st.stddev = math.Sqrt(sq / float64(len(xs)-1))
	return st
}
