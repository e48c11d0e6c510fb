// Package state provides SQLite-backed persistence for benchmark runs:
// task submissions, agent executions, evaluations and the ranked
// leaderboard derived from them.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	// DriverSQLite is the pure-Go driver registered by modernc.org/sqlite.
	DriverSQLite = "sqlite"
	// DriverSQLite3 is the cgo driver registered by mattn/go-sqlite3.
	DriverSQLite3 = "sqlite3"
)

// timeLayout is fixed width so that text comparison matches time order.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// DB wraps an SQLite database connection with benchmark operations.
type DB struct {
	conn   *sql.DB
	path   string
	driver string
	now    func() time.Time
	mu     sync.RWMutex
}

// Open opens an SQLite database at the given path using driver, which is
// either DriverSQLite or DriverSQLite3 (empty means DriverSQLite).
// It creates the parent directories if they don't exist.
// WAL mode and foreign keys are enabled on every pooled connection.
func Open(driver, path string) (*DB, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	dsn, err := dataSourceName(driver, path)
	if err != nil {
		return nil, err
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &DB{conn: conn, path: path, driver: driver, now: time.Now}, nil
}

// dataSourceName applies the connection pragmas in each driver's syntax.
func dataSourceName(driver, path string) (string, error) {
	switch driver {
	case DriverSQLite:
		return path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
	case DriverSQLite3:
		return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", nil
	default:
		return "", fmt.Errorf("%w: unknown driver %q", ErrInvalidInput, driver)
	}
}

// Wrap returns a DB around an existing connection. No pragmas are applied.
func Wrap(conn *sql.DB) *DB {
	return &DB{conn: conn, driver: DriverSQLite, now: time.Now}
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Driver returns the database/sql driver name.
func (db *DB) Driver() string {
	return db.driver
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Tasks},
		{2, migrationV2Executions},
		{3, migrationV3Evaluations},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := db.queryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return v, nil
}

const migrationV1Tasks = `
CREATE TABLE IF NOT EXISTS task_submissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	prompt TEXT NOT NULL CHECK (length(trim(prompt)) > 0),
	submitted_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_task_submissions_submitted_at ON task_submissions(submitted_at);
`

const migrationV2Executions = `
CREATE TABLE IF NOT EXISTS agent_executions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL REFERENCES task_submissions(id) ON DELETE CASCADE,
	provider TEXT NOT NULL CHECK (length(provider) > 0),
	model TEXT NOT NULL CHECK (length(model) > 0),
	status TEXT NOT NULL DEFAULT 'running'
		CHECK (status IN ('running', 'completed', 'failed', 'timeout')),
	started_at TEXT NOT NULL,
	completed_at TEXT,
	duration_seconds REAL CHECK (duration_seconds IS NULL OR duration_seconds >= 0),
	token_count INTEGER CHECK (token_count IS NULL OR token_count >= 0),
	all_messages TEXT,
	error_summary TEXT
);

CREATE INDEX IF NOT EXISTS idx_agent_executions_task_id ON agent_executions(task_id);
CREATE INDEX IF NOT EXISTS idx_agent_executions_status ON agent_executions(status);
CREATE INDEX IF NOT EXISTS idx_agent_executions_model ON agent_executions(provider, model);
`

const migrationV3Evaluations = `
CREATE TABLE IF NOT EXISTS evaluations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id INTEGER NOT NULL UNIQUE REFERENCES agent_executions(id) ON DELETE CASCADE,
	score INTEGER NOT NULL CHECK (score BETWEEN 0 AND 100),
	explanation TEXT NOT NULL CHECK (length(trim(explanation)) > 0),
	evaluated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluations_score ON evaluations(score);

CREATE VIEW IF NOT EXISTS leaderboard AS
SELECT
	e.id AS execution_id,
	e.task_id,
	e.provider,
	e.model,
	e.status,
	e.started_at,
	e.completed_at,
	e.duration_seconds,
	e.token_count,
	e.all_messages,
	e.error_summary,
	v.id AS evaluation_id,
	v.score,
	v.explanation,
	v.evaluated_at
FROM agent_executions e
LEFT JOIN evaluations v ON v.execution_id = e.id;
`

func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.ExecContext(ctx, query, args...)
}

func (db *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryContext(ctx, query, args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRowContext(ctx, query, args...)
}

// Transaction runs the given function within a transaction. fn must use tx
// rather than the DB helpers.
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// parseNullableTime parses a nullable time string from SQLite.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

// PurgeOlderThan deletes task submissions older than the given age along
// with their executions and evaluations. Returns the number of tasks deleted.
func (db *DB) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(db.now().Add(-olderThan))

	result, err := db.exec(ctx, `DELETE FROM task_submissions WHERE submitted_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old tasks: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return count, nil
}
