package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DriverSQLite, tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// fixedClock makes stored timestamps deterministic.
func fixedClock(db *DB, start time.Time, step time.Duration) {
	current := start
	db.now = func() time.Time {
		t := current
		current = current.Add(step)
		return t
	}
}

func TestOpen(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open("", path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if db.Driver() != DriverSQLite {
		t.Errorf("Driver() = %q, want %q", db.Driver(), DriverSQLite)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")
	path := filepath.Join(nested, "test.db")

	db, err := Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(nested); os.IsNotExist(err) {
		t.Errorf("parent directories not created: %s", nested)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	// on Linux, we can't create files under /proc
	_, err := Open(DriverSQLite, "/proc/nonexistent/test.db")
	if err == nil {
		t.Error("expected error opening db at invalid path")
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("postgres", tempDBPath(t))
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpen_ForeignKeysEnabled(t *testing.T) {
	db := setupTestDB(t)

	var on int
	if err := db.queryRow(context.Background(), "PRAGMA foreign_keys").Scan(&on); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if on != 1 {
		t.Errorf("foreign_keys = %d, want 1", on)
	}
}

func TestClose(t *testing.T) {
	db, err := Open(DriverSQLite, tempDBPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	// Subsequent operations should fail
	_, err = db.query(context.Background(), "SELECT 1")
	if err == nil {
		t.Error("expected error after close, got nil")
	}
}

func TestMigrate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	objects := []struct{ kind, name string }{
		{"table", "schema_version"},
		{"table", "task_submissions"},
		{"table", "agent_executions"},
		{"table", "evaluations"},
		{"view", "leaderboard"},
	}
	for _, o := range objects {
		var count int
		row := db.queryRow(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type=? AND name=?", o.kind, o.name)
		if err := row.Scan(&count); err != nil {
			t.Errorf("failed to check %s %s: %v", o.kind, o.name, err)
		}
		if count != 1 {
			t.Errorf("%s %s does not exist", o.kind, o.name)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := Open(DriverSQLite, tempDBPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := db.Migrate(ctx); err != nil {
			t.Fatalf("Migrate (iteration %d) failed: %v", i, err)
		}
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != 3 {
		t.Errorf("schema version = %d, want 3", version)
	}
}

func TestMigrate_SchemaVersionTracking(t *testing.T) {
	db := setupTestDB(t)

	rows, err := db.query(context.Background(), "SELECT version FROM schema_version ORDER BY version")
	if err != nil {
		t.Fatalf("failed to query schema_version: %v", err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("failed to scan version: %v", err)
		}
		versions = append(versions, v)
	}

	expected := []int{1, 2, 3}
	if len(versions) != len(expected) {
		t.Fatalf("versions = %v, want %v", versions, expected)
	}
	for i, v := range expected {
		if versions[i] != v {
			t.Errorf("version[%d] = %d, want %d", i, versions[i], v)
		}
	}
}

func TestSchema_RejectsBlankPrompt(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.exec(context.Background(),
		"INSERT INTO task_submissions (prompt, submitted_at) VALUES (?, ?)", "   ", formatTime(time.Now()))
	if err == nil {
		t.Error("expected CHECK constraint to reject blank prompt")
	}
}

func TestSchema_RejectsUnknownStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	taskID, err := db.CreateTask(ctx, "prompt")
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	_, err = db.exec(ctx, `
		INSERT INTO agent_executions (task_id, provider, model, status, started_at)
		VALUES (?, 'openai', 'gpt-4o', 'pending', ?)
	`, taskID, formatTime(time.Now()))
	if err == nil {
		t.Error("expected CHECK constraint to reject status pending")
	}
}

func TestTransaction_Success(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO task_submissions (prompt, submitted_at) VALUES (?, ?)",
			"tx-1", "2024-01-01T00:00:00.000000Z")
		return err
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	var count int
	row := db.queryRow(ctx, "SELECT COUNT(*) FROM task_submissions WHERE prompt = ?", "tx-1")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("failed to verify: %v", err)
	}
	if count != 1 {
		t.Error("transaction was not committed")
	}
}

func TestTransaction_Rollback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO task_submissions (prompt, submitted_at) VALUES (?, ?)",
			"tx-fail", "2024-01-01T00:00:00.000000Z")
		if err != nil {
			return err
		}
		return fmt.Errorf("simulated error")
	})
	if err == nil {
		t.Error("expected error from Transaction")
	}

	var count int
	row := db.queryRow(ctx, "SELECT COUNT(*) FROM task_submissions WHERE prompt = ?", "tx-fail")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("failed to verify: %v", err)
	}
	if count != 0 {
		t.Error("transaction was not rolled back")
	}
}

func TestFormatAndParseTime(t *testing.T) {
	now := time.Now()
	formatted := formatTime(now)
	parsed, err := parseTime(formatted)
	if err != nil {
		t.Fatalf("parseTime failed: %v", err)
	}

	if !now.UTC().Truncate(time.Microsecond).Equal(parsed) {
		t.Errorf("time round-trip failed: got %v, want %v", parsed, now.UTC())
	}
}

func TestFormatTime_SortsLexically(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	earlier := formatTime(base)
	later := formatTime(base.Add(time.Millisecond))
	if !(earlier < later) {
		t.Errorf("%q should sort before %q", earlier, later)
	}
	if len(earlier) != len(later) {
		t.Errorf("layout is not fixed width: %q vs %q", earlier, later)
	}
}

func TestParseNullableTime(t *testing.T) {
	validTime := sql.NullString{String: "2024-01-01T12:00:00.000000Z", Valid: true}
	if parseNullableTime(validTime) == nil {
		t.Error("expected non-nil time for valid input")
	}

	if parseNullableTime(sql.NullString{Valid: false}) != nil {
		t.Error("expected nil time for invalid input")
	}

	badFormat := sql.NullString{String: "not a time", Valid: true}
	if parseNullableTime(badFormat) != nil {
		t.Error("expected nil time for invalid format")
	}
}

func TestPurgeOlderThan(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fixedClock(db, start, 24*time.Hour)

	oldID, err := db.CreateTask(ctx, "old task")
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if _, err := db.CreateExecution(ctx, oldID, testRef("openai", "gpt-4o")); err != nil {
		t.Fatalf("CreateExecution failed: %v", err)
	}
	// Skip ahead so the second task is recent relative to the purge clock.
	db.now = func() time.Time { return start.Add(10 * 24 * time.Hour) }
	newID, err := db.CreateTask(ctx, "new task")
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	n, err := db.PurgeOlderThan(ctx, 5*24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeOlderThan failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d tasks, want 1", n)
	}

	if _, err := db.GetTask(ctx, newID); err != nil {
		t.Errorf("recent task was purged: %v", err)
	}
	execs, err := db.ListExecutions(ctx, oldID)
	if err != nil {
		t.Fatalf("ListExecutions failed: %v", err)
	}
	if len(execs) != 0 {
		t.Errorf("executions of purged task survived: %d", len(execs))
	}
}
