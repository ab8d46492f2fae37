// Package history persists a record of every run in a local SQLite
// database so failed files can be found and re-run later.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/filebatch/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one stored run.
type RunRecord struct {
	ID          string
	Op          string
	Roots       []string
	StartedAt   time.Time
	Duration    time.Duration
	Processed   int
	Succeeded   int
	Failed      int
	Skipped     int
	BytesBefore int64
	BytesAfter  int64
	Cancelled   bool
	Failures    []models.FailureDetail
}

// NewRunRecord builds a record from a finished summary.
func NewRunRecord(op string, roots []string, startedAt time.Time, s models.RunSummary) RunRecord {
	return RunRecord{
		ID:          s.RunID,
		Op:          op,
		Roots:       roots,
		StartedAt:   startedAt,
		Duration:    s.Duration,
		Processed:   s.Processed,
		Succeeded:   s.Succeeded,
		Failed:      s.Failed,
		Skipped:     s.Skipped,
		BytesBefore: s.BytesBefore,
		BytesAfter:  s.BytesAfter,
		Cancelled:   s.Cancelled,
		Failures:    s.Failures,
	}
}

// Store manages the run history database
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the history database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// The DSN options apply to every pooled connection; the pragmas below
	// only reach the first one.
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_busy_timeout=5000&_txlock=immediate"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// busy_timeout first so the rest wait on locks held by a concurrent run
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-8000",
	}

	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := execWithRetry(db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}

		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}

		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.dbPath
}

// RecordRun stores a run and its failures in one transaction. A record
// without an ID is assigned a fresh UUID, which is returned.
func (s *Store) RecordRun(ctx context.Context, run RunRecord) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	query := `INSERT INTO runs
		(id, op, roots, started_at, duration_ms, processed, succeeded, failed, skipped, bytes_before, bytes_after, cancelled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, query,
		run.ID,
		run.Op,
		strings.Join(run.Roots, "\n"),
		run.StartedAt.UTC(),
		run.Duration.Milliseconds(),
		run.Processed,
		run.Succeeded,
		run.Failed,
		run.Skipped,
		run.BytesBefore,
		run.BytesAfter,
		run.Cancelled,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	if len(run.Failures) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO failures (run_id, path, message) VALUES (?, ?, ?)`)
		if err != nil {
			return "", fmt.Errorf("prepare failure insert: %w", err)
		}
		defer stmt.Close()

		for _, f := range run.Failures {
			if _, err := stmt.ExecContext(ctx, run.ID, f.Path, f.Message); err != nil {
				return "", fmt.Errorf("insert failure %s: %w", f.Path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}

	return run.ID, nil
}

const runColumns = `id, op, roots, started_at, duration_ms, processed, succeeded, failed, skipped, bytes_before, bytes_after, cancelled`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	run := &RunRecord{}
	var roots string
	var durationMs int64
	err := row.Scan(
		&run.ID,
		&run.Op,
		&roots,
		&run.StartedAt,
		&durationMs,
		&run.Processed,
		&run.Succeeded,
		&run.Failed,
		&run.Skipped,
		&run.BytesBefore,
		&run.BytesAfter,
		&run.Cancelled,
	)
	if err != nil {
		return nil, err
	}

	if roots != "" {
		run.Roots = strings.Split(roots, "\n")
	}
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return run, nil
}

// ListRuns returns up to limit runs, most recent first. Failures are not
// loaded; use GetRun for those. A limit <= 0 returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}

// GetRun loads one run with its failures. An unambiguous ID prefix is
// accepted, so the short IDs printed by the CLI work.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY (id = ?) DESC LIMIT 2`,
		id, escapeLike(id)+"%", id)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	var matches []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		matches = append(matches, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case len(matches) > 1 && matches[0].ID != id:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
	run := matches[0]

	failures, err := s.db.QueryContext(ctx,
		`SELECT path, message FROM failures WHERE run_id = ? ORDER BY id`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer failures.Close()

	for failures.Next() {
		var f models.FailureDetail
		if err := failures.Scan(&f.Path, &f.Message); err != nil {
			return nil, fmt.Errorf("scan failure row: %w", err)
		}
		run.Failures = append(run.Failures, f)
	}
	if err := failures.Err(); err != nil {
		return nil, fmt.Errorf("iterate failure rows: %w", err)
	}

	return run, nil
}

// Prune keeps the newest keep runs and deletes the rest along with their
// failures. keep <= 0 keeps everything. Returns the number of runs deleted.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM failures WHERE run_id NOT IN (SELECT id FROM runs)`); err != nil {
		return 0, fmt.Errorf("prune failures: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}

	return deleted, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
