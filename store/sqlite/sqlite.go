/*
Package sqlite provides the SQLite-backed run audit store.

PURPOSE:
  Persists reminder runs and their per-recipient outcomes so operators can
  answer "what went out, to whom, and why was everyone else skipped" after
  the fact. Implements job.RunStore.

KEY TABLES:
  reminder_runs:     one row per pass (kind, date, dry_run, counts, status)
  reminder_outcomes: one row per recipient dispatched in a live pass

WAL MODE:
  Opened with WAL so the ops API can read run history while a pass is
  writing.

USAGE:
  store, err := sqlite.New("./data/reminders.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - job/run.go: RunStore interface and the records persisted here
  - store/memstore: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hybridhq/reminder-engine/dispatch"
	"github.com/hybridhq/reminder-engine/engine"
	"github.com/hybridhq/reminder-engine/job"
)

// Store implements job.RunStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a store at the given path. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reminder_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		run_date TEXT NOT NULL,
		dry_run BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'running',
		error TEXT,
		evaluated INTEGER DEFAULT 0,
		eligible INTEGER DEFAULT 0,
		sent INTEGER DEFAULT 0,
		delivered INTEGER DEFAULT 0,
		rejected INTEGER DEFAULT 0,
		transport_failed INTEGER DEFAULT 0,
		defects INTEGER DEFAULT 0,
		skipped_json TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reminder_runs_kind
		ON reminder_runs(kind);
	CREATE INDEX IF NOT EXISTS idx_reminder_runs_date
		ON reminder_runs(run_date);
	CREATE INDEX IF NOT EXISTS idx_reminder_runs_status
		ON reminder_runs(status);

	CREATE TABLE IF NOT EXISTS reminder_outcomes (
		run_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (run_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_reminder_outcomes_run
		ON reminder_outcomes(run_id);
	-- Token-invalidation candidates query scans by status
	CREATE INDEX IF NOT EXISTS idx_reminder_outcomes_status
		ON reminder_outcomes(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUN STORE (job.RunStore interface)
// =============================================================================

// SaveRun inserts the initial "running" row for a pass.
func (s *Store) SaveRun(ctx context.Context, run job.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminder_runs (id, kind, run_date, dry_run, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		string(run.Kind),
		run.Date,
		run.DryRun,
		run.Status,
		run.StartedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// CompleteRun writes the final status and counts for a pass.
func (s *Store) CompleteRun(ctx context.Context, run job.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	skippedJSON, _ := json.Marshal(run.Summary.Skipped)

	var completedAt any
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE reminder_runs
		SET status = ?, error = ?, evaluated = ?, eligible = ?, sent = ?,
		    delivered = ?, rejected = ?, transport_failed = ?, defects = ?,
		    skipped_json = ?, completed_at = ?
		WHERE id = ?`,
		run.Status,
		nullString(run.Error),
		run.Summary.Evaluated,
		run.Summary.Eligible,
		run.Summary.Sent,
		run.Summary.Delivered,
		run.Summary.Rejected,
		run.Summary.TransportFailed,
		run.Summary.Defects,
		string(skippedJSON),
		completedAt,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// SaveOutcomes inserts a pass's per-recipient results atomically.
func (s *Store) SaveOutcomes(ctx context.Context, runID string, outcomes []job.OutcomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, o := range outcomes {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO reminder_outcomes (run_id, user_id, status, reason, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			runID, o.UserID, string(o.Status), nullString(o.Reason), now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert outcome: %w", err)
		}
	}
	return sqlTx.Commit()
}

// =============================================================================
// QUERIES
// =============================================================================

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]job.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, run_date, dry_run, status, error, evaluated, eligible,
		       sent, delivered, rejected, transport_failed, defects,
		       skipped_json, started_at, completed_at
		FROM reminder_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []job.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run by id, or nil when absent.
func (s *Store) GetRun(ctx context.Context, id string) (*job.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, run_date, dry_run, status, error, evaluated, eligible,
		       sent, delivered, rejected, transport_failed, defects,
		       skipped_json, started_at, completed_at
		FROM reminder_runs
		WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	run, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListOutcomes returns a run's recipient outcomes.
func (s *Store) ListOutcomes(ctx context.Context, runID string) ([]job.OutcomeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, status, reason
		FROM reminder_outcomes
		WHERE run_id = ?
		ORDER BY user_id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []job.OutcomeRecord
	for rows.Next() {
		var o job.OutcomeRecord
		var status string
		var reason sql.NullString
		if err := rows.Scan(&o.UserID, &status, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Status = dispatch.OutcomeStatus(status)
		o.Reason = reason.String
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// RejectedTokenCandidates returns user ids whose tokens the relay rejected
// since the given time - the feed for the external token-invalidation
// process.
func (s *Store) RejectedTokenCandidates(ctx context.Context, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT user_id
		FROM reminder_outcomes
		WHERE status = ? AND created_at >= ?
		ORDER BY user_id ASC`,
		string(dispatch.RelayRejected), since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query rejected tokens: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

func scanRun(rows *sql.Rows) (job.RunRecord, error) {
	var (
		run         job.RunRecord
		kind        string
		errText     sql.NullString
		skippedJSON sql.NullString
		startedAt   string
		completedAt sql.NullString
	)

	err := rows.Scan(
		&run.ID, &kind, &run.Date, &run.DryRun, &run.Status, &errText,
		&run.Summary.Evaluated, &run.Summary.Eligible, &run.Summary.Sent,
		&run.Summary.Delivered, &run.Summary.Rejected,
		&run.Summary.TransportFailed, &run.Summary.Defects,
		&skippedJSON, &startedAt, &completedAt,
	)
	if err != nil {
		return run, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Kind = engine.ReminderKind(kind)
	run.Error = errText.String
	if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
		run.StartedAt = t
	}
	if completedAt.Valid {
		if t, err := time.Parse(time.RFC3339, completedAt.String); err == nil {
			run.CompletedAt = &t
		}
	}
	run.Summary.Skipped = make(map[engine.Reason]int)
	if skippedJSON.Valid && strings.TrimSpace(skippedJSON.String) != "" {
		json.Unmarshal([]byte(skippedJSON.String), &run.Summary.Skipped)
	}
	return run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
