// Package store keeps a SQLite history of finished runs. Only terminal
// records are written; in-progress state never reaches the database.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

var (
	// ErrNotFound is returned when no run has the requested ID
	ErrNotFound = errors.New("run not found in history")
	// ErrNotTerminal is returned when recording a run that is still in progress
	ErrNotTerminal = errors.New("run is not finished")
)

// Store is the run history database
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path. The database uses
// WAL journaling and a single connection, since SQLite allows one writer.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Record writes a finished run. Recording the same ID again replaces the
// earlier row.
func (s *Store) Record(ctx context.Context, run *models.Run) error {
	if !run.Status.Terminal() {
		return fmt.Errorf("record %s: %w (status %s)", run.ID, ErrNotTerminal, run.Status)
	}

	var (
		maxResult    sql.NullInt64
		completed    int
		stoppedEarly bool
		duration     time.Duration
	)
	if out := run.Outcome; out != nil {
		maxResult = sql.NullInt64{Int64: int64(out.MaxResult), Valid: true}
		completed = out.TrialsCompleted
		stoppedEarly = out.StoppedEarly
		duration = out.Duration
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, trial, strategy, status, trial_budget, stop_threshold, max_workers, seed,
		 category_count, draws_per_trial, category_of_interest,
		 max_result, trials_completed, stopped_early, duration_ns, error,
		 created_at, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			max_result = excluded.max_result,
			trials_completed = excluded.trials_completed,
			stopped_early = excluded.stopped_early,
			duration_ns = excluded.duration_ns,
			error = excluded.error,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at
	`,
		run.ID, run.Trial, string(run.Config.Strategy), string(run.Status),
		run.Config.TrialBudget, run.Config.StopThreshold, run.Config.MaxWorkers, run.Config.Seed,
		run.Params.CategoryCount, run.Params.DrawsPerTrial, run.Params.CategoryOfInterest,
		maxResult, completed, stoppedEarly, int64(duration), run.Error,
		unixNano(run.CreatedAt), unixNano(run.StartedAt), unixNano(run.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", run.ID, err)
	}
	return nil
}

const selectRuns = `
	SELECT id, trial, strategy, status, trial_budget, stop_threshold, max_workers, seed,
	       category_count, draws_per_trial, category_of_interest,
	       max_result, trials_completed, stopped_early, duration_ns, error,
	       created_at, started_at, ended_at
	FROM runs`

// Get returns one recorded run
func (s *Store) Get(ctx context.Context, id string) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return run, nil
}

// List returns the most recently recorded runs first. A non-positive limit
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectRuns+` ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.Run, error) {
	var (
		run                           models.Run
		strategy, status              string
		maxResult                     sql.NullInt64
		completed                     int
		stoppedEarly                  bool
		duration                      int64
		createdAt, startedAt, endedAt int64
	)
	err := row.Scan(
		&run.ID, &run.Trial, &strategy, &status,
		&run.Config.TrialBudget, &run.Config.StopThreshold, &run.Config.MaxWorkers, &run.Config.Seed,
		&run.Params.CategoryCount, &run.Params.DrawsPerTrial, &run.Params.CategoryOfInterest,
		&maxResult, &completed, &stoppedEarly, &duration, &run.Error,
		&createdAt, &startedAt, &endedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Config.Strategy = models.StrategyKind(strategy)
	run.Status = models.RunStatus(status)
	run.CreatedAt = fromUnixNano(createdAt)
	run.StartedAt = fromUnixNano(startedAt)
	run.EndedAt = fromUnixNano(endedAt)
	if maxResult.Valid {
		run.Outcome = &models.RunOutcome{
			MaxResult:       models.TrialResult(maxResult.Int64),
			TrialsCompleted: completed,
			StoppedEarly:    stoppedEarly,
			Strategy:        run.Config.Strategy,
			Duration:        time.Duration(duration),
		}
	}
	return &run, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
