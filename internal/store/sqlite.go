// Package store persists run history in SQLite so resolved prices outlive
// the output files and stay queryable across runs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/delfi-foods/pricescout/internal/model"
	"github.com/delfi-foods/pricescout/internal/sink"
)

// RunStore records reconciliation runs and their resolved results. It
// implements sink.Sink: AppendDiagnostic inserts a durable row per
// resolved SKU and WriteFinalTable closes out the run.
type RunStore struct {
	db    *sql.DB
	runID string
}

// NewSQLite opens the history database and configures WAL mode.
func NewSQLite(dsn string) (*RunStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "store: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	return &RunStore{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	input_path  TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	result_rows INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS results (
	id                TEXT PRIMARY KEY,
	run_id            TEXT NOT NULL REFERENCES runs(id),
	sku               TEXT NOT NULL,
	minimum_price     REAL NOT NULL,
	winning_source    TEXT NOT NULL,
	store_counts      TEXT NOT NULL,
	aggregator_prices TEXT NOT NULL,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
CREATE INDEX IF NOT EXISTS idx_results_sku ON results(sku);
`

// Migrate creates the schema.
func (s *RunStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "store: migrate")
}

// BeginRun opens a new run row; subsequent diagnostics attach to it.
func (s *RunStore) BeginRun(ctx context.Context, inputPath string) error {
	s.runID = uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_path, status, started_at) VALUES (?, ?, 'running', ?)`,
		s.runID, inputPath, time.Now().UTC(),
	)
	return eris.Wrap(err, "store: begin run")
}

// RunID returns the current run's identifier.
func (s *RunStore) RunID() string { return s.runID }

func (s *RunStore) AppendDiagnostic(ctx context.Context, d sink.Diagnostic) error {
	if s.runID == "" {
		return eris.New("store: no active run")
	}
	counts, err := json.Marshal(d.StoreCounts)
	if err != nil {
		return eris.Wrap(err, "store: marshal store counts")
	}
	prices, err := json.Marshal(d.AggregatorPrices)
	if err != nil {
		return eris.Wrap(err, "store: marshal aggregator prices")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (id, run_id, sku, minimum_price, winning_source, store_counts, aggregator_prices, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), s.runID, d.SKU, d.MinimumPrice, d.WinningSource,
		string(counts), string(prices), time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: insert result %s", d.SKU)
}

func (s *RunStore) WriteFinalTable(ctx context.Context, rows []model.ReconciliationResult) error {
	if s.runID == "" {
		return eris.New("store: no active run")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = 'complete', result_rows = ?, finished_at = ? WHERE id = ?`,
		len(rows), time.Now().UTC(), s.runID,
	)
	if err != nil {
		return eris.Wrapf(err, "store: complete run %s", s.runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "store: rows affected")
	}
	if n == 0 {
		return eris.Errorf("store: run not found: %s", s.runID)
	}
	return nil
}

// RunSummary is one row of run history.
type RunSummary struct {
	ID         string
	InputPath  string
	Status     string
	ResultRows int
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

// ListRuns returns run history, newest first. limit <= 0 means all.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	q := `SELECT id, input_path, status, result_rows, started_at, finished_at
	      FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.InputPath, &r.Status, &r.ResultRows, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan run")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate runs")
}

// ResultCount returns how many results were recorded for a run.
func (s *RunStore) ResultCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM results WHERE run_id = ?`, runID,
	).Scan(&n)
	return n, eris.Wrap(err, "store: count results")
}

// Close closes the database.
func (s *RunStore) Close() error {
	return s.db.Close()
}
