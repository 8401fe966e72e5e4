package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ Recorder = (*Ledger)(nil)

// Ledger implements Recorder backed by a SQLite database. It is written by a
// single goroutine per process.
type Ledger struct {
	db *sql.DB
}

// NewLedger opens (or creates) a SQLite database at dbPath and runs the
// schema migrations.
func NewLedger(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			started_at  INTEGER NOT NULL,
			ended_at    INTEGER,
			output_dir  TEXT NOT NULL,
			start_date  TEXT,
			end_date    TEXT,
			snapshot    INTEGER NOT NULL DEFAULT 0,
			symbols     INTEGER NOT NULL DEFAULT 0,
			fetched     INTEGER NOT NULL DEFAULT 0,
			cached      INTEGER NOT NULL DEFAULT 0,
			failed      INTEGER NOT NULL DEFAULT 0,
			dropped     INTEGER NOT NULL DEFAULT 0,
			valid       INTEGER,
			status      TEXT NOT NULL,
			message     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS fetch_outcomes (
			run_id  TEXT NOT NULL,
			symbol  TEXT NOT NULL,
			source  TEXT NOT NULL,
			ok      INTEGER NOT NULL,
			reason  TEXT,
			PRIMARY KEY (run_id, symbol)
		)`,
	}
	for _, s := range stmts {
		if _, err := l.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecordRun inserts or replaces the summary row for run.ID.
func (l *Ledger) RecordRun(ctx context.Context, run *Run) error {
	var ended, valid any
	if !run.EndedAt.IsZero() {
		ended = run.EndedAt.UnixMilli()
	}
	if run.Valid.Valid {
		valid = boolInt(run.Valid.Bool)
	}
	_, err := l.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(id, started_at, ended_at, output_dir, start_date, end_date, snapshot,
		 symbols, fetched, cached, failed, dropped, valid, status, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixMilli(), ended, run.OutputDir, run.StartDate, run.EndDate,
		boolInt(run.Snapshot), run.Symbols, run.Fetched, run.Cached, run.Failed, run.Dropped,
		valid, run.Status, run.Message,
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", run.ID, err)
	}
	return nil
}

// RecordOutcomes stores per-symbol outcomes in a single transaction.
func (l *Ledger) RecordOutcomes(ctx context.Context, runID string, outcomes []Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO fetch_outcomes
		(run_id, symbol, source, ok, reason) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range outcomes {
		if _, err := stmt.ExecContext(ctx, runID, o.Symbol, o.Source, boolInt(o.OK), o.Reason); err != nil {
			return fmt.Errorf("recording outcome %s: %w", o.Symbol, err)
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `SELECT id, started_at, ended_at, output_dir, start_date,
		end_date, snapshot, symbols, fetched, cached, failed, dropped, valid, status, message
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started           int64
			ended             sql.NullInt64
			startDate, endDt  sql.NullString
			message           sql.NullString
			isValid           sql.NullInt64
			snapshot          int
		)
		if err := rows.Scan(&r.ID, &started, &ended, &r.OutputDir, &startDate, &endDt,
			&snapshot, &r.Symbols, &r.Fetched, &r.Cached, &r.Failed, &r.Dropped,
			&isValid, &r.Status, &message); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		if ended.Valid {
			r.EndedAt = time.UnixMilli(ended.Int64)
		}
		r.StartDate = startDate.String
		r.EndDate = endDt.String
		r.Message = message.String
		r.Snapshot = snapshot != 0
		r.Valid = sql.NullBool{Bool: isValid.Int64 != 0, Valid: isValid.Valid}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Outcomes returns the recorded outcomes of a run ordered by symbol.
func (l *Ledger) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT symbol, source, ok, reason
		FROM fetch_outcomes WHERE run_id = ? ORDER BY symbol`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o      Outcome
			ok     int
			reason sql.NullString
		)
		if err := rows.Scan(&o.Symbol, &o.Source, &ok, &reason); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.OK = ok != 0
		o.Reason = reason.String
		out = append(out, o)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
