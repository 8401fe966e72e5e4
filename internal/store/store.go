// Package store persists acquisition state: the per-run file cache of raw
// series and dataset snapshots, and the SQLite ledger of past runs.
package store

import (
	"context"
	"database/sql"
	"time"
)

// Outcome sources recorded in the ledger.
const (
	SourceCache   = "cache"
	SourceNetwork = "network"
)

// Run summarises one pipeline execution.
type Run struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	OutputDir string
	StartDate string
	EndDate   string
	Snapshot  bool // dataset served from an existing snapshot
	Symbols   int  // enabled symbols requested
	Fetched   int  // symbols fetched over the network
	Cached    int  // symbols read from the raw-series cache
	Failed    int  // symbols with no usable series
	Dropped   int  // columns removed by validation
	Valid     sql.NullBool // unset when validation did not run, e.g. served from a snapshot
	Status    string // "ok", "no_data" or "error"
	Message   string
}

// Outcome records how one symbol was acquired in a run.
type Outcome struct {
	Symbol string
	Source string // SourceCache or SourceNetwork
	OK     bool
	Reason string
}

// Recorder persists run history.
type Recorder interface {
	// RecordRun inserts or replaces the summary of a run.
	RecordRun(ctx context.Context, run *Run) error

	// RecordOutcomes stores per-symbol outcomes for a run.
	RecordOutcomes(ctx context.Context, runID string, outcomes []Outcome) error

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Close releases the underlying resources.
	Close() error
}

// NoopRecorder discards all records.
type NoopRecorder struct{}

var _ Recorder = NoopRecorder{}

func (NoopRecorder) RecordRun(context.Context, *Run) error                   { return nil }
func (NoopRecorder) RecordOutcomes(context.Context, string, []Outcome) error { return nil }
func (NoopRecorder) ListRuns(context.Context, int) ([]Run, error)            { return nil, nil }
func (NoopRecorder) Close() error                                            { return nil }
