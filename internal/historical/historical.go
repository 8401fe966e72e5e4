// Package historical is the entry point of the daily acquisition pipeline.
//
// GetDaily returns the validated dataset for one configured date window. The
// first successful call persists a snapshot under the output directory;
// later calls for the same directory return it without touching the network.
// An interrupted run resumes from the raw series already cached there.
package historical

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"histdata/internal/catalog"
	"histdata/internal/dataset"
	"histdata/internal/domain"
	"histdata/internal/gather"
	"histdata/internal/scraper"
	"histdata/internal/store"
)

// ErrNoData is returned when a run produces no usable dataset. It is joined
// with the underlying cause when there is one.
var ErrNoData = errors.New("no data")

// Compile-time interface check.
var _ gather.Gatherer = (*Daily)(nil)

// Options describes one acquisition run. Dates use YYYYMMDD; either may be
// empty.
type Options struct {
	SymbolsFile string
	OutputDir   string
	StartDate   string
	EndDate     string
	BaseURL     string
}

// Daily acquires, validates and caches the daily dataset for one window.
type Daily struct {
	opts   Options
	window domain.DateRange
	cache  *store.Cache
	orch   *gather.Orchestrator
	rec    store.Recorder
	log    *slog.Logger
}

// New creates a Daily. rec may be nil, in which case runs are not recorded.
func New(opts Options, sched scraper.Scheduler, rec store.Recorder, logger *slog.Logger) (*Daily, error) {
	if opts.OutputDir == "" {
		return nil, errors.New("output dir is required")
	}
	window, err := domain.ParseDateRange(opts.StartDate, opts.EndDate)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = store.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	cache := store.NewCache(opts.OutputDir)
	return &Daily{
		opts:   opts,
		window: window,
		cache:  cache,
		orch:   gather.NewOrchestrator(sched, cache, opts.BaseURL, logger),
		rec:    rec,
		log:    logger.With("component", "historical", "output_dir", opts.OutputDir),
	}, nil
}

// Name returns the gatherer identifier.
func (d *Daily) Name() string { return "historical-daily" }

// Run performs GetDaily and discards the dataset.
func (d *Daily) Run(ctx context.Context) error {
	_, err := d.GetDaily(ctx)
	return err
}

// GetDaily returns the dataset for the configured window, from the snapshot
// when one exists and by fetching otherwise. The dataset is returned even if
// validation failed, as long as some adjusted-close column survived; the
// run's validation report is logged and recorded.
func (d *Daily) GetDaily(ctx context.Context) (*domain.DailyDataset, error) {
	run := &store.Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		OutputDir: d.opts.OutputDir,
		StartDate: d.opts.StartDate,
		EndDate:   d.opts.EndDate,
	}

	ds, err := d.getDaily(ctx, run)

	run.EndedAt = time.Now().UTC()
	switch {
	case err == nil:
		run.Status = "ok"
	case errors.Is(err, ErrNoData):
		run.Status = "no_data"
		run.Message = err.Error()
	default:
		run.Status = "error"
		run.Message = err.Error()
	}
	if rerr := d.rec.RecordRun(context.WithoutCancel(ctx), run); rerr != nil {
		d.log.Warn("recording run", "run", run.ID, "err", rerr)
	}
	return ds, err
}

func (d *Daily) getDaily(ctx context.Context, run *store.Run) (*domain.DailyDataset, error) {
	// 1. Snapshot short-circuit.
	ds, ok, err := d.cache.LoadDataset()
	if err != nil {
		d.log.Warn("snapshot unreadable, rebuilding", "err", err)
	}
	if ok {
		d.log.Info("snapshot already exists", "end_date", d.opts.EndDate, "path", d.cache.DatasetPath())
		run.Snapshot = true
		return ds, nil
	}

	// 2. Output dir and catalog.
	if err := d.cache.EnsureDir(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoData, err)
	}
	symbols, err := catalog.Load(d.opts.SymbolsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoData, err)
	}
	enabled := catalog.Enabled(symbols)
	run.Symbols = len(enabled)
	d.log.Info("catalog loaded", "symbols", len(symbols), "enabled", len(enabled))

	// 3. Acquire.
	results := d.orch.Collect(ctx, symbols, d.window)
	if err := ctx.Err(); err != nil {
		d.recordOutcomes(ctx, run, results, nil)
		return nil, fmt.Errorf("collecting: %w", err)
	}

	// 4. Assemble.
	ds, asm := dataset.Assemble(results)
	d.recordOutcomes(ctx, run, results, asm.Failures)
	if asm.HadFailures {
		d.log.Warn("some symbols have no data", "failed", len(asm.Failures))
	}
	if ds.Empty() {
		return nil, fmt.Errorf("%w: no series assembled", ErrNoData)
	}

	// 5. Validate.
	rep := dataset.Validate(ds, d.window.End, d.log)
	run.Valid = sql.NullBool{Bool: rep.Valid && !asm.HadFailures, Valid: true}
	run.Dropped = len(rep.Dropped)
	if len(ds.AdjClose.Columns) == 0 {
		return nil, fmt.Errorf("%w: every column failed validation", ErrNoData)
	}

	// 6. Persist.
	if err := d.cache.SaveDataset(ds); err != nil {
		d.log.Error("saving snapshot", "path", d.cache.DatasetPath(), "err", err)
	} else {
		d.log.Info("snapshot written", "path", d.cache.DatasetPath())
	}

	d.log.Info("daily dataset ready",
		"symbols", len(ds.Close.Columns),
		"validated", len(ds.AdjClose.Columns),
		"dates", len(ds.Close.Dates),
		"valid", run.Valid.Bool,
	)
	return ds, nil
}

// recordOutcomes fills the run counters and writes one outcome per symbol.
// parseFailures marks successful fetches whose series could not be used.
func (d *Daily) recordOutcomes(ctx context.Context, run *store.Run, results map[string]domain.FetchResult, parseFailures map[string]error) {
	outcomes := make([]store.Outcome, 0, len(results))
	for sym, r := range results {
		o := store.Outcome{Symbol: sym, Source: store.SourceNetwork, OK: true}
		if r.Cached {
			o.Source = store.SourceCache
			run.Cached++
		} else {
			run.Fetched++
		}
		if ferr, failed := parseFailures[sym]; failed {
			o.OK = false
			o.Reason = ferr.Error()
		} else if !r.OK() {
			o.OK = false
			o.Reason = r.Err.Error()
		}
		if !o.OK {
			run.Failed++
		}
		outcomes = append(outcomes, o)
	}
	if err := d.rec.RecordOutcomes(context.WithoutCancel(ctx), run.ID, outcomes); err != nil {
		d.log.Warn("recording outcomes", "run", run.ID, "err", err)
	}
}
