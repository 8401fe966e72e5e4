package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/subcommands"
	"github.com/robfig/cron/v3"

	"histdata/internal/config"
	"histdata/internal/domain"
	"histdata/internal/historical"
	"histdata/internal/store"
)

type scheduleCmd struct {
	overrides
	spec       string
	runOnStart bool
}

func (*scheduleCmd) Name() string     { return "schedule" }
func (*scheduleCmd) Synopsis() string { return "run fetch on a cron schedule" }
func (*scheduleCmd) Usage() string {
	return `histdata schedule [-cron "<sec min hour dom month dow>"] [-now] [-symbols <file>] [-start YYYYMMDD]

  Runs the pipeline on every tick. Each tick resolves its own end date, from
  the trading calendar when Alpaca credentials are configured and today's
  date otherwise, and writes to <data_dir>/<start>-<end>.
`
}

func (c *scheduleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbolsFile, "symbols", "", "symbol catalog CSV (index,symbol,enable)")
	f.StringVar(&c.startDate, "start", "", "first date to request, YYYYMMDD")
	f.StringVar(&c.spec, "cron", "", "cron expression with seconds (default schedule.cron)")
	f.BoolVar(&c.runOnStart, "now", false, "also run once immediately")
}

func (c *scheduleCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	base, logger, closeLog, err := setup(&c.overrides)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeLog()

	if c.spec == "" {
		c.spec = base.Schedule.Cron
	}
	if base.HistoricalData.OutputDir != "" {
		logger.Warn("ignoring output_dir for scheduled runs", "output_dir", base.HistoricalData.OutputDir)
	}

	rec, err := openRecorder(base)
	if err != nil {
		logger.Error("opening run ledger", "err", err)
		return subcommands.ExitFailure
	}
	defer rec.Close()

	// Ticks never overlap: a tick that fires while one is running is skipped.
	var mu sync.Mutex
	tick := func() {
		if !mu.TryLock() {
			logger.Warn("previous run still in progress, skipping tick")
			return
		}
		defer mu.Unlock()

		cfg := *base
		cfg.HistoricalData.OutputDir = ""
		cfg.HistoricalData.EndDate = ""
		resolveEndDate(&cfg, logger)
		if cfg.HistoricalData.EndDate == "" {
			cfg.HistoricalData.EndDate = time.Now().Format(domain.DateLayout)
		}
		runOnce(ctx, &cfg, rec, logger)
	}

	sched := cron.New(cron.WithSeconds())
	if _, err := sched.AddFunc(c.spec, tick); err != nil {
		logger.Error("invalid cron expression", "cron", c.spec, "err", err)
		return subcommands.ExitUsageError
	}

	if c.runOnStart {
		tick()
	}

	sched.Start()
	logger.Info("scheduler started", "cron", c.spec)
	<-ctx.Done()
	<-sched.Stop().Done()
	logger.Info("scheduler stopped")
	return subcommands.ExitSuccess
}

func runOnce(ctx context.Context, cfg *config.Config, rec store.Recorder, logger *slog.Logger) {
	daily, err := newDaily(cfg, rec, logger)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		return
	}
	start := time.Now()
	ds, err := daily.GetDaily(ctx)
	switch {
	case errors.Is(err, historical.ErrNoData):
		logger.Error("scheduled run produced no data", "end_date", cfg.HistoricalData.EndDate, "err", err)
	case err != nil:
		logger.Error("scheduled run failed", "end_date", cfg.HistoricalData.EndDate, "err", err)
	default:
		logger.Info("scheduled run complete",
			"end_date", cfg.HistoricalData.EndDate,
			"validated", len(ds.AdjClose.Columns),
			"elapsed", formatDuration(time.Since(start)),
		)
	}
}
