package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/subcommands"

	"histdata/internal/historical"
)

type fetchCmd struct {
	overrides
	summary bool
}

func (*fetchCmd) Name() string     { return "fetch" }
func (*fetchCmd) Synopsis() string { return "acquire, validate and cache the daily dataset" }
func (*fetchCmd) Usage() string {
	return `histdata fetch [-symbols <file>] [-output <dir>] [-start YYYYMMDD] [-end YYYYMMDD] [-summary]

  Returns the snapshot in the output directory if there is one. Otherwise
  fetches every enabled symbol not already cached there, validates the
  result and writes the snapshot.
`
}

func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	c.overrides.setFlags(f)
	f.BoolVar(&c.summary, "summary", false, "print a per-symbol summary when done")
}

func (c *fetchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, closeLog, err := setup(&c.overrides)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeLog()

	resolveEndDate(cfg, logger)

	rec, err := openRecorder(cfg)
	if err != nil {
		logger.Error("opening run ledger", "err", err)
		return subcommands.ExitFailure
	}
	defer rec.Close()

	daily, err := newDaily(cfg, rec, logger)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		return subcommands.ExitUsageError
	}

	ds, err := daily.GetDaily(ctx)
	if errors.Is(err, historical.ErrNoData) {
		logger.Error("no data", "err", err)
		return subcommands.ExitFailure
	}
	if err != nil {
		logger.Error("fetch failed", "err", err)
		return subcommands.ExitFailure
	}

	logger.Info("done",
		"output_dir", cfg.ResolveOutputDir(),
		"symbols", len(ds.Close.Columns),
		"validated", len(ds.AdjClose.Columns),
	)
	if c.summary {
		if err := printSummary(os.Stdout, ds); err != nil {
			slog.Error("summary", "err", err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}
