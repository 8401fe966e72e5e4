package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"

	"histdata/internal/store"
)

type runsCmd struct {
	limit int
	run   string
}

func (*runsCmd) Name() string     { return "runs" }
func (*runsCmd) Synopsis() string { return "list recent runs from the ledger" }
func (*runsCmd) Usage() string {
	return `histdata runs [-n <limit>] [-run <id>]

  Lists recent pipeline runs, newest first. With -run, lists the per-symbol
  outcomes of that run instead.
`
}

func (c *runsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 20, "number of runs to list")
	f.StringVar(&c.run, "run", "", "show symbol outcomes for this run ID")
}

func (c *runsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, closeLog, err := setup(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeLog()

	if cfg.Storage.SQLitePath == "" {
		fmt.Fprintln(os.Stderr, "storage.sqlite_path is not configured")
		return subcommands.ExitFailure
	}
	ledger, err := store.NewLedger(cfg.Storage.SQLitePath)
	if err != nil {
		logger.Error("opening run ledger", "err", err)
		return subcommands.ExitFailure
	}
	defer ledger.Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	if c.run != "" {
		outcomes, err := ledger.Outcomes(ctx, c.run)
		if err != nil {
			logger.Error("listing outcomes", "err", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintln(tw, "SYMBOL\tSOURCE\tOK\tREASON")
		for _, o := range outcomes {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", o.Symbol, o.Source, o.OK, o.Reason)
		}
		return subcommands.ExitSuccess
	}

	runs, err := ledger.ListRuns(ctx, c.limit)
	if err != nil {
		logger.Error("listing runs", "err", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(tw, "ID\tSTARTED\tTOOK\tEND DATE\tSTATUS\tSYMBOLS\tFETCHED\tCACHED\tFAILED\tDROPPED\tVALID")
	for _, r := range runs {
		took := formatDuration(r.EndedAt.Sub(r.StartedAt))
		if r.EndedAt.IsZero() {
			took = "-"
		}
		status := r.Status
		if r.Snapshot {
			status += " (snapshot)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, humanize.Time(r.StartedAt), took, r.EndDate, status,
			humanize.Comma(int64(r.Symbols)), humanize.Comma(int64(r.Fetched)), humanize.Comma(int64(r.Cached)),
			r.Failed, r.Dropped, validity(r.Valid),
		)
	}
	return subcommands.ExitSuccess
}

func validity(v sql.NullBool) string {
	switch {
	case !v.Valid:
		return "-"
	case v.Bool:
		return "yes"
	default:
		return "no"
	}
}
