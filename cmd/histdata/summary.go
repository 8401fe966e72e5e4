package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"

	"histdata/internal/dataset"
	"histdata/internal/domain"
	"histdata/internal/store"
)

type summaryCmd struct {
	overrides
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "summarize a cached dataset snapshot" }
func (*summaryCmd) Usage() string {
	return `histdata summary [-output <dir>] [-end YYYYMMDD]

  Prints last adjusted close, mean volume and daily return volatility for
  every validated symbol of an existing snapshot. Nothing is fetched.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) { c.overrides.setFlags(f) }

func (c *summaryCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, closeLog, err := setup(&c.overrides)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeLog()

	cache := store.NewCache(cfg.ResolveOutputDir())
	ds, ok, err := cache.LoadDataset()
	if err != nil {
		logger.Error("reading snapshot", "err", err)
		return subcommands.ExitFailure
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "no snapshot at %s\n", cache.DatasetPath())
		return subcommands.ExitFailure
	}

	if err := printSummary(os.Stdout, ds); err != nil {
		logger.Error("summary", "err", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printSummary(w io.Writer, ds *domain.DailyDataset) error {
	rows, err := dataset.Summarize(ds)
	if err != nil {
		return err
	}

	first, _ := firstDate(ds.AdjClose)
	last, _ := ds.AdjClose.LastDate()
	fmt.Fprintf(w, "%d symbols (%d validated), %s to %s\n\n",
		len(ds.Close.Columns), len(rows), first.Format("2006-01-02"), last.Format("2006-01-02"))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SYMBOL\tDAYS\tLAST ADJ CLOSE\tMEAN VOLUME\tDAILY VOL\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t\n",
			r.Symbol,
			r.Days,
			num(r.LastAdjClose, 2),
			num(r.MeanVolume, 0),
			pct(r.ReturnStdev),
		)
	}
	return tw.Flush()
}

// firstDate returns the first index date; t is sorted after validation.
func firstDate(t *domain.Table) (time.Time, bool) {
	if len(t.Dates) == 0 {
		return time.Time{}, false
	}
	return t.Dates[0], true
}

func num(v float64, digits int) string {
	if math.IsNaN(v) {
		return "-"
	}
	return humanize.CommafWithDigits(v, digits)
}

func pct(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return humanize.FtoaWithDigits(v*100, 2) + "%"
}
