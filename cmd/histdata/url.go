package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"histdata/internal/domain"
	"histdata/internal/gather"
)

type urlCmd struct {
	overrides
}

func (*urlCmd) Name() string     { return "url" }
func (*urlCmd) Synopsis() string { return "print the download URL for symbols" }
func (*urlCmd) Usage() string {
	return `histdata url [-start YYYYMMDD] [-end YYYYMMDD] <symbol>...
`
}

func (c *urlCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.startDate, "start", "", "first date to request, YYYYMMDD")
	f.StringVar(&c.endDate, "end", "", "last date to request, YYYYMMDD")
}

func (c *urlCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	cfg, _, closeLog, err := setup(&c.overrides)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeLog()

	window, err := domain.ParseDateRange(cfg.HistoricalData.StartDate, cfg.HistoricalData.EndDate)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	for _, sym := range f.Args() {
		fmt.Println(gather.BuildURL(cfg.HistoricalData.BaseURL, sym, window))
	}
	return subcommands.ExitSuccess
}
