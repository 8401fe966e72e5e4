package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"histdata/internal/catalog"
)

type catalogCmd struct {
	overrides
	enabledOnly bool
}

func (*catalogCmd) Name() string     { return "catalog" }
func (*catalogCmd) Synopsis() string { return "list the symbols in the catalog" }
func (*catalogCmd) Usage() string {
	return `histdata catalog [-symbols <file>] [-enabled]
`
}

func (c *catalogCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbolsFile, "symbols", "", "symbol catalog CSV (index,symbol,enable)")
	f.BoolVar(&c.enabledOnly, "enabled", false, "only list enabled symbols")
}

func (c *catalogCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, closeLog, err := setup(&c.overrides)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeLog()

	symbols, err := catalog.Load(cfg.HistoricalData.SymbolsFile)
	if err != nil {
		logger.Error("loading catalog", "err", err)
		return subcommands.ExitFailure
	}
	enabled := catalog.Enabled(symbols)
	if c.enabledOnly {
		symbols = enabled
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tSYMBOL\tENABLED")
	for _, s := range symbols {
		fmt.Fprintf(tw, "%d\t%s\t%t\n", s.Index, s.Name, s.Enabled)
	}
	tw.Flush()
	fmt.Printf("\n%d enabled of %d\n", len(enabled), len(symbols))
	return subcommands.ExitSuccess
}
