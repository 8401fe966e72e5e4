// Command histdata acquires, caches and validates daily historical prices for
// the symbols listed in a catalog file.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", defaultConfigPath(), "path to the YAML configuration file")

func defaultConfigPath() string {
	if p := os.Getenv("HISTDATA_CONFIG"); p != "" {
		return p
	}
	return "config/histdata.yaml"
}

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&fetchCmd{}, "pipeline")
	commander.Register(&scheduleCmd{}, "pipeline")
	commander.Register(&summaryCmd{}, "inspect")
	commander.Register(&runsCmd{}, "inspect")
	commander.Register(&catalogCmd{}, "inspect")
	commander.Register(&urlCmd{}, "inspect")

	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := commander.Execute(ctx)
	cancel()
	os.Exit(int(status))
}
