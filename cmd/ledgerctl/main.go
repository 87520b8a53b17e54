// Command ledgerctl trades against and reports on a local ledger.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/atmx/ledger-engine/internal/model"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&tradeCmd{action: model.Buy}, "trading")
	commander.Register(&tradeCmd{action: model.Sell}, "trading")
	commander.Register(&exerciseCmd{}, "trading")

	commander.Register(&snapshotCmd{}, "reports")
	commander.Register(&historyCmd{}, "reports")
	commander.Register(&watchlistCmd{}, "reports")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
