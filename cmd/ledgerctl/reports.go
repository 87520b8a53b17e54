package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/report"
)

type snapshotCmd struct{}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "display holdings, realized P&L and allocation" }
func (*snapshotCmd) Usage() string {
	return `ledgerctl snapshot

  Holdings are valued at the last known quote, or at average cost without one.
`
}

func (*snapshotCmd) SetFlags(*flag.FlagSet) {}

func (*snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, cfg, err := openApp(ctx)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	snap, err := a.Portfolio.Snapshot(ctx)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	printMarkdown(report.SnapshotMarkdown(snap, cfg.Currency))
	return subcommands.ExitSuccess
}

type historyCmd struct {
	symbol string
	tail   int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list the transaction log" }
func (*historyCmd) Usage() string {
	return `ledgerctl history [-s <symbol>] [-tail <n>]

  Lists transactions oldest first, including the stock legs of exercises.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "only transactions on this underlying symbol")
	f.IntVar(&c.tail, "tail", 0, "show only the last N transactions")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.tail < 0 {
		fail("-tail must not be negative")
		return subcommands.ExitUsageError
	}
	a, cfg, err := openApp(ctx)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	var records []model.TransactionRecord
	sym := strings.ToUpper(strings.TrimSpace(c.symbol))
	for _, r := range a.Ledger.State().Records {
		if sym == "" || r.Symbol == sym {
			records = append(records, r)
		}
	}
	if c.tail > 0 && len(records) > c.tail {
		records = records[len(records)-c.tail:]
	}
	printMarkdown(report.HistoryMarkdown(records, cfg.Currency))
	return subcommands.ExitSuccess
}

type watchlistCmd struct{}

func (*watchlistCmd) Name() string     { return "watchlist" }
func (*watchlistCmd) Synopsis() string { return "show or replace the watchlist" }
func (*watchlistCmd) Usage() string {
	return `ledgerctl watchlist [<symbol>...]

  Without arguments prints the watchlist; with arguments replaces it.
`
}

func (*watchlistCmd) SetFlags(*flag.FlagSet) {}

func (*watchlistCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, _, err := openApp(ctx)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	var symbols []string
	if f.NArg() > 0 {
		symbols, err = a.Ledger.SetWatchlist(ctx, f.Args())
	} else {
		symbols, err = a.Ledger.Watchlist(ctx)
	}
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	fmt.Println(strings.Join(symbols, " "))
	return subcommands.ExitSuccess
}
