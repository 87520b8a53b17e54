package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/google/subcommands"

	"github.com/atmx/ledger-engine/internal/report"
)

type exerciseCmd struct{}

func (*exerciseCmd) Name() string     { return "exercise" }
func (*exerciseCmd) Synopsis() string { return "exercise every contract of an option holding" }
func (*exerciseCmd) Usage() string {
	return `ledgerctl exercise <holding-id>

  Settles the option at its strike. A call buys the underlying shares, a put
  delivers held shares. Holding ids are listed by 'ledgerctl snapshot'.
`
}

func (*exerciseCmd) SetFlags(*flag.FlagSet) {}

func (*exerciseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fail("expected <holding-id>")
		return subcommands.ExitUsageError
	}
	id, err := strconv.ParseInt(f.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		fail("invalid holding id %q", f.Arg(0))
		return subcommands.ExitUsageError
	}

	a, cfg, err := openApp(ctx)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	res, err := a.Ledger.Exercise(ctx, id)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Exercised %s\n", res.Option.DisplayName())
	fmt.Println(report.Transaction(res.Record, cfg.Currency))
	fmt.Printf("Balance: %s\n", res.Balance.Format(cfg.Currency))
	return subcommands.ExitSuccess
}
