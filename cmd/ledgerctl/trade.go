package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/google/subcommands"

	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
	"github.com/atmx/ledger-engine/internal/report"
	"github.com/atmx/ledger-engine/internal/trade"
)

// tradeCmd implements both buy and sell.
type tradeCmd struct {
	action     model.Action
	assetType  string
	optionType string
	strike     string
	expiration string
}

func (c *tradeCmd) Name() string { return string(c.action) }
func (c *tradeCmd) Synopsis() string {
	return fmt.Sprintf("%s stock or option contracts at a per-share price", c.action)
}
func (c *tradeCmd) Usage() string {
	return fmt.Sprintf(`ledgerctl %[1]s [-t option -o call|put -k <strike> -e <YYYY-MM-DD>] <symbol> <quantity> <price>

  Records a %[1]s. Option prices are per share; one contract is 100 shares.
  An option may also be given by its OCC symbol with -t option alone:

    ledgerctl %[1]s -t option AAPL260116C00150000 1 2.35
`, c.action)
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.assetType, "t", "stock", "asset type: stock or option")
	f.StringVar(&c.optionType, "o", "", "option type: call or put")
	f.StringVar(&c.strike, "k", "", "option strike")
	f.StringVar(&c.expiration, "e", "", "option expiration date (YYYY-MM-DD)")
}

func (c *tradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		fail("expected <symbol> <quantity> <price>")
		return subcommands.ExitUsageError
	}
	qty, err := strconv.ParseInt(f.Arg(1), 10, 64)
	if err != nil {
		fail("invalid quantity %q", f.Arg(1))
		return subcommands.ExitUsageError
	}
	price, err := money.Parse(f.Arg(2))
	if err != nil {
		fail("invalid price %q", f.Arg(2))
		return subcommands.ExitUsageError
	}

	req := trade.TradeRequest{
		Symbol:     f.Arg(0),
		AssetType:  c.assetType,
		OptionType: c.optionType,
		Expiration: c.expiration,
	}
	if c.strike != "" {
		if req.Strike, err = money.Parse(c.strike); err != nil {
			fail("invalid strike %q", c.strike)
			return subcommands.ExitUsageError
		}
	}
	key, err := req.Key()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitUsageError
	}

	a, cfg, err := openApp(ctx)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	res, err := a.Ledger.Trade(ctx, key, c.action, qty, price)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}

	fmt.Println(report.Transaction(res.Record, cfg.Currency))
	fmt.Printf("Balance: %s\n", res.Balance.Format(cfg.Currency))
	return subcommands.ExitSuccess
}
