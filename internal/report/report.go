// Package report renders portfolio snapshots and the transaction log as
// markdown, with amounts formatted in the account currency.
package report

import (
	"fmt"
	"strings"

	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
	"github.com/atmx/ledger-engine/internal/portfolio"
)

// SnapshotMarkdown renders the portfolio summary.
func SnapshotMarkdown(s *model.Snapshot, currency string) string {
	var b strings.Builder
	cash, invested := portfolio.Valuation(s)

	fmt.Fprintf(&b, "# Portfolio\n\n")
	fmt.Fprintf(&b, "- **Total value:** %s\n", s.TotalValue.Format(currency))
	fmt.Fprintf(&b, "- **Cash:** %s\n", cash.Format(currency))
	fmt.Fprintf(&b, "- **Invested:** %s\n\n", invested.Format(currency))

	fmt.Fprintf(&b, "## Holdings\n\n")
	if len(s.Holdings) == 0 {
		fmt.Fprintf(&b, "_No open holdings._\n\n")
	} else {
		fmt.Fprintln(&b, "| ID | Instrument | Qty | Avg Cost | Price | Market Value | Gain/Loss | % |")
		fmt.Fprintln(&b, "|---:|:---|---:|---:|---:|---:|---:|---:|")
		for _, h := range s.Holdings {
			price := h.CurrentPrice.Format(currency)
			if h.PriceSource == model.PriceCost {
				price += " *"
			}
			fmt.Fprintf(&b, "| %d | %s | %d | %s | %s | %s | %s | %s%% |\n",
				h.ID,
				h.DisplayName,
				h.Quantity,
				h.AvgCost.Format(currency),
				price,
				h.MarketValue.Format(currency),
				h.GainLoss.Format(currency),
				h.GainLossPct.StringFixed(2),
			)
		}
		fmt.Fprintln(&b)
		if hasCostFallback(s.Holdings) {
			fmt.Fprintf(&b, "\\* no quote, valued at average cost\n\n")
		}
	}

	st := s.Stats
	fmt.Fprintf(&b, "## Realized P&L\n\n")
	fmt.Fprintln(&b, "| Realized | Closing Trades | Wins | Losses | Win Rate | Max Losing Streak |")
	fmt.Fprintln(&b, "|---:|---:|---:|---:|---:|---:|")
	fmt.Fprintf(&b, "| %s | %d | %d | %d | %s%% | %d |\n\n",
		st.RealizedPnL.Format(currency),
		st.TotalTrades,
		st.Wins,
		st.Losses,
		st.WinRate.Shift(2).StringFixed(2),
		st.MaxConsecutiveLosses,
	)
	if st.UnmatchedQuantity > 0 {
		fmt.Fprintf(&b, "> %d sold units had no recorded lot to match.\n\n", st.UnmatchedQuantity)
	}

	a := s.Allocation
	fmt.Fprintf(&b, "## Allocation\n\n")
	fmt.Fprintln(&b, "| Stock | Option | Cash |")
	fmt.Fprintln(&b, "|---:|---:|---:|")
	fmt.Fprintf(&b, "| %s%% | %s%% | %s%% |\n", a.Stock.StringFixed(2), a.Option.StringFixed(2), a.Cash.StringFixed(2))

	return b.String()
}

// HistoryMarkdown renders records as a table, most recent last.
func HistoryMarkdown(records []model.TransactionRecord, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Transactions\n\n")
	if len(records) == 0 {
		fmt.Fprintf(&b, "_No transactions._\n")
		return b.String()
	}
	fmt.Fprintln(&b, "| Time | Action | Qty | Instrument | Price | Amount | Origin |")
	fmt.Fprintln(&b, "|:---|:---|---:|:---|---:|---:|:---|")
	for _, r := range records {
		fmt.Fprintf(&b, "| %s | %s | %d | %s | %s | %s | %s |\n",
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Action,
			r.Quantity,
			r.DisplayName(),
			r.Price.Format(currency),
			Amount(r).Format(currency),
			r.Origin,
		)
	}
	return b.String()
}

// Transaction renders one record as a sentence.
func Transaction(r model.TransactionRecord, currency string) string {
	verb := "Bought"
	if r.Action == model.Sell {
		verb = "Sold"
	}
	s := fmt.Sprintf("%s %d %s at %s for %s", verb, r.Quantity, r.DisplayName(), r.Price.Format(currency), Amount(r).Format(currency))
	if r.Origin == model.OriginExercise {
		s += " (exercise)"
	}
	return s
}

// Amount is the cash value of a record: quantity × price × multiplier.
func Amount(r model.TransactionRecord) money.Money {
	return r.Price.Mul(r.Quantity).Mul(r.Multiplier())
}

func hasCostFallback(holdings []model.HoldingView) bool {
	for _, h := range holdings {
		if h.PriceSource == model.PriceCost {
			return true
		}
	}
	return false
}
