// Package risk derives asset-class allocation from valued holdings and
// enforces notional exposure limits on new trades.
package risk

import (
	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
)

// PercentPlaces is the rounding of allocation percentages.
const PercentPlaces = 2

// Allocate buckets market value into stock, option and cash and returns
// each bucket as a percentage of their sum. A zero total yields all zeros.
func Allocate(cash money.Money, holdings []model.HoldingView) model.Allocation {
	var stock, option money.Money
	for _, h := range holdings {
		if h.IsOption() {
			option = option.Add(h.MarketValue)
		} else {
			stock = stock.Add(h.MarketValue)
		}
	}

	total := stock.Add(option).Add(cash)
	return model.Allocation{
		Stock:  stock.Percent(total, PercentPlaces),
		Option: option.Percent(total, PercentPlaces),
		Cash:   cash.Percent(total, PercentPlaces),
	}
}
