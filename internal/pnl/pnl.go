// Package pnl computes realized profit and loss by replaying the transaction
// log through per-instrument FIFO lot queues.
//
// Options and stock are matched on independent InstrumentKeys: two option
// positions that differ only in strike or expiration never offset each other.
package pnl

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
)

// WinRateScale is the number of decimal places kept in the win rate.
const WinRateScale int32 = 4

// Lot is an open quantity acquired at one price.
type Lot struct {
	Quantity int64       `json:"quantity"`
	Price    money.Money `json:"price"`
}

// Match is one chunk of a sell matched against one lot.
type Match struct {
	Key       model.InstrumentKey `json:"instrument"`
	Quantity  int64               `json:"quantity"`
	BuyPrice  money.Money         `json:"buy_price"`
	SellPrice money.Money         `json:"sell_price"`
	PnL       money.Money         `json:"pnl"`
	ClosedAt  time.Time           `json:"closed_at"`
}

// Result is the outcome of a replay.
type Result struct {
	Stats     model.RealizedStats
	Matches   []Match
	Inventory map[model.InstrumentKey][]Lot // open lots, oldest first
}

// Compute replays records in (timestamp, seq) order. The input slice is not
// modified. A sell larger than the open inventory matches what exists; the
// remainder is reported in Stats.UnmatchedQuantity.
func Compute(records []model.TransactionRecord) Result {
	ordered := make([]model.TransactionRecord, len(records))
	copy(ordered, records)
	model.SortRecords(ordered)

	inventory := make(map[model.InstrumentKey][]Lot)
	var (
		stats             model.RealizedStats
		matches           []Match
		consecutiveLosses int
	)
	stats.RealizedPnL = money.Zero

	for _, r := range ordered {
		key := r.Key()
		switch r.Action {
		case model.Buy:
			inventory[key] = append(inventory[key], Lot{Quantity: r.Quantity, Price: r.Price})

		case model.Sell:
			remaining := r.Quantity
			queue := inventory[key]
			for remaining > 0 && len(queue) > 0 {
				lot := queue[0]
				matched := min(remaining, lot.Quantity)

				pnl := r.Price.Sub(lot.Price).Mul(matched)
				stats.RealizedPnL = stats.RealizedPnL.Add(pnl)

				switch {
				case pnl.IsPositive():
					stats.Wins++
					consecutiveLosses = 0
				case pnl.IsNegative():
					stats.Losses++
					consecutiveLosses++
					stats.MaxConsecutiveLosses = max(stats.MaxConsecutiveLosses, consecutiveLosses)
				}

				matches = append(matches, Match{
					Key:       key,
					Quantity:  matched,
					BuyPrice:  lot.Price,
					SellPrice: r.Price,
					PnL:       pnl,
					ClosedAt:  r.Timestamp,
				})

				if matched == lot.Quantity {
					queue = queue[1:]
				} else {
					queue[0].Quantity -= matched
				}
				remaining -= matched
			}
			stats.UnmatchedQuantity += remaining

			if len(queue) == 0 {
				delete(inventory, key)
			} else {
				inventory[key] = queue
			}
		}
	}

	stats.TotalTrades = stats.Wins + stats.Losses
	stats.WinRate = WinRate(stats.Wins, stats.Losses)

	return Result{Stats: stats, Matches: matches, Inventory: inventory}
}

// WinRate returns wins / (wins + losses), or zero when nothing closed.
func WinRate(wins, losses int) decimal.Decimal {
	total := wins + losses
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(wins)).DivRound(decimal.NewFromInt(int64(total)), WinRateScale)
}
