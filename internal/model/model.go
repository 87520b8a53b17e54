// Package model defines the core domain types shared across the ledger engine.
// All monetary values use internal/money over shopspring/decimal, never
// float64 for money.
package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/ledger-engine/internal/money"
)

// Action is the side of a trade.
type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
)

// ErrInvalidAction is returned for an unrecognized action token.
var ErrInvalidAction = errors.New("model: invalid action")

// ParseAction accepts "buy" or "sell" in any case.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

// Origin tells which operation produced a transaction record.
type Origin string

const (
	OriginTrade    Origin = "trade"
	OriginExercise Origin = "exercise"
)

// Holding is an open position. Quantity is shares for stock and contracts
// for options; AvgCost is per share of underlying in both cases. A holding
// never exists with a zero quantity.
type Holding struct {
	ID int64 `json:"id"`
	InstrumentKey
	Quantity int64       `json:"quantity"`
	AvgCost  money.Money `json:"avg_price"`
}

// TransactionRecord is an immutable record of a committed trade or of the
// stock leg of an exercise. Once created, these are never modified or deleted.
// Records are totally ordered by (Timestamp, Seq).
type TransactionRecord struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	InstrumentKey
	Action   Action      `json:"action"`
	Quantity int64       `json:"quantity"`
	Price    money.Money `json:"price"`
	Origin   Origin      `json:"origin"`
}

// Key returns the instrument the record refers to.
func (r TransactionRecord) Key() InstrumentKey { return r.InstrumentKey }

// SortRecords orders records by timestamp, ties broken by Seq.
func SortRecords(records []TransactionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Seq < b.Seq
	})
}

// AccountState is the persisted state of the single account.
type AccountState struct {
	Balance    money.Money
	Holdings   []Holding
	HoldingSeq int64 // last holding id handed out
}

// Commit is one atomic change to the account: the new balance, holdings
// written or removed, and records appended. Stores apply all of it or none.
type Commit struct {
	Balance    money.Money
	Upserts    []Holding
	Deletes    []int64
	Records    []TransactionRecord
	HoldingSeq int64
}

// --- Read-side views ---

// PriceSource tells whether a holding was valued at a market quote or fell
// back to its average cost.
type PriceSource string

const (
	PriceMarket PriceSource = "market"
	PriceCost   PriceSource = "cost"
)

// HoldingView is a valued holding in a portfolio snapshot.
type HoldingView struct {
	Holding
	DisplayName  string          `json:"display_name"`
	CurrentPrice money.Money     `json:"current_price"`
	PriceSource  PriceSource     `json:"price_source"`
	MarketValue  money.Money     `json:"market_value"`  // qty * price * multiplier
	CostBasis    money.Money     `json:"cost_basis"`    // qty * avg * multiplier
	GainLoss     money.Money     `json:"gain_loss"`     // market value - cost basis
	GainLossPct  decimal.Decimal `json:"gain_loss_pct"` // 0 when cost basis is 0
}

// RealizedStats summarizes FIFO-matched closing trades.
type RealizedStats struct {
	RealizedPnL          money.Money     `json:"realized_pnl"`
	Wins                 int             `json:"wins"`
	Losses               int             `json:"losses"`
	TotalTrades          int             `json:"total_trades"`
	WinRate              decimal.Decimal `json:"win_rate"` // wins / (wins + losses)
	MaxConsecutiveLosses int             `json:"max_consecutive_losses"`
	UnmatchedQuantity    int64           `json:"unmatched_quantity"`
}

// Allocation is the share of total value per bucket, in percent.
type Allocation struct {
	Stock  decimal.Decimal `json:"Stock"`
	Option decimal.Decimal `json:"Option"`
	Cash   decimal.Decimal `json:"Cash"`
}

// Snapshot is the portfolio summary view.
type Snapshot struct {
	Balance    money.Money   `json:"balance"`
	TotalValue money.Money   `json:"total_value"`
	Holdings   []HoldingView `json:"holdings"`
	Stats      RealizedStats `json:"stats"`
	Allocation Allocation    `json:"allocation"`
}
