package risk

import (
	"errors"

	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
)

var (
	// ErrInstrumentLimitExceeded is returned when a trade would push the
	// notional held in a single instrument beyond the per-instrument maximum.
	ErrInstrumentLimitExceeded = errors.New("risk: per-instrument exposure limit exceeded")

	// ErrUnderlyingLimitExceeded is returned when a trade would push the
	// aggregate notional across every instrument on the same underlying
	// (the stock and all of its options) beyond the underlying maximum.
	ErrUnderlyingLimitExceeded = errors.New("risk: underlying exposure limit exceeded")
)

// Limiter enforces notional exposure limits, measured at cost:
// quantity × average cost × multiplier.
//
// Instruments are correlated when they share an underlying symbol: an AAPL
// call, an AAPL put and AAPL shares all count toward the AAPL limit.
// A zero limit disables that check.
type Limiter struct {
	// MaxPerInstrument is the maximum notional in any single InstrumentKey.
	MaxPerInstrument money.Money

	// MaxPerUnderlying is the maximum aggregate notional across all keys
	// with the same symbol.
	MaxPerUnderlying money.Money
}

// NewLimiter creates a limiter with the given per-instrument and
// per-underlying exposure limits.
func NewLimiter(maxPerInstrument, maxPerUnderlying money.Money) *Limiter {
	return &Limiter{
		MaxPerInstrument: maxPerInstrument,
		MaxPerUnderlying: maxPerUnderlying,
	}
}

// Enabled reports whether any limit is set.
func (l *Limiter) Enabled() bool {
	return l != nil && (l.MaxPerInstrument.IsPositive() || l.MaxPerUnderlying.IsPositive())
}

// Check validates whether a trade respects exposure limits.
//
// Parameters:
//   - target: instrument being traded
//   - delta: signed change in notional (positive for buys)
//   - existing: instrument → current notional for the account
//
// Returns nil if the trade is within limits, or an error describing the violation.
func (l *Limiter) Check(
	target model.InstrumentKey,
	delta money.Money,
	existing map[model.InstrumentKey]money.Money,
) error {
	if !l.Enabled() {
		return nil
	}

	// 1. Per-instrument limit.
	newPosition := existing[target].Add(delta)
	if l.MaxPerInstrument.IsPositive() && newPosition.Abs().GreaterThan(l.MaxPerInstrument) {
		return ErrInstrumentLimitExceeded
	}

	// 2. Correlated exposure: sum |notional| across keys on the same symbol.
	if !l.MaxPerUnderlying.IsPositive() {
		return nil
	}
	total := newPosition.Abs()
	for key, exposure := range existing {
		if key == target {
			continue // already counted via newPosition above
		}
		if key.Symbol == target.Symbol {
			total = total.Add(exposure.Abs())
		}
	}
	if total.GreaterThan(l.MaxPerUnderlying) {
		return ErrUnderlyingLimitExceeded
	}
	return nil
}

// Exposures returns the cost notional of each holding.
func Exposures(holdings []model.Holding) map[model.InstrumentKey]money.Money {
	out := make(map[model.InstrumentKey]money.Money, len(holdings))
	for _, h := range holdings {
		out[h.InstrumentKey] = h.AvgCost.Mul(h.Quantity).Mul(h.Multiplier())
	}
	return out
}
