package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/atmx/ledger-engine/internal/metrics"
	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
	"github.com/atmx/ledger-engine/internal/risk"
)

// TradeResult describes a committed trade.
type TradeResult struct {
	Balance money.Money             `json:"balance"` // balance after the trade
	Holding *model.Holding          `json:"holding"` // holding after the trade, nil when a sell closed it
	Record  model.TransactionRecord `json:"record"`
}

// Trade executes a buy or sell of qty units at price per unit and returns
// the balance and holding as committed.
//
// Option prices are per share of underlying and are not multiplied by the
// contract size here; the multiplier applies to valuation and exercise only.
// A buy merges into an existing holding of the same key at the weighted
// average cost. A sell leaves the average cost unchanged and removes the
// holding when it reaches zero.
func (l *Ledger) Trade(ctx context.Context, key model.InstrumentKey, action model.Action, qty int64, price money.Money) (*TradeResult, error) {
	if err := validateTrade(key, action, qty, price); err != nil {
		metrics.Rejections.WithLabelValues("trade", reason(err)).Inc()
		return nil, err
	}

	start := time.Now()
	l.mu.Lock()
	res, ev, err := l.trade(ctx, key, action, qty, price)
	l.mu.Unlock()

	if err != nil {
		metrics.Rejections.WithLabelValues("trade", reason(err)).Inc()
		l.logger.Warn("trade rejected",
			zap.String("instrument", key.DisplayName()),
			zap.String("action", string(action)),
			zap.Int64("qty", qty),
			zap.String("price", price.String()),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.TradesTotal.WithLabelValues(string(action), string(key.Class)).Inc()
	metrics.TradeLatency.WithLabelValues(string(action)).Observe(time.Since(start).Seconds())
	l.logger.Info("trade executed",
		zap.String("record_id", ev.Records[0].ID),
		zap.String("instrument", key.DisplayName()),
		zap.String("action", string(action)),
		zap.Int64("qty", qty),
		zap.String("price", price.String()),
		zap.String("balance", res.Balance.String()),
	)
	l.notify(ev)
	return res, nil
}

func validateTrade(key model.InstrumentKey, action model.Action, qty int64, price money.Money) error {
	if action != model.Buy && action != model.Sell {
		return fmt.Errorf("%w: %q", model.ErrInvalidAction, action)
	}
	if err := key.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstrument, err)
	}
	if qty <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	if price.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}
	return nil
}

// trade runs under l.mu.
func (l *Ledger) trade(ctx context.Context, key model.InstrumentKey, action model.Action, qty int64, price money.Money) (*TradeResult, Event, error) {
	notional := price.Mul(qty)
	c := &model.Commit{HoldingSeq: l.holdingSeq}

	id, held := l.byKey[key]
	switch action {
	case model.Buy:
		if notional.GreaterThan(l.balance) {
			return nil, Event{}, fmt.Errorf("%w: cost %s exceeds balance %s", ErrInsufficientFunds, notional, l.balance)
		}
		if l.limiter.Enabled() {
			exposures := risk.Exposures(l.openHoldings())
			if err := l.limiter.Check(key, notional.Mul(key.Multiplier()), exposures); err != nil {
				return nil, Event{}, err
			}
		}
		c.Balance = l.balance.Sub(notional)
		if held {
			h := l.holdings[id]
			if qty > math.MaxInt64-h.Quantity {
				return nil, Event{}, fmt.Errorf("%w: %d more %s would overflow the holding", ErrInvalidQuantity, qty, key.DisplayName())
			}
			h.AvgCost = money.WeightedAverage(h.Quantity, h.AvgCost, qty, notional)
			h.Quantity += qty
			c.Upserts = append(c.Upserts, h)
		} else {
			c.HoldingSeq++
			c.Upserts = append(c.Upserts, model.Holding{
				ID:            c.HoldingSeq,
				InstrumentKey: key,
				Quantity:      qty,
				AvgCost:       price,
			})
		}

	case model.Sell:
		if !held {
			return nil, Event{}, fmt.Errorf("%w: no %s held", ErrInsufficientHoldings, key.DisplayName())
		}
		h := l.holdings[id]
		if h.Quantity < qty {
			return nil, Event{}, fmt.Errorf("%w: selling %d of %d %s", ErrInsufficientHoldings, qty, h.Quantity, key.DisplayName())
		}
		c.Balance = l.balance.Add(notional)
		h.Quantity -= qty
		if h.Quantity == 0 {
			c.Deletes = append(c.Deletes, h.ID)
		} else {
			c.Upserts = append(c.Upserts, h)
		}
	}

	c.Records = append(c.Records, l.newRecord(key, action, qty, price, model.OriginTrade, l.timestamp(), l.seq+1))
	if err := l.commit(ctx, c); err != nil {
		return nil, Event{}, err
	}

	res := &TradeResult{Balance: c.Balance, Record: c.Records[0]}
	if len(c.Upserts) > 0 {
		h := c.Upserts[0]
		res.Holding = &h
	}
	return res, Event{Type: "trade", Balance: c.Balance, Records: c.Records}, nil
}

// openHoldings lists holdings without copying under a second lock.
func (l *Ledger) openHoldings() []model.Holding {
	out := make([]model.Holding, 0, len(l.holdings))
	for _, h := range l.holdings {
		out = append(out, h)
	}
	return out
}
