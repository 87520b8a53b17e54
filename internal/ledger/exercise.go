package ledger

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/atmx/ledger-engine/internal/metrics"
	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
)

// ExerciseResult describes a settled exercise.
type ExerciseResult struct {
	Option  model.Holding           `json:"option"`  // the consumed option holding
	Shares  int64                   `json:"shares"`  // contracts × 100
	Cash    money.Money             `json:"cash"`    // strike × shares, debited for calls, credited for puts
	Balance money.Money             `json:"balance"` // balance after settlement
	Stock   *model.Holding          `json:"stock"`   // underlying holding after settlement, nil if closed
	Record  model.TransactionRecord `json:"record"`  // stock leg appended to the log
}

// Exercise settles every contract of an option holding at its strike.
//
// A call buys contracts × 100 shares of the underlying, merged into the
// stock holding at the weighted average cost. A put delivers that many
// held shares. The option holding is removed in both cases. The stock leg
// is appended to the log as a record with origin "exercise" so that it
// takes part in realized P&L matching.
func (l *Ledger) Exercise(ctx context.Context, holdingID int64) (*ExerciseResult, error) {
	l.mu.Lock()
	res, ev, err := l.exercise(ctx, holdingID)
	l.mu.Unlock()

	if err != nil {
		metrics.Rejections.WithLabelValues("exercise", reason(err)).Inc()
		l.logger.Warn("exercise rejected", zap.Int64("holding_id", holdingID), zap.Error(err))
		return nil, err
	}

	metrics.ExercisesTotal.WithLabelValues(string(res.Option.Kind)).Inc()
	l.logger.Info("option exercised",
		zap.Int64("holding_id", holdingID),
		zap.String("instrument", res.Option.DisplayName()),
		zap.Int64("shares", res.Shares),
		zap.String("cash", res.Cash.String()),
		zap.String("balance", res.Balance.String()),
	)
	l.notify(ev)
	return res, nil
}

// exercise runs under l.mu.
func (l *Ledger) exercise(ctx context.Context, holdingID int64) (*ExerciseResult, Event, error) {
	opt, ok := l.holdings[holdingID]
	if !ok {
		return nil, Event{}, fmt.Errorf("%w: %d", ErrUnknownHolding, holdingID)
	}
	if !opt.IsOption() {
		return nil, Event{}, fmt.Errorf("%w: holding %d is not an option", ErrInvalidInstrument, holdingID)
	}

	if opt.Quantity > math.MaxInt64/model.ContractMultiplier {
		return nil, Event{}, fmt.Errorf("%w: %d contracts exceed the deliverable share count", ErrInvalidInstrument, opt.Quantity)
	}
	shares := opt.Quantity * model.ContractMultiplier
	strike := opt.Strike.Money()
	cash := strike.Mul(shares)
	underlying := opt.Underlying()

	c := &model.Commit{HoldingSeq: l.holdingSeq, Deletes: []int64{opt.ID}}
	var stock *model.Holding
	var action model.Action

	switch opt.Kind {
	case model.Call:
		if cash.GreaterThan(l.balance) {
			return nil, Event{}, fmt.Errorf("%w: exercise costs %s, balance %s", ErrInsufficientFunds, cash, l.balance)
		}
		c.Balance = l.balance.Sub(cash)
		action = model.Buy

		var h model.Holding
		if id, held := l.byKey[underlying]; held {
			h = l.holdings[id]
			if shares > math.MaxInt64-h.Quantity {
				return nil, Event{}, fmt.Errorf("%w: %d more %s would overflow the holding", ErrInvalidQuantity, shares, underlying.Symbol)
			}
			h.AvgCost = money.WeightedAverage(h.Quantity, h.AvgCost, shares, cash)
			h.Quantity += shares
		} else {
			c.HoldingSeq++
			h = model.Holding{ID: c.HoldingSeq, InstrumentKey: underlying, Quantity: shares, AvgCost: strike}
		}
		c.Upserts = append(c.Upserts, h)
		stock = &h

	case model.Put:
		id, held := l.byKey[underlying]
		if !held || l.holdings[id].Quantity < shares {
			have := int64(0)
			if held {
				have = l.holdings[id].Quantity
			}
			return nil, Event{}, fmt.Errorf("%w: need %d %s, hold %d", ErrInsufficientShares, shares, underlying.Symbol, have)
		}
		c.Balance = l.balance.Add(cash)
		action = model.Sell

		h := l.holdings[id]
		h.Quantity -= shares
		if h.Quantity == 0 {
			c.Deletes = append(c.Deletes, h.ID)
		} else {
			c.Upserts = append(c.Upserts, h)
			stock = &h
		}

	default:
		return nil, Event{}, fmt.Errorf("%w: option kind %q", ErrInvalidInstrument, opt.Kind)
	}

	rec := l.newRecord(underlying, action, shares, strike, model.OriginExercise, l.timestamp(), l.seq+1)
	c.Records = append(c.Records, rec)
	if err := l.commit(ctx, c); err != nil {
		return nil, Event{}, err
	}

	res := &ExerciseResult{
		Option:  opt,
		Shares:  shares,
		Cash:    cash,
		Balance: c.Balance,
		Stock:   stock,
		Record:  rec,
	}
	return res, Event{Type: "exercise", Balance: c.Balance, Records: c.Records}, nil
}
