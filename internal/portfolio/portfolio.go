// Package portfolio builds the read-side summary of the account: valued
// holdings, realized statistics and asset-class allocation.
package portfolio

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/atmx/ledger-engine/internal/ledger"
	"github.com/atmx/ledger-engine/internal/metrics"
	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
	"github.com/atmx/ledger-engine/internal/pnl"
	"github.com/atmx/ledger-engine/internal/pricing"
	"github.com/atmx/ledger-engine/internal/risk"
)

// GainLossPlaces is the rounding of gain/loss percentages.
const GainLossPlaces = 2

// StateSource yields a consistent copy of the account.
type StateSource interface {
	State() ledger.State
}

// Service computes portfolio snapshots. It holds no account lock while
// pricing: it works on a point-in-time copy.
type Service struct {
	source StateSource
	pricer pricing.Pricer
	logger *zap.Logger
}

// NewService creates a snapshot service. A nil pricer values every holding
// at its average cost.
func NewService(source StateSource, pricer pricing.Pricer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, pricer: pricer, logger: logger}
}

// Snapshot returns balance, valued holdings, realized stats and allocation.
// Two calls with no trade in between and unchanged prices return equal
// snapshots.
func (s *Service) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	st := s.source.State()

	views := make([]model.HoldingView, 0, len(st.Holdings))
	total := st.Balance
	for _, h := range st.Holdings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v := s.value(ctx, h)
		total = total.Add(v.MarketValue)
		views = append(views, v)
	}

	res := pnl.Compute(st.Records)
	if res.Stats.UnmatchedQuantity > 0 {
		s.logger.Warn("transaction log sells more than it bought",
			zap.Int64("unmatched_qty", res.Stats.UnmatchedQuantity))
	}

	return &model.Snapshot{
		Balance:    st.Balance,
		TotalValue: total,
		Holdings:   views,
		Stats:      res.Stats,
		Allocation: risk.Allocate(st.Balance, views),
	}, nil
}

// value prices a holding, falling back to average cost when no price is
// available.
func (s *Service) value(ctx context.Context, h model.Holding) model.HoldingView {
	price, source := h.AvgCost, model.PriceCost
	if s.pricer != nil {
		p, err := s.pricer.Price(ctx, h.InstrumentKey)
		switch {
		case err == nil:
			price, source = p, model.PriceMarket
		case errors.Is(err, pricing.ErrNoPrice):
			s.logger.Debug("no price, using average cost",
				zap.String("instrument", h.DisplayName()), zap.Error(err))
		default:
			s.logger.Warn("pricing failed, using average cost",
				zap.String("instrument", h.DisplayName()), zap.Error(err))
		}
	}
	if source == model.PriceCost {
		metrics.PriceFallbacks.Inc()
	}

	marketValue := price.Mul(h.Quantity).Mul(h.Multiplier())
	costBasis := h.AvgCost.Mul(h.Quantity).Mul(h.Multiplier())
	gain := marketValue.Sub(costBasis)

	return model.HoldingView{
		Holding:      h,
		DisplayName:  h.DisplayName(),
		CurrentPrice: price,
		PriceSource:  source,
		MarketValue:  marketValue,
		CostBasis:    costBasis,
		GainLoss:     gain,
		GainLossPct:  gain.Percent(costBasis, GainLossPlaces),
	}
}

// Valuation is the cash plus market value, used by reports that do not need
// the full snapshot.
func Valuation(snap *model.Snapshot) (cash, invested money.Money) {
	return snap.Balance, snap.TotalValue.Sub(snap.Balance)
}
