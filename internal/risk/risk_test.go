package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
)

func d(f float64) money.Money {
	return money.New(decimal.NewFromFloat(f))
}

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	exp       = model.NewDate(2026, time.June, 19)
	aapl      = model.StockKey("AAPL")
	aaplC     = model.OptionKey("AAPL", model.Call, 150000, exp)
	aaplP     = model.OptionKey("AAPL", model.Put, 140000, exp)
	nvda      = model.StockKey("NVDA")
	nvdaC     = model.OptionKey("NVDA", model.Call, 900000, exp)
	unlimited = NewLimiter(money.Zero, money.Zero)
)

func TestCheck_WithinLimits(t *testing.T) {
	limiter := NewLimiter(d(1000), d(5000))

	err := limiter.Check(aapl, d(100), nil)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheck_InstrumentExceeded(t *testing.T) {
	limiter := NewLimiter(d(1000), d(5000))

	// Existing 950 + new 100 = 1050 > 1000.
	existing := map[model.InstrumentKey]money.Money{
		aapl: d(950),
	}

	err := limiter.Check(aapl, d(100), existing)
	if err != ErrInstrumentLimitExceeded {
		t.Errorf("expected ErrInstrumentLimitExceeded, got %v", err)
	}
}

func TestCheck_UnderlyingExceeded(t *testing.T) {
	limiter := NewLimiter(d(1000), d(2000))

	existing := map[model.InstrumentKey]money.Money{
		aapl:  d(800), // same underlying
		aaplC: d(800), // same underlying
		nvda:  d(900), // different underlying
	}

	// 500 + 800 + 800 = 2100 > 2000; NVDA is not counted.
	err := limiter.Check(aaplP, d(500), existing)
	if err != ErrUnderlyingLimitExceeded {
		t.Errorf("expected ErrUnderlyingLimitExceeded, got %v", err)
	}
}

func TestCheck_OtherUnderlyingsIgnored(t *testing.T) {
	limiter := NewLimiter(d(1000), d(2000))

	existing := map[model.InstrumentKey]money.Money{
		aapl:  d(800),
		nvda:  d(900),
		nvdaC: d(900),
	}

	// AAPL total = 500 + 800 = 1300 < 2000.
	err := limiter.Check(aaplC, d(500), existing)
	if err != nil {
		t.Errorf("other underlyings should be ignored, got %v", err)
	}
}

func TestCheck_ZeroDisables(t *testing.T) {
	existing := map[model.InstrumentKey]money.Money{aapl: d(1e9)}

	if err := unlimited.Check(aapl, d(1e9), existing); err != nil {
		t.Errorf("zero limits should disable checks, got %v", err)
	}

	// Only the underlying limit set.
	limiter := NewLimiter(money.Zero, d(100))
	if err := limiter.Check(nvda, d(50), nil); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := limiter.Check(nvda, d(150), nil); err != ErrUnderlyingLimitExceeded {
		t.Errorf("expected ErrUnderlyingLimitExceeded, got %v", err)
	}

	var nilLimiter *Limiter
	if err := nilLimiter.Check(aapl, d(1), nil); err != nil {
		t.Errorf("nil limiter should allow everything, got %v", err)
	}
}

func TestExposures(t *testing.T) {
	holdings := []model.Holding{
		{ID: 1, InstrumentKey: aapl, Quantity: 10, AvgCost: d(150)},
		{ID: 2, InstrumentKey: aaplC, Quantity: 2, AvgCost: d(3.5)},
	}
	got := Exposures(holdings)
	if !got[aapl].Equal(d(1500)) {
		t.Errorf("stock exposure: expected 1500, got %s", got[aapl])
	}
	// 2 contracts * 100 * 3.5
	if !got[aaplC].Equal(d(700)) {
		t.Errorf("option exposure: expected 700, got %s", got[aaplC])
	}
}

func view(key model.InstrumentKey, value float64) model.HoldingView {
	return model.HoldingView{
		Holding:     model.Holding{InstrumentKey: key},
		MarketValue: d(value),
	}
}

func TestAllocate(t *testing.T) {
	holdings := []model.HoldingView{
		view(aapl, 3000),
		view(nvda, 2000),
		view(aaplC, 1000),
	}

	a := Allocate(d(4000), holdings)

	if !a.Stock.Equal(pct("50")) || !a.Option.Equal(pct("10")) || !a.Cash.Equal(pct("40")) {
		t.Errorf("unexpected allocation %+v", a)
	}
}

func TestAllocate_Rounding(t *testing.T) {
	a := Allocate(d(2), []model.HoldingView{view(aapl, 1)})

	if !a.Stock.Equal(pct("33.33")) || !a.Cash.Equal(pct("66.67")) {
		t.Errorf("unexpected allocation %+v", a)
	}
}

func TestAllocate_ZeroTotal(t *testing.T) {
	a := Allocate(money.Zero, nil)

	if !a.Stock.IsZero() || !a.Option.IsZero() || !a.Cash.IsZero() {
		t.Errorf("zero total should allocate nothing, got %+v", a)
	}
}
