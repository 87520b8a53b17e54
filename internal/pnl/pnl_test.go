package pnl

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
)

var t0 = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

func m(s string) money.Money { return money.MustParse(s) }

// history builds records one second apart in the order given.
type history struct {
	records []model.TransactionRecord
}

func (l *history) add(key model.InstrumentKey, action model.Action, qty int64, price string) *history {
	seq := int64(len(l.records) + 1)
	l.records = append(l.records, model.TransactionRecord{
		Seq:           seq,
		Timestamp:     t0.Add(time.Duration(seq) * time.Second),
		InstrumentKey: key,
		Action:        action,
		Quantity:      qty,
		Price:         m(price),
		Origin:        model.OriginTrade,
	})
	return l
}

func TestCompute_FIFOMatching(t *testing.T) {
	aapl := model.StockKey("AAPL")
	l := (&history{}).
		add(aapl, model.Buy, 10, "100").
		add(aapl, model.Buy, 10, "110").
		add(aapl, model.Sell, 15, "105")

	res := Compute(l.records)

	// 10*(105-100) + 5*(105-110) = 50 - 25 = 25
	if !res.Stats.RealizedPnL.Equal(m("25")) {
		t.Errorf("expected realized 25, got %s", res.Stats.RealizedPnL)
	}
	if res.Stats.Wins != 1 || res.Stats.Losses != 1 {
		t.Errorf("expected 1 win / 1 loss, got %d / %d", res.Stats.Wins, res.Stats.Losses)
	}

	lots := res.Inventory[aapl]
	if len(lots) != 1 {
		t.Fatalf("expected 1 open lot, got %d", len(lots))
	}
	if lots[0].Quantity != 5 || !lots[0].Price.Equal(m("110")) {
		t.Errorf("expected 5 @ 110 remaining, got %d @ %s", lots[0].Quantity, lots[0].Price)
	}
}

func TestCompute_StreakTracking(t *testing.T) {
	k := model.StockKey("TSLA")
	l := &history{}
	// Six single-share lots at 100, closed with signs [+, -, -, -, +, -].
	for i := 0; i < 6; i++ {
		l.add(k, model.Buy, 1, "100")
	}
	for _, price := range []string{"101", "99", "98", "97", "105", "90"} {
		l.add(k, model.Sell, 1, price)
	}

	res := Compute(l.records)
	if res.Stats.MaxConsecutiveLosses != 3 {
		t.Errorf("expected max consecutive losses 3, got %d", res.Stats.MaxConsecutiveLosses)
	}
	if res.Stats.Wins != 2 || res.Stats.Losses != 4 || res.Stats.TotalTrades != 6 {
		t.Errorf("unexpected counts %+v", res.Stats)
	}
	if !res.Stats.WinRate.Equal(decimal.RequireFromString("0.3333")) {
		t.Errorf("expected win rate 0.3333, got %s", res.Stats.WinRate)
	}
}

func TestCompute_ZeroPnLKeepsStreak(t *testing.T) {
	k := model.StockKey("AMD")
	l := &history{}
	for i := 0; i < 4; i++ {
		l.add(k, model.Buy, 1, "50")
	}
	l.add(k, model.Sell, 1, "49") // loss
	l.add(k, model.Sell, 1, "50") // flat: neither win nor loss
	l.add(k, model.Sell, 1, "48") // loss
	l.add(k, model.Sell, 1, "50")

	res := Compute(l.records)
	if res.Stats.MaxConsecutiveLosses != 2 {
		t.Errorf("flat chunk should not reset the streak, got %d", res.Stats.MaxConsecutiveLosses)
	}
	if res.Stats.TotalTrades != 2 {
		t.Errorf("flat chunks are not counted, got %d trades", res.Stats.TotalTrades)
	}
}

func TestCompute_OptionsMatchedPerKey(t *testing.T) {
	exp := model.NewDate(2026, time.June, 19)
	c150 := model.OptionKey("NVDA", model.Call, 150000, exp)
	c160 := model.OptionKey("NVDA", model.Call, 160000, exp)
	stock := model.StockKey("NVDA")

	l := (&history{}).
		add(c150, model.Buy, 2, "5").
		add(c160, model.Buy, 2, "3").
		add(stock, model.Buy, 10, "140").
		add(c160, model.Sell, 2, "4")

	res := Compute(l.records)
	// Only the 160 call closes: 2 * (4 - 3) = 2.
	if !res.Stats.RealizedPnL.Equal(m("2")) {
		t.Errorf("expected realized 2, got %s", res.Stats.RealizedPnL)
	}
	if _, ok := res.Inventory[c160]; ok {
		t.Error("closed key should leave no inventory")
	}
	if len(res.Inventory[c150]) != 1 || len(res.Inventory[stock]) != 1 {
		t.Errorf("unexpected inventory %+v", res.Inventory)
	}
}

func TestCompute_OverMatchedSellIsPermissive(t *testing.T) {
	k := model.StockKey("SPY")
	l := (&history{}).
		add(k, model.Buy, 5, "400").
		add(k, model.Sell, 8, "410")

	res := Compute(l.records)
	if !res.Stats.RealizedPnL.Equal(m("50")) {
		t.Errorf("expected realized 50, got %s", res.Stats.RealizedPnL)
	}
	if res.Stats.UnmatchedQuantity != 3 {
		t.Errorf("expected 3 unmatched, got %d", res.Stats.UnmatchedQuantity)
	}
}

func TestCompute_ReplaysInTimestampOrder(t *testing.T) {
	k := model.StockKey("AAPL")
	l := (&history{}).
		add(k, model.Buy, 1, "100").
		add(k, model.Sell, 1, "90")

	// Hand the records over newest first; replay must still buy before selling.
	reversed := []model.TransactionRecord{l.records[1], l.records[0]}
	res := Compute(reversed)
	if !res.Stats.RealizedPnL.Equal(m("-10")) {
		t.Errorf("expected realized -10, got %s", res.Stats.RealizedPnL)
	}
	if reversed[0].Action != model.Sell {
		t.Error("input slice must not be reordered")
	}
}

func TestCompute_Empty(t *testing.T) {
	res := Compute(nil)
	if !res.Stats.RealizedPnL.IsZero() || res.Stats.TotalTrades != 0 {
		t.Errorf("expected zero stats, got %+v", res.Stats)
	}
	if !res.Stats.WinRate.IsZero() {
		t.Errorf("win rate with no trades should be 0, got %s", res.Stats.WinRate)
	}
}

func TestCompute_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		keys := []model.InstrumentKey{model.StockKey("A"), model.StockKey("B")}
		l := &history{}
		held := map[model.InstrumentKey]int64{}

		n := rapid.IntRange(1, 40).Draw(t, "n")
		for i := 0; i < n; i++ {
			k := keys[rapid.IntRange(0, 1).Draw(t, "key")]
			price := money.FromInt(rapid.Int64Range(1, 200).Draw(t, "price")).String()
			if held[k] > 0 && rapid.Bool().Draw(t, "sell") {
				qty := rapid.Int64Range(1, held[k]).Draw(t, "sellQty")
				l.add(k, model.Sell, qty, price)
				held[k] -= qty
			} else {
				qty := rapid.Int64Range(1, 50).Draw(t, "buyQty")
				l.add(k, model.Buy, qty, price)
				held[k] += qty
			}
		}

		res := Compute(l.records)

		sum := money.Zero
		for _, mt := range res.Matches {
			sum = sum.Add(mt.PnL)
		}
		if !sum.Equal(res.Stats.RealizedPnL) {
			t.Fatalf("realized %s != sum of matches %s", res.Stats.RealizedPnL, sum)
		}
		if res.Stats.UnmatchedQuantity != 0 {
			t.Fatalf("valid history left %d unmatched", res.Stats.UnmatchedQuantity)
		}
		for _, k := range keys {
			var open int64
			for _, lot := range res.Inventory[k] {
				if lot.Quantity <= 0 {
					t.Fatalf("non-positive lot %+v", lot)
				}
				open += lot.Quantity
			}
			if open != held[k] {
				t.Fatalf("%s: open lots %d != held %d", k.Symbol, open, held[k])
			}
		}
		if res.Stats.MaxConsecutiveLosses > res.Stats.Losses {
			t.Fatalf("streak %d exceeds losses %d", res.Stats.MaxConsecutiveLosses, res.Stats.Losses)
		}
	})
}
