package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/atmx/ledger-engine/internal/money"
)

func TestParseAction(t *testing.T) {
	if a, err := ParseAction(" BUY "); err != nil || a != Buy {
		t.Errorf("expected buy, got %q %v", a, err)
	}
	if a, err := ParseAction("sell"); err != nil || a != Sell {
		t.Errorf("expected sell, got %q %v", a, err)
	}
	if _, err := ParseAction("short"); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("expected ErrInvalidAction, got %v", err)
	}
}

func TestInstrumentKey_Identity(t *testing.T) {
	exp := NewDate(2026, time.January, 16)
	a := OptionKey("aapl", Call, 150000, exp)
	b := OptionKey("AAPL", Call, 150000, exp)
	c := OptionKey("AAPL", Call, 155000, exp)
	d := OptionKey("AAPL", Call, 150000, NewDate(2026, time.February, 20))

	m := map[InstrumentKey]int{a: 1}
	m[b]++
	if m[a] != 2 {
		t.Errorf("equal keys should merge, got %d", m[a])
	}
	if a == c || a == d {
		t.Error("options differing in strike or expiration must not be equal")
	}
	if a.Underlying() != StockKey("AAPL") {
		t.Errorf("unexpected underlying %+v", a.Underlying())
	}
}

func TestInstrumentKey_Validate(t *testing.T) {
	exp := NewDate(2026, time.January, 16)
	valid := []InstrumentKey{
		StockKey("SPY"),
		OptionKey("SPY", Put, 400000, exp),
	}
	for _, k := range valid {
		if err := k.Validate(); err != nil {
			t.Errorf("%v: unexpected error %v", k, err)
		}
	}

	invalid := []InstrumentKey{
		{},
		{Symbol: "spy", Class: Stock},
		{Symbol: "SPY", Class: Stock, Strike: 1000},
		{Symbol: "SPY", Class: Option, Kind: Call, Expiration: exp},
		{Symbol: "SPY", Class: Option, Kind: "straddle", Strike: 1000, Expiration: exp},
		{Symbol: "SPY", Class: Option, Kind: Call, Strike: 1000},
		{Symbol: "SPY", Class: "bond"},
	}
	for _, k := range invalid {
		if err := k.Validate(); err == nil {
			t.Errorf("%+v: expected validation error", k)
		}
	}
}

func TestInstrumentKey_DisplayName(t *testing.T) {
	k := OptionKey("AAPL", Call, 150000, NewDate(2026, time.January, 16))
	if got := k.DisplayName(); got != "AAPL 2026-01-16 150 Call" {
		t.Errorf("unexpected display name %q", got)
	}
	if got := StockKey("nvda").DisplayName(); got != "NVDA" {
		t.Errorf("unexpected display name %q", got)
	}
	if k.Multiplier() != 100 || StockKey("X").Multiplier() != 1 {
		t.Error("unexpected multipliers")
	}
}

func TestHolding_JSON(t *testing.T) {
	h := Holding{
		ID:            7,
		InstrumentKey: OptionKey("AAPL", Put, 152500, NewDate(2026, time.March, 20)),
		Quantity:      2,
		AvgCost:       money.MustParse("3.1"),
	}
	b, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}

	var back Holding
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.InstrumentKey != h.InstrumentKey || back.ID != 7 || back.Quantity != 2 || !back.AvgCost.Equal(h.AvgCost) {
		t.Errorf("round trip mismatch: %s", b)
	}

	stock, _ := json.Marshal(Holding{ID: 1, InstrumentKey: StockKey("SPY"), Quantity: 1})
	var raw map[string]any
	json.Unmarshal(stock, &raw)
	if raw["expiration"] != nil {
		t.Errorf("stock expiration should be null, got %v", raw["expiration"])
	}
	if _, ok := raw["strike"]; ok {
		t.Error("stock should omit strike")
	}
}

func TestSortRecords_TiesBySeq(t *testing.T) {
	ts := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	records := []TransactionRecord{
		{Seq: 3, Timestamp: ts},
		{Seq: 1, Timestamp: ts.Add(time.Second)},
		{Seq: 2, Timestamp: ts},
	}
	SortRecords(records)
	want := []int64{2, 3, 1}
	for i, r := range records {
		if r.Seq != want[i] {
			t.Fatalf("position %d: expected seq %d, got %d", i, want[i], r.Seq)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-01-16")
	if err != nil {
		t.Fatal(err)
	}
	if d != NewDate(2026, time.January, 16) {
		t.Errorf("unexpected date %v", d)
	}
	if _, err := ParseDate("01/16/2026"); err == nil {
		t.Error("expected error for non-ISO date")
	}
}
