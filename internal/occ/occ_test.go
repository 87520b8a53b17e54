package occ

import (
	"errors"
	"testing"
	"time"

	"github.com/atmx/ledger-engine/internal/model"
)

func TestParse_Valid(t *testing.T) {
	k, err := Parse("AAPL260116C00150000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.Symbol != "AAPL" {
		t.Errorf("expected symbol=AAPL, got %s", k.Symbol)
	}
	if k.Kind != model.Call {
		t.Errorf("expected kind=call, got %s", k.Kind)
	}
	if k.Strike != 150000 {
		t.Errorf("expected strike=150000 mills, got %d", k.Strike)
	}
	expected := model.NewDate(2026, time.January, 16)
	if k.Expiration != expected {
		t.Errorf("expected expiry=%v, got %v", expected, k.Expiration)
	}
	if err := k.Validate(); err != nil {
		t.Errorf("parsed key should validate: %v", err)
	}
}

func TestParse_Put(t *testing.T) {
	k, err := Parse("SPY261218P00452500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.Kind != model.Put {
		t.Errorf("expected kind=put, got %s", k.Kind)
	}
	if k.Strike.String() != "452.5" {
		t.Errorf("expected strike 452.5, got %s", k.Strike)
	}
}

func TestParse_InvalidFormat(t *testing.T) {
	tests := []string{
		"",
		"AAPL",
		"AAPL260116",
		"AAPL260116C",
		"AAPL260116X00150000", // bad kind
		"AAPL261316C00150000", // month 13
		"AAPL260116C0015000",  // 7-digit strike
		"aapl260116C00150000", // lower-case root
		"AAPL260116C00000000", // zero strike
		"TOOLONGX260116C00150000",
	}
	for _, symbol := range tests {
		_, err := Parse(symbol)
		if !errors.Is(err, ErrInvalidSymbol) {
			t.Errorf("expected ErrInvalidSymbol for %q, got %v", symbol, err)
		}
	}
}

func TestSymbol_RoundTrip(t *testing.T) {
	keys := []model.InstrumentKey{
		model.OptionKey("AAPL", model.Call, 150000, model.NewDate(2026, time.January, 16)),
		model.OptionKey("BRK.B", model.Put, 412500, model.NewDate(2027, time.June, 18)),
	}
	for _, k := range keys {
		s, err := Symbol(k)
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", k, err)
		}
		back, err := Parse(s)
		if err != nil {
			t.Fatalf("%s does not parse: %v", s, err)
		}
		if back != k {
			t.Errorf("round trip mismatch: %+v vs %+v", back, k)
		}
	}
}

func TestSymbol_Stock(t *testing.T) {
	s, err := Symbol(model.StockKey("nvda"))
	if err != nil {
		t.Fatal(err)
	}
	if s != "NVDA" {
		t.Errorf("expected NVDA, got %s", s)
	}
}

func TestSymbol_StrikeOutOfRange(t *testing.T) {
	k := model.OptionKey("X", model.Call, 100_000_000, model.NewDate(2026, time.January, 16))
	if _, err := Symbol(k); !errors.Is(err, ErrStrikeRange) {
		t.Errorf("expected ErrStrikeRange, got %v", err)
	}
}
