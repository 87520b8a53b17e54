package money

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestWeightedAverage_ExactMidpoint(t *testing.T) {
	// 10 @ 100 then 10 @ 120 → 110.
	avg := WeightedAverage(10, FromInt(100), 10, FromInt(120).Mul(10))
	if !avg.Equal(FromInt(110)) {
		t.Errorf("expected 110, got %s", avg)
	}
}

func TestWeightedAverage_RoundsAtScale(t *testing.T) {
	// (1*1 + 1) / 3 = 0.666... rounds to 0.66666667.
	avg := WeightedAverage(1, FromInt(1), 2, FromInt(1))
	want := MustParse("0.66666667")
	if !avg.Equal(want) {
		t.Errorf("expected %s, got %s", want, avg)
	}
}

func TestDiv_ByZero(t *testing.T) {
	if got := FromInt(5).Div(0); !got.IsZero() {
		t.Errorf("expected zero, got %s", got)
	}
}

func TestPercent(t *testing.T) {
	pct := FromInt(25).Percent(FromInt(200), 2)
	if pct.String() != "12.5" {
		t.Errorf("expected 12.5, got %s", pct)
	}
	if !FromInt(25).Percent(Zero, 2).IsZero() {
		t.Error("percent of a zero total should be zero")
	}
}

func TestFormat(t *testing.T) {
	got := MustParse("1234.5").Format("USD")
	if got != "$1,234.50" {
		t.Errorf("expected $1,234.50, got %q", got)
	}
	if got := FromInt(3).Format("???"); got != "3.00" {
		t.Errorf("unknown currency should fall back, got %q", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse("12,5"); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestMoney_JSON(t *testing.T) {
	b, err := json.Marshal(MustParse("10.25"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"10.25"` {
		t.Errorf("unexpected encoding %s", b)
	}

	var m Money
	if err := json.Unmarshal([]byte(`105.5`), &m); err != nil {
		t.Fatal(err)
	}
	if !m.Equal(MustParse("105.5")) {
		t.Errorf("expected 105.5, got %s", m)
	}
}

func TestMillsFrom(t *testing.T) {
	s, err := MillsFrom(MustParse("152.5"))
	if err != nil {
		t.Fatal(err)
	}
	if s != 152500 {
		t.Errorf("expected 152500, got %d", s)
	}
	if !s.Money().Equal(MustParse("152.5")) {
		t.Errorf("round trip failed: %s", s.Money())
	}

	if _, err := MillsFrom(MustParse("1.0005")); !errors.Is(err, ErrStrikePrecision) {
		t.Errorf("expected ErrStrikePrecision, got %v", err)
	}
	if _, err := MillsFrom(Zero); !errors.Is(err, ErrStrikePrecision) {
		t.Errorf("zero strike should be rejected, got %v", err)
	}
}
