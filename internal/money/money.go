// Package money provides the fixed-precision arithmetic types used by the
// ledger. Balances, prices and cost bases are Money; option strikes are Mills.
// All monetary values use shopspring/decimal, never float64 for money.
package money

import (
	"encoding/json"
	"errors"
	"fmt"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept after a division. Addition,
// subtraction and multiplication by a quantity are exact.
const Scale int32 = 8

var (
	// ErrInvalidAmount is returned when a string cannot be parsed as money.
	ErrInvalidAmount = errors.New("money: invalid amount")

	// Zero is the zero amount.
	Zero = Money{}
)

// Money is an exact decimal amount in the account currency.
type Money struct {
	d decimal.Decimal
}

// New wraps a decimal value.
func New(d decimal.Decimal) Money { return Money{d: d} }

// FromInt returns a whole amount.
func FromInt(v int64) Money { return Money{d: decimal.NewFromInt(v)} }

// FromCents returns an amount expressed in hundredths.
func FromCents(v int64) Money { return Money{d: decimal.New(v, -2)} }

// Parse reads an amount such as "105.25".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{d: d}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.d }
func (m Money) String() string           { return m.d.String() }
func (m Money) StringFixed(places int32) string {
	return m.d.StringFixed(places)
}

func (m Money) IsZero() bool                    { return m.d.IsZero() }
func (m Money) IsPositive() bool                { return m.d.IsPositive() }
func (m Money) IsNegative() bool                { return m.d.IsNegative() }
func (m Money) Equal(n Money) bool              { return m.d.Equal(n.d) }
func (m Money) Cmp(n Money) int                 { return m.d.Cmp(n.d) }
func (m Money) LessThan(n Money) bool           { return m.d.LessThan(n.d) }
func (m Money) LessThanOrEqual(n Money) bool    { return m.d.LessThanOrEqual(n.d) }
func (m Money) GreaterThan(n Money) bool        { return m.d.GreaterThan(n.d) }
func (m Money) GreaterThanOrEqual(n Money) bool { return m.d.GreaterThanOrEqual(n.d) }

func (m Money) Add(n Money) Money { return Money{d: m.d.Add(n.d)} }
func (m Money) Sub(n Money) Money { return Money{d: m.d.Sub(n.d)} }
func (m Money) Neg() Money        { return Money{d: m.d.Neg()} }
func (m Money) Abs() Money        { return Money{d: m.d.Abs()} }

// Mul multiplies by a unit count (shares, contracts, multiplier).
func (m Money) Mul(qty int64) Money { return Money{d: m.d.Mul(decimal.NewFromInt(qty))} }

// Div divides by a unit count, rounding half away from zero at Scale.
// Dividing by zero returns Zero.
func (m Money) Div(qty int64) Money {
	if qty == 0 {
		return Zero
	}
	return Money{d: m.d.DivRound(decimal.NewFromInt(qty), Scale)}
}

// Percent returns m as a percentage of total, rounded to places. A zero
// total yields zero.
func (m Money) Percent(total Money, places int32) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return m.d.Mul(decimal.NewFromInt(100)).DivRound(total.d, places)
}

// WeightedAverage returns the per-unit cost after adding addQty units costing
// addCost in total to oldQty units held at oldAvg.
func WeightedAverage(oldQty int64, oldAvg Money, addQty int64, addCost Money) Money {
	return oldAvg.Mul(oldQty).Add(addCost).Div(oldQty + addQty)
}

// Format renders the amount with the symbol and separators of the given ISO
// currency, e.g. "$1,234.50". Unknown currencies fall back to the plain
// decimal string.
func (m Money) Format(currency string) string {
	cur := gomoney.GetCurrency(currency)
	if cur == nil {
		return m.d.StringFixed(2)
	}
	minor := m.d.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// KnownCurrency reports whether go-money knows the ISO code.
func KnownCurrency(code string) bool { return gomoney.GetCurrency(code) != nil }

func (m Money) MarshalJSON() ([]byte, error) { return m.d.MarshalJSON() }

func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := json.Unmarshal(b, &d); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, b)
	}
	m.d = d
	return nil
}
