package money

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrStrikePrecision is returned when a strike has more than three decimal
// places or is not positive.
var ErrStrikePrecision = errors.New("money: strike must be positive with at most 3 decimals")

// Mills is a price in thousandths of a currency unit. Option strikes are
// kept in Mills so that an option InstrumentKey stays comparable and
// matches the OCC strike encoding exactly.
type Mills int64

// MillsFrom converts a strike amount, rejecting any sub-mill precision.
func MillsFrom(m Money) (Mills, error) {
	scaled := m.d.Shift(3)
	if !m.d.IsPositive() || !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s", ErrStrikePrecision, m)
	}
	return Mills(scaled.IntPart()), nil
}

// ParseMills parses a strike string such as "152.5".
func ParseMills(s string) (Mills, error) {
	m, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return MillsFrom(m)
}

// Money returns the strike as an amount.
func (s Mills) Money() Money { return Money{d: decimal.New(int64(s), -3)} }

func (s Mills) String() string { return s.Money().String() }

func (s Mills) MarshalJSON() ([]byte, error) { return s.Money().MarshalJSON() }

func (s *Mills) UnmarshalJSON(b []byte) error {
	var m Money
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if m.IsZero() {
		*s = 0
		return nil
	}
	v, err := MillsFrom(m)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
