// Package occ handles OCC option symbol parsing and formatting. Option
// holdings are priced by their OCC symbol, stock holdings by their ticker.
package occ

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
)

// symbolRegex matches: {root}{YYMMDD}{C|P}{strike*1000, 8 digits}
// Example: AAPL260116C00150000
var symbolRegex = regexp.MustCompile(
	`^([A-Z][A-Z0-9.]{0,5})(\d{6})([CP])(\d{8})$`,
)

var (
	ErrInvalidSymbol = errors.New("occ: invalid option symbol")
	ErrStrikeRange   = errors.New("occ: strike does not fit 8 digits")
)

// maxStrike is the largest strike representable in the 8-digit field.
const maxStrike money.Mills = 99_999_999

// Symbol returns the pricing symbol of an instrument: the OCC symbol for
// options and the plain ticker for stock.
func Symbol(key model.InstrumentKey) (string, error) {
	if !key.IsOption() {
		return key.Symbol, nil
	}
	if key.Strike <= 0 || key.Strike > maxStrike {
		return "", fmt.Errorf("%w: %s", ErrStrikeRange, key.Strike)
	}
	kind := "C"
	if key.Kind == model.Put {
		kind = "P"
	}
	return fmt.Sprintf("%s%s%s%08d",
		key.Symbol, key.Expiration.Time().Format("060102"), kind, int64(key.Strike)), nil
}

// Parse parses and validates an OCC option symbol into an option key.
// Format: {root}{YYMMDD}{C|P}{strike*1000 padded to 8}
func Parse(symbol string) (model.InstrumentKey, error) {
	matches := symbolRegex.FindStringSubmatch(symbol)
	if matches == nil {
		return model.InstrumentKey{}, fmt.Errorf("%w: %s (expected {root}{YYMMDD}{C|P}{strike x1000})",
			ErrInvalidSymbol, symbol)
	}

	root := matches[1]
	dateStr := matches[2]
	kind := model.Call
	if matches[3] == "P" {
		kind = model.Put
	}

	expiry, err := time.Parse("060102", dateStr)
	if err != nil {
		return model.InstrumentKey{}, fmt.Errorf("%w: invalid date %s", ErrInvalidSymbol, dateStr)
	}

	strike, err := strconv.ParseInt(matches[4], 10, 64)
	if err != nil || strike == 0 {
		return model.InstrumentKey{}, fmt.Errorf("%w: invalid strike %s", ErrInvalidSymbol, matches[4])
	}

	return model.OptionKey(root, kind, money.Mills(strike), model.NewDate(expiry.Date())), nil
}
