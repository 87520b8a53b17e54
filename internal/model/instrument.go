package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atmx/ledger-engine/internal/money"
)

// ContractMultiplier is the number of underlying shares per option contract.
const ContractMultiplier = 100

// AssetClass distinguishes stock from option holdings.
type AssetClass string

const (
	Stock  AssetClass = "stock"
	Option AssetClass = "option"
)

// OptionKind is call or put. Empty for stock.
type OptionKind string

const (
	Call OptionKind = "call"
	Put  OptionKind = "put"
)

var (
	ErrInvalidAssetClass = errors.New("model: asset type must be stock or option")
	ErrInvalidOptionKind = errors.New("model: option type must be call or put")
	ErrInvalidKey        = errors.New("model: invalid instrument")
)

func ParseAssetClass(s string) (AssetClass, error) {
	switch AssetClass(strings.ToLower(strings.TrimSpace(s))) {
	case "", Stock:
		return Stock, nil
	case Option:
		return Option, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAssetClass, s)
	}
}

func ParseOptionKind(s string) (OptionKind, error) {
	switch OptionKind(strings.ToLower(strings.TrimSpace(s))) {
	case Call:
		return Call, nil
	case Put:
		return Put, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOptionKind, s)
	}
}

// InstrumentKey identifies a fungible position. Stock keys carry only the
// symbol; option keys also carry kind, strike and expiration. Keys are
// comparable and used directly as map keys: two holdings with equal keys are
// the same position.
type InstrumentKey struct {
	Symbol     string      `json:"symbol"`
	Class      AssetClass  `json:"asset_type"`
	Kind       OptionKind  `json:"option_type,omitempty"`
	Strike     money.Mills `json:"strike,omitempty"`
	Expiration Date        `json:"expiration"`
}

// StockKey returns the key of a stock position.
func StockKey(symbol string) InstrumentKey {
	return InstrumentKey{Symbol: normalizeSymbol(symbol), Class: Stock}
}

// OptionKey returns the key of an option position.
func OptionKey(symbol string, kind OptionKind, strike money.Mills, exp Date) InstrumentKey {
	return InstrumentKey{
		Symbol:     normalizeSymbol(symbol),
		Class:      Option,
		Kind:       kind,
		Strike:     strike,
		Expiration: exp,
	}
}

func normalizeSymbol(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// Validate checks that the key is a well-formed Stock or Option variant.
func (k InstrumentKey) Validate() error {
	if k.Symbol == "" || k.Symbol != normalizeSymbol(k.Symbol) {
		return fmt.Errorf("%w: symbol %q", ErrInvalidKey, k.Symbol)
	}
	switch k.Class {
	case Stock:
		if k.Kind != "" || k.Strike != 0 || !k.Expiration.IsZero() {
			return fmt.Errorf("%w: stock %s carries option fields", ErrInvalidKey, k.Symbol)
		}
	case Option:
		if k.Kind != Call && k.Kind != Put {
			return fmt.Errorf("%w: %q", ErrInvalidOptionKind, k.Kind)
		}
		if k.Strike <= 0 {
			return fmt.Errorf("%w: option %s needs a positive strike", ErrInvalidKey, k.Symbol)
		}
		if k.Expiration.IsZero() {
			return fmt.Errorf("%w: option %s needs an expiration", ErrInvalidKey, k.Symbol)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAssetClass, k.Class)
	}
	return nil
}

func (k InstrumentKey) IsOption() bool { return k.Class == Option }

// Multiplier is the valuation multiplier: 100 for options, 1 for stock.
func (k InstrumentKey) Multiplier() int64 {
	if k.IsOption() {
		return ContractMultiplier
	}
	return 1
}

// Underlying returns the stock key of the same symbol.
func (k InstrumentKey) Underlying() InstrumentKey { return StockKey(k.Symbol) }

// DisplayName renders "AAPL" or "AAPL 2026-01-16 150 Call".
func (k InstrumentKey) DisplayName() string {
	if !k.IsOption() {
		return k.Symbol
	}
	kind := string(k.Kind)
	if kind != "" {
		kind = strings.ToUpper(kind[:1]) + kind[1:]
	}
	return fmt.Sprintf("%s %s %s %s", k.Symbol, k.Expiration, k.Strike, kind)
}

func (k InstrumentKey) String() string { return k.DisplayName() }
