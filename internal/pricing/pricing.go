// Package pricing supplies current prices for holdings. Prices are keyed by
// pricing symbol: the ticker for stock, the OCC symbol for options. Option
// prices are per share of underlying, like average cost.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
	"github.com/atmx/ledger-engine/internal/occ"
)

// ErrNoPrice is returned when no source has a price for the instrument.
// Callers value the holding at average cost instead.
var ErrNoPrice = errors.New("pricing: no price available")

// Pricer returns the current unit price of an instrument.
type Pricer interface {
	Price(ctx context.Context, key model.InstrumentKey) (money.Money, error)
}

// Source is a price lookup by pricing symbol.
type Source interface {
	Lookup(ctx context.Context, symbol string) (money.Money, error)
}

// Chain asks each source in order and remembers the first hit in the book.
// A nil book disables remembering.
type Chain struct {
	book    *Book
	sources []Source
}

// NewChain builds a pricer over the book and the given fallback sources.
// The book is consulted first.
func NewChain(book *Book, sources ...Source) *Chain {
	return &Chain{book: book, sources: sources}
}

func (c *Chain) Price(ctx context.Context, key model.InstrumentKey) (money.Money, error) {
	symbol, err := occ.Symbol(key)
	if err != nil {
		return money.Zero, fmt.Errorf("%w: %v", ErrNoPrice, err)
	}

	if c.book != nil {
		if p, err := c.book.Lookup(ctx, symbol); err == nil && p.IsPositive() {
			return p, nil
		}
	}

	// Source failures other than a plain miss are kept for the caller's log.
	var failures []error
	for _, src := range c.sources {
		p, err := src.Lookup(ctx, symbol)
		if err != nil {
			if !errors.Is(err, ErrNoPrice) {
				failures = append(failures, err)
			}
			continue
		}
		// A zero quote means the source has no usable price.
		if !p.IsPositive() {
			continue
		}
		if c.book != nil {
			c.book.Set(symbol, p)
		}
		return p, nil
	}
	if len(failures) > 0 {
		return money.Zero, fmt.Errorf("%w: %s: %w", ErrNoPrice, symbol, errors.Join(failures...))
	}
	return money.Zero, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
}

// Static is a fixed symbol → price table.
type Static map[string]money.Money

func (s Static) Lookup(_ context.Context, symbol string) (money.Money, error) {
	p, ok := s[symbol]
	if !ok {
		return money.Zero, ErrNoPrice
	}
	return p, nil
}
