package pricing

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/atmx/ledger-engine/internal/money"
)

// Book holds last-known prices with a TTL. Entries older than the TTL are
// dropped, so a stale quote ends in ErrNoPrice rather than a wrong value.
type Book struct {
	c   *ristretto.Cache
	ttl time.Duration
}

// NewBook creates a book holding up to maxEntries symbols.
func NewBook(maxEntries int64, ttl time.Duration) (*Book, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Book{c: c, ttl: ttl}, nil
}

// Set records a price. Writes are applied asynchronously; Wait flushes them.
func (b *Book) Set(symbol string, price money.Money) {
	b.c.SetWithTTL(symbol, price, 1, b.ttl)
}

// Wait blocks until pending writes are visible.
func (b *Book) Wait() { b.c.Wait() }

func (b *Book) Lookup(_ context.Context, symbol string) (money.Money, error) {
	v, ok := b.c.Get(symbol)
	if !ok {
		return money.Zero, ErrNoPrice
	}
	p, ok := v.(money.Money)
	if !ok {
		return money.Zero, ErrNoPrice
	}
	return p, nil
}

func (b *Book) Del(symbol string) { b.c.Del(symbol) }

func (b *Book) Close() { b.c.Close() }
