package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
)

func m(s string) money.Money { return money.MustParse(s) }

type countingSource struct {
	prices Static
	calls  int
	err    error
}

func (s *countingSource) Lookup(ctx context.Context, symbol string) (money.Money, error) {
	s.calls++
	if s.err != nil {
		return money.Zero, s.err
	}
	return s.prices.Lookup(ctx, symbol)
}

func newBook(t *testing.T) *Book {
	t.Helper()
	b, err := NewBook(1000, time.Minute)
	if err != nil {
		t.Fatalf("new book: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func TestChain_OptionPricedByOCCSymbol(t *testing.T) {
	call := model.OptionKey("AAPL", model.Call, 150000, model.NewDate(2026, time.January, 16))
	chain := NewChain(nil, Static{"AAPL260116C00150000": m("4.25")})

	p, err := chain.Price(context.Background(), call)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !p.Equal(m("4.25")) {
		t.Errorf("expected 4.25, got %s", p)
	}
}

func TestChain_FallsThroughAndRemembers(t *testing.T) {
	book := newBook(t)
	first := &countingSource{prices: Static{}}
	second := &countingSource{prices: Static{"NVDA": m("131.5")}}
	chain := NewChain(book, first, second)
	ctx := context.Background()

	p, err := chain.Price(ctx, model.StockKey("NVDA"))
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !p.Equal(m("131.5")) {
		t.Errorf("expected 131.5, got %s", p)
	}

	book.Wait()
	if _, err := chain.Price(ctx, model.StockKey("NVDA")); err != nil {
		t.Fatalf("price: %v", err)
	}
	if second.calls != 1 {
		t.Errorf("second lookup should hit the book, source called %d times", second.calls)
	}
}

func TestChain_Miss(t *testing.T) {
	chain := NewChain(newBook(t), Static{})

	_, err := chain.Price(context.Background(), model.StockKey("ZZZ"))
	if !errors.Is(err, ErrNoPrice) {
		t.Errorf("expected ErrNoPrice, got %v", err)
	}
}

func TestChain_ZeroQuoteIsMiss(t *testing.T) {
	book := newBook(t)
	book.Set("SPY", money.Zero)
	book.Wait()
	chain := NewChain(book, Static{"SPY": money.Zero, "QQQ": money.Zero}, Static{"QQQ": m("480")})
	ctx := context.Background()

	if _, err := chain.Price(ctx, model.StockKey("SPY")); !errors.Is(err, ErrNoPrice) {
		t.Errorf("expected ErrNoPrice for a zero quote, got %v", err)
	}
	p, err := chain.Price(ctx, model.StockKey("QQQ"))
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !p.Equal(m("480")) {
		t.Errorf("expected the next source's 480, got %s", p)
	}
}

func TestChain_SourceFailureStillNoPrice(t *testing.T) {
	boom := errors.New("connection refused")
	chain := NewChain(nil, &countingSource{err: boom})

	_, err := chain.Price(context.Background(), model.StockKey("SPY"))
	if !errors.Is(err, ErrNoPrice) || !errors.Is(err, boom) {
		t.Errorf("expected ErrNoPrice wrapping the source error, got %v", err)
	}
}

func TestBook_SetAndDel(t *testing.T) {
	book := newBook(t)
	ctx := context.Background()

	book.Set("TSLA", m("250"))
	book.Wait()

	p, err := book.Lookup(ctx, "TSLA")
	if err != nil || !p.Equal(m("250")) {
		t.Fatalf("expected 250, got %s (%v)", p, err)
	}

	book.Del("TSLA")
	if _, err := book.Lookup(ctx, "TSLA"); !errors.Is(err, ErrNoPrice) {
		t.Errorf("expected ErrNoPrice after delete, got %v", err)
	}
}
