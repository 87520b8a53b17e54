package feed

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/atmx/ledger-engine/internal/ledger"
	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
	"github.com/atmx/ledger-engine/internal/pricing"
)

var _ PriceSink = (*pricing.Book)(nil)

func TestDecodeQuote(t *testing.T) {
	q, err := DecodeQuote([]byte(`{"symbol":" aapl260116c00150000 ","price":"4.25"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if q.Symbol != "AAPL260116C00150000" {
		t.Errorf("symbol not normalized: %q", q.Symbol)
	}
	if !q.Price.Equal(money.MustParse("4.25")) {
		t.Errorf("expected 4.25, got %s", q.Price)
	}
	if q.TS.IsZero() {
		t.Error("missing timestamp should default to now")
	}
}

func TestDecodeQuote_Invalid(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"symbol":"","price":"1"}`,
		`{"symbol":"SPY","price":"-1"}`,
		`{"symbol":"SPY","price":"0"}`,
		`{"symbol":"SPY"}`,
		`{"symbol":"SPY","price":"abc"}`,
	} {
		if _, err := DecodeQuote([]byte(raw)); err == nil {
			t.Errorf("expected error for %s", raw)
		}
	}
}

type memWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func (w *memWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

func event(symbol string, n int) ledger.Event {
	ev := ledger.Event{Type: "trade", Balance: money.FromInt(900)}
	for i := 0; i < n; i++ {
		ev.Records = append(ev.Records, model.TransactionRecord{
			ID:            "r",
			Seq:           int64(i + 1),
			Timestamp:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			InstrumentKey: model.StockKey(symbol),
			Action:        model.Buy,
			Quantity:      1,
			Price:         money.FromInt(100),
			Origin:        model.OriginTrade,
		})
	}
	return ev
}

func TestPublisher_WritesAndFlushes(t *testing.T) {
	w := &memWriter{}
	p := NewPublisher(w, 16, zap.NewNop())

	p.Enqueue(event("AAPL", 2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Run must still flush what was queued.
	if err := p.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if w.count() != 2 {
		t.Fatalf("expected 2 messages, got %d", w.count())
	}
	msg := w.msgs[0]
	if string(msg.Key) != "AAPL" {
		t.Errorf("expected key AAPL, got %q", msg.Key)
	}
	var ev RecordEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != "trade" || ev.Balance != "900" || ev.Record.Symbol != "AAPL" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	w := &memWriter{}
	p := NewPublisher(w, 1, zap.NewNop())

	p.Enqueue(event("SPY", 3)) // one fits, two dropped

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)

	if w.count() != 1 {
		t.Errorf("expected 1 message after drops, got %d", w.count())
	}
}
