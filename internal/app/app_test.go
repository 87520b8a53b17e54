package app

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/atmx/ledger-engine/internal/config"
	"github.com/atmx/ledger-engine/internal/ledger"
	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
	"github.com/atmx/ledger-engine/internal/store"
)

func TestOpen_MemoryDefaults(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"STARTING_BALANCE": "5000"})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	a, err := Open(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()

	if _, ok := a.Store.(*store.MemoryStore); !ok {
		t.Errorf("expected memory store, got %T", a.Store)
	}
	if a.Redis != nil {
		t.Error("redis should be nil without REDIS_URL")
	}
	if !a.Ledger.Balance().Equal(money.FromInt(5000)) {
		t.Errorf("expected starting balance 5000, got %s", a.Ledger.Balance())
	}
}

func TestOpen_SQLitePersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	cfg, err := config.LoadFrom(map[string]string{"SQLITE_PATH": path})
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	a, err := Open(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := a.Ledger.Trade(ctx, model.StockKey("AAPL"), model.Buy, 10, money.FromInt(100)); err != nil {
		t.Fatalf("trade: %v", err)
	}
	a.Close()

	a, err = Open(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer a.Close()

	if !a.Ledger.Balance().Equal(money.FromInt(99000)) {
		t.Errorf("expected 99000 after reopen, got %s", a.Ledger.Balance())
	}
	if h, ok := a.Ledger.Position(model.StockKey("AAPL")); !ok || h.Quantity != 10 {
		t.Errorf("holding not reloaded: %+v", h)
	}

	// No quotes are known, so the snapshot values the holding at cost.
	snap, err := a.Portfolio.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Holdings) != 1 || snap.Holdings[0].PriceSource != model.PriceCost {
		t.Errorf("unexpected holdings %+v", snap.Holdings)
	}
}

func TestOpen_BookFeedsSnapshot(t *testing.T) {
	ctx := context.Background()
	cfg, _ := config.LoadFrom(map[string]string{})

	var events int
	a, err := Open(ctx, cfg, zap.NewNop(), ledger.OnCommit(func(ledger.Event) { events++ }))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()

	if _, err := a.Ledger.Trade(ctx, model.StockKey("NVDA"), model.Buy, 2, money.FromInt(100)); err != nil {
		t.Fatalf("trade: %v", err)
	}
	if events != 1 {
		t.Errorf("expected the extra hook to run once, got %d", events)
	}

	a.Book.Set("NVDA", money.FromInt(150))
	a.Book.Wait()

	snap, err := a.Portfolio.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.TotalValue.Equal(money.FromInt(100100)) {
		t.Errorf("expected 99800 cash + 300 market, got %s", snap.TotalValue)
	}
}
