// Package app assembles the ledger and its collaborators from a Config. It
// is shared by the HTTP server and the command line tool.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atmx/ledger-engine/internal/config"
	"github.com/atmx/ledger-engine/internal/ledger"
	"github.com/atmx/ledger-engine/internal/portfolio"
	"github.com/atmx/ledger-engine/internal/pricing"
	"github.com/atmx/ledger-engine/internal/risk"
	"github.com/atmx/ledger-engine/internal/store"
)

// bookSize bounds the last-known price cache.
const bookSize = 10_000

// App holds the opened components. Close releases them in reverse order.
type App struct {
	Store     store.Store
	Redis     *redis.Client // nil without REDIS_URL
	Book      *pricing.Book
	Ledger    *ledger.Ledger
	Portfolio *portfolio.Service

	cleanup []func()
}

// OpenStore selects the backend: PostgreSQL when DATABASE_URL is set, then
// SQLite, then memory. With REDIS_URL the store is wrapped in a read-through
// cache and the client is returned for quote lookups.
func OpenStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, *redis.Client, []func(), error) {
	var (
		st      store.Store
		cleanup []func()
	)

	switch cfg.StoreKind() {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			runAll(cleanup)
			return nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		st = pg
		logger.Info("connected to PostgreSQL")
	case "sqlite":
		sq, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		cleanup = append(cleanup, func() { sq.Close() })
		st = sq
		logger.Info("opened SQLite", zap.String("path", cfg.SQLitePath))
	default:
		logger.Warn("DATABASE_URL and SQLITE_PATH not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			runAll(cleanup)
			return nil, nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
		logger.Info("Redis cache enabled", zap.Duration("ttl", cfg.CacheTTL))
	}
	return st, rdb, cleanup, nil
}

// Open builds the store, price chain and ledger. Extra ledger options, such
// as commit hooks, are applied after the configured ones.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...ledger.Option) (*App, error) {
	st, rdb, cleanup, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &App{Store: st, Redis: rdb, cleanup: cleanup}

	book, err := pricing.NewBook(bookSize, cfg.PriceTTL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("price book: %w", err)
	}
	a.Book = book
	a.cleanup = append(a.cleanup, book.Close)

	var sources []pricing.Source
	if rdb != nil {
		sources = append(sources, pricing.NewRedisQuotes(rdb))
	}

	limiter := risk.NewLimiter(cfg.MaxInstrumentExposure, cfg.MaxUnderlyingExposure)
	base := []ledger.Option{
		ledger.WithStartingBalance(cfg.StartingBalance),
		ledger.WithWatchlist(cfg.DefaultWatchlist),
		ledger.WithLimiter(limiter),
		ledger.WithLogger(logger.Named("ledger")),
	}
	l, err := ledger.Open(ctx, st, append(base, opts...)...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Ledger = l
	a.Portfolio = portfolio.NewService(l, pricing.NewChain(book, sources...), logger.Named("portfolio"))

	if limiter.Enabled() {
		logger.Info("exposure limits enabled",
			zap.String("per_instrument", cfg.MaxInstrumentExposure.String()),
			zap.String("per_underlying", cfg.MaxUnderlyingExposure.String()),
		)
	}
	return a, nil
}

// Close releases everything Open acquired.
func (a *App) Close() {
	runAll(a.cleanup)
	a.cleanup = nil
}

func runAll(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
