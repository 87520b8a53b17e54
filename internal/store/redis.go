package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
)

// CachedStore wraps a primary Store (PostgreSQL or SQLite) with a Redis
// read-through cache. Writes go to the primary store and invalidate the
// cache; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
	prefix  string
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
		prefix:  "ledger",
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateAccount(ctx context.Context, balance money.Money, watchlist []string) error {
	if err := s.primary.CreateAccount(ctx, balance, watchlist); err != nil {
		return err
	}
	s.rdb.Del(ctx, s.accountKey(), s.watchlistKey())
	return nil
}

func (s *CachedStore) Commit(ctx context.Context, c *model.Commit) error {
	if err := s.primary.Commit(ctx, c); err != nil {
		return err
	}
	// Invalidate; next read will re-populate.
	s.rdb.Del(ctx, s.accountKey(), s.transactionsKey())
	return nil
}

func (s *CachedStore) ReplaceWatchlist(ctx context.Context, symbols []string) error {
	if err := s.primary.ReplaceWatchlist(ctx, symbols); err != nil {
		return err
	}
	s.rdb.Del(ctx, s.watchlistKey())
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) LoadAccount(ctx context.Context) (*model.AccountState, error) {
	var st model.AccountState
	if s.get(ctx, s.accountKey(), &st) {
		return &st, nil
	}

	// Cache miss: read from primary.
	loaded, err := s.primary.LoadAccount(ctx)
	if err != nil {
		return nil, err
	}
	s.set(ctx, s.accountKey(), loaded)
	return loaded, nil
}

func (s *CachedStore) ListTransactions(ctx context.Context) ([]model.TransactionRecord, error) {
	var records []model.TransactionRecord
	if s.get(ctx, s.transactionsKey(), &records) {
		return records, nil
	}

	records, err := s.primary.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	s.set(ctx, s.transactionsKey(), records)
	return records, nil
}

func (s *CachedStore) GetWatchlist(ctx context.Context) ([]string, error) {
	var symbols []string
	if s.get(ctx, s.watchlistKey(), &symbols) {
		return symbols, nil
	}

	symbols, err := s.primary.GetWatchlist(ctx)
	if err != nil {
		return nil, err
	}
	s.set(ctx, s.watchlistKey(), symbols)
	return symbols, nil
}

// --- Cache helpers ---

func (s *CachedStore) get(ctx context.Context, key string, v any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func (s *CachedStore) set(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func (s *CachedStore) accountKey() string      { return fmt.Sprintf("%s:account", s.prefix) }
func (s *CachedStore) transactionsKey() string { return fmt.Sprintf("%s:transactions", s.prefix) }
func (s *CachedStore) watchlistKey() string    { return fmt.Sprintf("%s:watchlist", s.prefix) }
