package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu         sync.RWMutex
	created    bool
	balance    money.Money
	holdings   map[int64]model.Holding
	holdingSeq int64
	ledger     []model.TransactionRecord
	watchlist  []string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		holdings: make(map[int64]model.Holding),
	}
}

func (s *MemoryStore) LoadAccount(_ context.Context) (*model.AccountState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.created {
		return nil, ErrNoAccount
	}

	holdings := make([]model.Holding, 0, len(s.holdings))
	for _, h := range s.holdings {
		holdings = append(holdings, h)
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].ID < holdings[j].ID })

	return &model.AccountState{
		Balance:    s.balance,
		Holdings:   holdings,
		HoldingSeq: s.holdingSeq,
	}, nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, balance money.Money, watchlist []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.created {
		return ErrAccountExists
	}
	s.created = true
	s.balance = balance
	s.watchlist = append([]string(nil), watchlist...)
	return nil
}

func (s *MemoryStore) Commit(_ context.Context, c *model.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.created {
		return ErrNoAccount
	}
	// Validate everything before touching state so the commit is all-or-nothing.
	for _, id := range c.Deletes {
		if _, ok := s.holdings[id]; !ok {
			return fmt.Errorf("holding %d not found", id)
		}
	}

	s.balance = c.Balance
	s.holdingSeq = c.HoldingSeq
	for _, id := range c.Deletes {
		delete(s.holdings, id)
	}
	for _, h := range c.Upserts {
		s.holdings[h.ID] = h
	}
	s.ledger = append(s.ledger, c.Records...)
	return nil
}

func (s *MemoryStore) ListTransactions(_ context.Context) ([]model.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.TransactionRecord, len(s.ledger))
	copy(result, s.ledger)
	model.SortRecords(result)
	return result, nil
}

func (s *MemoryStore) GetWatchlist(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string{}, s.watchlist...), nil
}

func (s *MemoryStore) ReplaceWatchlist(_ context.Context, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.watchlist = append([]string(nil), symbols...)
	return nil
}
