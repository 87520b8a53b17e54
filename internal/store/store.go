// Package store defines the persistence interface for the ledger engine.
// Implementations include PostgreSQL and SQLite (sources of truth), Redis
// (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
)

var (
	// ErrNoAccount is returned by LoadAccount before CreateAccount ran.
	ErrNoAccount = errors.New("store: account not initialized")

	// ErrAccountExists is returned by CreateAccount when an account is
	// already persisted.
	ErrAccountExists = errors.New("store: account already exists")
)

// Store is the persistence interface. It holds exactly one account.
type Store interface {
	// --- Account ---

	// LoadAccount returns the balance, open holdings and holding id
	// sequence, or ErrNoAccount.
	LoadAccount(ctx context.Context) (*model.AccountState, error)

	// CreateAccount persists a new account with its starting balance and
	// seeds the watchlist.
	CreateAccount(ctx context.Context, balance money.Money, watchlist []string) error

	// Commit applies the balance, holding and record changes of one trade
	// or exercise atomically: all of them or none.
	Commit(ctx context.Context, c *model.Commit) error

	// --- Immutable transaction log ---

	// ListTransactions returns all records ordered by timestamp, then seq.
	ListTransactions(ctx context.Context) ([]model.TransactionRecord, error)

	// --- Watchlist ---

	// GetWatchlist returns the watched symbols in insertion order.
	GetWatchlist(ctx context.Context) ([]string, error)

	// ReplaceWatchlist swaps the whole watchlist.
	ReplaceWatchlist(ctx context.Context, symbols []string) error
}
