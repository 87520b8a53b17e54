// Package ledger owns the single trading account: its cash balance, open
// holdings and append-only transaction log.
//
// Every trade and exercise runs inside one mutual-exclusion boundary:
// read balance and holdings, validate, build a model.Commit, persist it, then
// apply it in memory. A failure at any step leaves both the store and the
// in-memory account untouched.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atmx/ledger-engine/internal/metrics"
	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
	"github.com/atmx/ledger-engine/internal/risk"
	"github.com/atmx/ledger-engine/internal/store"
)

var (
	// ErrInsufficientFunds is returned when a buy or call exercise costs
	// more than the cash balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrInsufficientHoldings is returned when a sell exceeds the held
	// quantity or nothing is held.
	ErrInsufficientHoldings = errors.New("ledger: insufficient holdings")

	// ErrInsufficientShares is returned when a put exercise needs more
	// underlying shares than are held.
	ErrInsufficientShares = errors.New("ledger: insufficient shares")

	// ErrInvalidInstrument is returned for a malformed instrument key or an
	// exercise of something that is not an option holding.
	ErrInvalidInstrument = errors.New("ledger: invalid instrument")

	// ErrUnknownHolding is an ErrInvalidInstrument for a holding id that
	// does not exist.
	ErrUnknownHolding = fmt.Errorf("%w: unknown holding", ErrInvalidInstrument)

	ErrInvalidQuantity = errors.New("ledger: quantity must be positive")
	ErrInvalidPrice    = errors.New("ledger: price must not be negative")
)

// DefaultStartingBalance funds a newly created account.
var DefaultStartingBalance = money.FromInt(100000)

// DefaultWatchlist seeds the watchlist of a newly created account.
var DefaultWatchlist = []string{"SPY", "AAPL", "NVDA", "TSLA", "AMD"}

// Event describes one committed operation.
type Event struct {
	Type    string // "trade" or "exercise"
	Balance money.Money
	Records []model.TransactionRecord
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStartingBalance sets the balance used when the store holds no account yet.
func WithStartingBalance(b money.Money) Option {
	return func(l *Ledger) { l.startingBalance = b }
}

// WithWatchlist sets the watchlist seeded on account creation.
func WithWatchlist(symbols []string) Option {
	return func(l *Ledger) { l.watchlist = symbols }
}

// WithLimiter enforces exposure limits on buys.
func WithLimiter(lim *risk.Limiter) Option {
	return func(l *Ledger) { l.limiter = lim }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// OnCommit registers a callback run after every committed operation,
// outside the account lock.
func OnCommit(fn func(Event)) Option {
	return func(l *Ledger) { l.hooks = append(l.hooks, fn) }
}

// Ledger is the account. It is safe for concurrent use.
type Ledger struct {
	store   store.Store
	limiter *risk.Limiter
	logger  *zap.Logger
	now     func() time.Time
	hooks   []func(Event)

	startingBalance money.Money
	watchlist       []string

	mu         sync.RWMutex
	balance    money.Money
	holdings   map[int64]model.Holding
	byKey      map[model.InstrumentKey]int64
	holdingSeq int64
	records    []model.TransactionRecord
	seq        int64
	lastTS     time.Time
}

// Open loads the account from st, creating it with the starting balance and
// watchlist on first use.
func Open(ctx context.Context, st store.Store, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store:           st,
		logger:          zap.NewNop(),
		now:             time.Now,
		startingBalance: DefaultStartingBalance,
		watchlist:       DefaultWatchlist,
		holdings:        make(map[int64]model.Holding),
		byKey:           make(map[model.InstrumentKey]int64),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.startingBalance.IsNegative() {
		return nil, fmt.Errorf("%w: starting balance %s", ErrInvalidPrice, l.startingBalance)
	}

	acct, err := st.LoadAccount(ctx)
	if errors.Is(err, store.ErrNoAccount) {
		cerr := st.CreateAccount(ctx, l.startingBalance, NormalizeWatchlist(l.watchlist))
		switch {
		case cerr == nil:
			l.logger.Info("account created", zap.String("balance", l.startingBalance.String()))
		case !errors.Is(cerr, store.ErrAccountExists):
			return nil, fmt.Errorf("ledger: create account: %w", cerr)
		}
		acct, err = st.LoadAccount(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: load account: %w", err)
	}

	records, err := st.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: load transactions: %w", err)
	}

	l.balance = acct.Balance
	l.holdingSeq = acct.HoldingSeq
	for _, h := range acct.Holdings {
		if _, dup := l.byKey[h.InstrumentKey]; dup {
			return nil, fmt.Errorf("ledger: duplicate holding for %s", h.InstrumentKey)
		}
		l.holdings[h.ID] = h
		l.byKey[h.InstrumentKey] = h.ID
		l.holdingSeq = max(l.holdingSeq, h.ID)
	}
	l.records = records
	model.SortRecords(l.records)
	for _, r := range l.records {
		l.seq = max(l.seq, r.Seq)
		if r.Timestamp.After(l.lastTS) {
			l.lastTS = r.Timestamp
		}
	}

	metrics.CashBalance.Set(l.balance.Decimal().InexactFloat64())
	metrics.OpenHoldings.Set(float64(len(l.holdings)))
	l.logger.Info("ledger opened",
		zap.String("balance", l.balance.String()),
		zap.Int("holdings", len(l.holdings)),
		zap.Int("records", len(l.records)),
	)
	return l, nil
}

// State is a point-in-time copy of the account.
type State struct {
	Balance  money.Money
	Holdings []model.Holding           // ordered by id
	Records  []model.TransactionRecord // ordered by timestamp, then seq
}

// State returns a consistent copy of the balance, holdings and log. It never
// observes a partially applied operation.
func (l *Ledger) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	holdings := make([]model.Holding, 0, len(l.holdings))
	for _, h := range l.holdings {
		holdings = append(holdings, h)
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].ID < holdings[j].ID })

	records := make([]model.TransactionRecord, len(l.records))
	copy(records, l.records)

	return State{Balance: l.balance, Holdings: holdings, Records: records}
}

// Balance returns the current cash balance.
func (l *Ledger) Balance() money.Money {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance
}

// Holding returns the open holding with the given id.
func (l *Ledger) Holding(id int64) (model.Holding, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.holdings[id]
	return h, ok
}

// Position returns the open holding for key.
func (l *Ledger) Position(key model.InstrumentKey) (model.Holding, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.byKey[key]
	if !ok {
		return model.Holding{}, false
	}
	return l.holdings[id], true
}

// Watchlist returns the watched symbols.
func (l *Ledger) Watchlist(ctx context.Context) ([]string, error) {
	return l.store.GetWatchlist(ctx)
}

// SetWatchlist replaces the watchlist and returns the stored form.
func (l *Ledger) SetWatchlist(ctx context.Context, symbols []string) ([]string, error) {
	normalized := NormalizeWatchlist(symbols)
	if err := l.store.ReplaceWatchlist(ctx, normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}

// NormalizeWatchlist upper-cases symbols, drops blanks and duplicates and
// keeps first-seen order.
func NormalizeWatchlist(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// --- Critical-section helpers; callers hold l.mu ---

// timestamp returns now, clamped so record timestamps never go backwards.
func (l *Ledger) timestamp() time.Time {
	ts := l.now().UTC()
	if ts.Before(l.lastTS) {
		ts = l.lastTS
	}
	return ts
}

func (l *Ledger) newRecord(key model.InstrumentKey, action model.Action, qty int64, price money.Money, origin model.Origin, ts time.Time, seq int64) model.TransactionRecord {
	return model.TransactionRecord{
		ID:            uuid.New().String(),
		Seq:           seq,
		Timestamp:     ts,
		InstrumentKey: key,
		Action:        action,
		Quantity:      qty,
		Price:         price,
		Origin:        origin,
	}
}

// commit persists c and then applies it to memory.
func (l *Ledger) commit(ctx context.Context, c *model.Commit) error {
	if err := l.store.Commit(ctx, c); err != nil {
		return fmt.Errorf("ledger: commit: %w", err)
	}

	l.balance = c.Balance
	l.holdingSeq = c.HoldingSeq
	for _, id := range c.Deletes {
		if h, ok := l.holdings[id]; ok {
			delete(l.byKey, h.InstrumentKey)
			delete(l.holdings, id)
		}
	}
	for _, h := range c.Upserts {
		l.holdings[h.ID] = h
		l.byKey[h.InstrumentKey] = h.ID
	}
	for _, r := range c.Records {
		l.records = append(l.records, r)
		l.seq = max(l.seq, r.Seq)
		if r.Timestamp.After(l.lastTS) {
			l.lastTS = r.Timestamp
		}
	}

	metrics.CashBalance.Set(l.balance.Decimal().InexactFloat64())
	metrics.OpenHoldings.Set(float64(len(l.holdings)))
	return nil
}

func (l *Ledger) notify(ev Event) {
	for _, fn := range l.hooks {
		fn(ev)
	}
}

// reason maps an error to a short metric label.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientHoldings):
		return "insufficient_holdings"
	case errors.Is(err, ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, ErrUnknownHolding):
		return "unknown_holding"
	case errors.Is(err, ErrInvalidInstrument):
		return "invalid_instrument"
	case errors.Is(err, model.ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidPrice):
		return "invalid_input"
	case errors.Is(err, risk.ErrInstrumentLimitExceeded), errors.Is(err, risk.ErrUnderlyingLimitExceeded):
		return "limit"
	default:
		return "store"
	}
}
