package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
)

// Decimals are kept as TEXT so SQLite never rounds them through REAL.
// Timestamps are UTC unix nanoseconds for ordering.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	balance     TEXT    NOT NULL,
	holding_seq INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS holdings (
	id          INTEGER PRIMARY KEY,
	symbol      TEXT    NOT NULL,
	asset_type  TEXT    NOT NULL,
	option_type TEXT    NOT NULL DEFAULT '',
	strike      INTEGER NOT NULL DEFAULT 0,
	expiration  TEXT    NOT NULL DEFAULT '',
	quantity    INTEGER NOT NULL CHECK (quantity > 0),
	avg_price   TEXT    NOT NULL,
	UNIQUE (symbol, asset_type, option_type, strike, expiration)
);
CREATE TABLE IF NOT EXISTS transactions (
	id          TEXT    PRIMARY KEY,
	seq         INTEGER NOT NULL UNIQUE,
	ts_nanos    INTEGER NOT NULL,
	symbol      TEXT    NOT NULL,
	asset_type  TEXT    NOT NULL,
	option_type TEXT    NOT NULL DEFAULT '',
	strike      INTEGER NOT NULL DEFAULT 0,
	expiration  TEXT    NOT NULL DEFAULT '',
	action      TEXT    NOT NULL,
	quantity    INTEGER NOT NULL CHECK (quantity > 0),
	price       TEXT    NOT NULL,
	origin      TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_order ON transactions(ts_nanos, seq);
CREATE TABLE IF NOT EXISTS watchlist (
	position INTEGER NOT NULL,
	symbol   TEXT    PRIMARY KEY
);
`

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_sync=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// A single writer connection keeps commits serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadAccount(ctx context.Context) (*model.AccountState, error) {
	var balanceS string
	var st model.AccountState

	err := s.db.QueryRowContext(ctx,
		`SELECT balance, holding_seq FROM accounts WHERE id = 1`).
		Scan(&balanceS, &st.HoldingSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoAccount
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if st.Balance, err = money.Parse(balanceS); err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, asset_type, option_type, strike, expiration, quantity, avg_price
		 FROM holdings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if st.Holdings, err = scanHoldings(rows); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SQLiteStore) CreateAccount(ctx context.Context, balance money.Money, watchlist []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO accounts (id, balance, holding_seq) VALUES (1, ?, 0)`, balance.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAccountExists
	}
	if err := replaceWatchlistSQL(ctx, tx, watchlist); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Commit(ctx context.Context, c *model.Commit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, holding_seq = ? WHERE id = 1`,
		c.Balance.String(), c.HoldingSeq)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoAccount
	}

	for _, id := range c.Deletes {
		res, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("holding %d not found", id)
		}
	}

	for _, h := range c.Upserts {
		k := encodeKey(h.InstrumentKey)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO holdings (id, symbol, asset_type, option_type, strike, expiration, quantity, avg_price)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET quantity = excluded.quantity, avg_price = excluded.avg_price`,
			h.ID, k.Symbol, k.AssetType, k.OptionType, k.Strike, k.Expiration,
			h.Quantity, h.AvgCost.String(),
		); err != nil {
			return err
		}
	}

	for _, r := range c.Records {
		k := encodeKey(r.InstrumentKey)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (id, seq, ts_nanos, symbol, asset_type, option_type, strike, expiration,
			                           action, quantity, price, origin)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Seq, r.Timestamp.UTC().UnixNano(), k.Symbol, k.AssetType, k.OptionType, k.Strike, k.Expiration,
			string(r.Action), r.Quantity, r.Price.String(), string(r.Origin),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) ListTransactions(ctx context.Context) ([]model.TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq, ts_nanos, symbol, asset_type, option_type, strike, expiration,
		        action, quantity, price, origin
		 FROM transactions ORDER BY ts_nanos, seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.TransactionRecord
	for rows.Next() {
		var r recordRow
		var nanos int64
		if err := rows.Scan(&r.ID, &r.Seq, &nanos,
			&r.Symbol, &r.AssetType, &r.OptionType, &r.Strike, &r.Expiration,
			&r.Action, &r.Quantity, &r.Price, &r.Origin); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(0, nanos)
		rec, err := r.decode()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) GetWatchlist(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol FROM watchlist ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanWatchlist(rows)
}

func (s *SQLiteStore) ReplaceWatchlist(ctx context.Context, symbols []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := replaceWatchlistSQL(ctx, tx, symbols); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceWatchlistSQL(ctx context.Context, tx *sql.Tx, symbols []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM watchlist`); err != nil {
		return err
	}
	for i, sym := range symbols {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO watchlist (position, symbol) VALUES (?, ?)`, i, sym); err != nil {
			return err
		}
	}
	return nil
}
