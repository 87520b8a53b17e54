package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
)

// postgresSchema creates the ledger tables. All monetary values are stored
// as NUMERIC for exact decimal precision.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id          SMALLINT PRIMARY KEY CHECK (id = 1),
	balance     NUMERIC  NOT NULL CHECK (balance >= 0),
	holding_seq BIGINT   NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS holdings (
	id          BIGINT  PRIMARY KEY,
	symbol      TEXT    NOT NULL,
	asset_type  TEXT    NOT NULL,
	option_type TEXT    NOT NULL DEFAULT '',
	strike      BIGINT  NOT NULL DEFAULT 0,
	expiration  TEXT    NOT NULL DEFAULT '',
	quantity    BIGINT  NOT NULL CHECK (quantity > 0),
	avg_price   NUMERIC NOT NULL CHECK (avg_price >= 0),
	UNIQUE (symbol, asset_type, option_type, strike, expiration)
);
CREATE TABLE IF NOT EXISTS transactions (
	id          TEXT        PRIMARY KEY,
	seq         BIGINT      NOT NULL UNIQUE,
	timestamp   TIMESTAMPTZ NOT NULL,
	symbol      TEXT        NOT NULL,
	asset_type  TEXT        NOT NULL,
	option_type TEXT        NOT NULL DEFAULT '',
	strike      BIGINT      NOT NULL DEFAULT 0,
	expiration  TEXT        NOT NULL DEFAULT '',
	action      TEXT        NOT NULL,
	quantity    BIGINT      NOT NULL CHECK (quantity > 0),
	price       NUMERIC     NOT NULL,
	origin      TEXT        NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_order ON transactions (timestamp, seq);
CREATE TABLE IF NOT EXISTS watchlist (
	position INT  NOT NULL,
	symbol   TEXT PRIMARY KEY
);
`

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Every Commit runs in one transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return err
}

func (s *PostgresStore) LoadAccount(ctx context.Context) (*model.AccountState, error) {
	var balanceS string
	var st model.AccountState

	err := s.pool.QueryRow(ctx,
		`SELECT balance::TEXT, holding_seq FROM accounts WHERE id = 1`).
		Scan(&balanceS, &st.HoldingSeq)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoAccount
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if st.Balance, err = money.Parse(balanceS); err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, symbol, asset_type, option_type, strike, expiration,
		        quantity, avg_price::TEXT
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

func (s *PostgresStore) CreateAccount(ctx context.Context, balance money.Money, watchlist []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO accounts (id, balance, holding_seq) VALUES (1, $1::NUMERIC, 0)
		 ON CONFLICT (id) DO NOTHING`, balance.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountExists
	}
	if err := replaceWatchlistPg(ctx, tx, watchlist); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Commit(ctx context.Context, c *model.Commit) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $1::NUMERIC, holding_seq = $2 WHERE id = 1`,
		c.Balance.String(), c.HoldingSeq)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoAccount
	}

	for _, id := range c.Deletes {
		tag, err := tx.Exec(ctx, `DELETE FROM holdings WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("holding %d not found", id)
		}
	}

	for _, h := range c.Upserts {
		k := encodeKey(h.InstrumentKey)
		if _, err := tx.Exec(ctx,
			`INSERT INTO holdings (id, symbol, asset_type, option_type, strike, expiration, quantity, avg_price)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::NUMERIC)
			 ON CONFLICT (id) DO UPDATE
			 SET quantity = EXCLUDED.quantity, avg_price = EXCLUDED.avg_price`,
			h.ID, k.Symbol, k.AssetType, k.OptionType, k.Strike, k.Expiration,
			h.Quantity, h.AvgCost.String(),
		); err != nil {
			return err
		}
	}

	for _, r := range c.Records {
		k := encodeKey(r.InstrumentKey)
		if _, err := tx.Exec(ctx,
			`INSERT INTO transactions (id, seq, timestamp, symbol, asset_type, option_type, strike, expiration,
			                           action, quantity, price, origin)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::NUMERIC, $12)`,
			r.ID, r.Seq, r.Timestamp, k.Symbol, k.AssetType, k.OptionType, k.Strike, k.Expiration,
			string(r.Action), r.Quantity, r.Price.String(), string(r.Origin),
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ListTransactions(ctx context.Context) ([]model.TransactionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, seq, timestamp, symbol, asset_type, option_type, strike, expiration,
		        action, quantity, price::TEXT, origin
		 FROM transactions ORDER BY timestamp, seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.TransactionRecord
	for rows.Next() {
		var r recordRow
		if err := rows.Scan(&r.ID, &r.Seq, &r.Timestamp,
			&r.Symbol, &r.AssetType, &r.OptionType, &r.Strike, &r.Expiration,
			&r.Action, &r.Quantity, &r.Price, &r.Origin); err != nil {
			return nil, err
		}
		rec, err := r.decode()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) GetWatchlist(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT symbol FROM watchlist ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanWatchlist(rows)
}

func (s *PostgresStore) ReplaceWatchlist(ctx context.Context, symbols []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := replaceWatchlistPg(ctx, tx, symbols); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func replaceWatchlistPg(ctx context.Context, tx pgx.Tx, symbols []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM watchlist`); err != nil {
		return err
	}
	for i, sym := range symbols {
		if _, err := tx.Exec(ctx,
			`INSERT INTO watchlist (position, symbol) VALUES ($1, $2) ON CONFLICT (symbol) DO NOTHING`,
			i, sym); err != nil {
			return err
		}
	}
	return nil
}
