package store

import (
	"fmt"
	"time"

	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
)

// keyColumns is the flat column form of an InstrumentKey. Stock rows store
// empty option fields so the unique index over all five columns holds.
type keyColumns struct {
	Symbol     string
	AssetType  string
	OptionType string
	Strike     int64 // mills
	Expiration string
}

func encodeKey(k model.InstrumentKey) keyColumns {
	return keyColumns{
		Symbol:     k.Symbol,
		AssetType:  string(k.Class),
		OptionType: string(k.Kind),
		Strike:     int64(k.Strike),
		Expiration: k.Expiration.String(),
	}
}

func (c keyColumns) decode() (model.InstrumentKey, error) {
	class, err := model.ParseAssetClass(c.AssetType)
	if err != nil {
		return model.InstrumentKey{}, err
	}
	if class == model.Stock {
		return model.StockKey(c.Symbol), nil
	}
	kind, err := model.ParseOptionKind(c.OptionType)
	if err != nil {
		return model.InstrumentKey{}, err
	}
	exp, err := model.ParseDate(c.Expiration)
	if err != nil {
		return model.InstrumentKey{}, err
	}
	return model.OptionKey(c.Symbol, kind, money.Mills(c.Strike), exp), nil
}

// holdingRow is a holding as scanned from SQL, numerics as text.
type holdingRow struct {
	ID int64
	keyColumns
	Quantity int64
	AvgPrice string
}

func (r holdingRow) decode() (model.Holding, error) {
	key, err := r.keyColumns.decode()
	if err != nil {
		return model.Holding{}, fmt.Errorf("holding %d: %w", r.ID, err)
	}
	avg, err := money.Parse(r.AvgPrice)
	if err != nil {
		return model.Holding{}, fmt.Errorf("holding %d: %w", r.ID, err)
	}
	return model.Holding{ID: r.ID, InstrumentKey: key, Quantity: r.Quantity, AvgCost: avg}, nil
}

// recordRow is a transaction record as scanned from SQL.
type recordRow struct {
	ID        string
	Seq       int64
	Timestamp time.Time
	keyColumns
	Action   string
	Quantity int64
	Price    string
	Origin   string
}

func (r recordRow) decode() (model.TransactionRecord, error) {
	key, err := r.keyColumns.decode()
	if err != nil {
		return model.TransactionRecord{}, fmt.Errorf("transaction %s: %w", r.ID, err)
	}
	action, err := model.ParseAction(r.Action)
	if err != nil {
		return model.TransactionRecord{}, fmt.Errorf("transaction %s: %w", r.ID, err)
	}
	price, err := money.Parse(r.Price)
	if err != nil {
		return model.TransactionRecord{}, fmt.Errorf("transaction %s: %w", r.ID, err)
	}
	return model.TransactionRecord{
		ID:            r.ID,
		Seq:           r.Seq,
		Timestamp:     r.Timestamp.UTC(),
		InstrumentKey: key,
		Action:        action,
		Quantity:      r.Quantity,
		Price:         price,
		Origin:        model.Origin(r.Origin),
	}, nil
}

// rowScanner is satisfied by pgx.Rows and *sql.Rows.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanHoldings(rows rowScanner) ([]model.Holding, error) {
	var holdings []model.Holding
	for rows.Next() {
		var r holdingRow
		if err := rows.Scan(&r.ID, &r.Symbol, &r.AssetType, &r.OptionType, &r.Strike, &r.Expiration,
			&r.Quantity, &r.AvgPrice); err != nil {
			return nil, err
		}
		h, err := r.decode()
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func scanWatchlist(rows rowScanner) ([]string, error) {
	symbols := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}
