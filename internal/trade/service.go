// Package trade provides the HTTP handlers for executing trades and
// exercises and for querying the portfolio, transaction log and watchlist.
//
// All monetary values use internal/money over shopspring/decimal, never
// float64 for money.
package trade

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/atmx/ledger-engine/internal/ledger"
	"github.com/atmx/ledger-engine/internal/model"
	"github.com/atmx/ledger-engine/internal/money"
	"github.com/atmx/ledger-engine/internal/occ"
	"github.com/atmx/ledger-engine/internal/portfolio"
	"github.com/atmx/ledger-engine/internal/risk"
)

// Service exposes the ledger over HTTP. Serialization of trades is the
// ledger's job; handlers only decode, call and encode.
type Service struct {
	ledger    *ledger.Ledger
	portfolio *portfolio.Service
	currency  string
	logger    *zap.Logger
}

// NewService creates a new trade service.
func NewService(l *ledger.Ledger, p *portfolio.Service, currency string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{ledger: l, portfolio: p, currency: currency, logger: logger}
}

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /trade.
type TradeRequest struct {
	Symbol     string      `json:"symbol"`      // ticker, or an OCC symbol for options
	AssetType  string      `json:"asset_type"`  // "stock" (default) or "option"
	OptionType string      `json:"option_type"` // "call" or "put"
	Strike     money.Money `json:"strike"`
	Expiration string      `json:"expiration"` // YYYY-MM-DD
	Action     string      `json:"action"`     // "buy" or "sell"
	Quantity   int64       `json:"quantity"`
	Price      money.Money `json:"price"` // per share, also for options
}

// Key builds the instrument the request refers to. An option given only by
// its OCC symbol is parsed from that symbol.
func (req TradeRequest) Key() (model.InstrumentKey, error) {
	class, err := model.ParseAssetClass(req.AssetType)
	if err != nil {
		return model.InstrumentKey{}, fmt.Errorf("%w: %w", ledger.ErrInvalidInstrument, err)
	}
	if class == model.Stock {
		return model.StockKey(req.Symbol), nil
	}

	if req.Strike.IsZero() && req.Expiration == "" && req.OptionType == "" {
		key, err := occ.Parse(strings.ToUpper(strings.TrimSpace(req.Symbol)))
		if err != nil {
			return model.InstrumentKey{}, fmt.Errorf("%w: %w", ledger.ErrInvalidInstrument, err)
		}
		return key, nil
	}

	kind, err := model.ParseOptionKind(req.OptionType)
	if err != nil {
		return model.InstrumentKey{}, fmt.Errorf("%w: %w", ledger.ErrInvalidInstrument, err)
	}
	strike, err := money.MillsFrom(req.Strike)
	if err != nil {
		return model.InstrumentKey{}, fmt.Errorf("%w: %w", ledger.ErrInvalidInstrument, err)
	}
	exp, err := model.ParseDate(req.Expiration)
	if err != nil {
		return model.InstrumentKey{}, fmt.Errorf("%w: %w", ledger.ErrInvalidInstrument, err)
	}
	return model.OptionKey(req.Symbol, kind, strike, exp), nil
}

// TradeResponse is the JSON body returned from POST /trade.
type TradeResponse struct {
	Message        string         `json:"message"`
	Balance        money.Money    `json:"balance"`
	BalanceDisplay string         `json:"balance_display"`
	Holding        *model.Holding `json:"holding"` // nil when the sell closed the position
}

// ExerciseRequest is the JSON body for POST /portfolio/exercise.
type ExerciseRequest struct {
	HoldingID int64 `json:"holding_id"`
}

// PortfolioResponse is the snapshot with display strings in the account currency.
type PortfolioResponse struct {
	*model.Snapshot
	Currency          string `json:"currency"`
	BalanceDisplay    string `json:"balance_display"`
	TotalValueDisplay string `json:"total_value_display"`
	RealizedDisplay   string `json:"realized_pnl_display"`
}

// WatchlistBody is the JSON body of GET and PUT /watchlist.
type WatchlistBody struct {
	Symbols []string `json:"symbols"`
}

// --- HTTP Handlers ---

// ExecuteTrade handles POST /api/v1/trade
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// --- Input validation ---
	if strings.TrimSpace(req.Symbol) == "" {
		writeError(w, "symbol is required", http.StatusBadRequest)
		return
	}
	action, err := model.ParseAction(req.Action)
	if err != nil {
		writeError(w, "action must be buy or sell", http.StatusBadRequest)
		return
	}
	key, err := req.Key()
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.ledger.Trade(r.Context(), key, action, req.Quantity, req.Price)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	resp := TradeResponse{
		Message:        "Trade executed",
		Balance:        res.Balance,
		BalanceDisplay: res.Balance.Format(s.currency),
		Holding:        res.Holding,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ExerciseOption handles POST /api/v1/portfolio/exercise
func (s *Service) ExerciseOption(w http.ResponseWriter, r *http.Request) {
	var req ExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.HoldingID <= 0 {
		writeError(w, "holding_id is required", http.StatusBadRequest)
		return
	}

	res, err := s.ledger.Exercise(r.Context(), req.HoldingID)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// GetPortfolio handles GET /api/v1/portfolio
// Returns balance, valued holdings, realized stats and allocation.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	snap, err := s.portfolio.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("snapshot failed", zap.Error(err))
		writeError(w, "failed to build portfolio", http.StatusInternalServerError)
		return
	}

	resp := PortfolioResponse{
		Snapshot:          snap,
		Currency:          s.currency,
		BalanceDisplay:    snap.Balance.Format(s.currency),
		TotalValueDisplay: snap.TotalValue.Format(s.currency),
		RealizedDisplay:   snap.Stats.RealizedPnL.Format(s.currency),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListTransactions handles GET /api/v1/transactions
// Returns the log in replay order, optionally filtered by ?symbol= and
// truncated to the most recent ?limit= records.
func (s *Service) ListTransactions(w http.ResponseWriter, r *http.Request) {
	records := s.ledger.State().Records

	if sym := strings.ToUpper(r.URL.Query().Get("symbol")); sym != "" {
		filtered := []model.TransactionRecord{}
		for _, rec := range records {
			if rec.Symbol == sym {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if n < len(records) {
			records = records[len(records)-n:]
		}
	}
	if records == nil {
		records = []model.TransactionRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// GetWatchlist handles GET /api/v1/watchlist
func (s *Service) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.ledger.Watchlist(r.Context())
	if err != nil {
		s.logger.Error("load watchlist", zap.Error(err))
		writeError(w, "failed to load watchlist", http.StatusInternalServerError)
		return
	}
	if symbols == nil {
		symbols = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(WatchlistBody{Symbols: symbols})
}

// ReplaceWatchlist handles PUT /api/v1/watchlist
func (s *Service) ReplaceWatchlist(w http.ResponseWriter, r *http.Request) {
	var req WatchlistBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	symbols, err := s.ledger.SetWatchlist(r.Context(), req.Symbols)
	if err != nil {
		s.logger.Error("replace watchlist", zap.Error(err))
		writeError(w, "failed to save watchlist", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(WatchlistBody{Symbols: symbols})
}

// statusFor maps ledger errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnknownHolding):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidInstrument),
		errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidPrice),
		errors.Is(err, model.ErrInvalidAction):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientHoldings),
		errors.Is(err, ledger.ErrInsufficientShares),
		errors.Is(err, risk.ErrInstrumentLimitExceeded),
		errors.Is(err, risk.ErrUnderlyingLimitExceeded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
