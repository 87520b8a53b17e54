// Package feed connects the ledger to Kafka: quotes flow in to the price
// book, committed transaction records flow out to an events topic.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/atmx/ledger-engine/internal/metrics"
	"github.com/atmx/ledger-engine/internal/money"
)

// Quote is one price update. Symbol is a ticker or an OCC option symbol.
type Quote struct {
	Symbol string      `json:"symbol"`
	Price  money.Money `json:"price"`
	TS     time.Time   `json:"ts"`
}

// PriceSink receives decoded quotes.
type PriceSink interface {
	Set(symbol string, price money.Money)
}

type QuoteConsumer struct {
	Reader *kafka.Reader
	Sink   PriceSink
	Logger *zap.Logger
}

func NewQuoteConsumer(brokers []string, topic, groupID string, sink PriceSink, logger *zap.Logger) *QuoteConsumer {
	return &QuoteConsumer{
		Reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
			MaxWait:  500 * time.Millisecond,
		}),
		Sink:   sink,
		Logger: logger,
	}
}

// Run consumes until ctx is cancelled. Cancellation is not an error.
func (c *QuoteConsumer) Run(ctx context.Context) error {
	defer c.Reader.Close()
	for {
		m, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		q, err := DecodeQuote(m.Value)
		if err != nil {
			c.Logger.Warn("bad quote", zap.Error(err), zap.Int64("offset", m.Offset))
			continue
		}
		c.Sink.Set(q.Symbol, q.Price)
		metrics.QuotesConsumed.Inc()
		c.Logger.Debug("quote applied", zap.String("symbol", q.Symbol), zap.String("price", q.Price.String()))
	}
}

var errBadQuote = errors.New("feed: quote needs a symbol and a positive price")

// DecodeQuote parses and normalizes a quote message.
func DecodeQuote(b []byte) (Quote, error) {
	var q Quote
	if err := json.Unmarshal(b, &q); err != nil {
		return Quote{}, err
	}
	q.Symbol = strings.ToUpper(strings.TrimSpace(q.Symbol))
	if q.Symbol == "" || !q.Price.IsPositive() {
		return Quote{}, errBadQuote
	}
	if q.TS.IsZero() {
		q.TS = time.Now().UTC()
	}
	return q, nil
}
