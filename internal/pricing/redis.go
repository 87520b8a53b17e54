package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/ledger-engine/internal/money"
)

// QuotesKey is the Redis hash holding symbol → last price.
const QuotesKey = "quotes"

// RedisQuotes reads prices published into a Redis hash by an external feed.
type RedisQuotes struct {
	rdb *redis.Client
	key string
}

// NewRedisQuotes creates a source reading the default quotes hash.
func NewRedisQuotes(rdb *redis.Client) *RedisQuotes {
	return &RedisQuotes{rdb: rdb, key: QuotesKey}
}

func (q *RedisQuotes) Lookup(ctx context.Context, symbol string) (money.Money, error) {
	s, err := q.rdb.HGet(ctx, q.key, symbol).Result()
	if errors.Is(err, redis.Nil) {
		return money.Zero, ErrNoPrice
	}
	if err != nil {
		return money.Zero, fmt.Errorf("redis quote %s: %w", symbol, err)
	}
	p, err := money.Parse(s)
	if err != nil {
		return money.Zero, fmt.Errorf("redis quote %s: %w", symbol, err)
	}
	return p, nil
}

// Publish stores a price so other processes see it.
func (q *RedisQuotes) Publish(ctx context.Context, symbol string, price money.Money) error {
	return q.rdb.HSet(ctx, q.key, symbol, price.String()).Err()
}
