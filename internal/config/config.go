// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/atmx/ledger-engine/internal/money"
)

type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`

	// Storage: DATABASE_URL wins over SQLITE_PATH; neither means in-memory.
	DatabaseURL string        `env:"DATABASE_URL"`
	SQLitePath  string        `env:"SQLITE_PATH"`
	RedisURL    string        `env:"REDIS_URL"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"30s"`

	// Account
	StartingBalance  money.Money `env:"STARTING_BALANCE" envDefault:"100000"`
	Currency         string      `env:"CURRENCY" envDefault:"USD"`
	DefaultWatchlist []string    `env:"DEFAULT_WATCHLIST" envDefault:"SPY,AAPL,NVDA,TSLA,AMD" envSeparator:","`

	// Pricing
	PriceTTL time.Duration `env:"PRICE_TTL" envDefault:"15m"`

	// Kafka; empty brokers disable the feed.
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaQuotesTopic string   `env:"KAFKA_QUOTES_TOPIC" envDefault:"quotes"`
	KafkaEventsTopic string   `env:"KAFKA_EVENTS_TOPIC" envDefault:"ledger-events"`
	KafkaGroupID     string   `env:"KAFKA_GROUP_ID" envDefault:"ledger-engine"`

	// Exposure limits at cost; zero means unlimited.
	MaxInstrumentExposure money.Money `env:"MAX_INSTRUMENT_EXPOSURE" envDefault:"0"`
	MaxUnderlyingExposure money.Money `env:"MAX_UNDERLYING_EXPOSURE" envDefault:"0"`
}

var parsers = map[reflect.Type]env.ParserFunc{
	reflect.TypeOf(money.Money{}): func(v string) (interface{}, error) {
		return money.Parse(v)
	},
}

func Load() (Config, error) {
	return LoadFrom(nil)
}

// LoadFrom reads the given variables instead of the process environment
// when vars is non-nil.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{FuncMap: parsers}
	if vars != nil {
		opts.Environment = vars
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.StartingBalance.IsNegative() {
		errs = append(errs, fmt.Errorf("STARTING_BALANCE must not be negative: %s", c.StartingBalance))
	}
	if c.MaxInstrumentExposure.IsNegative() {
		errs = append(errs, fmt.Errorf("MAX_INSTRUMENT_EXPOSURE must not be negative: %s", c.MaxInstrumentExposure))
	}
	if c.MaxUnderlyingExposure.IsNegative() {
		errs = append(errs, fmt.Errorf("MAX_UNDERLYING_EXPOSURE must not be negative: %s", c.MaxUnderlyingExposure))
	}
	if !money.KnownCurrency(c.Currency) {
		errs = append(errs, fmt.Errorf("CURRENCY %q is not an ISO 4217 code", c.Currency))
	}
	if c.PriceTTL <= 0 {
		errs = append(errs, fmt.Errorf("PRICE_TTL must be positive: %s", c.PriceTTL))
	}
	return errors.Join(errs...)
}

// StoreKind names the primary store the configuration selects.
func (c Config) StoreKind() string {
	switch {
	case c.DatabaseURL != "":
		return "postgres"
	case c.SQLitePath != "":
		return "sqlite"
	default:
		return "memory"
	}
}

func (c Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }
