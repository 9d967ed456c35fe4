// Package config loads collector settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"clmm-swap-collector/internal/pool"
	"clmm-swap-collector/internal/solana"
	"clmm-swap-collector/internal/swap"
)

// DefaultEnvFile is read when no env file is given. It may be absent.
const DefaultEnvFile = ".env"

// Sink names accepted in SINK.
const (
	SinkLog        = "log"
	SinkCSV        = "csv"
	SinkPostgres   = "postgres"
	SinkClickhouse = "clickhouse"
	SinkRedis      = "redis"
)

var knownSinks = []string{SinkLog, SinkCSV, SinkPostgres, SinkClickhouse, SinkRedis}

// MetricsOff in METRICS_ADDR disables the metrics endpoint.
const MetricsOff = "off"

// UnsetDecimals marks token decimals that should come from the pool account.
const UnsetDecimals = -1

// Config represents the collector configuration.
type Config struct {
	WSURL        string `env:"WS_URL"`
	PoolAddress  string `env:"POOL_ADDRESS"`
	PoolSymbol   string `env:"POOL_SYMBOL"`
	DataFilePath string `env:"DATA_FILE_PATH" envDefault:"./data/trades.csv"`

	TokenADecimals int `env:"POOL_TOKEN_A_DECIMAL" envDefault:"-1"`
	TokenBDecimals int `env:"POOL_TOKEN_B_DECIMAL" envDefault:"-1"`

	RPCURL    string `env:"RPC_URL"`
	ProgramID string `env:"POOL_PROGRAM_ID" envDefault:"CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"`

	FlushInterval       time.Duration `env:"FLUSH_INTERVAL" envDefault:"1s"`
	PriceSource         string        `env:"PRICE_SOURCE" envDefault:"tick"`
	Sinks               []string      `env:"SINK" envSeparator:"," envDefault:"csv"`
	Commitment          string        `env:"COMMITMENT" envDefault:"confirmed"`
	SkipFailedTx        bool          `env:"SKIP_FAILED_TX" envDefault:"true"`
	ContinueOnSinkError bool          `env:"CONTINUE_ON_SINK_ERROR" envDefault:"false"`
	FlushOnShutdown     bool          `env:"FLUSH_ON_SHUTDOWN" envDefault:"true"`
	WSMaxReconnects     int           `env:"WS_MAX_RECONNECTS" envDefault:"0"`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogEncoding string `env:"LOG_ENCODING" envDefault:"json"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	PostgresDSN   string      `env:"POSTGRES_DSN"`
	ClickhouseDSN string      `env:"CLICKHOUSE_DSN"`
	Redis         RedisConfig `envPrefix:"REDIS_"`
}

// RedisConfig represents the redis sink configuration.
type RedisConfig struct {
	Addr         string `env:"ADDR" envDefault:"localhost:6379"`
	Password     string `env:"PASSWORD"`
	DB           int    `env:"DB" envDefault:"0"`
	Stream       string `env:"STREAM" envDefault:"trades"`
	StreamMaxLen int64  `env:"STREAM_MAXLEN" envDefault:"10000"`
}

// Load reads envFile (DefaultEnvFile when empty) and the process environment.
// Process variables win over the file. A missing default file is not an error.
func Load(envFile string) (*Config, error) {
	vars := make(map[string]string)

	path := envFile
	if path == "" {
		path = DefaultEnvFile
	}
	fileVars, err := godotenv.Read(path)
	switch {
	case err == nil:
		for k, v := range fileVars {
			vars[k] = v
		}
	case envFile == "" && errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	sinks := c.Sinks[:0]
	for _, s := range c.Sinks {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			sinks = append(sinks, s)
		}
	}
	c.Sinks = sinks
	c.PoolSymbol = strings.TrimSpace(c.PoolSymbol)
	c.PoolAddress = strings.TrimSpace(c.PoolAddress)
}

// Validate checks the settings needed by the live collector.
func (c *Config) Validate() error {
	return c.validate(true)
}

// ValidateReplay is Validate without the websocket settings, for runs fed
// from a recorded file.
func (c *Config) ValidateReplay() error {
	return c.validate(false)
}

func (c *Config) validate(live bool) error {
	var errs []error

	if live {
		switch {
		case c.WSURL == "":
			errs = append(errs, errors.New("WS_URL is required"))
		case !strings.HasPrefix(c.WSURL, "ws://") && !strings.HasPrefix(c.WSURL, "wss://"):
			errs = append(errs, fmt.Errorf("WS_URL %q must use ws:// or wss://", c.WSURL))
		}
	}

	if c.PoolAddress == "" {
		errs = append(errs, errors.New("POOL_ADDRESS is required"))
	} else if _, err := solana.ParsePubkey(c.PoolAddress); err != nil {
		errs = append(errs, fmt.Errorf("POOL_ADDRESS: %w", err))
	}
	if _, err := solana.ParsePubkey(c.ProgramID); err != nil {
		errs = append(errs, fmt.Errorf("POOL_PROGRAM_ID: %w", err))
	}
	if c.PoolSymbol == "" {
		errs = append(errs, errors.New("POOL_SYMBOL is required"))
	}

	errs = append(errs, c.validateDecimals()...)

	if c.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("FLUSH_INTERVAL must be positive, got %s", c.FlushInterval))
	}
	if _, err := swap.ParsePriceSource(c.PriceSource); err != nil {
		errs = append(errs, fmt.Errorf("PRICE_SOURCE: %w", err))
	}
	switch c.Commitment {
	case solana.CommitmentProcessed, solana.CommitmentConfirmed, solana.CommitmentFinalized:
	default:
		errs = append(errs, fmt.Errorf("COMMITMENT %q is not processed, confirmed or finalized", c.Commitment))
	}
	if c.WSMaxReconnects < 0 {
		errs = append(errs, errors.New("WS_MAX_RECONNECTS must not be negative"))
	}

	errs = append(errs, c.validateSinks()...)

	return errors.Join(errs...)
}

func (c *Config) validateDecimals() []error {
	var errs []error
	for _, d := range []struct {
		name  string
		value int
	}{
		{"POOL_TOKEN_A_DECIMAL", c.TokenADecimals},
		{"POOL_TOKEN_B_DECIMAL", c.TokenBDecimals},
	} {
		if d.value == UnsetDecimals {
			if c.RPCURL == "" {
				errs = append(errs, fmt.Errorf("%s is required when RPC_URL is not set", d.name))
			}
			continue
		}
		if d.value < 0 || d.value > pool.MaxDecimals {
			errs = append(errs, fmt.Errorf("%s must be between 0 and %d, got %d", d.name, pool.MaxDecimals, d.value))
		}
	}
	return errs
}

func (c *Config) validateSinks() []error {
	if len(c.Sinks) == 0 {
		return []error{errors.New("SINK must name at least one sink")}
	}

	var errs []error
	seen := make(map[string]bool)
	for _, s := range c.Sinks {
		if !slices.Contains(knownSinks, s) {
			errs = append(errs, fmt.Errorf("SINK: unknown sink %q (want one of %s)", s, strings.Join(knownSinks, ", ")))
			continue
		}
		if seen[s] {
			errs = append(errs, fmt.Errorf("SINK: %q listed twice", s))
		}
		seen[s] = true
	}

	if seen[SinkCSV] && c.DataFilePath == "" {
		errs = append(errs, errors.New("DATA_FILE_PATH is required for the csv sink"))
	}
	if seen[SinkPostgres] && c.PostgresDSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres sink"))
	}
	if seen[SinkClickhouse] && c.ClickhouseDSN == "" {
		errs = append(errs, errors.New("CLICKHOUSE_DSN is required for the clickhouse sink"))
	}
	if seen[SinkRedis] && c.Redis.Addr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required for the redis sink"))
	}
	return errs
}

// MetricsEnabled reports whether the metrics endpoint should be served.
func (c *Config) MetricsEnabled() bool {
	return c.MetricsAddr != "" && c.MetricsAddr != MetricsOff
}

// Decimals returns the configured token decimals and whether both are set.
func (c *Config) Decimals() (uint8, uint8, bool) {
	if c.TokenADecimals == UnsetDecimals || c.TokenBDecimals == UnsetDecimals {
		return 0, 0, false
	}
	return uint8(c.TokenADecimals), uint8(c.TokenBDecimals), true
}
