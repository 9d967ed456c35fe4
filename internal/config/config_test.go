package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPool = "8sLbNZoA1cfnvMJLPfp98ZLAnFSYCFApfJKMbiXNLwxj"

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("WS_URL", "wss://api.mainnet-beta.solana.com")
	t.Setenv("POOL_ADDRESS", testPool)
	t.Setenv("POOL_SYMBOL", "SOL/USDC")
	t.Setenv("POOL_TOKEN_A_DECIMAL", "9")
	t.Setenv("POOL_TOKEN_B_DECIMAL", "6")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeEnvFile(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "./data/trades.csv", cfg.DataFilePath)
	assert.Equal(t, UnsetDecimals, cfg.TokenADecimals)
	assert.Equal(t, UnsetDecimals, cfg.TokenBDecimals)
	assert.Equal(t, "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK", cfg.ProgramID)
	assert.Equal(t, time.Second, cfg.FlushInterval)
	assert.Equal(t, "tick", cfg.PriceSource)
	assert.Equal(t, []string{SinkCSV}, cfg.Sinks)
	assert.Equal(t, "confirmed", cfg.Commitment)
	assert.True(t, cfg.SkipFailedTx)
	assert.False(t, cfg.ContinueOnSinkError)
	assert.True(t, cfg.FlushOnShutdown)
	assert.Equal(t, 0, cfg.WSMaxReconnects)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogEncoding)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "trades", cfg.Redis.Stream)
	assert.Equal(t, int64(10000), cfg.Redis.StreamMaxLen)

	_, _, ok := cfg.Decimals()
	assert.False(t, ok)
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	path := writeEnvFile(t, `
WS_URL=wss://from-file
POOL_SYMBOL=FILE/SYMBOL
SINK=csv, Postgres ,redis
FLUSH_INTERVAL=250ms
REDIS_STREAM=sol-usdc
`)
	t.Setenv("POOL_SYMBOL", "SOL/USDC")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://from-file", cfg.WSURL)
	assert.Equal(t, "SOL/USDC", cfg.PoolSymbol, "process env wins over the file")
	assert.Equal(t, []string{SinkCSV, SinkPostgres, SinkRedis}, cfg.Sinks)
	assert.Equal(t, 250*time.Millisecond, cfg.FlushInterval)
	assert.Equal(t, "sol-usdc", cfg.Redis.Stream)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("FLUSH_INTERVAL", "soon")
	_, err := Load(writeEnvFile(t, ""))
	assert.Error(t, err)
}

func TestValidate_Valid(t *testing.T) {
	validEnv(t)
	cfg, err := Load(writeEnvFile(t, ""))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	d0, d1, ok := cfg.Decimals()
	assert.True(t, ok)
	assert.Equal(t, uint8(9), d0)
	assert.Equal(t, uint8(6), d1)
}

func TestValidate_DecimalsFromRPC(t *testing.T) {
	validEnv(t)
	t.Setenv("POOL_TOKEN_A_DECIMAL", "-1")
	t.Setenv("POOL_TOKEN_B_DECIMAL", "-1")

	cfg, err := Load(writeEnvFile(t, ""))
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "POOL_TOKEN_A_DECIMAL is required")

	cfg.RPCURL = "https://api.mainnet-beta.solana.com"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing ws url", func(c *Config) { c.WSURL = "" }, "WS_URL is required"},
		{"http ws url", func(c *Config) { c.WSURL = "https://x" }, "ws:// or wss://"},
		{"missing pool", func(c *Config) { c.PoolAddress = "" }, "POOL_ADDRESS is required"},
		{"bad pool", func(c *Config) { c.PoolAddress = "abc" }, "POOL_ADDRESS"},
		{"bad program", func(c *Config) { c.ProgramID = "abc" }, "POOL_PROGRAM_ID"},
		{"missing symbol", func(c *Config) { c.PoolSymbol = "" }, "POOL_SYMBOL is required"},
		{"decimals too large", func(c *Config) { c.TokenBDecimals = 19 }, "between 0 and 18"},
		{"negative decimals", func(c *Config) { c.TokenADecimals = -2 }, "between 0 and 18"},
		{"zero interval", func(c *Config) { c.FlushInterval = 0 }, "FLUSH_INTERVAL"},
		{"price source", func(c *Config) { c.PriceSource = "average" }, "PRICE_SOURCE"},
		{"commitment", func(c *Config) { c.Commitment = "recent" }, "COMMITMENT"},
		{"reconnects", func(c *Config) { c.WSMaxReconnects = -1 }, "WS_MAX_RECONNECTS"},
		{"no sinks", func(c *Config) { c.Sinks = nil }, "at least one sink"},
		{"unknown sink", func(c *Config) { c.Sinks = []string{"kafka"} }, `unknown sink "kafka"`},
		{"duplicate sink", func(c *Config) { c.Sinks = []string{"csv", "csv"} }, "listed twice"},
		{"csv path", func(c *Config) { c.DataFilePath = "" }, "DATA_FILE_PATH"},
		{"postgres dsn", func(c *Config) { c.Sinks = []string{"postgres"} }, "POSTGRES_DSN"},
		{"clickhouse dsn", func(c *Config) { c.Sinks = []string{"clickhouse"} }, "CLICKHOUSE_DSN"},
		{"redis addr", func(c *Config) { c.Sinks = []string{"redis"}; c.Redis.Addr = "" }, "REDIS_ADDR"},
	}

	validEnv(t)
	base, err := Load(writeEnvFile(t, ""))
	require.NoError(t, err)
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			cfg.Sinks = append([]string(nil), base.Sinks...)
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := &Config{Sinks: []string{"csv"}, FlushInterval: time.Second, PriceSource: "tick", Commitment: "confirmed", ProgramID: "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK", DataFilePath: "x"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "WS_URL is required")
	assert.ErrorContains(t, err, "POOL_ADDRESS is required")
	assert.ErrorContains(t, err, "POOL_SYMBOL is required")
}

func TestValidateReplay_NoTransport(t *testing.T) {
	validEnv(t)
	t.Setenv("WS_URL", "")

	cfg, err := Load(writeEnvFile(t, ""))
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "WS_URL is required")
	assert.NoError(t, cfg.ValidateReplay())

	cfg.PoolSymbol = ""
	assert.ErrorContains(t, cfg.ValidateReplay(), "POOL_SYMBOL is required")
}

func TestMetricsEnabled(t *testing.T) {
	assert.True(t, (&Config{MetricsAddr: ":9090"}).MetricsEnabled())
	assert.False(t, (&Config{MetricsAddr: MetricsOff}).MetricsEnabled())
	assert.False(t, (&Config{}).MetricsEnabled())
}
