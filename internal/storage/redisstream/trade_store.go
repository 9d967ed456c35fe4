// Package redisstream publishes trade rows to a Redis stream.
package redisstream

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"clmm-swap-collector/internal/domain"
	"clmm-swap-collector/internal/observability"
	"clmm-swap-collector/internal/storage"
)

// Default stream configuration
const (
	DefaultStream       = "trades"
	DefaultStreamMaxLen = 10000 // Default max entries per stream
)

// Options configures a TradeStore.
type Options struct {
	Addr     string
	Password string
	DB       int

	// Stream is the stream key. Default: "trades".
	Stream string
	// MaxLen caps the stream with approximate trimming. 0 = unlimited.
	MaxLen int64

	Logger *zap.Logger
}

// TradeStore appends trades to a Redis stream with XADD.
type TradeStore struct {
	client *redis.Client
	stream string
	maxLen int64
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*TradeStore, error) {
	if opts.Stream == "" {
		opts.Stream = DefaultStream
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,

		// One append per flush.
		PoolSize:     2,
		MinIdleConns: 1,

		// Timeouts
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	logger.Info("connected to redis",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
		zap.String("stream", opts.Stream),
		zap.Int64("max_len", opts.MaxLen))

	return &TradeStore{client: rdb, stream: opts.Stream, maxLen: opts.MaxLen}, nil
}

// Append adds one stream entry holding the trade fields.
func (s *TradeStore) Append(ctx context.Context, t *domain.Trade) error {
	if err := storage.ValidateTrade(t); err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: Values(t),
	}
	// Approximate trimming lets Redis drop whole nodes.
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	start := time.Now()
	err := s.client.XAdd(ctx, args).Err()
	observability.RecordDBQuery("redis", "xadd_trade", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// Values returns the stream entry fields of t, formatted like the CSV row.
func Values(t *domain.Trade) map[string]interface{} {
	return map[string]interface{}{
		"timestamp":      strconv.FormatInt(t.Timestamp, 10),
		"symbol":         t.Symbol,
		"trade_price":    strconv.FormatFloat(t.Price, 'f', -1, 64),
		"trade_quantity": strconv.FormatFloat(t.Quantity, 'f', -1, 64),
		"trade_side":     string(t.Side),
	}
}

// Stream returns the stream key.
func (s *TradeStore) Stream() string {
	return s.stream
}

// Client returns the underlying Redis client.
func (s *TradeStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *TradeStore) Close() error {
	return s.client.Close()
}
