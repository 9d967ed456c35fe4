package sink

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clmm-swap-collector/internal/observability"
	"clmm-swap-collector/internal/storage"
	"clmm-swap-collector/internal/swap"
)

// Trades derives a trade row from each snapshot and appends it to a store.
type Trades struct {
	name    string
	store   storage.TradeStore
	pricer  swap.Pricer
	symbol  string
	metrics *observability.Metrics
	logger  *zap.Logger
}

// TradesOptions contains configuration for creating a Trades sink.
type TradesOptions struct {
	// Name labels metrics and errors, e.g. "csv".
	Name    string
	Store   storage.TradeStore
	Pricer  swap.Pricer
	Symbol  string
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// NewTrades creates a trade row sink.
func NewTrades(opts TradesOptions) *Trades {
	name := opts.Name
	if name == "" {
		name = "trades"
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.DefaultMetrics
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Trades{
		name:    name,
		store:   opts.Store,
		pricer:  opts.Pricer,
		symbol:  opts.Symbol,
		metrics: metrics,
		logger:  logger,
	}
}

// Persist implements Sink.
func (t *Trades) Persist(ctx context.Context, event swap.SwapEvent, ts time.Time) error {
	trade := t.pricer.Trade(event, ts, t.symbol)

	start := time.Now()
	err := t.store.Append(ctx, &trade)
	t.metrics.RecordSinkLatency(t.name, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s sink: %w", t.name, err)
	}

	t.logger.Debug("trade appended",
		zap.String("sink", t.name),
		zap.Int64("timestamp", trade.Timestamp),
		zap.Float64("price", trade.Price),
		zap.Float64("quantity", trade.Quantity),
		zap.String("side", string(trade.Side)))
	return nil
}
