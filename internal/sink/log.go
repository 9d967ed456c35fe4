package sink

import (
	"context"
	"time"

	"go.uber.org/zap"

	"clmm-swap-collector/internal/swap"
)

// Log writes each snapshot to the logger and persists nothing.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a logging sink.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Persist implements Sink.
func (l *Log) Persist(_ context.Context, event swap.SwapEvent, ts time.Time) error {
	l.logger.Info("swap snapshot",
		zap.Time("ts", ts),
		zap.Stringer("pool_state", event.PoolState),
		zap.Stringer("sender", event.Sender),
		zap.Uint64("amount_0", event.Amount0),
		zap.Uint64("amount_1", event.Amount1),
		zap.Uint64("transfer_fee_0", event.TransferFee0),
		zap.Uint64("transfer_fee_1", event.TransferFee1),
		zap.Bool("zero_for_one", event.ZeroForOne),
		zap.Stringer("sqrt_price_x64", event.SqrtPriceX64),
		zap.Stringer("liquidity", event.Liquidity),
		zap.Int32("tick", event.Tick))
	return nil
}
