package storage

import (
	"context"

	"clmm-swap-collector/internal/domain"
)

// TradeStore provides append-only access to trade_history storage.
type TradeStore interface {
	// Append adds one trade row. Returns ErrInvalidInput for nil or invalid rows.
	Append(ctx context.Context, t *domain.Trade) error
}

// TradeReader reads trade_history back.
type TradeReader interface {
	// GetByTimeRange retrieves trades for a symbol within [start, end] seconds (inclusive),
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Trade, error)
}
