package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"clmm-swap-collector/internal/domain"
	"clmm-swap-collector/internal/observability"
	"clmm-swap-collector/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var (
	_ storage.TradeStore  = (*TradeStore)(nil)
	_ storage.TradeReader = (*TradeStore)(nil)
)

// Append adds one trade row.
func (s *TradeStore) Append(ctx context.Context, t *domain.Trade) error {
	if err := storage.ValidateTrade(t); err != nil {
		return err
	}

	query := `
		INSERT INTO trade_history (
			timestamp, symbol, trade_price, trade_quantity, trade_side
		) VALUES ($1, $2, $3, $4, $5)
	`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		t.Timestamp,
		t.Symbol,
		t.Price,
		t.Quantity,
		string(t.Side),
	)
	observability.RecordDBQuery("postgres", "insert_trade", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves trades for a symbol within [start, end] (inclusive).
func (s *TradeStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Trade, error) {
	query := `
		SELECT timestamp, symbol, trade_price, trade_quantity, trade_side
		FROM trade_history
		WHERE symbol = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}

	trades, err := pgx.CollectRows(rows, scanTrade)
	if err != nil {
		return nil, fmt.Errorf("scan trades: %w", err)
	}
	return trades, nil
}

func scanTrade(row pgx.CollectableRow) (*domain.Trade, error) {
	var t domain.Trade
	var side string
	if err := row.Scan(&t.Timestamp, &t.Symbol, &t.Price, &t.Quantity, &side); err != nil {
		return nil, err
	}
	t.Side = domain.Side(side)
	return &t, nil
}
