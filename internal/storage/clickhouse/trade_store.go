package clickhouse

import (
	"context"
	"fmt"
	"time"

	"clmm-swap-collector/internal/domain"
	"clmm-swap-collector/internal/observability"
	"clmm-swap-collector/internal/storage"
)

// TradeStore implements storage.TradeStore using ClickHouse.
type TradeStore struct {
	conn *Conn
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(conn *Conn) *TradeStore {
	return &TradeStore{conn: conn}
}

// Compile-time interface check.
var (
	_ storage.TradeStore  = (*TradeStore)(nil)
	_ storage.TradeReader = (*TradeStore)(nil)
)

// Append inserts one trade row as a single-row batch.
func (s *TradeStore) Append(ctx context.Context, t *domain.Trade) error {
	if err := storage.ValidateTrade(t); err != nil {
		return err
	}

	start := time.Now()
	err := s.insert(ctx, t)
	observability.RecordDBQuery("clickhouse", "insert_trade", time.Since(start).Seconds(), err)
	return err
}

func (s *TradeStore) insert(ctx context.Context, t *domain.Trade) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_history (
			timestamp, symbol, trade_price, trade_quantity, trade_side
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	if err := batch.Append(t.Timestamp, t.Symbol, t.Price, t.Quantity, string(t.Side)); err != nil {
		_ = batch.Abort()
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves trades for a symbol within [start, end] (inclusive).
func (s *TradeStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Trade, error) {
	query := `
		SELECT timestamp, symbol, trade_price, trade_quantity, toString(trade_side)
		FROM trade_history
		WHERE symbol = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, inserted_at ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	var result []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side string
		if err := rows.Scan(&t.Timestamp, &t.Symbol, &t.Price, &t.Quantity, &side); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = domain.Side(side)
		result = append(result, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}
