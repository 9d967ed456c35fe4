package memory

import (
	"context"
	"sort"
	"sync"

	"clmm-swap-collector/internal/domain"
	"clmm-swap-collector/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data []*domain.Trade // in append order
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{}
}

// Append adds one trade row.
func (s *TradeStore) Append(_ context.Context, t *domain.Trade) error {
	if err := storage.ValidateTrade(t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *t
	s.data = append(s.data, &copy)
	return nil
}

// All returns copies of every row in append order.
func (s *TradeStore) All() []domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Trade, len(s.data))
	for i, t := range s.data {
		result[i] = *t
	}
	return result
}

// Len returns the number of stored rows.
func (s *TradeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// GetByTimeRange retrieves trades for a symbol within [start, end] (inclusive).
func (s *TradeStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.Symbol == symbol && t.Timestamp >= start && t.Timestamp <= end {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

var (
	_ storage.TradeStore  = (*TradeStore)(nil)
	_ storage.TradeReader = (*TradeStore)(nil)
)
