package memory

import (
	"context"
	"errors"
	"testing"

	"clmm-swap-collector/internal/domain"
	"clmm-swap-collector/internal/storage"
)

func TestTradeStore_AppendAndAll(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	trades := []*domain.Trade{
		{Timestamp: 1002, Symbol: "SOL/USDC", Price: 236.6, Quantity: 2.6, Side: domain.SideBuy},
		{Timestamp: 1001, Symbol: "SOL/USDC", Price: 236.5, Quantity: 617.3, Side: domain.SideSell},
	}
	for _, tr := range trades {
		if err := store.Append(ctx, tr); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	// Mutating the input must not change stored rows.
	trades[0].Price = 0

	all := store.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(all))
	}
	if all[0].Price != 236.6 {
		t.Errorf("stored row changed: %+v", all[0])
	}
	if all[1].Side != domain.SideSell {
		t.Errorf("append order not kept: %+v", all)
	}
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
}

func TestTradeStore_InvalidInput(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	tests := []struct {
		name  string
		trade *domain.Trade
	}{
		{"nil", nil},
		{"empty symbol", &domain.Trade{Timestamp: 1, Side: domain.SideBuy}},
		{"bad side", &domain.Trade{Timestamp: 1, Symbol: "X", Side: "HOLD"}},
		{"zero timestamp", &domain.Trade{Symbol: "X", Side: domain.SideBuy}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Append(ctx, tt.trade)
			if !errors.Is(err, storage.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	if store.Len() != 0 {
		t.Errorf("invalid rows were stored")
	}
}

func TestTradeStore_GetByTimeRange(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	for _, tr := range []*domain.Trade{
		{Timestamp: 300, Symbol: "SOL/USDC", Side: domain.SideBuy},
		{Timestamp: 100, Symbol: "SOL/USDC", Side: domain.SideBuy},
		{Timestamp: 200, Symbol: "RAY/USDC", Side: domain.SideSell},
		{Timestamp: 200, Symbol: "SOL/USDC", Side: domain.SideSell},
		{Timestamp: 400, Symbol: "SOL/USDC", Side: domain.SideSell},
	} {
		if err := store.Append(ctx, tr); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.GetByTimeRange(ctx, "SOL/USDC", 100, 300)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}

	want := []int64{100, 200, 300}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(got))
	}
	for i, ts := range want {
		if got[i].Timestamp != ts {
			t.Errorf("row %d timestamp = %d, want %d", i, got[i].Timestamp, ts)
		}
	}
}
