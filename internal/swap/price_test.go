package swap

import (
	"math"
	"testing"
	"time"

	"clmm-swap-collector/internal/domain"
	"clmm-swap-collector/internal/solana"
)

func approxEqual(a, b, relTol float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= relTol*math.Max(math.Abs(a), math.Abs(b))
}

func TestTickToPrice(t *testing.T) {
	tests := []struct {
		tick int32
		want float64
	}{
		{0, 1},
		{1, 1.0001},
		{-1, 1 / 1.0001},
		{-14413, math.Pow(1.0001, -14413)},
		{100000, math.Pow(1.0001, 100000)},
	}

	for _, tt := range tests {
		got := TickToPrice(tt.tick)
		if !approxEqual(got, tt.want, 1e-12) {
			t.Errorf("TickToPrice(%d) = %v, want %v", tt.tick, got, tt.want)
		}
	}

	if TickToPrice(0) != 1 {
		t.Errorf("TickToPrice(0) = %v, want exactly 1", TickToPrice(0))
	}
}

func TestSqrtPriceX64ToPrice(t *testing.T) {
	tests := []struct {
		name      string
		sqrt      solana.Uint128
		decimals0 uint8
		decimals1 uint8
		want      float64
	}{
		{"one", solana.Uint128{Hi: 1}, 0, 0, 1},
		{"four", solana.Uint128{Hi: 2}, 0, 0, 4},
		{"quarter", solana.Uint128{Lo: 1 << 63}, 0, 0, 0.25},
		{"decimals shift up", solana.Uint128{Hi: 1}, 9, 6, 1000},
		{"decimals shift down", solana.Uint128{Hi: 1}, 6, 9, 0.001},
		{"sol usdc sample", solana.Uint128{Lo: 8973873876726606866}, 9, 6, 236.657611982894},
		{"zero", solana.Uint128{}, 9, 6, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SqrtPriceX64ToPrice(tt.sqrt, tt.decimals0, tt.decimals1)
			if !approxEqual(got, tt.want, 1e-9) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParsePriceSource(t *testing.T) {
	tests := []struct {
		in      string
		want    PriceSource
		wantErr bool
	}{
		{"", PriceSourceTick, false},
		{"tick", PriceSourceTick, false},
		{"sqrt_price", PriceSourceSqrtPrice, false},
		{"average", "", true},
		{"TICK", "", true},
	}

	for _, tt := range tests {
		got, err := ParsePriceSource(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePriceSource(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePriceSource(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPricer_Quantity(t *testing.T) {
	p := Pricer{Decimals0: 9, Decimals1: 6}

	buy := sampleEvent()
	qty, side := p.Quantity(buy)
	if side != domain.SideBuy {
		t.Errorf("side = %s, want BUY", side)
	}
	if qty.String() != "2.608897681" {
		t.Errorf("quantity = %s, want 2.608897681", qty)
	}
	if qty.InexactFloat64() != 2.608897681 {
		t.Errorf("quantity float = %v", qty.InexactFloat64())
	}

	sell := sampleEvent()
	sell.ZeroForOne = false
	qty, side = p.Quantity(sell)
	if side != domain.SideSell {
		t.Errorf("side = %s, want SELL", side)
	}
	if qty.String() != "617.359418" {
		t.Errorf("quantity = %s, want 617.359418", qty)
	}
}

func TestScaleAmount(t *testing.T) {
	tests := []struct {
		amount   uint64
		decimals uint8
		want     string
	}{
		{0, 9, "0"},
		{1, 9, "0.000000001"},
		{1500000, 6, "1.5"},
		{42, 0, "42"},
		{math.MaxUint64, 18, "18.446744073709551615"},
	}

	for _, tt := range tests {
		if got := ScaleAmount(tt.amount, tt.decimals).String(); got != tt.want {
			t.Errorf("ScaleAmount(%d, %d) = %s, want %s", tt.amount, tt.decimals, got, tt.want)
		}
	}
}

func TestPricer_Trade(t *testing.T) {
	ev := sampleEvent()
	ts := time.Unix(1700000000, 250_000_000)

	t.Run("tick source", func(t *testing.T) {
		p := Pricer{Decimals0: 9, Decimals1: 6, Source: PriceSourceTick}
		trade := p.Trade(ev, ts, "SOL/USDC")

		want := math.Pow(1.0001, -14413) * 1e3
		if !approxEqual(trade.Price, want, 1e-12) {
			t.Errorf("Price = %v, want %v", trade.Price, want)
		}
		if trade.Timestamp != 1700000000 {
			t.Errorf("Timestamp = %d, want 1700000000", trade.Timestamp)
		}
		if trade.Symbol != "SOL/USDC" {
			t.Errorf("Symbol = %s", trade.Symbol)
		}
		if trade.Side != domain.SideBuy {
			t.Errorf("Side = %s, want BUY", trade.Side)
		}
		if trade.Quantity != 2.608897681 {
			t.Errorf("Quantity = %v, want 2.608897681", trade.Quantity)
		}
	})

	t.Run("sqrt price source", func(t *testing.T) {
		p := Pricer{Decimals0: 9, Decimals1: 6, Source: PriceSourceSqrtPrice}
		trade := p.Trade(ev, ts, "SOL/USDC")
		if !approxEqual(trade.Price, 236.657611982894, 1e-9) {
			t.Errorf("Price = %v", trade.Price)
		}
	})

	t.Run("empty source defaults to tick", func(t *testing.T) {
		p := Pricer{Decimals0: 9, Decimals1: 6}
		tick := Pricer{Decimals0: 9, Decimals1: 6, Source: PriceSourceTick}
		if p.Price(ev) != tick.Price(ev) {
			t.Errorf("default price %v != tick price %v", p.Price(ev), tick.Price(ev))
		}
	})
}
