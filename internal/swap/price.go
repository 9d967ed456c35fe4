package swap

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"clmm-swap-collector/internal/domain"
	"clmm-swap-collector/internal/solana"
)

// PriceSource selects which event field a Pricer derives the price from.
type PriceSource string

// Price sources
const (
	PriceSourceTick      PriceSource = "tick"
	PriceSourceSqrtPrice PriceSource = "sqrt_price"
)

// ParsePriceSource validates a configured price source. Empty means tick.
func ParsePriceSource(s string) (PriceSource, error) {
	switch PriceSource(s) {
	case "", PriceSourceTick:
		return PriceSourceTick, nil
	case PriceSourceSqrtPrice:
		return PriceSourceSqrtPrice, nil
	default:
		return "", fmt.Errorf("unknown price source %q (want %s or %s)", s, PriceSourceTick, PriceSourceSqrtPrice)
	}
}

// TickToPrice returns 1.0001^tick, the raw token1/token0 ratio at a tick.
func TickToPrice(tick int32) float64 {
	return math.Pow(1.0001, float64(tick))
}

var q64 = new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 64))

// SqrtPriceX64ToPrice converts a Q64.64 square root price into token1 per token0,
// adjusted for mint decimals.
func SqrtPriceX64ToPrice(sqrtPriceX64 solana.Uint128, decimals0, decimals1 uint8) float64 {
	sqrt := new(big.Float).SetPrec(256).SetInt(sqrtPriceX64.Big())
	sqrt.Quo(sqrt, q64)
	price, _ := new(big.Float).SetPrec(256).Mul(sqrt, sqrt).Float64()
	return price * decimalShift(decimals0, decimals1)
}

// decimalShift is 10^decimals0 / 10^decimals1.
func decimalShift(decimals0, decimals1 uint8) float64 {
	return math.Pow10(int(decimals0) - int(decimals1))
}

// ScaleAmount converts a raw token amount into UI units.
func ScaleAmount(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}

// Pricer turns swap events into trade rows for one pool.
type Pricer struct {
	Decimals0 uint8
	Decimals1 uint8
	Source    PriceSource
}

// Price returns token1 per token0 from the configured source.
func (p Pricer) Price(e SwapEvent) float64 {
	if p.Source == PriceSourceSqrtPrice {
		return SqrtPriceX64ToPrice(e.SqrtPriceX64, p.Decimals0, p.Decimals1)
	}
	return TickToPrice(e.Tick) * decimalShift(p.Decimals0, p.Decimals1)
}

// Quantity returns the input amount of the swap and the resulting side.
// token0 in is a BUY sized in token0; token1 in is a SELL sized in token1.
func (p Pricer) Quantity(e SwapEvent) (decimal.Decimal, domain.Side) {
	if e.ZeroForOne {
		return ScaleAmount(e.Amount0, p.Decimals0), domain.SideBuy
	}
	return ScaleAmount(e.Amount1, p.Decimals1), domain.SideSell
}

// Trade derives the trade row persisted for a flush at ts.
func (p Pricer) Trade(e SwapEvent, ts time.Time, symbol string) domain.Trade {
	qty, side := p.Quantity(e)
	return domain.Trade{
		Timestamp: ts.Unix(),
		Symbol:    symbol,
		Price:     p.Price(e),
		Quantity:  qty.InexactFloat64(),
		Side:      side,
	}
}
