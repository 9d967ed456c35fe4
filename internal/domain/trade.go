package domain

import "fmt"

// Side is the direction of a trade row.
type Side string

// Trade side constants
const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is one of the known sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Trade is one row of trade history: the snapshot persisted for a flush interval.
// Corresponds to trade_history table.
type Trade struct {
	Timestamp int64   // Unix timestamp in seconds, flush time
	Symbol    string  // pool symbol label
	Price     float64 // token1 per token0, decimals applied
	Quantity  float64 // input amount, decimals applied
	Side      Side    // BUY | SELL
}

// Validate checks the fields every store relies on.
func (t *Trade) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("empty symbol")
	}
	if !t.Side.Valid() {
		return fmt.Errorf("invalid side %q", t.Side)
	}
	if t.Timestamp <= 0 {
		return fmt.Errorf("invalid timestamp %d", t.Timestamp)
	}
	return nil
}
