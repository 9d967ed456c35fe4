// Package swap decodes Raydium CLMM swap events from transaction log lines
// and derives trade prices and quantities from them.
package swap

import "clmm-swap-collector/internal/solana"

// SwapEvent is the SwapEvent emitted by the CLMM program on every swap.
type SwapEvent struct {
	PoolState     solana.Pubkey `json:"pool_state"`
	Sender        solana.Pubkey `json:"sender"`
	TokenAccount0 solana.Pubkey `json:"token_account_0"`
	TokenAccount1 solana.Pubkey `json:"token_account_1"`

	Amount0      uint64 `json:"amount_0"`
	TransferFee0 uint64 `json:"transfer_fee_0"`
	Amount1      uint64 `json:"amount_1"`
	TransferFee1 uint64 `json:"transfer_fee_1"`

	// ZeroForOne is true when token0 is the input of the swap.
	ZeroForOne bool `json:"zero_for_one"`

	SqrtPriceX64 solana.Uint128 `json:"sqrt_price_x64"`
	Liquidity    solana.Uint128 `json:"liquidity"`
	Tick         int32          `json:"tick"`
}
