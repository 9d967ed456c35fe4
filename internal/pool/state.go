// Package pool reads and verifies Raydium CLMM pool accounts.
package pool

import (
	"errors"
	"fmt"

	"clmm-swap-collector/internal/solana"
	"clmm-swap-collector/internal/swap"
)

// ProgramID is the Raydium concentrated liquidity program on mainnet.
const ProgramID = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"

// StateSeed is the first PDA seed of every pool account.
const StateSeed = "pool"

// StatePrefixSize is the number of leading account bytes ParseState reads.
const StatePrefixSize = solana.DiscriminatorLength + 1 + 7*solana.PubkeyLength + 1 + 1 + 2 + 16 + 16 + 4

// StateDiscriminator tags PoolState accounts.
var StateDiscriminator = solana.AnchorDiscriminator("account", "PoolState")

// Account errors.
var (
	ErrNotPoolState    = errors.New("account is not a PoolState")
	ErrAccountNotFound = errors.New("pool account not found")
	ErrWrongOwner      = errors.New("pool account owned by another program")
	ErrAddressMismatch = errors.New("pool address does not match its seeds")
	ErrInvalidDecimals = errors.New("mint decimals out of range")
)

// MaxDecimals is the largest mint decimals value accepted.
const MaxDecimals = 18

// State is the leading part of a PoolState account.
type State struct {
	Bump           uint8         `json:"bump"`
	AmmConfig      solana.Pubkey `json:"amm_config"`
	Owner          solana.Pubkey `json:"owner"`
	TokenMint0     solana.Pubkey `json:"token_mint_0"`
	TokenMint1     solana.Pubkey `json:"token_mint_1"`
	TokenVault0    solana.Pubkey `json:"token_vault_0"`
	TokenVault1    solana.Pubkey `json:"token_vault_1"`
	ObservationKey solana.Pubkey `json:"observation_key"`

	MintDecimals0 uint8  `json:"mint_decimals_0"`
	MintDecimals1 uint8  `json:"mint_decimals_1"`
	TickSpacing   uint16 `json:"tick_spacing"`

	Liquidity    solana.Uint128 `json:"liquidity"`
	SqrtPriceX64 solana.Uint128 `json:"sqrt_price_x64"`
	TickCurrent  int32          `json:"tick_current"`
}

// ParseState decodes a PoolState account. Bytes after the prefix are ignored.
func ParseState(data []byte) (*State, error) {
	if len(data) < solana.DiscriminatorLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrNotPoolState, len(data))
	}
	if [solana.DiscriminatorLength]byte(data[:solana.DiscriminatorLength]) != StateDiscriminator {
		return nil, fmt.Errorf("%w: discriminator %x", ErrNotPoolState, data[:solana.DiscriminatorLength])
	}

	r := solana.NewReader(data[solana.DiscriminatorLength:])
	s := &State{
		Bump:           r.U8(),
		AmmConfig:      r.Pubkey(),
		Owner:          r.Pubkey(),
		TokenMint0:     r.Pubkey(),
		TokenMint1:     r.Pubkey(),
		TokenVault0:    r.Pubkey(),
		TokenVault1:    r.Pubkey(),
		ObservationKey: r.Pubkey(),
		MintDecimals0:  r.U8(),
		MintDecimals1:  r.U8(),
		TickSpacing:    r.U16(),
		Liquidity:      r.U128(),
		SqrtPriceX64:   r.U128(),
		TickCurrent:    r.I32(),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("parse pool state: %w", err)
	}
	if s.MintDecimals0 > MaxDecimals || s.MintDecimals1 > MaxDecimals {
		return nil, fmt.Errorf("%w: %d/%d", ErrInvalidDecimals, s.MintDecimals0, s.MintDecimals1)
	}
	return s, nil
}

// MarshalBinary encodes the state prefix with its discriminator.
func (s *State) MarshalBinary() ([]byte, error) {
	var w solana.Writer
	w.Raw(StateDiscriminator[:])
	w.U8(s.Bump)
	w.Pubkey(s.AmmConfig)
	w.Pubkey(s.Owner)
	w.Pubkey(s.TokenMint0)
	w.Pubkey(s.TokenMint1)
	w.Pubkey(s.TokenVault0)
	w.Pubkey(s.TokenVault1)
	w.Pubkey(s.ObservationKey)
	w.U8(s.MintDecimals0)
	w.U8(s.MintDecimals1)
	w.U16(s.TickSpacing)
	w.U128(s.Liquidity)
	w.U128(s.SqrtPriceX64)
	w.I32(s.TickCurrent)
	return w.Bytes(), nil
}

// Address derives the pool PDA from ["pool", amm_config, mint0, mint1].
func (s *State) Address(programID solana.Pubkey) (solana.Pubkey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		[]byte(StateSeed),
		s.AmmConfig[:],
		s.TokenMint0[:],
		s.TokenMint1[:],
	}, programID)
}

// VerifyAddress checks that address is the PDA the program derives for s.
func VerifyAddress(s *State, address, programID solana.Pubkey) error {
	derived, _, err := s.Address(programID)
	if err != nil {
		return fmt.Errorf("derive pool address: %w", err)
	}
	if derived != address {
		return fmt.Errorf("%w: derived %s, configured %s", ErrAddressMismatch, derived, address)
	}
	return nil
}

// Pricer returns a pricer for this pool's mint decimals.
func (s *State) Pricer(source swap.PriceSource) swap.Pricer {
	return swap.Pricer{
		Decimals0: s.MintDecimals0,
		Decimals1: s.MintDecimals1,
		Source:    source,
	}
}

// Price returns the pool's current token1 per token0 price.
func (s *State) Price(source swap.PriceSource) float64 {
	return s.Pricer(source).Price(swap.SwapEvent{
		SqrtPriceX64: s.SqrtPriceX64,
		Tick:         s.TickCurrent,
	})
}
