package pool

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"clmm-swap-collector/internal/solana"
)

// Resolver fetches and verifies pool accounts over RPC.
type Resolver struct {
	rpc       solana.RPCClient
	programID solana.Pubkey
	logger    *zap.Logger
}

// NewResolver creates a Resolver. An empty programID means ProgramID.
func NewResolver(rpc solana.RPCClient, programID string, logger *zap.Logger) (*Resolver, error) {
	if programID == "" {
		programID = ProgramID
	}
	pid, err := solana.ParsePubkey(programID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{rpc: rpc, programID: pid, logger: logger}, nil
}

// Resolve fetches the pool account, checks its owner and discriminator and
// that address matches the pool's seeds.
func (r *Resolver) Resolve(ctx context.Context, address string) (*State, error) {
	addr, err := solana.ParsePubkey(address)
	if err != nil {
		return nil, fmt.Errorf("pool address: %w", err)
	}

	info, err := r.rpc.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("get pool account: %w", err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	if info.Owner != r.programID.String() {
		return nil, fmt.Errorf("%w: owner %s, want %s", ErrWrongOwner, info.Owner, r.programID)
	}

	data, err := info.DecodeData()
	if err != nil {
		return nil, fmt.Errorf("decode pool account: %w", err)
	}

	state, err := ParseState(data)
	if err != nil {
		return nil, err
	}
	if err := VerifyAddress(state, addr, r.programID); err != nil {
		return nil, err
	}

	r.logger.Info("pool resolved",
		zap.String("pool", address),
		zap.Int64("slot", info.Slot),
		zap.Stringer("mint_0", state.TokenMint0),
		zap.Stringer("mint_1", state.TokenMint1),
		zap.Uint8("decimals_0", state.MintDecimals0),
		zap.Uint8("decimals_1", state.MintDecimals1),
		zap.Uint16("tick_spacing", state.TickSpacing),
		zap.Int32("tick_current", state.TickCurrent))
	return state, nil
}
