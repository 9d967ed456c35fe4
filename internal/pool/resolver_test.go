package pool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"clmm-swap-collector/internal/solana"
	"clmm-swap-collector/internal/solana/stub"
)

func setupResolver(t *testing.T) (*Resolver, *stub.RPCClient, string) {
	t.Helper()

	s := testState()
	addr, _, err := s.Address(solana.MustParsePubkey(ProgramID))
	require.NoError(t, err)

	data, err := s.MarshalBinary()
	require.NoError(t, err)

	rpc := stub.NewRPCClient()
	rpc.Slot = 310000000
	rpc.AddAccount(addr.String(), ProgramID, data)

	r, err := NewResolver(rpc, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	return r, rpc, addr.String()
}

func TestResolver_Resolve(t *testing.T) {
	r, rpc, addr := setupResolver(t)

	state, err := r.Resolve(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, *testState(), *state)
	assert.Equal(t, 1, rpc.Calls)
}

func TestResolver_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid address", func(t *testing.T) {
		r, rpc, _ := setupResolver(t)
		_, err := r.Resolve(ctx, "not-base58!")
		assert.Error(t, err)
		assert.Equal(t, 0, rpc.Calls)
	})

	t.Run("not found", func(t *testing.T) {
		r, _, _ := setupResolver(t)
		_, err := r.Resolve(ctx, "8sLbNZoA1cfnvMJLPfp98ZLAnFSYCFApfJKMbiXNLwxj")
		assert.True(t, errors.Is(err, ErrAccountNotFound))
	})

	t.Run("rpc failure", func(t *testing.T) {
		r, rpc, addr := setupResolver(t)
		rpc.Err = errors.New("connection refused")
		_, err := r.Resolve(ctx, addr)
		assert.ErrorIs(t, err, rpc.Err)
	})

	t.Run("wrong owner", func(t *testing.T) {
		r, rpc, addr := setupResolver(t)
		data, _ := testState().MarshalBinary()
		rpc.AddAccount(addr, "11111111111111111111111111111111", data)
		_, err := r.Resolve(ctx, addr)
		assert.True(t, errors.Is(err, ErrWrongOwner))
	})

	t.Run("not a pool", func(t *testing.T) {
		r, rpc, addr := setupResolver(t)
		rpc.AddAccount(addr, ProgramID, []byte("AmmConfig account bytes"))
		_, err := r.Resolve(ctx, addr)
		assert.True(t, errors.Is(err, ErrNotPoolState))
	})

	t.Run("address mismatch", func(t *testing.T) {
		r, rpc, _ := setupResolver(t)
		data, _ := testState().MarshalBinary()
		other := "8sLbNZoA1cfnvMJLPfp98ZLAnFSYCFApfJKMbiXNLwxj"
		rpc.AddAccount(other, ProgramID, data)
		_, err := r.Resolve(ctx, other)
		assert.True(t, errors.Is(err, ErrAddressMismatch))
	})
}

func TestNewResolver_InvalidProgram(t *testing.T) {
	_, err := NewResolver(stub.NewRPCClient(), "bad", nil)
	assert.Error(t, err)
}
