package stub

import (
	"context"
	"encoding/base64"
	"sync"

	"clmm-swap-collector/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu       sync.Mutex
	Accounts map[string]*solana.AccountInfo
	Slot     int64
	// Err, when set, is returned by every call.
	Err error

	Calls int
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts: make(map[string]*solana.AccountInfo),
	}
}

// GetAccountInfo returns the stored account or nil when absent.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	info, ok := c.Accounts[pubkey]
	if !ok {
		return nil, nil
	}
	cp := *info
	return &cp, nil
}

// GetSlot returns the configured slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Err != nil {
		return 0, c.Err
	}
	return c.Slot, nil
}

// AddAccount stores raw account data owned by owner under pubkey.
func (c *RPCClient) AddAccount(pubkey, owner string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = &solana.AccountInfo{
		Slot:     c.Slot,
		Lamports: 1_000_000,
		Owner:    owner,
		Data:     base64.StdEncoding.EncodeToString(data),
	}
}
