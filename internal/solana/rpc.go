package solana

import "context"

// RPCClient defines Solana RPC HTTP interface.
type RPCClient interface {
	// GetAccountInfo retrieves an account by address. Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)
}

var _ RPCClient = (*HTTPClient)(nil)
var _ WSClient = (*WSClientImpl)(nil)
