package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to transaction logs matching the filter.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (*LogSubscription, error)

	// Err reports why the client stopped delivering notifications.
	Err() error

	// Close closes the WebSocket connection.
	Close() error
}

// Commitment levels accepted by logsSubscribe.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Mentions filters logs of transactions that mention any of these addresses.
	Mentions []string
	// Commitment defaults to confirmed.
	Commitment string
}

// LogNotification is one logsNotification: every log line of one transaction.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{}
}
