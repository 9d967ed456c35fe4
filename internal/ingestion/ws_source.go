// Package ingestion adapts upstream transports to collector.BundleSource.
package ingestion

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"clmm-swap-collector/internal/collector"
	"clmm-swap-collector/internal/solana"
)

const unsubscribeTimeout = 5 * time.Second

// WSBundleSource streams the log bundles of every transaction that mentions
// one pool account.
type WSBundleSource struct {
	client      solana.WSClient
	filter      solana.LogsFilter
	closeClient bool
	logger      *zap.Logger

	mu  sync.Mutex
	sub *solana.LogSubscription

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// WSBundleSourceOptions contains configuration for creating a WSBundleSource.
type WSBundleSourceOptions struct {
	Client solana.WSClient
	// Pool is the base58 pool account to filter on.
	Pool string
	// Commitment defaults to confirmed.
	Commitment string
	// CloseClient closes Client when the source is closed.
	CloseClient bool
	Logger      *zap.Logger
}

// Compile-time interface check.
var _ collector.BundleSource = (*WSBundleSource)(nil)

// NewWSBundleSource creates a websocket bundle source.
func NewWSBundleSource(opts WSBundleSourceOptions) (*WSBundleSource, error) {
	if opts.Client == nil {
		return nil, errors.New("ingestion: nil websocket client")
	}
	if opts.Pool == "" {
		return nil, errors.New("ingestion: empty pool address")
	}

	commitment := opts.Commitment
	if commitment == "" {
		commitment = solana.CommitmentConfirmed
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WSBundleSource{
		client: opts.Client,
		filter: solana.LogsFilter{
			Mentions:   []string{opts.Pool},
			Commitment: commitment,
		},
		closeClient: opts.CloseClient,
		logger:      logger,
		stop:        make(chan struct{}),
	}, nil
}

// Subscribe implements collector.BundleSource. It may be called once.
func (s *WSBundleSource) Subscribe(ctx context.Context) (<-chan collector.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return nil, errors.New("ingestion: already subscribed")
	}

	sub, err := s.client.SubscribeLogs(ctx, s.filter)
	if err != nil {
		return nil, err
	}
	s.sub = sub

	s.logger.Info("subscribed to pool logs",
		zap.Strings("mentions", s.filter.Mentions),
		zap.String("commitment", s.filter.Commitment),
		zap.Int64("subscription", sub.ID()))

	out := make(chan collector.Bundle)
	s.wg.Add(1)
	go s.forward(ctx, sub, out)
	return out, nil
}

func (s *WSBundleSource) forward(ctx context.Context, sub *solana.LogSubscription, out chan<- collector.Bundle) {
	defer s.wg.Done()
	defer close(out)

	for {
		var n solana.LogNotification
		select {
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			n = msg
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		}

		b := collector.Bundle{
			Signature: n.Signature,
			Slot:      n.Slot,
			Logs:      n.Logs,
			Err:       n.Err,
		}
		select {
		case out <- b:
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		}
	}
}

// Err reports the transport failure that ended the stream, nil on a clean end.
func (s *WSBundleSource) Err() error {
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()

	if sub != nil {
		if err := sub.Err(); err != nil {
			return err
		}
	}
	return s.client.Err()
}

// Close unsubscribes and waits for the forwarding goroutine.
func (s *WSBundleSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)

		s.mu.Lock()
		sub := s.sub
		s.mu.Unlock()

		if sub != nil {
			ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
			if uerr := sub.Unsubscribe(ctx); uerr != nil {
				s.logger.Warn("unsubscribe failed", zap.Error(uerr))
			}
			cancel()
		}
		s.wg.Wait()

		if s.closeClient {
			err = s.client.Close()
		}
	})
	return err
}
