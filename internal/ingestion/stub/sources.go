package stub

import (
	"context"
	"sync"
	"sync/atomic"

	"clmm-swap-collector/internal/collector"
)

// BundleSource delivers a fixed list of bundles, then ends the stream.
// Implements collector.BundleSource interface.
type BundleSource struct {
	bundles []collector.Bundle
	// EndErr is reported by Err after the stream ends.
	EndErr error
	// SubscribeErr fails Subscribe when set.
	SubscribeErr error

	closed    atomic.Int32
	stop      chan struct{}
	closeOnce sync.Once
}

// NewBundleSource creates a new stub bundle source.
func NewBundleSource(bundles ...collector.Bundle) *BundleSource {
	return &BundleSource{bundles: bundles, stop: make(chan struct{})}
}

// Subscribe returns a channel that yields every bundle and is then closed.
func (s *BundleSource) Subscribe(ctx context.Context) (<-chan collector.Bundle, error) {
	if s.SubscribeErr != nil {
		return nil, s.SubscribeErr
	}

	out := make(chan collector.Bundle)
	go func() {
		defer close(out)
		for _, b := range s.bundles {
			select {
			case out <- b:
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()
	return out, nil
}

// Err returns EndErr.
func (s *BundleSource) Err() error {
	return s.EndErr
}

// Close stops delivery and records the call.
func (s *BundleSource) Close() error {
	s.closed.Add(1)
	s.closeOnce.Do(func() { close(s.stop) })
	return nil
}

// Closed returns how many times Close was called.
func (s *BundleSource) Closed() int {
	return int(s.closed.Load())
}
