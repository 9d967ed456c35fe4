// Package sink persists flushed swap snapshots.
package sink

import (
	"context"
	"errors"
	"time"

	"clmm-swap-collector/internal/swap"
)

// Sink persists one snapshot per flush. ts is when the swap was observed.
type Sink interface {
	Persist(ctx context.Context, event swap.SwapEvent, ts time.Time) error
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, event swap.SwapEvent, ts time.Time) error

// Persist calls f.
func (f Func) Persist(ctx context.Context, event swap.SwapEvent, ts time.Time) error {
	return f(ctx, event, ts)
}

// Multi persists to every sink in order and joins their errors.
type Multi []Sink

// Persist implements Sink.
func (m Multi) Persist(ctx context.Context, event swap.SwapEvent, ts time.Time) error {
	var errs []error
	for _, s := range m {
		if err := s.Persist(ctx, event, ts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
