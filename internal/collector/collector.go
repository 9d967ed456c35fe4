// Package collector coalesces a stream of transaction log bundles into one
// swap snapshot per flush interval and hands it to a sink.
package collector

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"clmm-swap-collector/internal/observability"
	"clmm-swap-collector/internal/sink"
	"clmm-swap-collector/internal/swap"
)

// DefaultInterval is the flush cadence when none is configured.
const DefaultInterval = time.Second

// Bundle is every log line of one transaction notification.
type Bundle struct {
	Signature string
	Slot      int64
	Logs      []string
	// Err is the transaction error reported by the node, nil on success.
	Err interface{}
}

// Failed reports whether the transaction failed on chain.
func (b Bundle) Failed() bool {
	return b.Err != nil
}

// BundleSource delivers bundles until the channel is closed.
type BundleSource interface {
	// Subscribe starts delivery. A closed channel is end of stream.
	Subscribe(ctx context.Context) (<-chan Bundle, error)
	// Err distinguishes a transport failure from a clean end after the channel closes.
	Err() error
	// Close releases the subscription.
	Close() error
}

// Options configures a Collector. Start from DefaultOptions.
type Options struct {
	Source BundleSource
	Sink   sink.Sink

	// Selector defaults to one that logs and counts decode failures.
	Selector *swap.Selector

	// Interval is the flush cadence. Default: 1s.
	Interval time.Duration
	// Ticks replaces the interval ticker when set.
	Ticks <-chan time.Time
	// Now stamps pending snapshots. Default: time.Now.
	Now func() time.Time

	// SkipFailed ignores bundles of failed transactions.
	SkipFailed bool
	// FlushOnStop persists a pending snapshot once when the loop stops.
	FlushOnStop bool
	// ContinueOnSinkError keeps running after a failed flush instead of returning *SinkError.
	ContinueOnSinkError bool

	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// DefaultOptions returns options with the documented defaults.
func DefaultOptions() Options {
	return Options{
		Interval:    DefaultInterval,
		SkipFailed:  true,
		FlushOnStop: true,
	}
}

// Collector runs the coalescing loop.
type Collector struct {
	source   BundleSource
	sink     sink.Sink
	selector *swap.Selector

	interval time.Duration
	ticks    <-chan time.Time
	now      func() time.Time

	skipFailed          bool
	flushOnStop         bool
	continueOnSinkError bool

	metrics *observability.Metrics
	logger  *zap.Logger
}

// snapshot is the most recent swap seen since the last flush.
type snapshot struct {
	event     swap.SwapEvent
	at        time.Time
	signature string
	slot      int64
}

// New creates a Collector.
func New(opts Options) (*Collector, error) {
	if opts.Source == nil {
		return nil, errors.New("collector: nil bundle source")
	}
	if opts.Sink == nil {
		return nil, errors.New("collector: nil sink")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.DefaultMetrics
	}

	selector := opts.Selector
	if selector == nil {
		selector = swap.NewSelector(logger, metrics.RecordDecodeFailure)
	}

	return &Collector{
		source:              opts.Source,
		sink:                opts.Sink,
		selector:            selector,
		interval:            interval,
		ticks:               opts.Ticks,
		now:                 now,
		skipFailed:          opts.SkipFailed,
		flushOnStop:         opts.FlushOnStop,
		continueOnSinkError: opts.ContinueOnSinkError,
		metrics:             metrics,
		logger:              logger,
	}, nil
}

// Run subscribes to the source and blocks until the stream ends, ctx is
// cancelled, or a flush fails. It returns nil on a clean end of stream,
// ctx.Err() on cancellation, *TransportError when the source failed and
// *SinkError when the sink failed. A transport failure whose final flush also
// failed carries both errors.
func (c *Collector) Run(ctx context.Context) error {
	bundles, err := c.source.Subscribe(ctx)
	if err != nil {
		c.closeSource()
		return &TransportError{Op: "subscribe", Err: err}
	}
	defer c.closeSource()

	ticks := c.ticks
	if ticks == nil {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	c.logger.Info("collector started",
		zap.Duration("interval", c.interval),
		zap.Bool("skip_failed", c.skipFailed),
		zap.Bool("flush_on_stop", c.flushOnStop))

	var pending *snapshot

	for {
		select {
		case <-ctx.Done():
			if err := c.stop(ctx, pending); err != nil {
				c.logger.Error("final flush failed", zap.Error(err))
			}
			c.logger.Info("collector stopping")
			return ctx.Err()

		case b, ok := <-bundles:
			if !ok {
				flushErr := c.stop(ctx, pending)
				if flushErr != nil {
					c.logger.Error("final flush failed", zap.Error(flushErr))
				}
				// Sources close their channel on cancellation too.
				if err := ctx.Err(); err != nil {
					c.logger.Info("collector stopping")
					return err
				}
				if err := c.source.Err(); err != nil {
					c.logger.Error("bundle stream failed", zap.Error(err))
					transportErr := &TransportError{Op: "stream", Err: err}
					if flushErr != nil {
						return errors.Join(transportErr, &SinkError{Err: flushErr})
					}
					return transportErr
				}
				c.logger.Info("bundle stream ended")
				if flushErr != nil && !c.continueOnSinkError {
					return &SinkError{Err: flushErr}
				}
				return nil
			}
			pending = c.observe(b, pending)

		case _, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			if pending == nil {
				continue
			}
			snap := *pending
			pending = nil

			if err := c.flush(ctx, snap); err != nil {
				if !c.continueOnSinkError {
					return &SinkError{Err: err}
				}
				c.logger.Error("flush failed, snapshot dropped",
					zap.String("signature", snap.signature),
					zap.Error(err))
			}
		}
	}
}

// observe folds one bundle into the pending snapshot.
func (c *Collector) observe(b Bundle, pending *snapshot) *snapshot {
	c.metrics.RecordBundle(b.Slot)

	if b.Failed() && c.skipFailed {
		c.metrics.FailedTxSkipped.Inc()
		c.logger.Debug("skipping failed transaction",
			zap.String("signature", b.Signature),
			zap.Any("err", b.Err))
		return pending
	}

	ev, ok := c.selector.Latest(b.Logs)
	if !ok {
		return pending
	}

	c.metrics.SwapsDecoded.Inc()
	if pending != nil {
		c.metrics.Coalesced.Inc()
	}

	return &snapshot{
		event:     ev,
		at:        c.now(),
		signature: b.Signature,
		slot:      b.Slot,
	}
}

func (c *Collector) flush(ctx context.Context, snap snapshot) error {
	err := c.sink.Persist(ctx, snap.event, snap.at)
	c.metrics.RecordFlush(err, snap.at)
	if err != nil {
		return err
	}

	c.logger.Debug("snapshot flushed",
		zap.String("signature", snap.signature),
		zap.Int64("slot", snap.slot),
		zap.Int32("tick", snap.event.Tick))
	return nil
}

// stop flushes a pending snapshot once, detached from cancellation.
func (c *Collector) stop(ctx context.Context, pending *snapshot) error {
	if !c.flushOnStop || pending == nil {
		return nil
	}
	return c.flush(context.WithoutCancel(ctx), *pending)
}

func (c *Collector) closeSource() {
	if err := c.source.Close(); err != nil {
		c.logger.Warn("close bundle source", zap.Error(err))
	}
}
