package main

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"clmm-swap-collector/internal/config"
	"clmm-swap-collector/internal/observability"
	"clmm-swap-collector/internal/sink"
	"clmm-swap-collector/internal/storage"
	"clmm-swap-collector/internal/storage/clickhouse"
	"clmm-swap-collector/internal/storage/csvfile"
	"clmm-swap-collector/internal/storage/postgres"
	"clmm-swap-collector/internal/storage/redisstream"
	"clmm-swap-collector/internal/swap"
)

// closers releases opened stores in reverse order.
type closers []func() error

func (c closers) close() error {
	var err error
	for i := len(c) - 1; i >= 0; i-- {
		err = multierr.Append(err, c[i]())
	}
	return err
}

// buildSink opens every configured sink in SINK order. The returned func
// closes whatever was opened.
func buildSink(
	ctx context.Context,
	cfg *config.Config,
	pricer swap.Pricer,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (sink.Sink, func() error, error) {
	var (
		sinks  sink.Multi
		opened closers
	)

	trades := func(name string, store storage.TradeStore) sink.Sink {
		return sink.NewTrades(sink.TradesOptions{
			Name:    name,
			Store:   store,
			Pricer:  pricer,
			Symbol:  cfg.PoolSymbol,
			Metrics: metrics,
			Logger:  logger,
		})
	}

	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkLog:
			sinks = append(sinks, sink.NewLog(logger))

		case config.SinkCSV:
			store, err := csvfile.Open(cfg.DataFilePath)
			if err != nil {
				return nil, nil, multierr.Append(err, opened.close())
			}
			opened = append(opened, store.Close)
			sinks = append(sinks, trades(name, store))
			logger.Info("writing trades to csv", zap.String("path", store.Path()))

		case config.SinkPostgres:
			pool, err := postgres.Open(ctx, cfg.PostgresDSN)
			if err != nil {
				return nil, nil, multierr.Append(fmt.Errorf("open postgres: %w", err), opened.close())
			}
			opened = append(opened, func() error { pool.Close(); return nil })
			sinks = append(sinks, trades(name, postgres.NewTradeStore(pool)))

		case config.SinkClickhouse:
			conn, err := clickhouse.Open(ctx, cfg.ClickhouseDSN)
			if err != nil {
				return nil, nil, multierr.Append(fmt.Errorf("open clickhouse: %w", err), opened.close())
			}
			opened = append(opened, conn.Close)
			sinks = append(sinks, trades(name, clickhouse.NewTradeStore(conn)))

		case config.SinkRedis:
			store, err := redisstream.New(ctx, redisstream.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
				Stream:   cfg.Redis.Stream,
				MaxLen:   cfg.Redis.StreamMaxLen,
				Logger:   logger,
			})
			if err != nil {
				return nil, nil, multierr.Append(fmt.Errorf("open redis: %w", err), opened.close())
			}
			opened = append(opened, store.Close)
			sinks = append(sinks, trades(name, store))

		default:
			return nil, nil, multierr.Append(fmt.Errorf("unknown sink %q", name), opened.close())
		}
		logger.Info("sink enabled", zap.String("sink", name))
	}

	if len(sinks) == 1 {
		return sinks[0], opened.close, nil
	}
	return sinks, opened.close, nil
}
