package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clmm-swap-collector/internal/collector"
	"clmm-swap-collector/internal/config"
	"clmm-swap-collector/internal/ingestion"
	"clmm-swap-collector/internal/logging"
	"clmm-swap-collector/internal/observability"
	"clmm-swap-collector/internal/sink"
	"clmm-swap-collector/internal/solana"
	"clmm-swap-collector/internal/swap"
)

const shutdownTimeout = 30 * time.Second

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Stream pool swaps and write one trade row per flush interval",
		Args:  cobra.NoArgs,
		RunE:  runCollector,
	}
	cmd.Flags().String("replay", "", "read recorded notifications from a JSON lines file instead of WS_URL (- for stdin)")
	return cmd
}

func runCollector(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	replayPath, _ := cmd.Flags().GetString("replay")

	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	validate := cfg.Validate
	if replayPath != "" {
		validate = cfg.ValidateReplay
	}
	if err := validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Closed last so the forced exit also covers closing the sinks.
	done := make(chan struct{})
	defer close(done)
	go handleSignals(cancel, done, logger)

	metrics := observability.DefaultMetrics
	if cfg.MetricsEnabled() {
		srv := startMetricsServer(cfg.MetricsAddr, logger)
		defer stopMetricsServer(srv, logger)
	}

	pricer, err := resolvePricer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	snk, closeSinks, err := buildSink(ctx, cfg, pricer, metrics, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSinks(); err != nil {
			logger.Error("close sinks", zap.Error(err))
		}
	}()

	source, err := openSource(ctx, cfg, replayPath, cmd.InOrStdin(), metrics, logger)
	if err != nil {
		return err
	}

	return finish(runPipeline(ctx, cfg, source, snk, metrics, logger), logger)
}

// runPipeline runs the coalescing loop until the source ends, ctx is
// cancelled or a flush fails.
func runPipeline(
	ctx context.Context,
	cfg *config.Config,
	source collector.BundleSource,
	snk sink.Sink,
	metrics *observability.Metrics,
	logger *zap.Logger,
) error {
	opts := collector.DefaultOptions()
	opts.Source = source
	opts.Sink = snk
	opts.Interval = cfg.FlushInterval
	opts.SkipFailed = cfg.SkipFailedTx
	opts.FlushOnStop = cfg.FlushOnShutdown
	opts.ContinueOnSinkError = cfg.ContinueOnSinkError
	opts.Metrics = metrics
	opts.Logger = logger.With(zap.String("pool", cfg.PoolAddress), zap.String("symbol", cfg.PoolSymbol))

	c, err := collector.New(opts)
	if err != nil {
		_ = source.Close()
		return err
	}
	return c.Run(ctx)
}

// finish logs how the collector stopped. Cancellation is a clean shutdown.
func finish(err error, logger *zap.Logger) error {
	if err == nil || errors.Is(err, context.Canceled) {
		logger.Info("shutdown complete")
		return nil
	}
	logger.Error("collector stopped", zap.String("kind", collector.ErrorKind(err)), zap.Error(err))
	return err
}

func openSource(
	ctx context.Context,
	cfg *config.Config,
	replayPath string,
	stdin io.Reader,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (collector.BundleSource, error) {
	switch replayPath {
	case "":
	case "-":
		logger.Info("replaying notifications from stdin")
		return ingestion.NewReplaySource(io.NopCloser(stdin), logger), nil
	default:
		f, err := os.Open(replayPath)
		if err != nil {
			return nil, fmt.Errorf("open replay file: %w", err)
		}
		logger.Info("replaying notifications", zap.String("path", replayPath))
		return ingestion.NewReplaySource(f, logger), nil
	}

	wsCfg := solana.DefaultWSConfig()
	wsCfg.MaxReconnectAttempts = cfg.WSMaxReconnects
	wsCfg.Logger = logger
	wsCfg.OnReconnect = func(_ int, err error) {
		metrics.RecordReconnect(err)
	}

	client, err := solana.NewWSClient(ctx, cfg.WSURL, &wsCfg)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.WSURL, err)
	}

	source, err := ingestion.NewWSBundleSource(ingestion.WSBundleSourceOptions{
		Client:      client,
		Pool:        cfg.PoolAddress,
		Commitment:  cfg.Commitment,
		CloseClient: true,
		Logger:      logger,
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return source, nil
}

// resolvePricer builds the pricer from configured decimals, reading the pool
// account when RPC_URL is set. Configured decimals win over the account.
func resolvePricer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (swap.Pricer, error) {
	source, err := swap.ParsePriceSource(cfg.PriceSource)
	if err != nil {
		return swap.Pricer{}, err
	}

	d0, d1, configured := cfg.Decimals()
	pricer := swap.Pricer{Decimals0: d0, Decimals1: d1, Source: source}
	if cfg.RPCURL == "" {
		return pricer, nil
	}

	state, err := resolvePool(ctx, cfg, cfg.PoolAddress, logger)
	if err != nil {
		if configured {
			logger.Warn("pool account unavailable, using configured decimals", zap.Error(err))
			return pricer, nil
		}
		return swap.Pricer{}, fmt.Errorf("resolve pool decimals: %w", err)
	}

	if !configured {
		pricer = state.Pricer(source)
	} else if d0 != state.MintDecimals0 || d1 != state.MintDecimals1 {
		logger.Warn("configured decimals differ from pool account",
			zap.Uint8("configured_0", d0),
			zap.Uint8("configured_1", d1),
			zap.Uint8("account_0", state.MintDecimals0),
			zap.Uint8("account_1", state.MintDecimals1))
	}

	logger.Info("pool price",
		zap.Float64("price", pricer.Price(swap.SwapEvent{Tick: state.TickCurrent, SqrtPriceX64: state.SqrtPriceX64})),
		zap.Int32("tick_current", state.TickCurrent))
	return pricer, nil
}

func handleSignals(cancel context.CancelFunc, done <-chan struct{}, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, initiating graceful shutdown", zap.Stringer("signal", sig))
		cancel()
	case <-done:
		return
	}

	// Wait for second signal for immediate shutdown
	select {
	case sig := <-sigCh:
		logger.Warn("received second signal, forcing immediate shutdown", zap.Stringer("signal", sig))
		os.Exit(1)
	case <-time.After(shutdownTimeout):
		logger.Error("graceful shutdown timed out, forcing exit", zap.Duration("timeout", shutdownTimeout))
		os.Exit(1)
	case <-done:
	}
}

func startMetricsServer(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return srv
}

func stopMetricsServer(srv *http.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
}
