package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clmm-swap-collector/internal/config"
	"clmm-swap-collector/internal/logging"
	"clmm-swap-collector/internal/pool"
	"clmm-swap-collector/internal/solana"
	"clmm-swap-collector/internal/swap"
)

func newPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool [ADDRESS]",
		Short: "Fetch and verify a pool account over RPC_URL",
		Long: `Pool reads the PoolState account at ADDRESS (default POOL_ADDRESS), checks
that it is owned by POOL_PROGRAM_ID and sits at the address derived from its
mints, and prints its mints, decimals and current price as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPool,
	}
	cmd.Flags().String("price-source", "", "tick or sqrt_price (default PRICE_SOURCE)")
	return cmd
}

type poolReport struct {
	Address     string           `json:"address"`
	ProgramID   string           `json:"program_id"`
	PriceSource swap.PriceSource `json:"price_source"`
	Price       float64          `json:"price"`
	Slot        int64            `json:"slot"`
	State       *pool.State      `json:"state"`
}

func runPool(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("price-source") {
		cfg.PriceSource, _ = cmd.Flags().GetString("price-source")
	}

	address := cfg.PoolAddress
	if len(args) == 1 {
		address = args[0]
	}
	if address == "" {
		return errors.New("pool address required (argument or POOL_ADDRESS)")
	}
	if cfg.RPCURL == "" {
		return errors.New("RPC_URL is required")
	}

	source, err := swap.ParsePriceSource(cfg.PriceSource)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	rpc := newRPCClient(cfg, logger)
	state, err := resolvePoolWith(cmd.Context(), rpc, cfg, address, logger)
	if err != nil {
		return err
	}
	slot, err := rpc.GetSlot(cmd.Context())
	if err != nil {
		return fmt.Errorf("get slot: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(poolReport{
		Address:     address,
		ProgramID:   cfg.ProgramID,
		PriceSource: source,
		Price:       state.Price(source),
		Slot:        slot,
		State:       state,
	})
}

func newRPCClient(cfg *config.Config, logger *zap.Logger) *solana.HTTPClient {
	return solana.NewHTTPClient(cfg.RPCURL,
		solana.WithCommitment(cfg.Commitment),
		solana.WithLogger(logger))
}

// resolvePool fetches and verifies the pool account over RPC_URL.
func resolvePool(ctx context.Context, cfg *config.Config, address string, logger *zap.Logger) (*pool.State, error) {
	return resolvePoolWith(ctx, newRPCClient(cfg, logger), cfg, address, logger)
}

func resolvePoolWith(ctx context.Context, rpc solana.RPCClient, cfg *config.Config, address string, logger *zap.Logger) (*pool.State, error) {
	resolver, err := pool.NewResolver(rpc, cfg.ProgramID, logger)
	if err != nil {
		return nil, err
	}
	return resolver.Resolve(ctx, address)
}
