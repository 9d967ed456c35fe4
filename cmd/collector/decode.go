package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"clmm-swap-collector/internal/config"
	"clmm-swap-collector/internal/domain"
	"clmm-swap-collector/internal/pool"
	"clmm-swap-collector/internal/swap"
)

const maxLogLineSize = 1024 * 1024

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [LINE...]",
		Short: "Decode swap events from program log lines",
		Long: `Decode reads log lines from its arguments, or from stdin when none are given,
and prints one JSON object per swap event. Lines that are not "Program data:"
lines are skipped. Decimals default to POOL_TOKEN_A_DECIMAL and
POOL_TOKEN_B_DECIMAL; without them only the raw event is printed.`,
		RunE: runDecode,
	}
	cmd.Flags().Int("decimals0", config.UnsetDecimals, "token0 mint decimals")
	cmd.Flags().Int("decimals1", config.UnsetDecimals, "token1 mint decimals")
	cmd.Flags().String("symbol", "", "symbol label for the trade row (default POOL_SYMBOL)")
	cmd.Flags().String("price-source", "", "tick or sqrt_price (default PRICE_SOURCE)")
	return cmd
}

type decodedLine struct {
	Line  int            `json:"line"`
	Event swap.SwapEvent `json:"event"`
	Trade *tradeRow      `json:"trade,omitempty"`
}

type tradeRow struct {
	Symbol   string      `json:"symbol,omitempty"`
	Price    float64     `json:"price"`
	Quantity string      `json:"quantity"`
	Side     domain.Side `json:"side"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("decimals0") {
		cfg.TokenADecimals, _ = flags.GetInt("decimals0")
	}
	if flags.Changed("decimals1") {
		cfg.TokenBDecimals, _ = flags.GetInt("decimals1")
	}
	if flags.Changed("symbol") {
		cfg.PoolSymbol, _ = flags.GetString("symbol")
	}
	if flags.Changed("price-source") {
		cfg.PriceSource, _ = flags.GetString("price-source")
	}

	source, err := swap.ParsePriceSource(cfg.PriceSource)
	if err != nil {
		return err
	}
	for _, d := range []int{cfg.TokenADecimals, cfg.TokenBDecimals} {
		if d != config.UnsetDecimals && (d < 0 || d > pool.MaxDecimals) {
			return fmt.Errorf("decimals must be between 0 and %d, got %d", pool.MaxDecimals, d)
		}
	}
	var pricer *swap.Pricer
	if d0, d1, ok := cfg.Decimals(); ok {
		pricer = &swap.Pricer{Decimals0: d0, Decimals1: d1, Source: source}
	}

	lines := args
	if len(lines) == 0 {
		lines, err = readLines(cmd.InOrStdin())
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	var decoded, failed int
	for i, line := range lines {
		ev, err := swap.DecodeLine(strings.TrimSpace(line))
		if errors.Is(err, swap.ErrNotProgramData) {
			continue
		}
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "line %d: %v\n", i+1, err)
			continue
		}

		out := decodedLine{Line: i + 1, Event: ev}
		if pricer != nil {
			qty, side := pricer.Quantity(ev)
			out.Trade = &tradeRow{
				Symbol:   cfg.PoolSymbol,
				Price:    pricer.Price(ev),
				Quantity: qty.String(),
				Side:     side,
			}
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
		decoded++
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d program data lines failed to decode", failed, decoded+failed)
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLogLineSize)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return lines, nil
}
