// Command collector streams Raydium CLMM swap events for one pool and writes
// one trade row per flush interval.
//
// Usage:
//
//	collector run [--replay FILE]
//	collector decode [LINE...]
//	collector pool [ADDRESS]
//
// Settings come from the environment and an optional .env file (see --env-file).
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "collector",
		Short:        "Raydium CLMM swap collector",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("env-file", "", "env file to load (default .env when present)")

	root.AddCommand(newRunCmd(), newDecodeCmd(), newPoolCmd())
	return root
}
