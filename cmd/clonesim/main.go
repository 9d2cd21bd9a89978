package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clonesim",
		Short: "Stochastic simulation of somatic evolution in cell populations",
		Long: `clonesim simulates the accumulation of somatic mutations in growing
and homeostatic cell populations, from single well-mixed populations to
multilevel models of competing modules.

Runs are continuous-time Markov jump processes; results are exported as
module, mutation-frequency and subclone tables for downstream analysis.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML parameter file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (info, debug, trace)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newBatchCmd(),
		newVAFCmd(),
		newRunsCmd(),
		newValidateCmd(),
	)

	// Cancel in-flight simulations on interrupt.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	notifySignals(sig)
	go func() {
		<-sig
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
