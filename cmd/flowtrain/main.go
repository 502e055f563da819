// Package main provides the CLI entry point for flowtrain.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"flow-trainer/cmd/flowtrain/commands"
)

var rootCmd = &cobra.Command{
	Use:   "flowtrain",
	Short: "Train and track continuous-time flow models",
	Long: `flowtrain trains flow models on trajectory data and keeps track of every run.

It provides:
  - Training with early stopping, checkpointing on the best epoch and a run summary
  - Inspection of saved model artifacts
  - An optional HTTP registry of runs, epochs and artifacts backed by PostgreSQL`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(commands.TrainCmd)
	rootCmd.AddCommand(commands.DescribeCmd)
	rootCmd.AddCommand(commands.EvaluateCmd)
	rootCmd.AddCommand(commands.ServeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
