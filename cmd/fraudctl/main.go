package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fraudctl",
		Short:         "fraudctl - Score transactions and manage fraud model artifacts",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("dir", "", "Artifact directory (overrides ARTIFACT_DIR, implies the file source)")
	rootCmd.PersistentFlags().String("manifest", "", "Manifest file name inside the artifact directory")

	rootCmd.AddCommand(predictCmd())
	rootCmd.AddCommand(artifactsCmd())

	return rootCmd
}
