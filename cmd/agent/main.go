package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"retrieval-agent/internal/di"
	"retrieval-agent/internal/infrastructure/env"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envDir string
	cmd := &cobra.Command{
		Use:           "agent",
		Short:         "Tool-using retrieval agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envDir, "env-dir", ".", "directory holding .env files")

	load := func() di.Config {
		return di.ConfigFromEnv(env.NewEnvService(envDir))
	}
	cmd.AddCommand(askCmd(load))
	cmd.AddCommand(serveCmd(load))
	return cmd
}
