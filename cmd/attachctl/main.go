package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/templui/taskfiles/cmd/attachctl/cmd"
	"github.com/templui/taskfiles/internal/logger"

	"github.com/spf13/cobra"
)

func main() {
	// Stdout carries command output (tokens, ids), so logs go to stderr
	logger.Init(logger.Options{AppName: "attachctl", Development: true, Output: os.Stderr})

	rootCmd := &cobra.Command{
		Use:           "attachctl",
		Short:         "Operator tools for the taskfiles attachment service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cmd.DevCmd())
	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.TenantCmd())
	rootCmd.AddCommand(cmd.TokenCmd())
	rootCmd.AddCommand(cmd.PurgeCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
