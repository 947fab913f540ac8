package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/mark3labs/checkwatch/internal/config"
	"github.com/mark3labs/checkwatch/internal/logger"
	"github.com/spf13/cobra"
)

// Version set via ldflags during build
var version = "dev"

func main() {
	// Ensure logger is closed on exit
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "checkwatch",
	Short: "Watch markdown checklists and keep task progress in sync",
}

// loadConfig reads the layered configuration and applies its logging
// settings. Commands call it first so every later log line honors it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}
	return cfg, nil
}

func init() {
	rootCmd.Long = renderBanner() + `

checkwatch watches markdown task files (SPEC.md, phase-N.md, *-implementation.md
and agent-todos/<agent>/*.md) across every project in a workspace. Checkbox
edits are parsed, diffed and folded into per-project progress, published on an
embedded NATS bus and relayed to an optional dashboard over WebSocket.`

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(completePhaseCmd)
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(setupCmd)
}
