package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/checkwatch/internal/logger"
	"github.com/mark3labs/checkwatch/internal/orchestrator"
	"github.com/spf13/cobra"
)

var watchFlags struct {
	project       string
	dashboard     string
	sharedContext string
	mcp           bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch task files and publish progress",
	Long: `Watch every project under the workspace root for task-file edits.

Changes are published on an embedded NATS bus (see 'checkwatch events'),
folded into per-project progress and, when configured, relayed to a
dashboard and a shared-context service over WebSocket.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchFlags.project, "project", "p", "", "Watch a single project directory")
	watchCmd.Flags().StringVar(&watchFlags.dashboard, "dashboard", "", "Dashboard WebSocket URL")
	watchCmd.Flags().StringVar(&watchFlags.sharedContext, "shared-context", "", "Shared-context WebSocket URL")
	watchCmd.Flags().BoolVar(&watchFlags.mcp, "mcp", false, "Serve task tools over MCP")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Flags override config
	if cmd.Flags().Changed("project") {
		cfg.Project = watchFlags.project
	}
	if cmd.Flags().Changed("dashboard") {
		cfg.DashboardURL = watchFlags.dashboard
	}
	if cmd.Flags().Changed("shared-context") {
		cfg.SharedContextURL = watchFlags.sharedContext
	}
	if cmd.Flags().Changed("mcp") {
		cfg.MCP = watchFlags.mcp
	}

	orch, err := orchestrator.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	if err := orch.Start(); err != nil {
		_ = orch.Stop()
		return fmt.Errorf("failed to start: %w", err)
	}

	fmt.Println(renderBanner())
	fmt.Printf("Watching %s (bus port %d)\n", cfg.WorkspaceRoot, orch.NATSPort())
	if url := orch.MCPURL(); url != "" {
		fmt.Printf("MCP tools at %s\n", url)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		logger.Info("Received shutdown signal")
		if err := orch.Stop(); err != nil {
			logger.Error("Shutdown failed: %v", err)
		}
	}()

	if err := orch.Wait(); err != nil {
		_ = orch.Stop()
		return err
	}
	return orch.Stop()
}
