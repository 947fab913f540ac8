package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var completePhaseCmd = &cobra.Command{
	Use:   "complete-phase FILE PHASE",
	Short: "Check every task under a phase heading",
	Long: `Mark every task between the "## Phase N" heading and the next
second-level heading of FILE as completed, dated today.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompletePhase,
}

func runCompletePhase(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	phase, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid phase %q: %w", args[1], err)
	}
	return reportResult(newEngine(cfg).CompletePhase(args[0], phase))
}
