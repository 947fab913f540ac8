package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/mark3labs/checkwatch/internal/config"
	"github.com/mark3labs/checkwatch/internal/writeback"
	"github.com/spf13/cobra"
)

var updateFlags struct {
	done        bool
	undone      bool
	noTimestamp bool
	dryRun      bool
}

var updateCmd = &cobra.Command{
	Use:   "update FILE LINE",
	Short: "Check or uncheck the task on a line",
	Long: `Set the checkbox on LINE (1-based) of FILE.

Checking a task appends a completion date unless --no-timestamp is given;
unchecking removes it. The previous content is backed up first. Use
--dry-run to print the resulting diff without writing.`,
	Args: cobra.ExactArgs(2),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&updateFlags.done, "done", false, "Mark the task completed")
	updateCmd.Flags().BoolVar(&updateFlags.undone, "undone", false, "Mark the task not completed")
	updateCmd.Flags().BoolVar(&updateFlags.noTimestamp, "no-timestamp", false, "Do not append a completion date")
	updateCmd.Flags().BoolVarP(&updateFlags.dryRun, "dry-run", "n", false, "Print the diff instead of writing")
	updateCmd.MarkFlagsMutuallyExclusive("done", "undone")
	updateCmd.MarkFlagsOneRequired("done", "undone")
}

func newEngine(cfg *config.Config) *writeback.Engine {
	return writeback.New(writeback.Config{
		BackupDir:  cfg.BackupPath(),
		MaxBackups: cfg.MaxBackups,
	})
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	line, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid line %q: %w", args[1], err)
	}
	completed := updateFlags.done && !updateFlags.undone
	engine := newEngine(cfg)

	if updateFlags.dryRun {
		diff, err := engine.Preview(args[0], line, completed, !updateFlags.noTimestamp)
		if err != nil {
			return err
		}
		if diff == "" {
			fmt.Println(mutedStyle.Render("No change."))
			return nil
		}
		fmt.Print(diff)
		return nil
	}

	res := engine.UpdateTask(args[0], line, completed, !updateFlags.noTimestamp)
	return reportResult(res)
}

// reportResult prints a write-back outcome and turns failures into errors.
func reportResult(res writeback.Result) error {
	if !res.Success {
		if res.Err == nil {
			return errors.New("update failed")
		}
		return res.Err
	}
	if res.TasksUpdated == 0 {
		fmt.Println(mutedStyle.Render("Already up to date."))
		return nil
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Updated %d task(s).", res.TasksUpdated)))
	return nil
}
