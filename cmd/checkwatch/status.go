package main

import (
	"fmt"
	"time"

	"github.com/mark3labs/checkwatch/internal/config"
	"github.com/mark3labs/checkwatch/internal/events"
	"github.com/mark3labs/checkwatch/internal/progress"
	"github.com/mark3labs/checkwatch/internal/watcher"
	"github.com/spf13/cobra"
)

var statusFlags struct {
	project string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Scan task files and print progress",
	Long: `Scan the workspace once and print per-project progress.

With --project only that project is scanned. Nothing is watched and no
events are published.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusFlags.project, "project", "p", "", "Project to report on")
}

// foldPublisher feeds the coordinator's initial scan straight into an
// aggregator instead of a bus.
type foldPublisher struct {
	agg *progress.Aggregator
}

func (f foldPublisher) Publish(e events.Event) error {
	if found, ok := e.(events.TaskFound); ok {
		f.agg.ApplyFile(found.ProjectID, found.SourceFile, found.Tasks)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	snaps, err := scanSnapshots(cfg, statusFlags.project)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Println(mutedStyle.Render("No task files found."))
		return nil
	}
	for _, s := range snaps {
		fmt.Println(renderSnapshot(s))
	}
	return nil
}

// scanSnapshots runs one pass over the workspace. A single project is read
// through GetProjectTasks; otherwise the coordinator's initial scan is
// folded and the watcher stopped again straight away.
func scanSnapshots(cfg *config.Config, project string) ([]progress.ProgressSnapshot, error) {
	agg := progress.New()
	coord, err := watcher.New(watcher.Config{
		Root:     cfg.WorkspaceRoot,
		Patterns: cfg.Patterns,
		Ignore:   cfg.Ignore,
		Debounce: cfg.Debounce,
	}, foldPublisher{agg: agg})
	if err != nil {
		return nil, err
	}

	if project != "" {
		found, err := coord.GetProjectTasks(project)
		if err != nil {
			return nil, err
		}
		return []progress.ProgressSnapshot{progress.Summarize(project, found, time.Now())}, nil
	}

	if err := coord.Start(); err != nil {
		return nil, fmt.Errorf("failed to scan workspace: %w", err)
	}
	if err := coord.Stop(); err != nil {
		return nil, err
	}
	return agg.Snapshots(), nil
}
