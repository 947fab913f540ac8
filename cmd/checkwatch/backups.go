package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backupsCmd = &cobra.Command{
	Use:   "backups FILE",
	Short: "List the backups kept for a task file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackups,
}

var restoreFlags struct {
	timestamp string
}

var restoreCmd = &cobra.Command{
	Use:   "restore FILE",
	Short: "Restore a task file from a backup",
	Long: `Restore FILE from its newest backup, or from the backup named by
--timestamp as listed by 'checkwatch backups'.`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().StringVarP(&restoreFlags.timestamp, "timestamp", "t", "", "Backup timestamp to restore (default newest)")
}

func runBackups(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	list, err := newEngine(cfg).Backups(args[0])
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println(mutedStyle.Render("No backups."))
		return nil
	}
	for _, b := range list {
		fmt.Printf("%s  %s\n", headerStyle.Render(b.Timestamp), mutedStyle.Render(b.Time.Local().Format("2006-01-02 15:04:05")))
	}
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine := newEngine(cfg)

	ts := restoreFlags.timestamp
	if ts == "" {
		list, err := engine.Backups(args[0])
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return fmt.Errorf("no backups for %s", args[0])
		}
		ts = list[len(list)-1].Timestamp
	}

	if !engine.RestoreFromBackup(args[0], ts) {
		return fmt.Errorf("failed to restore %s from backup %s", args[0], ts)
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Restored %s from %s.", args[0], ts)))
	return nil
}
