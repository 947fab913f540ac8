package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/checkwatch/internal/config"
	"github.com/spf13/cobra"
)

var setupFlags struct {
	global bool
	force  bool
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create checkwatch configuration file",
	Long: `Create a checkwatch configuration file with sensible defaults.

By default, creates checkwatch.yml in the current directory.
Use --global to write ~/.config/checkwatch/checkwatch.yml instead.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVarP(&setupFlags.global, "global", "g", false, "Create config in the global location instead of the current directory")
	setupCmd.Flags().BoolVarP(&setupFlags.force, "force", "f", false, "Overwrite existing config file")
}

func runSetup(cmd *cobra.Command, args []string) error {
	targetPath := config.ProjectPath()
	if setupFlags.global {
		targetPath = config.GlobalPath()
	}

	if !setupFlags.force && fileExists(targetPath) {
		return fmt.Errorf("config file already exists at %s\n\nUse --force to overwrite", targetPath)
	}

	cfg := config.Default()

	var err error
	if setupFlags.global {
		err = config.WriteGlobal(cfg)
	} else {
		err = config.WriteProject(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Config written to: %s\n\n", targetPath)
	fmt.Println("Run 'checkwatch watch' to get started.")
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
