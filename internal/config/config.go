// Package config provides centralized configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultPatterns are the task-file patterns watched inside each project.
// A leading "/" anchors a pattern to the project root.
var DefaultPatterns = []string{
	"/SPEC.md",
	"phase-*.md",
	"*-implementation.md",
	"agent-todos/**/*.md",
}

// DefaultIgnore are directory names never descended into.
var DefaultIgnore = []string{".git", "node_modules", ".checkwatch"}

// Config holds all configuration values for checkwatch.
type Config struct {
	WorkspaceRoot     string        `mapstructure:"workspace_root" yaml:"workspace_root"`
	Project           string        `mapstructure:"project" yaml:"project,omitempty"`
	Patterns          []string      `mapstructure:"patterns" yaml:"patterns"`
	Ignore            []string      `mapstructure:"ignore" yaml:"ignore"`
	Debounce          time.Duration `mapstructure:"debounce" yaml:"debounce"`
	DataDir           string        `mapstructure:"data_dir" yaml:"data_dir"`
	BackupDir         string        `mapstructure:"backup_dir" yaml:"backup_dir,omitempty"`
	MaxBackups        int           `mapstructure:"max_backups" yaml:"max_backups"`
	DashboardURL      string        `mapstructure:"dashboard_url" yaml:"dashboard_url,omitempty"`
	SharedContextURL  string        `mapstructure:"shared_context_url" yaml:"shared_context_url,omitempty"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval" yaml:"reconnect_interval"`
	MCP               bool          `mapstructure:"mcp" yaml:"mcp"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFile           string        `mapstructure:"log_file" yaml:"log_file,omitempty"`
}

// envKeys lists every key bound to a CHECKWATCH_ environment variable.
var envKeys = []string{
	"workspace_root",
	"project",
	"patterns",
	"ignore",
	"debounce",
	"data_dir",
	"backup_dir",
	"max_backups",
	"dashboard_url",
	"shared_context_url",
	"reconnect_interval",
	"mcp",
	"log_level",
	"log_file",
}

// Default returns the built-in configuration without consulting files or env.
func Default() *Config {
	return &Config{
		WorkspaceRoot:     ".",
		Patterns:          append([]string(nil), DefaultPatterns...),
		Ignore:            append([]string(nil), DefaultIgnore...),
		Debounce:          500 * time.Millisecond,
		DataDir:           ".checkwatch",
		MaxBackups:        10,
		ReconnectInterval: 5 * time.Second,
		LogLevel:          "info",
	}
}

// Load loads configuration with full precedence:
// CLI flags > ENV vars > project config > XDG global config > defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("checkwatch")

	def := Default()
	v.SetDefault("workspace_root", def.WorkspaceRoot)
	v.SetDefault("project", "")
	v.SetDefault("patterns", def.Patterns)
	v.SetDefault("ignore", def.Ignore)
	v.SetDefault("debounce", def.Debounce)
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("backup_dir", "")
	v.SetDefault("max_backups", def.MaxBackups)
	v.SetDefault("dashboard_url", "")
	v.SetDefault("shared_context_url", "")
	v.SetDefault("reconnect_interval", def.ReconnectInterval)
	v.SetDefault("mcp", false)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("CHECKWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit bindings so Unmarshal sees env-only values
	for _, key := range envKeys {
		if err := v.BindEnv(key, "CHECKWATCH_"+strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.WorkspaceRoot == "" {
		errs = append(errs, errors.New("workspace_root must not be empty"))
	}
	if len(c.Patterns) == 0 {
		errs = append(errs, errors.New("at least one task-file pattern is required"))
	}
	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce must be >= 0, got %s", c.Debounce))
	}
	if c.MaxBackups < 1 {
		errs = append(errs, fmt.Errorf("max_backups must be >= 1, got %d", c.MaxBackups))
	}
	if c.ReconnectInterval <= 0 {
		errs = append(errs, fmt.Errorf("reconnect_interval must be > 0, got %s", c.ReconnectInterval))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// BackupPath returns the directory backups are written to.
func (c *Config) BackupPath() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(c.DataDir, "backups")
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns the XDG global config path.
// Returns ~/.config/checkwatch/checkwatch.yml or $XDG_CONFIG_HOME/checkwatch/checkwatch.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "checkwatch", "checkwatch.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "checkwatch", "checkwatch.yml")
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return "checkwatch.yml"
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return writeFile(path, cfg)
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	return writeFile(ProjectPath(), cfg)
}

func writeFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
