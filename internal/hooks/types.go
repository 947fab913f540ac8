package hooks

// Config is the top-level configuration for hooks loaded from .checkwatch.hooks.yml.
type Config struct {
	Version int         `yaml:"version"`
	Hooks   HooksConfig `yaml:"hooks"`
}

// HooksConfig contains all hook configurations.
type HooksConfig struct {
	OnTaskComplete  []*HookConfig `yaml:"on_task_complete"`
	OnPhaseComplete []*HookConfig `yaml:"on_phase_complete"`
}

// HookConfig defines a single hook's configuration.
type HookConfig struct {
	Command   string `yaml:"command"`
	Timeout   int    `yaml:"timeout"`    // seconds, default 30
	LogOutput bool   `yaml:"log_output"` // log stdout at info level
}

// DefaultTimeout is the default timeout for hook execution in seconds.
const DefaultTimeout = 30
