package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RootRole is the reserved role name of a compound worker's root member.
// It is always part of the role vocabulary and never needs to be listed.
const RootRole = "ROOT"

// Config represents the complete compound worker configuration
type Config struct {
	Fleet     FleetConfig     `mapstructure:"fleet" yaml:"fleet"`
	Pool      PoolConfig      `mapstructure:"pool" yaml:"pool"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch" yaml:"dispatch"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Backend   BackendConfig   `mapstructure:"backend" yaml:"backend"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// FleetConfig controls how compound workers are provisioned
type FleetConfig struct {
	// Name identifies this fleet in logs and events (default: "compound")
	Name string `mapstructure:"name" yaml:"name"`
	// MaxInstances caps concurrently registered compound workers (0 = unlimited)
	MaxInstances int `mapstructure:"max_instances" yaml:"max_instances"`
	// RetryTimeoutSeconds is how long a composition is refused after a failed
	// provisioning attempt (default: 300)
	RetryTimeoutSeconds int `mapstructure:"retry_timeout_seconds" yaml:"retry_timeout_seconds"`
	// Roles is the role vocabulary. ROOT is implied and may be omitted.
	Roles []string `mapstructure:"roles" yaml:"roles"`
	// Compositions are tried in order; the first whose selector matches a demand wins.
	Compositions []CompositionConfig `mapstructure:"compositions" yaml:"compositions"`
}

// CompositionConfig describes one named role composition
type CompositionConfig struct {
	Name     string        `mapstructure:"name" yaml:"name"`
	Selector string        `mapstructure:"selector" yaml:"selector"`
	Entries  []EntryConfig `mapstructure:"entries" yaml:"entries"`
}

// EntryConfig asks the backend for Count members matching Selector, tagged with Role
type EntryConfig struct {
	Role     string `mapstructure:"role" yaml:"role"`
	Selector string `mapstructure:"selector" yaml:"selector"`
	Count    int    `mapstructure:"count" yaml:"count"`
}

// PoolConfig controls the shared worker pool used for provisioning and launch
type PoolConfig struct {
	// MaxWorkers bounds concurrently running sub-tasks (0 = unlimited)
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers"`
}

// DispatchConfig controls role/ordinal routing
type DispatchConfig struct {
	// OutOfRange decides what an ordinal past the end of a role does.
	// Options: "succeed" (vacuous success, logged), "fail"
	OutOfRange string `mapstructure:"out_of_range" yaml:"out_of_range"`
	// MaxOrdinal rejects ordinals above it before routing (0 = unbounded)
	MaxOrdinal int `mapstructure:"max_ordinal" yaml:"max_ordinal"`
}

// WorkspaceConfig controls per-member workspace allocation
type WorkspaceConfig struct {
	// Dir is the base directory for workspaces. Empty means use each
	// member's root directory.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// RootSuffix is appended to the root member's root dir to form the
	// compound worker's own root (default: "compound-root")
	RootSuffix string `mapstructure:"root_suffix" yaml:"root_suffix"`
}

// BackendConfig configures the static backend pool
type BackendConfig struct {
	Nodes []NodeConfig `mapstructure:"nodes" yaml:"nodes"`
}

// NodeConfig describes one machine the static backend can hand out
type NodeConfig struct {
	Name    string   `mapstructure:"name" yaml:"name"`
	Labels  []string `mapstructure:"labels" yaml:"labels"`
	RootDir string   `mapstructure:"root_dir" yaml:"root_dir"`
	// Slots is the number of execution slots the node exposes (default: 1)
	Slots int `mapstructure:"slots" yaml:"slots"`
	// Cloud marks the node as backend-owned: it is terminated, not just
	// deregistered, when released.
	Cloud bool `mapstructure:"cloud" yaml:"cloud"`
	// FailConnect makes every connect attempt to this node fail.
	FailConnect bool `mapstructure:"fail_connect" yaml:"fail_connect"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where compound.log is written. Empty means stderr.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the maximum size of a log file before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// Out-of-range dispatch policies
const (
	OutOfRangeSucceed = "succeed"
	OutOfRangeFail    = "fail"
)

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Fleet: FleetConfig{
			Name:                "compound",
			MaxInstances:        0,
			RetryTimeoutSeconds: 300,
			Roles:               []string{},
		},
		Pool: PoolConfig{
			MaxWorkers: 8,
		},
		Dispatch: DispatchConfig{
			OutOfRange: OutOfRangeSucceed,
			MaxOrdinal: 0,
		},
		Workspace: WorkspaceConfig{
			Dir:        "", // Empty means use the member's root dir
			RootSuffix: "compound-root",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// RetryTimeout returns the composition cooldown as a time.Duration
func (c *FleetConfig) RetryTimeout() time.Duration {
	return time.Duration(c.RetryTimeoutSeconds) * time.Second
}

// RoleVocabulary returns the configured role names with ROOT first and
// duplicates removed, preserving declaration order.
func (c *FleetConfig) RoleVocabulary() []string {
	seen := map[string]bool{RootRole: true}
	roles := []string{RootRole}
	for _, r := range c.Roles {
		if seen[r] {
			continue
		}
		seen[r] = true
		roles = append(roles, r)
	}
	return roles
}

// ResolveDir returns the workspace base directory for a member whose
// root directory is memberRoot. A leading ~ expands to the home directory
// and a relative Dir is resolved against memberRoot.
func (w *WorkspaceConfig) ResolveDir(memberRoot string) string {
	if w.Dir == "" {
		return filepath.Join(memberRoot, "workspace")
	}

	path := w.Dir
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(memberRoot, path)
	}
	return path
}

// SetDefaults registers default values with the global viper instance
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers default values with v
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	// Fleet defaults
	v.SetDefault("fleet.name", defaults.Fleet.Name)
	v.SetDefault("fleet.max_instances", defaults.Fleet.MaxInstances)
	v.SetDefault("fleet.retry_timeout_seconds", defaults.Fleet.RetryTimeoutSeconds)
	v.SetDefault("fleet.roles", defaults.Fleet.Roles)

	// Pool defaults
	v.SetDefault("pool.max_workers", defaults.Pool.MaxWorkers)

	// Dispatch defaults
	v.SetDefault("dispatch.out_of_range", defaults.Dispatch.OutOfRange)
	v.SetDefault("dispatch.max_ordinal", defaults.Dispatch.MaxOrdinal)

	// Workspace defaults
	v.SetDefault("workspace.dir", defaults.Workspace.Dir)
	v.SetDefault("workspace.root_suffix", defaults.Workspace.RootSuffix)

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.dir", defaults.Logging.Dir)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	v.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v into a Config struct and validates it
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// Watch reloads the configuration whenever the config file changes and
// hands the result to onChange. A reload that fails validation is reported
// through err and the previous configuration stays in effect for callers
// that keep their own reference.
func Watch(onChange func(event fsnotify.Event, cfg *Config, err error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load()
		onChange(e, cfg, err)
	})
	viper.WatchConfig()
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "compound")
	}
	// Fall back to ~/.config/compound
	home, err := os.UserHomeDir()
	if err != nil {
		return ".compound"
	}
	return filepath.Join(home, ".config", "compound")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidOutOfRangePolicies returns the list of valid dispatch.out_of_range values
func ValidOutOfRangePolicies() []string {
	return []string{OutOfRangeSucceed, OutOfRangeFail}
}
