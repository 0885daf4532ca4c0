package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete demopool configuration
type Config struct {
	Paths   PathsConfig   `mapstructure:"paths"`
	Expiry  ExpiryConfig  `mapstructure:"expiry"`
	Pool    PoolConfig    `mapstructure:"pool"`
	Hooks   HooksConfig   `mapstructure:"hooks"`
	Logging LoggingConfig `mapstructure:"logging"`
	Daemon  DaemonConfig  `mapstructure:"daemon"`
}

// PathsConfig locates the durable state and the filesystem trees
type PathsConfig struct {
	// DataDir holds the registry state file, the lock files, logs and
	// stats samples
	DataDir string `mapstructure:"data_dir"`
	// TemplateDir is the shared template tree instances are cloned from
	TemplateDir string `mapstructure:"template_dir"`
	// InstancesDir is the parent directory of all instance trees; each
	// instance lives at <instances_dir>/<name>
	InstancesDir string `mapstructure:"instances_dir"`
}

// RegistryFile returns the path of the durable registry state file.
func (p *PathsConfig) RegistryFile() string {
	return filepath.Join(p.DataDir, "registry.json")
}

// RegistryLockFile returns the path of the lock file serializing registry
// transactions.
func (p *PathsConfig) RegistryLockFile() string {
	return filepath.Join(p.DataDir, "registry.lock")
}

// TemplateLockFile returns the path of the lock file serializing template
// rebuilds against instance copies.
func (p *PathsConfig) TemplateLockFile() string {
	return filepath.Join(p.DataDir, "template.lock")
}

// StatsFile returns the path of the CSV stats sample file written by the
// daemon.
func (p *PathsConfig) StatsFile() string {
	return filepath.Join(p.DataDir, "stats.csv")
}

// ExpiryConfig controls when active instances are retired
type ExpiryConfig struct {
	// AbsoluteSeconds is the hard TTL measured from creation, independent
	// of usage
	AbsoluteSeconds int `mapstructure:"absolute_seconds"`
	// InactivitySeconds is the TTL measured from the most recent content
	// change inside the instance
	InactivitySeconds int `mapstructure:"inactivity_seconds"`
}

// Absolute returns the absolute expiry as a time.Duration
func (e *ExpiryConfig) Absolute() time.Duration {
	return time.Duration(e.AbsoluteSeconds) * time.Second
}

// Inactivity returns the inactivity expiry as a time.Duration
func (e *ExpiryConfig) Inactivity() time.Duration {
	return time.Duration(e.InactivitySeconds) * time.Second
}

// PoolConfig controls capacity and the prepared pool
type PoolConfig struct {
	// InstanceLimit is the ceiling on total registry rows (active + prepared)
	InstanceLimit int `mapstructure:"instance_limit"`
	// PerClientLimit is the average-instances-per-client cap used by the
	// health evaluator
	PerClientLimit int `mapstructure:"per_client_limit"`
	// ActivitySubpath is the directory inside each instance whose most
	// recent modification counts as instance activity
	ActivitySubpath string `mapstructure:"activity_subpath"`
}

// HooksConfig controls the template-supplied lifecycle hooks
type HooksConfig struct {
	// Dir is the hook script directory, relative to the template root
	Dir string `mapstructure:"dir"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// File is the log file path; empty logs to stderr
	File string `mapstructure:"file"`
}

// DaemonConfig controls the periodic jobs run by the daemon command.
// Schedules use standard 5-field cron syntax.
type DaemonConfig struct {
	// CleanupSchedule drives deletion of expired instances
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
	// PrepareSchedule drives prepared-pool top-up
	PrepareSchedule string `mapstructure:"prepare_schedule"`
	// StatsSchedule drives stats sampling into the CSV file
	StatsSchedule string `mapstructure:"stats_schedule"`
}

// Default returns a Config with all default values set
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:      "/var/lib/demopool",
			TemplateDir:  "/var/lib/demopool/template",
			InstancesDir: "/var/lib/demopool/instances",
		},
		Expiry: ExpiryConfig{
			AbsoluteSeconds:   10800, // 3 hours from creation
			InactivitySeconds: 3600,  // 1 hour without content changes
		},
		Pool: PoolConfig{
			InstanceLimit:   300,
			PerClientLimit:  5,
			ActivitySubpath: "data",
		},
		Hooks: HooksConfig{
			Dir: ".hooks",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "", // stderr
		},
		Daemon: DaemonConfig{
			CleanupSchedule: "* * * * *",
			PrepareSchedule: "* * * * *",
			StatsSchedule:   "*/5 * * * *",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Path defaults
	viper.SetDefault("paths.data_dir", defaults.Paths.DataDir)
	viper.SetDefault("paths.template_dir", defaults.Paths.TemplateDir)
	viper.SetDefault("paths.instances_dir", defaults.Paths.InstancesDir)

	// Expiry defaults
	viper.SetDefault("expiry.absolute_seconds", defaults.Expiry.AbsoluteSeconds)
	viper.SetDefault("expiry.inactivity_seconds", defaults.Expiry.InactivitySeconds)

	// Pool defaults
	viper.SetDefault("pool.instance_limit", defaults.Pool.InstanceLimit)
	viper.SetDefault("pool.per_client_limit", defaults.Pool.PerClientLimit)
	viper.SetDefault("pool.activity_subpath", defaults.Pool.ActivitySubpath)

	// Hook defaults
	viper.SetDefault("hooks.dir", defaults.Hooks.Dir)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)

	// Daemon defaults
	viper.SetDefault("daemon.cleanup_schedule", defaults.Daemon.CleanupSchedule)
	viper.SetDefault("daemon.prepare_schedule", defaults.Daemon.PrepareSchedule)
	viper.SetDefault("daemon.stats_schedule", defaults.Daemon.StatsSchedule)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "demopool")
	}
	// Fall back to ~/.config/demopool
	home, err := os.UserHomeDir()
	if err != nil {
		return ".demopool"
	}
	return filepath.Join(home, ".config", "demopool")
}
