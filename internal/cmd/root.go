package cmd

import (
	"path/filepath"
	"strings"

	"github.com/instant-demo/demopool/internal/config"
	"github.com/instant-demo/demopool/internal/health"
	"github.com/instant-demo/demopool/internal/hooks"
	"github.com/instant-demo/demopool/internal/lockfile"
	"github.com/instant-demo/demopool/internal/logging"
	"github.com/instant-demo/demopool/internal/pool"
	"github.com/instant-demo/demopool/internal/registry"
	"github.com/instant-demo/demopool/internal/template"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "demopool",
	Short: "Instance pool manager for per-visitor demo environments",
	Long: `Demopool maintains a pool of filesystem instances cloned from a shared
template: visitors are served pre-warmed copies, idle or aged instances
are retired, and template rebuilds invalidate the prepared pool.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/demopool/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("/etc/demopool")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("DEMOPOOL")
	// Replace dots with underscores for nested keys in env vars
	// e.g., DEMOPOOL_POOL_INSTANCE_LIMIT for pool.instance_limit
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// app bundles the wired collaborators every command operates on.
type app struct {
	cfg  *config.Config
	log  *logging.Logger
	dirs template.Dirs
	mgr  *pool.Manager
	eval *health.Evaluator
	run  hooks.Runner
}

// newApp loads the configuration and constructs the collaborators once per
// process, passed explicitly from here on.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	dirs := template.Dirs{
		TemplateRoot:    cfg.Paths.TemplateDir,
		InstancesRoot:   cfg.Paths.InstancesDir,
		ActivitySubpath: cfg.Pool.ActivitySubpath,
	}

	hooksDir := cfg.Hooks.Dir
	if !filepath.IsAbs(hooksDir) {
		hooksDir = filepath.Join(cfg.Paths.TemplateDir, hooksDir)
	}
	runner := hooks.NewExecRunner(hooksDir, log)

	reg := registry.New(cfg.Paths.RegistryFile(), cfg.Paths.RegistryLockFile(), log)
	lock := lockfile.New(cfg.Paths.TemplateLockFile())

	mgr := pool.NewManager(reg, lock, dirs, runner, pool.Config{
		InstanceLimit:    cfg.Pool.InstanceLimit,
		ExpiryAbsolute:   cfg.Expiry.Absolute(),
		ExpiryInactivity: cfg.Expiry.Inactivity(),
	}, log)

	eval := health.New(mgr, runner, health.Config{
		InstanceLimit:  cfg.Pool.InstanceLimit,
		PerClientLimit: cfg.Pool.PerClientLimit,
		ExpiryAbsolute: cfg.Expiry.Absolute(),
	}, cfg.Paths.TemplateDir, log)

	return &app{
		cfg:  cfg,
		log:  log,
		dirs: dirs,
		mgr:  mgr,
		eval: eval,
		run:  runner,
	}, nil
}

func (a *app) close() {
	_ = a.log.Close()
}
