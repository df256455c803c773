package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/compound/internal/config"
	"github.com/Iron-Ham/compound/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "compound",
	Short: "Compound worker fleet orchestrator",
	Long: `Compound provisions multi-node workers from a pool of machines.

A compound worker is one schedulable node made of a root machine plus
satellite machines grouped into named roles. Jobs on the worker can run
steps on every member of a role, or on one member by ordinal.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/compound/config.yaml)")
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
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("COMPOUND")
	// e.g. COMPOUND_FLEET_MAX_INSTANCES for fleet.max_instances
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// loadConfig returns the validated configuration, naming the file it came from.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		if used := viper.ConfigFileUsed(); used != "" {
			return nil, fmt.Errorf("%s: %w", used, err)
		}
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the logger described by cfg.Logging.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.NewLoggerWithRotation(cfg.Logging.Dir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
}
