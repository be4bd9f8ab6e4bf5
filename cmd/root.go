// Package cmd wires the boo-registry CLI.
package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/uiua-boo/registry/internal/config"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:     "boo-registry",
	Short:   "A package registry for Uiua modules",
	Long:    `boo-registry stores published package versions, serves reference resolution, and exposes the publishing pipeline over an HTTP JSON API.`,
	Version: version,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .boo-registry/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"enable debug logging")
	rootCmd.PersistentFlags().String("data-dir", "",
		"root directory for the database and blob store")

	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("data_dir", defaults.DataDir)
	viper.SetDefault("server.addr", defaults.Server.Addr)
	viper.SetDefault("server.read_timeout", defaults.Server.ReadTimeout)
	viper.SetDefault("publish.workers", defaults.Publish.Workers)
	viper.SetDefault("publish.queue_size", defaults.Publish.QueueSize)
	viper.SetDefault("publish.validator_timeout", defaults.Publish.ValidatorTimeout)
	viper.SetDefault("resolver.cache_ttl", defaults.Resolver.CacheTTL)
	viper.SetDefault("storage.retry", defaults.Storage.Retry)
	viper.SetDefault("storage.max_retries", defaults.Storage.MaxRetries)
	viper.SetDefault("storage.retry_interval", defaults.Storage.RetryInterval)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .boo-registry/config.yaml (current directory)
		// 2. ~/.config/boo-registry/config.yaml (user config)
		if _, err := os.Stat(".boo-registry/config.yaml"); err == nil {
			viper.SetConfigFile(".boo-registry/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "boo-registry"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .boo-registry/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".boo-registry/config.yaml"
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// configFilePath returns the config file in use, falling back to the
// default location when none was loaded.
func configFilePath() string {
	if path := viper.ConfigFileUsed(); path != "" {
		return path
	}
	return ".boo-registry/config.yaml"
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
