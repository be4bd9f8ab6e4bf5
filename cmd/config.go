package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uiua-boo/registry/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the registry configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	Long: `Write the default configuration with explanatory comments to the
config path in use (or the path given with --config). Refuses to overwrite
an existing file unless --force is set.`,
	RunE: runConfigInit,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a single config value",
	Long: `Update one configuration key in place, preserving comments in the
rest of the file. Keys use dot notation.

Example:
  boo-registry config set server.addr :9000
  boo-registry config set publish.workers 4`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path := configFilePath()
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}
	if err := config.WriteDefaultConfig(path); err != nil {
		return err
	}
	fmt.Printf("Wrote default config to %s\n", path)
	return nil
}

func runConfigSet(_ *cobra.Command, args []string) error {
	path := configFilePath()
	if err := config.SetValue(path, args[0], args[1]); err != nil {
		return fmt.Errorf("updating config: %w", err)
	}
	fmt.Printf("Set %s = %s in %s\n", args[0], args[1], path)
	return nil
}
