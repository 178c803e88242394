package main

import (
	"errors"
	"fmt"
	"os"

	"clipvault/pkg/config"
	"clipvault/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = ".clipvault.yaml"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage clipvault configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (CLIPVAULT_*)
  - .env and ~/.clipvault.env
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Long: `Write the default configuration to ./.clipvault.yaml, or to the path
given with --config. An existing file is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with credentials masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = defaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s (remove it first)", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set api.base_url and probe.url for the service you are using")
	fmt.Println("2. Store a token with 'clipvault auth login' or set CLIPVAULT_AUTH_TOKEN")
	fmt.Println("3. Run 'clipvault config validate'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg.Masked())
	if err != nil {
		return fmt.Errorf("format configuration: %w", err)
	}

	ui.PrintHighlight("Current configuration")
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	ui.PrintSuccess("Configuration is valid")
	if cfg.API.BaseURL == "" {
		ui.PrintWarning("api.base_url is empty; fetch needs --base-url")
	}
	if cfg.Probe.URL == "" {
		ui.PrintWarning("probe.url is empty; probe needs --probe-url")
	}
	if cfg.API.AuthToken == "" {
		ui.PrintWarning("no token in config or environment; stored credentials or --auth are needed")
	}
	return nil
}
