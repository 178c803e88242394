package main

import (
	"fmt"
	"os"
	"runtime"

	"clipvault/pkg/config"
	"clipvault/pkg/logger"
	"clipvault/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "clipvault",
	Short: "Invite code prober and remix collection archiver",
	Long: `clipvault has two independent jobs:

  probe   draws random invite codes in batches, submits each one to the
          configured probe endpoint and stops at the first accepted code.
          Every rejected code is written to a ledger so an interrupted
          run resumes without repeating work.

  fetch   downloads a post, pages through its related (remix) items and
          saves a JSON snapshot plus the media file of every item.

No endpoint is built in: the probe URL and the item API base URL must be
set in the config file, the environment or on the command line.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.Configure(os.Stdout, noColor)

		if !quiet && cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.Configure(os.Stderr, noColor)
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.clipvault.yaml or ~/.config/clipvault/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only print warnings and errors")

	rootCmd.SetVersionTemplate(`clipvault {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("clipvault %s\n", rootCmd.Version)
		fmt.Printf("Go Version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

// loadConfig resolves configuration from every source and initializes the
// global logger from its logging section
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging, logger.Options{NoColor: noColor, Quiet: quiet}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.WithField("version", version).Debug("clipvault starting")
	return cfg, nil
}
