package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"weibocrawl/pkg/config"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
)

// rootCmd crawls when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "weibocrawl [uid]",
	Short: "Incrementally harvest a Weibo profile feed into a ledger and media folder",
	Long: `weibocrawl walks a profile's m.weibo.cn feed from newest to oldest and
records every post it has not seen before.

Each post becomes one row in the ledger (a UTF-8 CSV by default, or SQLite)
and its images and video are saved to a flat media folder named by date.
Runs are idempotent: posts already in the ledger are skipped and media
already on disk is not downloaded again, so a crawl can be repeated or
resumed at any time.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:    cobra.MaximumNArgs(1),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet || strings.EqualFold(logLevel, "error") {
			ui.SetQuietMode(true)
		}
		if cmd == rootCmd || cmd == crawlCmd || cmd == watchCmd {
			ui.PrintLogo()
		}
	},
	RunE:          runCrawl,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: ./weibocrawl.yaml or ~/.config/weibocrawl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`weibocrawl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig resolves configuration from every source and initializes the
// global logger from it.
func loadConfig(flags map[string]interface{}) (*config.Config, logger.Logger, error) {
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Debug("weibocrawl starting")
	return cfg, log, nil
}

// loadConfigUnvalidated reads file and environment only, for the config
// commands that must work before a profile is chosen.
func loadConfigUnvalidated() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}
