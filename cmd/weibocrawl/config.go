package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"weibocrawl/pkg/auth"
	"weibocrawl/pkg/scheduler"
	"weibocrawl/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage weibocrawl configuration",
	Long: `Create, inspect and check configuration files.

Values are resolved in this order, later sources winning:
  built-in defaults, config file, .env file, environment variables, flags`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write an example configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the effective configuration for errors",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# weibocrawl configuration
# Environment variables (WEIBOCRAWL_*) and command line flags override these values.

weibo:
  # Profile to crawl. The feed container id defaults to 107603<uid>.
  uid: ""
  # container_id: ""
  # Session cookie. Prefer 'weibocrawl auth set' over storing it here.
  cookie: ""
  # user_agent: ""

output:
  directory: .
  store_file: weibo_data.csv
  media_dir: images

store:
  # csv or sqlite
  driver: csv
  sqlite_path: weibo_data.db

crawl:
  fetch_timeout: 15s
  network_retry_delay: 30s
  page_delay_min: 3s
  page_delay_max: 6s
  # 0 crawls until the feed is exhausted
  max_pages: 0

download:
  image_timeout: 15s
  video_timeout: 60s
  image_attempts: 3
  image_retry_delay: 1s
  skip_images: false
  skip_videos: false

schedule:
  # Used by 'weibocrawl watch'
  cron: "@every 6h"
  timezone: Local

logging:
  # debug, info, warn or error
  level: info
  # file: weibocrawl.log
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "weibocrawl.yaml"
	if len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Wrote %s", path))
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigUnvalidated()
	if err != nil {
		return err
	}
	if cfg.Weibo.Cookie != "" {
		cfg.Weibo.Cookie = auth.Mask(cfg.Weibo.Cookie)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigUnvalidated()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration is invalid:\n%w", err)
	}
	if err := scheduler.Validate(cfg.Schedule.Cron); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("Container", cfg.ResolvedContainerID())
	ui.PrintInfo("Ledger", cfg.StorePath())
	ui.PrintInfo("Media", cfg.MediaPath())
	return nil
}
