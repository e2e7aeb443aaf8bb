package config

import (
	"errors"
	"fmt"
	"os"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ContainerPrefix is prepended to a UID to build the profile feed container ID
const ContainerPrefix = "107603"

// DefaultLogFile is written inside the output directory when the dashboard
// takes over the terminal and no log file is configured
const DefaultLogFile = "weibocrawl.log"

// Config holds all configuration options for the crawler
type Config struct {
	// Remote feed parameters and session headers
	Weibo WeiboConfig `yaml:"weibo" json:"weibo"`

	// Where rows and media are written
	Output OutputConfig `yaml:"output" json:"output"`

	// Ledger backend
	Store StoreConfig `yaml:"store" json:"store"`

	// Pagination and pacing
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Media acquisition
	Download DownloadConfig `yaml:"download" json:"download"`

	// Watch mode
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// WeiboConfig holds the feed endpoint parameters and request headers
type WeiboConfig struct {
	UID         string `yaml:"uid" json:"uid"`
	ContainerID string `yaml:"container_id" json:"container_id"`
	Cookie      string `yaml:"cookie" json:"cookie"`
	UserAgent   string `yaml:"user_agent" json:"user_agent"`
	Referer     string `yaml:"referer" json:"referer"`
	BaseURL     string `yaml:"base_url" json:"base_url"`
	LFID        string `yaml:"lfid" json:"lfid"`
	LUICode     string `yaml:"luicode" json:"luicode"`
	LaunchID    string `yaml:"launch_id" json:"launch_id"`
}

// OutputConfig holds output locations
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
	StoreFile string `yaml:"store_file" json:"store_file"`
	MediaDir  string `yaml:"media_dir" json:"media_dir"`
}

// StoreConfig selects the ledger backend
type StoreConfig struct {
	Driver     string `yaml:"driver" json:"driver"`
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
}

// CrawlConfig holds pagination and pacing settings
type CrawlConfig struct {
	FetchTimeout      time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
	NetworkRetryDelay time.Duration `yaml:"network_retry_delay" json:"network_retry_delay"`
	PageDelayMin      time.Duration `yaml:"page_delay_min" json:"page_delay_min"`
	PageDelayMax      time.Duration `yaml:"page_delay_max" json:"page_delay_max"`
	MaxPages          int           `yaml:"max_pages" json:"max_pages"`
}

// DownloadConfig holds media acquisition settings
type DownloadConfig struct {
	ImageTimeout    time.Duration `yaml:"image_timeout" json:"image_timeout"`
	VideoTimeout    time.Duration `yaml:"video_timeout" json:"video_timeout"`
	ImageAttempts   int           `yaml:"image_attempts" json:"image_attempts"`
	ImageRetryDelay time.Duration `yaml:"image_retry_delay" json:"image_retry_delay"`
	ChunkSize       int           `yaml:"chunk_size" json:"chunk_size"`
	SkipImages      bool          `yaml:"skip_images" json:"skip_images"`
	SkipVideos      bool          `yaml:"skip_videos" json:"skip_videos"`
}

// ScheduleConfig holds watch mode settings
type ScheduleConfig struct {
	Cron     string `yaml:"cron" json:"cron"`
	Timezone string `yaml:"timezone" json:"timezone"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	// DisableConsole sends logs to File only
	DisableConsole bool `yaml:"disable_console" json:"disable_console"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Weibo: WeiboConfig{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36",
			Referer:   "https://m.weibo.cn/",
			BaseURL:   "https://m.weibo.cn",
			LFID:      "231583",
			LUICode:   "10000011",
			LaunchID:  "10000360-page_H5",
		},
		Output: OutputConfig{
			Directory: ".",
			StoreFile: "weibo_data.csv",
			MediaDir:  "images",
		},
		Store: StoreConfig{
			Driver:     "csv",
			SQLitePath: "weibo_data.db",
		},
		Crawl: CrawlConfig{
			FetchTimeout:      15 * time.Second,
			NetworkRetryDelay: 30 * time.Second,
			PageDelayMin:      3 * time.Second,
			PageDelayMax:      6 * time.Second,
			MaxPages:          0, // 0 means until the feed is exhausted
		},
		Download: DownloadConfig{
			ImageTimeout:    15 * time.Second,
			VideoTimeout:    60 * time.Second,
			ImageAttempts:   3,
			ImageRetryDelay: time.Second,
			ChunkSize:       32 * 1024,
		},
		Schedule: ScheduleConfig{
			Cron:     "@every 6h",
			Timezone: "Local",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ResolvedContainerID returns the configured container ID or derives it from the UID
func (c *Config) ResolvedContainerID() string {
	if c.Weibo.ContainerID != "" {
		return c.Weibo.ContainerID
	}
	if c.Weibo.UID == "" {
		return ""
	}
	return ContainerPrefix + c.Weibo.UID
}

// StorePath returns the full path of the tabular store
func (c *Config) StorePath() string {
	if c.Store.Driver == "sqlite" {
		return filepath.Join(c.Output.Directory, c.Store.SQLitePath)
	}
	return filepath.Join(c.Output.Directory, c.Output.StoreFile)
}

// MediaPath returns the full path of the flat media directory
func (c *Config) MediaPath() string {
	return filepath.Join(c.Output.Directory, c.Output.MediaDir)
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if uid := os.Getenv("WEIBOCRAWL_UID"); uid != "" {
		c.Weibo.UID = uid
	}
	if containerID := os.Getenv("WEIBOCRAWL_CONTAINER_ID"); containerID != "" {
		c.Weibo.ContainerID = containerID
	}
	if cookie := os.Getenv("WEIBOCRAWL_COOKIE"); cookie != "" {
		c.Weibo.Cookie = cookie
	}
	if userAgent := os.Getenv("WEIBOCRAWL_USER_AGENT"); userAgent != "" {
		c.Weibo.UserAgent = userAgent
	}
	if outputDir := os.Getenv("WEIBOCRAWL_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}
	if driver := os.Getenv("WEIBOCRAWL_STORE_DRIVER"); driver != "" {
		c.Store.Driver = strings.ToLower(driver)
	}

	if maxPages := os.Getenv("WEIBOCRAWL_MAX_PAGES"); maxPages != "" {
		val, err := strconv.Atoi(maxPages)
		if err != nil {
			return fmt.Errorf("invalid WEIBOCRAWL_MAX_PAGES %q: %w", maxPages, err)
		}
		c.Crawl.MaxPages = val
	}

	if retryDelay := os.Getenv("WEIBOCRAWL_NETWORK_RETRY_DELAY"); retryDelay != "" {
		d, err := time.ParseDuration(retryDelay)
		if err != nil {
			return fmt.Errorf("invalid WEIBOCRAWL_NETWORK_RETRY_DELAY %q: %w", retryDelay, err)
		}
		c.Crawl.NetworkRetryDelay = d
	}

	if schedule := os.Getenv("WEIBOCRAWL_SCHEDULE"); schedule != "" {
		c.Schedule.Cron = schedule
	}

	if logLevel := os.Getenv("WEIBOCRAWL_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("WEIBOCRAWL_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"weibocrawl.yaml",
		".weibocrawl.yaml",
		".weibocrawl.yml",
		filepath.Join(home, ".config", "weibocrawl", "config.yaml"),
		filepath.Join(home, ".config", "weibocrawl", "config.yml"),
		filepath.Join(home, ".weibocrawl.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.ResolvedContainerID() == "" {
		errs = append(errs, errors.New("weibo uid or container id is required"))
	}
	if c.Weibo.BaseURL == "" {
		errs = append(errs, errors.New("weibo base url is required"))
	} else if u, err := url.Parse(c.Weibo.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("weibo base url %q must be an absolute http or https url", c.Weibo.BaseURL))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.MediaDir == "" {
		errs = append(errs, errors.New("media directory is required"))
	}

	switch c.Store.Driver {
	case "csv":
		if c.Output.StoreFile == "" {
			errs = append(errs, errors.New("store file is required for the csv driver"))
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	if c.Crawl.FetchTimeout <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}
	if c.Crawl.NetworkRetryDelay < 0 {
		errs = append(errs, errors.New("network retry delay cannot be negative"))
	}
	if c.Crawl.PageDelayMin < 0 || c.Crawl.PageDelayMax < c.Crawl.PageDelayMin {
		errs = append(errs, errors.New("page delay range is invalid"))
	}
	if c.Crawl.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}

	if c.Download.ImageAttempts <= 0 {
		errs = append(errs, errors.New("image attempts must be positive"))
	}
	if c.Download.ImageTimeout <= 0 || c.Download.VideoTimeout <= 0 {
		errs = append(errs, errors.New("download timeouts must be positive"))
	}
	if c.Download.ChunkSize <= 0 {
		errs = append(errs, errors.New("chunk size must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	if c.Logging.DisableConsole && c.Logging.File == "" {
		errs = append(errs, errors.New("a log file is required when console logging is disabled"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if uid, ok := flags["uid"].(string); ok && uid != "" {
		c.Weibo.UID = uid
	}
	if cookie, ok := flags["cookie"].(string); ok && cookie != "" {
		c.Weibo.Cookie = cookie
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if driver, ok := flags["store"].(string); ok && driver != "" {
		c.Store.Driver = strings.ToLower(driver)
	}
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages > 0 {
		c.Crawl.MaxPages = maxPages
	}
	if schedule, ok := flags["schedule"].(string); ok && schedule != "" {
		c.Schedule.Cron = schedule
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	// the dashboard owns the terminal, so logs go to a file
	if tui, ok := flags["tui"].(bool); ok && tui {
		c.Logging.DisableConsole = true
		if c.Logging.File == "" {
			c.Logging.File = filepath.Join(c.Output.Directory, DefaultLogFile)
		}
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".weibocrawl.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
