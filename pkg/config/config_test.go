package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Crawl.NetworkRetryDelay != 30*time.Second {
		t.Errorf("Expected default network retry delay to be 30s, got %v", config.Crawl.NetworkRetryDelay)
	}

	if config.Crawl.PageDelayMin != 3*time.Second || config.Crawl.PageDelayMax != 6*time.Second {
		t.Errorf("Expected default page delay 3s-6s, got %v-%v", config.Crawl.PageDelayMin, config.Crawl.PageDelayMax)
	}

	if config.Download.ImageAttempts != 3 {
		t.Errorf("Expected default image attempts to be 3, got %d", config.Download.ImageAttempts)
	}

	if config.Output.StoreFile != "weibo_data.csv" {
		t.Errorf("Expected default store file to be weibo_data.csv, got %s", config.Output.StoreFile)
	}

	if config.Store.Driver != "csv" {
		t.Errorf("Expected default store driver to be csv, got %s", config.Store.Driver)
	}
}

func TestResolvedContainerID(t *testing.T) {
	config := DefaultConfig()
	if got := config.ResolvedContainerID(); got != "" {
		t.Errorf("Expected empty container ID without uid, got %s", got)
	}

	config.Weibo.UID = "1234567890"
	if got := config.ResolvedContainerID(); got != "1076031234567890" {
		t.Errorf("Expected derived container ID, got %s", got)
	}

	config.Weibo.ContainerID = "custom"
	if got := config.ResolvedContainerID(); got != "custom" {
		t.Errorf("Expected explicit container ID to win, got %s", got)
	}
}

func TestPaths(t *testing.T) {
	config := DefaultConfig()
	config.Output.Directory = "/data"

	if got := config.StorePath(); got != filepath.Join("/data", "weibo_data.csv") {
		t.Errorf("Unexpected csv store path %s", got)
	}
	if got := config.MediaPath(); got != filepath.Join("/data", "images") {
		t.Errorf("Unexpected media path %s", got)
	}

	config.Store.Driver = "sqlite"
	if got := config.StorePath(); got != filepath.Join("/data", "weibo_data.db") {
		t.Errorf("Unexpected sqlite store path %s", got)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WEIBOCRAWL_UID", "42")
	t.Setenv("WEIBOCRAWL_COOKIE", "SUB=abc")
	t.Setenv("WEIBOCRAWL_OUTPUT_DIR", "/tmp/test-weibo")
	t.Setenv("WEIBOCRAWL_STORE_DRIVER", "SQLite")
	t.Setenv("WEIBOCRAWL_MAX_PAGES", "7")
	t.Setenv("WEIBOCRAWL_NETWORK_RETRY_DELAY", "5s")
	t.Setenv("WEIBOCRAWL_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Weibo.UID != "42" {
		t.Errorf("Expected uid to be 42, got %s", config.Weibo.UID)
	}
	if config.Weibo.Cookie != "SUB=abc" {
		t.Errorf("Expected cookie to be SUB=abc, got %s", config.Weibo.Cookie)
	}
	if config.Output.Directory != "/tmp/test-weibo" {
		t.Errorf("Expected output directory to be /tmp/test-weibo, got %s", config.Output.Directory)
	}
	if config.Store.Driver != "sqlite" {
		t.Errorf("Expected store driver to be sqlite, got %s", config.Store.Driver)
	}
	if config.Crawl.MaxPages != 7 {
		t.Errorf("Expected max pages to be 7, got %d", config.Crawl.MaxPages)
	}
	if config.Crawl.NetworkRetryDelay != 5*time.Second {
		t.Errorf("Expected network retry delay to be 5s, got %v", config.Crawl.NetworkRetryDelay)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	t.Setenv("WEIBOCRAWL_MAX_PAGES", "lots")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err == nil {
		t.Error("Expected error for non-numeric max pages")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.Weibo.UID = "42"
		return c
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "missing uid",
			mutate:    func(c *Config) { c.Weibo.UID = "" },
			wantError: "uid or container id",
		},
		{
			name:      "unknown store driver",
			mutate:    func(c *Config) { c.Store.Driver = "excel" },
			wantError: "unknown store driver",
		},
		{
			name: "inverted page delay",
			mutate: func(c *Config) {
				c.Crawl.PageDelayMin = 10 * time.Second
				c.Crawl.PageDelayMax = time.Second
			},
			wantError: "page delay range",
		},
		{
			name:      "zero image attempts",
			mutate:    func(c *Config) { c.Download.ImageAttempts = 0 },
			wantError: "image attempts",
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "loud" },
			wantError: "invalid log level",
		},
		{
			name:      "unsupported base url scheme",
			mutate:    func(c *Config) { c.Weibo.BaseURL = "ftp://m.weibo.cn" },
			wantError: "must be an absolute http or https url",
		},
		{
			name:      "relative base url",
			mutate:    func(c *Config) { c.Weibo.BaseURL = "m.weibo.cn" },
			wantError: "must be an absolute http or https url",
		},
		{
			name:   "plain http base url",
			mutate: func(c *Config) { c.Weibo.BaseURL = "http://127.0.0.1:8080" },
		},
		{
			name:      "console disabled without file",
			mutate:    func(c *Config) { c.Logging.DisableConsole = true },
			wantError: "log file is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantError == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantError)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()

	flags := map[string]interface{}{
		"uid":       "flag-uid",
		"cookie":    "SUB=flag",
		"output":    "/flag/output",
		"store":     "sqlite",
		"max-pages": 3,
		"log-level": "error",
	}

	config.MergeCommandLineFlags(flags)

	if config.Weibo.UID != "flag-uid" {
		t.Errorf("Expected uid to be flag-uid, got %s", config.Weibo.UID)
	}
	if config.Weibo.Cookie != "SUB=flag" {
		t.Errorf("Expected cookie to be SUB=flag, got %s", config.Weibo.Cookie)
	}
	if config.Output.Directory != "/flag/output" {
		t.Errorf("Expected output directory to be /flag/output, got %s", config.Output.Directory)
	}
	if config.Store.Driver != "sqlite" {
		t.Errorf("Expected store driver to be sqlite, got %s", config.Store.Driver)
	}
	if config.Crawl.MaxPages != 3 {
		t.Errorf("Expected max pages to be 3, got %d", config.Crawl.MaxPages)
	}
	if config.Logging.Level != "error" {
		t.Errorf("Expected log level to be error, got %s", config.Logging.Level)
	}
}

func TestTUIFlagRoutesLogsToFile(t *testing.T) {
	config := DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{
		"output": "/archive",
		"tui":    true,
	})

	if !config.Logging.DisableConsole {
		t.Error("Expected console logging to be disabled")
	}
	if config.Logging.File != filepath.Join("/archive", DefaultLogFile) {
		t.Errorf("Expected log file in the output directory, got %s", config.Logging.File)
	}
	if err := config.Validate(); err != nil {
		// uid is unset; only the logging rule matters here
		if strings.Contains(err.Error(), "log file is required") {
			t.Errorf("Expected defaulted log file to satisfy validation: %v", err)
		}
	}

	config = DefaultConfig()
	config.Logging.File = "/var/log/weibocrawl.log"
	config.MergeCommandLineFlags(map[string]interface{}{"tui": true})
	if config.Logging.File != "/var/log/weibocrawl.log" {
		t.Errorf("Expected configured log file to be kept, got %s", config.Logging.File)
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "weibocrawl.yaml")

	config := DefaultConfig()
	config.Weibo.UID = "save-test-uid"
	config.Crawl.PageDelayMax = 9 * time.Second

	if err := config.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Config file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected config permissions 0600, got %v", info.Mode().Perm())
	}

	loadedConfig := DefaultConfig()
	if err := loadedConfig.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loadedConfig.Weibo.UID != "save-test-uid" {
		t.Errorf("Expected loaded uid to be save-test-uid, got %s", loadedConfig.Weibo.UID)
	}
	if loadedConfig.Crawl.PageDelayMax != 9*time.Second {
		t.Errorf("Expected loaded page delay max to be 9s, got %v", loadedConfig.Crawl.PageDelayMax)
	}
}

func TestLoadPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "weibocrawl.yaml")
	content := `weibo:
  uid: "from-file"
output:
  directory: "/from/file"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("WEIBOCRAWL_OUTPUT_DIR", "/from/env")

	config, err := Load(configPath, map[string]interface{}{"uid": "from-flag"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Weibo.UID != "from-flag" {
		t.Errorf("Expected flag to override file, got %s", config.Weibo.UID)
	}
	if config.Output.Directory != "/from/env" {
		t.Errorf("Expected env to override file, got %s", config.Output.Directory)
	}
}
