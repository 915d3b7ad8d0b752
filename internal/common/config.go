package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the full service configuration.
type Config struct {
	Lwfm        ServiceConfig         `toml:"lwfm"`
	Store       StoreConfig           `toml:"store"`
	Logging     LoggingConfig         `toml:"logging"`
	Events      EventsConfig          `toml:"events"`
	Maintenance MaintenanceConfig     `toml:"maintenance"`
	Sites       map[string]SiteConfig `toml:"sites"`
}

// ServiceConfig carries the service host/port and client-side target.
type ServiceConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	Path          string `toml:"path"`           // database file path
	WALMode       bool   `toml:"wal_mode"`       // enable WAL journal mode
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
	CacheSizeMB   int    `toml:"cache_size_mb"`
}

// LoggingConfig controls the arbor logger.
type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// EventsConfig tunes the event processor cadence.
type EventsConfig struct {
	MinIntervalSecs  int `toml:"min_interval_secs"`  // floor for the scan timer (default 5)
	MaxIntervalSecs  int `toml:"max_interval_secs"`  // ceiling for the scan timer (default 300)
	StepSecs         int `toml:"step_secs"`          // backoff increment per idle cycle (default 10)
	WakeThrottleSecs int `toml:"wake_throttle_secs"` // minimum gap between wake-forced scans (default 30)
}

// MaintenanceConfig configures the periodic store maintenance sweep.
type MaintenanceConfig struct {
	Schedule     string `toml:"schedule"`      // cron expression, default daily
	LogRetention string `toml:"log_retention"` // duration string, e.g. "720h"
}

// SiteConfig describes one compute site.
type SiteConfig struct {
	Class      string            `toml:"class"`      // driver class reference, e.g. "local"
	Auth       string            `toml:"auth"`       // optional pillar class overrides
	Run        string            `toml:"run"`
	Repo       string            `toml:"repo"`
	Spin       string            `toml:"spin"`
	Venv       string            `toml:"venv"`       // isolation interpreter path; presence triggers subprocess invocation
	Remote     bool              `toml:"remote"`     // remote sites get an automatic polling event on submit
	Properties map[string]string `toml:"properties"` // free-form site properties
}

// UserConfigPath returns the well-known per-user config file path.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".lwfm", "lwfm.toml")
}

// LoadFromFiles loads configuration in layers: compiled defaults, then the
// per-user file if present, then each explicit path in order (later files
// override earlier ones), then environment overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	layered := make([]string, 0, len(paths)+1)
	if userPath := UserConfigPath(); userPath != "" {
		if _, err := os.Stat(userPath); err == nil {
			layered = append(layered, userPath)
		}
	}
	layered = append(layered, paths...)

	for _, path := range layered {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if config.Sites == nil {
		config.Sites = make(map[string]SiteConfig)
	}
	// The local site is always available even with an empty config.
	if _, ok := config.Sites["local"]; !ok {
		config.Sites["local"] = SiteConfig{Class: "local"}
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if host := os.Getenv("LWFM_HOST"); host != "" {
		config.Lwfm.Host = host
	}
	if port := os.Getenv("LWFM_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			config.Lwfm.Port = p
		}
	}
	if path := os.Getenv("LWFM_STORE_PATH"); path != "" {
		config.Store.Path = path
	}
	if level := os.Getenv("LWFM_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority).
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Lwfm.Port = port
	}
	if host != "" {
		config.Lwfm.Host = host
	}
}

// ServiceURL returns the base URL clients should target. The
// LWFM_SERVICE_URL environment variable overrides the configured host/port.
func (c *Config) ServiceURL() string {
	if url := os.Getenv(EnvServiceURL); url != "" {
		return url
	}
	return fmt.Sprintf("http://%s:%d", c.Lwfm.Host, c.Lwfm.Port)
}
