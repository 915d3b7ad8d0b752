// Package common provides shared configuration, logging and id utilities.
package common

import (
	"os"
	"path/filepath"
)

// DefaultStorePath returns the well-known per-user database path.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "lwfm.db"
	}
	return filepath.Join(home, ".lwfm", "lwfm.db")
}

// DefaultLockFilePath returns the advisory lock file guarding single-instance startup.
func DefaultLockFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "lwfm.lock")
	}
	return filepath.Join(home, ".lwfm", "lwfm.lock")
}

// DefaultConfig returns the compiled-in configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Lwfm: ServiceConfig{
			Host: "127.0.0.1",
			Port: 3000,
		},
		Store: StoreConfig{
			Path:          DefaultStorePath(),
			WALMode:       true,
			BusyTimeoutMS: 5000,
			CacheSizeMB:   10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Events: EventsConfig{
			MinIntervalSecs:  5,
			MaxIntervalSecs:  300,
			StepSecs:         10,
			WakeThrottleSecs: 30,
		},
		Maintenance: MaintenanceConfig{
			Schedule:     "0 3 * * *",
			LogRetention: "720h",
		},
		Sites: map[string]SiteConfig{
			"local": {Class: "local"},
		},
	}
}
