// Package config handles broker configuration loading and defaults.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/wpkg-gp/wpkgbroker/internal/logging"
)

// Config holds all wpkgbrokerd configuration.
type Config struct {
	// Deployer invocation
	WpkgCommand          string            `json:"wpkg_command"`
	WpkgNetworkUsername  string            `json:"wpkg_network_username"`
	WpkgNetworkPassword  string            `json:"wpkg_network_password"`
	EnvironmentVariables map[string]string `json:"environment_variables"`
	// WpkgVerbosity selects the log level (3=debug, 2=info, 1=error,
	// anything else=critical-only), matching WpkgServer.py's mapping.
	WpkgVerbosity int `json:"wpkg_verbosity"`

	// Authorization
	WpkgExecuteByNonAdmins bool `json:"wpkg_execute_by_non_admins"`
	WpkgExecuteByLocalUsers bool `json:"wpkg_execute_by_local_users"`

	// Activity indicator in status frames
	WpkgActivityIndicator bool `json:"wpkg_activity_indicator"`

	// Share connector
	TestConnectionHost             string `json:"test_connection_host"`
	TestConnectionPort             int    `json:"test_connection_port"`
	TestConnectionTries            int    `json:"test_connection_tries"`
	TestConnectionSleepBeforeRetry int    `json:"test_connection_sleep_before_retry_seconds"`
	ConnectionTries                int    `json:"connection_tries"`
	ConnectionSleepBeforeRetry     int    `json:"connection_sleep_before_retry_seconds"`

	// Boot-time gating
	DisableAtBootUp bool `json:"disable_at_boot_up"`

	// Host layout
	DataDir string `json:"data_dir"`

	// Self-update. UpdateVersion/UpdateSHA256 name the build an operator
	// wants rolled out; the broker checks its own audit trail rather
	// than a remote heartbeat to decide when to pull it (see
	// UpdateFailureThreshold).
	UpdateURL                  string `json:"update_url"`
	UpdateVersion              string `json:"update_version"`
	UpdateSHA256               string `json:"update_sha256"`
	UpdateCheckIntervalMinutes int    `json:"update_check_interval_minutes"`
	UpdateFailureThreshold     int    `json:"update_failure_threshold"`

	// Embedded defaults (not persisted)
	DefaultAppliance string `json:"-"`
}

// Load loads configuration from configFile, or from config.json in the
// data directory when configFile is empty or unreadable, over the
// built-in defaults.
func Load(configFile string) (*Config, error) {
	dataDir := os.Getenv("PROGRAMDATA")
	if dataDir == "" {
		dataDir = "C:\\ProgramData"
	}

	cfg := &Config{
		DataDir:                        filepath.Join(dataDir, "wpkg-gp"),
		WpkgCommand:                    `cscript //nologo wpkg.js`,
		TestConnectionPort:             445,
		TestConnectionTries:            3,
		TestConnectionSleepBeforeRetry: 2,
		ConnectionTries:                3,
		ConnectionSleepBeforeRetry:     2,
		EnvironmentVariables:           map[string]string{},
		UpdateCheckIntervalMinutes:     60,
		UpdateFailureThreshold:         3,
	}

	loaded := false
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err == nil {
			loaded = true
			if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
				logging.Errorf("[config] WARNING: failed to parse %s: %v", configFile, jsonErr)
			}
		}
	}

	if !loaded {
		defaultConfig := filepath.Join(cfg.DataDir, "config.json")
		if data, err := os.ReadFile(defaultConfig); err == nil {
			if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
				logging.Errorf("[config] WARNING: failed to parse %s: %v", defaultConfig, jsonErr)
			}
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves current configuration to file.
func (c *Config) Save() error {
	configPath := filepath.Join(c.DataDir, "config.json")
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0644)
}

// AuditPath returns the path to the run-history database.
func (c *Config) AuditPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// LogPath returns the path to the log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "wpkgbrokerd.log")
}

// RebootMarkerPath returns the path to the persisted reboot-retry counter.
func (c *Config) RebootMarkerPath() string {
	return filepath.Join(c.DataDir, "reboot-state.json")
}

// BlacklistPath returns the path to the host blacklist file, colocated
// with the deployer script's directory derived from WpkgCommand.
func (c *Config) BlacklistPath(scriptDir string) string {
	return filepath.Join(scriptDir, "blacklist.txt")
}
