// Package config loads and persists the brewsync configuration file.
// Configuration lives in ~/.brewsync/config.toml alongside the local
// database; a missing file yields defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/brewlog/brewsync/internal/errors"
)

// Config is the on-disk configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Probe   ProbeConfig   `toml:"probe"`
	Storage StorageConfig `toml:"storage"`
}

// APIConfig points at the coffee backend.
type APIConfig struct {
	BaseURL string `toml:"base_url"`
	WSURL   string `toml:"ws_url"`
}

// ProbeConfig controls the connectivity monitor.
type ProbeConfig struct {
	// URL is the external resource fetched to verify raw network access.
	URL string `toml:"url"`
	// NetworkIntervalSec is the network probe period in seconds.
	NetworkIntervalSec int `toml:"network_interval_sec"`
	// ServerIntervalSec is the backend health-check period in seconds.
	ServerIntervalSec int `toml:"server_interval_sec"`
}

// StorageConfig locates the local database.
type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://127.0.0.1:8000/api",
			WSURL:   "ws://127.0.0.1:8000/ws/coffee/",
		},
		Probe: ProbeConfig{
			URL:                "https://www.google.com/favicon.ico",
			NetworkIntervalSec: 5,
			ServerIntervalSec:  30,
		},
	}
}

// Dir returns the brewsync config directory, creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrConfig, "cannot determine home directory", err)
	}
	dir := filepath.Join(home, ".brewsync")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.Wrap(errors.ErrConfig, "cannot create config directory", err)
	}
	return dir, nil
}

// Path returns the config file path inside Dir.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file at path. A missing file returns defaults.
// BREWSYNC_API_URL overrides the configured base URL when set.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrConfig, "cannot read config", err)
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrConfig, fmt.Sprintf("cannot parse %s", path), err)
	}

	if cfg.Storage.DataDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		cfg.Storage.DataDir = dir
	}
	if url := os.Getenv("BREWSYNC_API_URL"); url != "" {
		cfg.API.BaseURL = url
	}
	return cfg, nil
}

// Save writes the config file with owner-only permissions.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.ErrConfig, "cannot encode config", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrConfig, "cannot write config", err)
	}
	return nil
}

// NetworkInterval returns the network probe period.
func (c *Config) NetworkInterval() time.Duration {
	if c.Probe.NetworkIntervalSec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Probe.NetworkIntervalSec) * time.Second
}

// ServerInterval returns the backend health-check period.
func (c *Config) ServerInterval() time.Duration {
	if c.Probe.ServerIntervalSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Probe.ServerIntervalSec) * time.Second
}
