package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	def := Default()
	if cfg.API.BaseURL != def.API.BaseURL {
		t.Errorf("base url = %s, want default %s", cfg.API.BaseURL, def.API.BaseURL)
	}
	if cfg.Probe.URL != def.Probe.URL {
		t.Errorf("probe url = %s", cfg.Probe.URL)
	}
	if cfg.Storage.DataDir == "" {
		t.Error("data dir must be defaulted")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.API.BaseURL = "https://brew.example/api"
	cfg.Probe.NetworkIntervalSec = 2
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.API.BaseURL != "https://brew.example/api" {
		t.Errorf("base url = %s", loaded.API.BaseURL)
	}
	if loaded.NetworkInterval() != 2*time.Second {
		t.Errorf("network interval = %s", loaded.NetworkInterval())
	}
}

func TestEnvOverridesBaseURL(t *testing.T) {
	t.Setenv("BREWSYNC_API_URL", "http://override:9000/api")
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.BaseURL != "http://override:9000/api" {
		t.Errorf("base url = %s, want env override", cfg.API.BaseURL)
	}
}

func TestIntervalFallbacks(t *testing.T) {
	cfg := &Config{}
	if cfg.NetworkInterval() != 5*time.Second {
		t.Errorf("network fallback = %s", cfg.NetworkInterval())
	}
	if cfg.ServerInterval() != 30*time.Second {
		t.Errorf("server fallback = %s", cfg.ServerInterval())
	}
}
