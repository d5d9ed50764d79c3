package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tether/internal/platform/config"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	loader, err := config.NewLoader(home)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != filepath.Join(home, "tether.db") {
		t.Fatalf("unexpected db path: %s", cfg.DBPath)
	}
	if cfg.Sync.MaxRetries != 3 {
		t.Fatalf("expected 3 retries, got %d", cfg.Sync.MaxRetries)
	}
	if cfg.Cooldown.Window != time.Hour || cfg.Cooldown.Threshold != 3 {
		t.Fatalf("unexpected cooldown defaults: %+v", cfg.Cooldown)
	}
	if cfg.Server.Backend != "badger" {
		t.Fatalf("unexpected backend: %s", cfg.Server.Backend)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	content := "owner: alice\nsync:\n  interval: 45s\n  max_retries: 5\ncooldown:\n  base: 10m\n  threshold: 2\n"
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	loader, err := config.NewLoader(home)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Owner != "alice" {
		t.Fatalf("owner = %q", cfg.Owner)
	}
	if cfg.Sync.Interval != 45*time.Second || cfg.Sync.MaxRetries != 5 {
		t.Fatalf("unexpected sync config: %+v", cfg.Sync)
	}
	if cfg.Cooldown.Base != 10*time.Minute || cfg.Cooldown.Threshold != 2 {
		t.Fatalf("unexpected cooldown config: %+v", cfg.Cooldown)
	}
	if cfg.Cooldown.Max != 2*time.Hour {
		t.Fatalf("unset keys must keep defaults, got %v", cfg.Cooldown.Max)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("TETHER_REMOTE_ADDR", "10.0.0.5:9000")
	t.Setenv("TETHER_OWNER", "bob")
	loader, err := config.NewLoader(home)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Remote.Addr != "10.0.0.5:9000" || cfg.Owner != "bob" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte("server:\n  backend: mongo\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	loader, err := config.NewLoader(home)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	if _, err := loader.Load(); err == nil {
		t.Fatalf("expected backend validation error")
	}
}

func TestWatchReportsMissingFile(t *testing.T) {
	t.Parallel()
	loader, err := config.NewLoader(t.TempDir())
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	if loader.Watch(func(config.Config, error) {}) {
		t.Fatalf("watch must be disabled without a config file")
	}
}
