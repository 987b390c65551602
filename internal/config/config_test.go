package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"veil/internal/winapi"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.PollIntervalMs != 55 {
		t.Errorf("expected poll interval 55, got %d", cfg.PollIntervalMs)
	}
	if cfg.Keys.Modifier != "ctrl" {
		t.Errorf("expected modifier ctrl, got %s", cfg.Keys.Modifier)
	}
	if cfg.Keys.Toggle != "backtick" {
		t.Errorf("expected toggle backtick, got %s", cfg.Keys.Toggle)
	}
	if !strings.Contains(cfg.IPC.SocketPath, ".veil") {
		t.Errorf("socket path should live under .veil: %s", cfg.IPC.SocketPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected path ending with config.toml, got %s", path)
	}
	if !strings.Contains(path, ".veil") {
		t.Errorf("config path should contain .veil: %s", path)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.PollIntervalMs != 55 {
		t.Errorf("expected defaults, got interval %d", cfg.PollIntervalMs)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
poll_interval_ms = 100

[keys]
modifier = "alt"
toggle = "0xC0"

[logging]
level = "debug"
format = "json"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.PollIntervalMs != 100 {
		t.Errorf("expected interval 100, got %d", cfg.PollIntervalMs)
	}
	vks, err := cfg.ModifierVKs()
	if err != nil {
		t.Fatalf("ModifierVKs failed: %v", err)
	}
	if len(vks) != 3 || vks[0] != winapi.VKMenu {
		t.Errorf("expected alt keys, got %v", vks)
	}
	vk, err := cfg.ToggleVK()
	if err != nil || vk != 0xC0 {
		t.Errorf("expected toggle 0xC0, got %v (%v)", vk, err)
	}
	// Unset sections keep defaults.
	if cfg.IPC.SocketPath == "" {
		t.Error("socket path default lost")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.PollIntervalMs = 5 },
		func(c *Config) { c.PollIntervalMs = 5000 },
		func(c *Config) { c.Keys.Modifier = "hyper" },
		func(c *Config) { c.Keys.Toggle = "??" },
		func(c *Config) { c.IPC.SocketPath = "" },
		func(c *Config) { c.Logging.Output = "file"; c.Logging.FilePath = "" },
	}
	for i, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("poll_interval_ms = 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for out-of-range interval")
	}
}

func TestWatchReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("poll_interval_ms = 60\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	err := Watch(ctx, path, nil, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("poll_interval_ms = 120\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.PollIntervalMs != 120 {
			t.Errorf("expected reloaded interval 120, got %d", cfg.PollIntervalMs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config reload not observed")
	}
}
