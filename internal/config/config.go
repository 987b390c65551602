// Package config handles configuration loading, validation, and reloading
// for veild.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"veil/internal/winapi"
)

// Config holds the complete daemon configuration.
type Config struct {
	// PollIntervalMs is the arbiter's key-poll cadence in milliseconds.
	PollIntervalMs int `toml:"poll_interval_ms" json:"poll_interval_ms" yaml:"poll_interval_ms"`

	// Keys configures the passthrough key bindings.
	Keys KeysConfig `toml:"keys" json:"keys" yaml:"keys"`

	// IPC configures the control socket.
	IPC IPCConfig `toml:"ipc" json:"ipc" yaml:"ipc"`

	// Logging configures log output.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// KeysConfig holds the key bindings.
type KeysConfig struct {
	// Modifier is the held key enabling transient passthrough:
	// "ctrl", "alt" or "shift".
	Modifier string `toml:"modifier" json:"modifier" yaml:"modifier"`

	// Toggle flips locked passthrough on the selected window:
	// "backtick", a single letter/digit, or a hex VK code like "0xC0".
	Toggle string `toml:"toggle" json:"toggle" yaml:"toggle"`
}

// IPCConfig holds the control-socket configuration.
type IPCConfig struct {
	// SocketPath is the unix socket veilctl connects to.
	SocketPath string `toml:"socket_path" json:"socket_path" yaml:"socket_path"`
}

// LoggingConfig holds log output configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn or error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr" or "file".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output is "file".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		PollIntervalMs: 55,
		Keys: KeysConfig{
			Modifier: "ctrl",
			Toggle:   "backtick",
		},
		IPC: IPCConfig{
			SocketPath: filepath.Join(VeilDir(), "veild.sock"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// VeilDir returns the veil state directory (~/.veil).
func VeilDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".veil")
}

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(VeilDir(), "config.toml")
}

// Load reads the config at path, or the default path when empty. A missing
// file yields the defaults without error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and key-binding parseability.
func (c *Config) Validate() error {
	if c.PollIntervalMs < 20 || c.PollIntervalMs > 1000 {
		return fmt.Errorf("poll_interval_ms must be between 20 and 1000, got %d", c.PollIntervalMs)
	}
	if _, err := winapi.ModifierKeys(c.Keys.Modifier); err != nil {
		return err
	}
	if _, err := winapi.ToggleKey(c.Keys.Toggle); err != nil {
		return err
	}
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		return errors.New("logging.file_path required when output is file")
	}
	return nil
}

// PollInterval returns the poll cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// ModifierVKs returns the virtual keys bound as the transient modifier.
func (c *Config) ModifierVKs() ([]uint16, error) {
	return winapi.ModifierKeys(c.Keys.Modifier)
}

// ToggleVK returns the virtual key bound as the lock toggle.
func (c *Config) ToggleVK() (uint16, error) {
	return winapi.ToggleKey(c.Keys.Toggle)
}
