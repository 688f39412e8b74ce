package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"note-gate/gate"
)

// PortConfig names a MIDI port and channel. Channel 0 means omni on input
// and "keep the incoming channel" on output, 1-16 pins a channel.
type PortConfig struct {
	PortName string `json:"portName,omitempty" yaml:"portName,omitempty"`
	Channel  int    `json:"channel,omitempty" yaml:"channel,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	History int `json:"history,omitempty" yaml:"history,omitempty"` // status lines kept
}

// Config is the main configuration structure
type Config struct {
	Input   PortConfig   `json:"input" yaml:"input"`
	Output  PortConfig   `json:"output" yaml:"output"`
	Pattern gate.Pattern `json:"pattern" yaml:"pattern"`

	// PreserveHeld keeps passed notes releasable across a pattern change.
	PreserveHeld bool `json:"preserveHeld,omitempty" yaml:"preserveHeld,omitempty"`
	// FlushOnReconfigure sends note-offs for held notes before a pattern
	// change instead of losing them.
	FlushOnReconfigure bool `json:"flushOnReconfigure,omitempty" yaml:"flushOnReconfigure,omitempty"`
	// SplitChannels gives each input channel its own cycle when the input
	// is omni. Otherwise every channel shares one cycle and one allowed set.
	SplitChannels bool `json:"splitChannels,omitempty" yaml:"splitChannels,omitempty"`
	// Thru forwards non-note messages unchanged.
	Thru bool `json:"thru" yaml:"thru"`

	UI UIConfig `json:"ui,omitempty" yaml:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Pattern: gate.DefaultPattern,
		Thru:    true,
		UI: UIConfig{
			History: 12,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "note-gate"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	cfg, err := LoadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a config file. Files ending in .yaml or .yml are parsed as
// YAML, everything else as JSON. Missing fields keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.Pattern = cfg.Pattern.Clamped()
	if cfg.UI.History <= 0 {
		cfg.UI.History = DefaultConfig().UI.History
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks channel ranges
func (c *Config) Validate() error {
	if c.Input.Channel < 0 || c.Input.Channel > 16 {
		return fmt.Errorf("input channel %d out of range 0-16", c.Input.Channel)
	}
	if c.Output.Channel < 0 || c.Output.Channel > 16 {
		return fmt.Errorf("output channel %d out of range 0-16", c.Output.Channel)
	}
	return nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GateOptions returns the engine options implied by the config
func (c *Config) GateOptions() []gate.Option {
	return []gate.Option{gate.PreserveHeld(c.PreserveHeld)}
}
