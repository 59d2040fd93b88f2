package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in the config file and on the command line
const (
	BackendSynth = "synth"
	BackendMIDI  = "midi"
	BackendOSC   = "osc"
	BackendLog   = "log"
)

var ErrBackend = errors.New("unknown backend")

// MIDIConfig selects the external synth output. Channels maps a track
// name to a 1-based MIDI channel and overrides the built-in assignment.
type MIDIConfig struct {
	Port     string         `yaml:"port,omitempty"`
	Channels map[string]int `yaml:"channels,omitempty"`
}

// OSCConfig addresses an OSC synth server
type OSCConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Prefix string `yaml:"prefix"`
}

// ControllerConfig is a grid surface to auto-connect. Port is matched
// case-insensitively against MIDI input names.
type ControllerConfig struct {
	Port        string `yaml:"port"`
	AutoConnect bool   `yaml:"autoConnect"`
}

// PresetConfig is a user arrangement: one x/. string per track
type PresetConfig struct {
	Name  string            `yaml:"name"`
	Steps map[string]string `yaml:"steps"`
}

// Config is the main configuration structure
type Config struct {
	Backend     string             `yaml:"backend"`
	Tempo       float64            `yaml:"tempo"`
	Mix         map[string]float64 `yaml:"mix,omitempty"`
	Lookahead   time.Duration      `yaml:"lookahead,omitempty"`
	Preset      string             `yaml:"preset,omitempty"`
	MIDI        MIDIConfig         `yaml:"midi,omitempty"`
	OSC         OSCConfig          `yaml:"osc"`
	Controllers []ControllerConfig `yaml:"controllers,omitempty"`
	Presets     []PresetConfig     `yaml:"presets,omitempty"`
	Debug       bool               `yaml:"debug,omitempty"`
	DebugLog    string             `yaml:"debugLog,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backend:   BackendSynth,
		Tempo:     110,
		Lookahead: 100 * time.Millisecond,
		OSC: OSCConfig{
			Host:   "127.0.0.1",
			Port:   57120,
			Prefix: "/synthwave",
		},
		Controllers: []ControllerConfig{
			{Port: "LPX MIDI", AutoConnect: true},
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-synthwave"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config from the default path, or returns defaults if
// there is none
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks fields that would otherwise fail much later
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSynth, BackendMIDI, BackendOSC, BackendLog:
	default:
		return fmt.Errorf("%w %q", ErrBackend, c.Backend)
	}
	for track, ch := range c.MIDI.Channels {
		if ch < 1 || ch > 16 {
			return fmt.Errorf("midi channel for %s out of range: %d", track, ch)
		}
	}
	if c.Lookahead < 0 {
		return fmt.Errorf("negative lookahead %v", c.Lookahead)
	}
	return nil
}

// SaveFile writes the config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SurfaceHints returns the port names of auto-connect controllers,
// lowercased for matching
func (c *Config) SurfaceHints() []string {
	var hints []string
	for _, ctrl := range c.Controllers {
		if ctrl.AutoConnect && ctrl.Port != "" {
			hints = append(hints, strings.ToLower(ctrl.Port))
		}
	}
	return hints
}

// AddController adds or updates a controller by port name
func (c *Config) AddController(ctrl ControllerConfig) {
	for i := range c.Controllers {
		if strings.EqualFold(c.Controllers[i].Port, ctrl.Port) {
			c.Controllers[i] = ctrl
			return
		}
	}
	c.Controllers = append(c.Controllers, ctrl)
}
