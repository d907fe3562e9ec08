// Package config holds the host program's settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vedantwpatil/keypilot/internal/backend"
	"github.com/vedantwpatil/keypilot/internal/logging"
	"github.com/vedantwpatil/keypilot/internal/motion"
)

// DefaultFileName is read from the working directory when no path is given.
const DefaultFileName = "keypilot.yaml"

// Backend names.
const (
	BackendRobot   = "robot"
	BackendVirtual = "virtual"
)

type Config struct {
	Backend string        `yaml:"backend"`
	Logging LoggingConfig `yaml:"logging"`
	Motion  MotionConfig  `yaml:"motion"`
	Watch   WatchConfig   `yaml:"watch"`

	// Source is where the configuration came from: a file path or "<defaults>".
	Source string `yaml:"-"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MotionConfig struct {
	Mode      string  `yaml:"mode"`      // step or lerp
	Speed     float64 `yaml:"speed"`     // pixels per step, or path fractions per second
	Tolerance float64 `yaml:"tolerance"` // percent
}

// WatchConfig durations need a unit ("10ms", "1.5s", "0s"). The YAML decoder
// rejects bare numbers for them.
type WatchConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	Cooldown     time.Duration `yaml:"cooldown"`
	Keys         []string      `yaml:"keys"`
}

func NewConfig() *Config {
	return &Config{
		Backend: BackendRobot,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Motion: MotionConfig{
			Mode:      "step",
			Speed:     10,
			Tolerance: 5,
		},
		Watch: WatchConfig{
			TickInterval: 10 * time.Millisecond,
			Cooldown:     150 * time.Millisecond,
			Keys:         []string{"f5", "f6"},
		},
		Source: "<defaults>",
	}
}

// Load reads configuration from path on top of the defaults. With an empty
// path it tries DefaultFileName and falls back to the defaults if that file
// does not exist.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	data, err := os.ReadFile(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file %q: %w", candidate, err)
	}

	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", candidate, err)
	}
	cfg.Source = candidate

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %q: %w", candidate, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	return nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendRobot, BackendVirtual:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendRobot, BackendVirtual, c.Backend)
	}

	if err := (logging.Options{Level: c.Logging.Level, Format: c.Logging.Format}).Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	if _, err := motion.ParseMode(c.Motion.Mode); err != nil {
		return fmt.Errorf("motion.mode: %w", err)
	}
	target := motion.Target{Speed: c.Motion.Speed, Tolerance: c.Motion.Tolerance}
	if err := target.Validate(); err != nil {
		return fmt.Errorf("motion: %w", err)
	}

	if c.Watch.TickInterval <= 0 {
		return errors.New("watch.tick_interval must be positive")
	}
	if c.Watch.Cooldown < 0 {
		return errors.New("watch.cooldown must not be negative")
	}
	if _, err := c.WatchKeys(); err != nil {
		return fmt.Errorf("watch.keys: %w", err)
	}
	return nil
}

// MotionMode returns the parsed motion mode.
func (c *Config) MotionMode() motion.Mode {
	mode, err := motion.ParseMode(c.Motion.Mode)
	if err != nil {
		return motion.ModeStep
	}
	return mode
}

// WatchKeys resolves the configured key names.
func (c *Config) WatchKeys() ([]backend.Keycode, error) {
	keys := make([]backend.Keycode, 0, len(c.Watch.Keys))
	for _, name := range c.Watch.Keys {
		key, err := backend.ParseKey(name)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
