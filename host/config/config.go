// Package config loads the host tool's board and channel settings
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"servomux/core"
	"servomux/host/serial"
)

// Environment overrides, also read from a .env file
const (
	EnvDevice = "SERVOMUX_DEVICE"
	EnvBaud   = "SERVOMUX_BAUD"
)

// DefaultPath is the config file used when none is given
const DefaultPath = "servomux.yaml"

// Channel is one servo wired to the board
type Channel struct {
	OID   uint8  `yaml:"oid"`
	Pin   uint32 `yaml:"pin"`
	MinUs int    `yaml:"min_us,omitempty"` // Zero keeps the firmware default
	MaxUs int    `yaml:"max_us,omitempty"`

	// Position written after attach, degrees or microseconds; nil leaves
	// the attach default
	Position *int `yaml:"position,omitempty"`
}

// Config is the host tool configuration
type Config struct {
	Device  string        `yaml:"device"`
	Baud    int           `yaml:"baud"`
	Timeout time.Duration `yaml:"timeout"`

	// ClockMHz is the board's CPU clock, used by the simulator
	ClockMHz uint32 `yaml:"clock_mhz"`

	Channels []Channel `yaml:"channels"`
}

// Default returns the configuration used with no file
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads path (a missing DefaultPath is not an error), applies
// defaults, then environment overrides, and validates the result
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Device == "" {
		c.Device = "/dev/ttyUSB0"
	}
	if c.Baud == 0 {
		c.Baud = serial.DefaultBaud
	}
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Second
	}
	if c.ClockMHz == 0 {
		c.ClockMHz = core.ReferenceCyclesPerMicrosecond
	}
}

// applyEnv loads .env if present, then lets the environment override the
// device and baud rate
func (c *Config) applyEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if dev := os.Getenv(EnvDevice); dev != "" {
		c.Device = dev
	}
	if baud := os.Getenv(EnvBaud); baud != "" {
		n, err := strconv.Atoi(baud)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvBaud, baud, err)
		}
		c.Baud = n
	}
	return nil
}

// Validate checks channel assignments against the firmware's limits
func (c *Config) Validate() error {
	if len(c.Channels) > core.MaxChannels {
		return fmt.Errorf("%d channels configured, the firmware drives at most %d",
			len(c.Channels), core.MaxChannels)
	}

	oids := make(map[uint8]bool)
	pins := make(map[uint32]bool)
	for _, ch := range c.Channels {
		if oids[ch.OID] {
			return fmt.Errorf("duplicate oid %d", ch.OID)
		}
		if pins[ch.Pin] {
			return fmt.Errorf("pin %d used by more than one channel", ch.Pin)
		}
		oids[ch.OID] = true
		pins[ch.Pin] = true

		if ch.MinUs < 0 || ch.MaxUs < 0 {
			return fmt.Errorf("oid %d: negative pulse bound", ch.OID)
		}
		if ch.MinUs != 0 && ch.MaxUs != 0 && ch.MinUs >= ch.MaxUs {
			return fmt.Errorf("oid %d: min_us %d not below max_us %d", ch.OID, ch.MinUs, ch.MaxUs)
		}
	}
	return nil
}

// SerialConfig returns the port settings
func (c *Config) SerialConfig() *serial.Config {
	cfg := serial.DefaultConfig(c.Device)
	cfg.Baud = c.Baud
	return cfg
}

// SchedulerConfig returns the scheduler timing for the board's clock
func (c *Config) SchedulerConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.Clock = core.Clock{CyclesPerMicrosecond: c.ClockMHz}
	return cfg
}
