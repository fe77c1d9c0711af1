package serial

import (
	"errors"
	"io"
	"time"
)

// ErrNoDevice is returned when a config names no device
var ErrNoDevice = errors.New("serial: no device configured")

// Port is a byte link to a board.
// Implementations: the native port below and the simulated board in host/mcu.
type Port interface {
	io.ReadWriteCloser

	// Flush discards data not yet read or written
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate, matching the firmware's UART
	Baud int

	// ReadTimeout bounds each Read; zero blocks
	ReadTimeout time.Duration
}

// DefaultBaud is the firmware's UART speed
const DefaultBaud = 250000

// DefaultConfig returns the configuration the firmware expects
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Validate checks the config before a port is opened
func (c *Config) Validate() error {
	if c.Device == "" {
		return ErrNoDevice
	}
	if c.Baud <= 0 {
		return errors.New("serial: baud rate must be positive")
	}
	if c.ReadTimeout < 0 {
		return errors.New("serial: negative read timeout")
	}
	return nil
}
