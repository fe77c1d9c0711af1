//go:build avr

// Package avrhal implements the core HAL on 8-bit AVR parts
package avrhal

import (
	"errors"
	"machine"
	"servomux/core"
)

// ErrInvalidPin is returned for pin numbers the part does not have
var ErrInvalidPin = errors.New("invalid pin")

// GPIODriver drives digital outputs through machine.Pin.
// Pins are numbered port*8+bit, as machine numbers them.
type GPIODriver struct {
	maxPin core.GPIOPin
}

// NewGPIODriver creates a driver accepting pins up to maxPin
func NewGPIODriver(maxPin core.GPIOPin) *GPIODriver {
	return &GPIODriver{maxPin: maxPin}
}

// ConfigureOutput configures a pin as a digital output
func (d *GPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	if pin > d.maxPin {
		return ErrInvalidPin
	}
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinOutput})
	return nil
}

// SetPin sets the pin level. Called from the compare interrupt.
func (d *GPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	if pin > d.maxPin {
		return ErrInvalidPin
	}
	machine.Pin(pin).Set(value)
	return nil
}
