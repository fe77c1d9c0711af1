//go:build avr

package avrhal

import (
	"device/avr"
	"errors"
	"servomux/core"
)

// ErrNoPWM is returned for a pin without a Timer0 compare output
var ErrNoPWM = errors.New("pin has no PWM output")

// Timer0PWM drives the OC0A pin with 8-bit fast PWM.
// Servo pulses never use it; they come from the scheduler's timer.
type Timer0PWM struct {
	pin core.GPIOPin // OC0A
}

// NewTimer0PWM creates a driver for the part's OC0A pin
func NewTimer0PWM(oc0a core.GPIOPin) *Timer0PWM {
	return &Timer0PWM{pin: oc0a}
}

// ConfigurePWM selects fast PWM, non-inverting on OC0A.
// Timer0 may already be running as the runtime tick source, so its
// prescaler is only set when the timer is stopped.
func (p *Timer0PWM) ConfigurePWM(pin core.GPIOPin) error {
	if pin != p.pin {
		return ErrNoPWM
	}
	if err := NewGPIODriver(pin).ConfigureOutput(pin); err != nil {
		return err
	}
	avr.OCR0A.Set(0)
	avr.TCCR0A.Set(avr.TCCR0A_COM0A1 | avr.TCCR0A_WGM01 | avr.TCCR0A_WGM00)
	const clockSelect = avr.TCCR0B_CS02 | avr.TCCR0B_CS01 | avr.TCCR0B_CS00
	if avr.TCCR0B.Get()&clockSelect == 0 {
		avr.TCCR0B.SetBits(avr.TCCR0B_CS01 | avr.TCCR0B_CS00) // clk/64
	}
	return nil
}

// SetDutyCycle sets the OC0A duty cycle
func (p *Timer0PWM) SetDutyCycle(pin core.GPIOPin, value core.PWMValue) error {
	if pin != p.pin {
		return ErrNoPWM
	}
	avr.OCR0A.Set(uint8(value))
	return nil
}
