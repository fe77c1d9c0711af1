package core

// PWMValue is an 8-bit duty cycle (0 = off, 255 = fully on)
type PWMValue uint8

// PWMDriver drives brightness outputs such as status LEDs.
// Servo pulses never go through it; they are generated by the Scheduler on
// plain GPIO pins.
type PWMDriver interface {
	// ConfigurePWM prepares a pin for duty-cycle output
	ConfigurePWM(pin GPIOPin) error

	// SetDutyCycle sets the duty cycle of a configured pin
	SetDutyCycle(pin GPIOPin, value PWMValue) error
}
