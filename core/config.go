package core

// Servo pulse constants (microseconds unless noted)
const (
	MinPulseWidth     = 544   // Shortest pulse sent to a servo
	MaxPulseWidth     = 2400  // Longest pulse sent to a servo
	DefaultPulseWidth = 1500  // Pulse width set on attach
	RefreshInterval   = 20000 // Frame period
	TrimDuration      = 2     // Compensation for pin write latency

	// Bounds accepted by AttachRange, both exclusive
	MinPulseLimit = 300
	MaxPulseLimit = 3000

	// MaxAngle is the upper end of the degree range
	MaxAngle = 180
)

// DefaultIdleStepTicks is the compare value used while waiting out the frame
const DefaultIdleStepTicks = 24

// Config holds the scheduler's timing parameters
type Config struct {
	Clock         Clock
	IdleStepTicks uint8
}

// DefaultConfig returns the configuration for the 16MHz reference clock
func DefaultConfig() Config {
	return Config{
		Clock:         ReferenceClock(),
		IdleStepTicks: DefaultIdleStepTicks,
	}
}

// TicksPerFrame returns the frame budget in timer ticks
func (c Config) TicksPerFrame() uint32 {
	return c.Clock.TicksFromUS(RefreshInterval)
}

// idleStep returns the idle compare step, never zero
func (c Config) idleStep() uint32 {
	if c.IdleStepTicks == 0 {
		return DefaultIdleStepTicks
	}
	return uint32(c.IdleStepTicks)
}
