package core

// Timer prescaler and reference clock.
// The scheduler is calibrated for a 16MHz core clock. Running at another
// frequency changes tick resolution and the usable pulse range without any
// error being reported; pick the Clock to match the board.
const (
	Prescale                      = 256 // Timer clock = CPU clock / 256
	ReferenceCyclesPerMicrosecond = 16  // 16MHz reference clock
)

// Clock converts between microseconds and prescaled timer ticks
type Clock struct {
	CyclesPerMicrosecond uint32
}

// ReferenceClock returns the 16MHz clock the pulse constants assume
func ReferenceClock() Clock {
	return Clock{CyclesPerMicrosecond: ReferenceCyclesPerMicrosecond}
}

// TicksFromUS converts microseconds to timer ticks (truncating)
func (c Clock) TicksFromUS(us uint32) uint32 {
	return (us * c.CyclesPerMicrosecond) / Prescale
}

// TicksToUS converts timer ticks back to microseconds.
// The result is a multiple of the tick period, so a round trip through
// TicksFromUS loses up to one tick.
func (c Clock) TicksToUS(ticks uint32) uint32 {
	if c.CyclesPerMicrosecond == 0 {
		return 0
	}
	return (ticks * Prescale) / c.CyclesPerMicrosecond
}

// TickPeriodUS returns the duration of one tick in whole microseconds
func (c Clock) TickPeriodUS() uint32 {
	return c.TicksToUS(1)
}
