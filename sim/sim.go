// Package sim runs the servo scheduler against a virtual compare timer and
// recording GPIO, so pulse timing can be checked without hardware.
package sim

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"servomux/core"
)

// ErrInvalidPin is returned for pins outside the simulated port
var ErrInvalidPin = errors.New("invalid pin")

// MaxPin is the highest simulated pin number
const MaxPin = 31

// Timer is a virtual 8-bit compare-match timer counting prescaled ticks.
// A compare value of N fires after N ticks. The AVR CTC timers clear on the
// tick after the match, so hardware intervals run N+1 ticks; the simulator
// ignores that extra tick, so a simulated frame runs one tick short per
// compare interval compared with the board.
type Timer struct {
	now       uint64 // Ticks since simulation start
	lastEvent uint64 // Tick at which the current compare interval began
	compare   uint8
	running   bool
	handler   func()
	events    uint64
}

// NewTimer creates a stopped timer
func NewTimer() *Timer {
	return &Timer{}
}

// OnCompare sets the compare-match interrupt handler
func (t *Timer) OnCompare(handler func()) {
	t.handler = handler
}

// SetCompare restarts the count with a new compare value
func (t *Timer) SetCompare(ticks uint8) {
	t.compare = ticks
	t.lastEvent = t.now
}

// Start enables the compare interrupt
func (t *Timer) Start() {
	t.running = true
}

// Stop disables the compare interrupt
func (t *Timer) Stop() {
	t.running = false
}

// Running reports whether the compare interrupt is enabled
func (t *Timer) Running() bool {
	return t.running
}

// Now returns the current simulated time in ticks
func (t *Timer) Now() uint64 {
	return t.now
}

// Events returns how many compare interrupts have fired
func (t *Timer) Events() uint64 {
	return t.events
}

// interval is the length of the current compare interval, without the
// hardware's clear tick
func (t *Timer) interval() uint64 {
	if t.compare == 0 {
		return 1
	}
	return uint64(t.compare)
}

// Step jumps to the next compare match and runs the handler.
// It returns false when the interrupt is disabled.
func (t *Timer) Step() bool {
	if !t.running || t.handler == nil {
		return false
	}
	t.now = t.lastEvent + t.interval()
	t.lastEvent = t.now
	t.events++
	t.handler()
	return true
}

// Advance lets ticks of simulated time pass, firing every compare match
// that falls inside it
func (t *Timer) Advance(ticks uint64) {
	deadline := t.now + ticks
	for t.running && t.handler != nil && t.lastEvent+t.interval() <= deadline {
		t.Step()
	}
	t.now = deadline
}

// Edge is one recorded pin level change
type Edge struct {
	Pin  core.GPIOPin
	High bool
	At   uint64 // Tick of the change
}

// Pulse is one HIGH interval
type Pulse struct {
	Pin   core.GPIOPin
	Start uint64
	Width uint64
}

// Pins is a recording GPIO port driven at the timer's clock
type Pins struct {
	timer      *Timer
	configured [MaxPin + 1]bool
	levels     [MaxPin + 1]bool
	edges      []Edge
	maxHigh    int
}

// NewPins creates a port timestamped by timer
func NewPins(timer *Timer) *Pins {
	return &Pins{timer: timer}
}

// ConfigureOutput marks pin as an output
func (p *Pins) ConfigureOutput(pin core.GPIOPin) error {
	if pin > MaxPin {
		return ErrInvalidPin
	}
	p.configured[pin] = true
	return nil
}

// SetPin drives pin, recording an edge on every level change
func (p *Pins) SetPin(pin core.GPIOPin, value bool) error {
	if pin > MaxPin || !p.configured[pin] {
		return ErrInvalidPin
	}
	if p.levels[pin] == value {
		return nil
	}
	p.levels[pin] = value
	p.edges = append(p.edges, Edge{Pin: pin, High: value, At: p.timer.Now()})

	if high := p.HighCount(); high > p.maxHigh {
		p.maxHigh = high
	}
	return nil
}

// Level returns the current level of pin
func (p *Pins) Level(pin core.GPIOPin) bool {
	if pin > MaxPin {
		return false
	}
	return p.levels[pin]
}

// HighCount returns how many pins are HIGH right now
func (p *Pins) HighCount() int {
	n := 0
	for _, high := range p.levels {
		if high {
			n++
		}
	}
	return n
}

// MaxSimultaneousHigh returns the most pins ever HIGH at once
func (p *Pins) MaxSimultaneousHigh() int {
	return p.maxHigh
}

// Edges returns every recorded level change
func (p *Pins) Edges() []Edge {
	return p.edges
}

// Pulses returns the completed HIGH intervals of pin in time order
func (p *Pins) Pulses(pin core.GPIOPin) []Pulse {
	var out []Pulse
	var start uint64
	high := false
	for _, e := range p.edges {
		if e.Pin != pin {
			continue
		}
		if e.High {
			start, high = e.At, true
		} else if high {
			out = append(out, Pulse{Pin: pin, Start: start, Width: e.At - start})
			high = false
		}
	}
	return out
}

// Bench wires a Scheduler to a simulated timer and port
type Bench struct {
	Timer     *Timer
	Pins      *Pins
	Scheduler *core.Scheduler
}

// NewBench builds a scheduler on simulated hardware
func NewBench(cfg core.Config) *Bench {
	timer := NewTimer()
	pins := NewPins(timer)
	sched := core.NewScheduler(cfg, pins, timer)
	timer.OnCompare(sched.HandleCompare)
	return &Bench{Timer: timer, Pins: pins, Scheduler: sched}
}

// TicksPerFrame returns the scheduler's frame budget
func (b *Bench) TicksPerFrame() uint64 {
	return uint64(b.Scheduler.Config().TicksPerFrame())
}

// RunFrames advances simulated time by n frame periods
func (b *Bench) RunFrames(n int) {
	b.Timer.Advance(uint64(n) * b.TicksPerFrame())
}

// FrameStarts returns the start tick of every frame, taken from the first
// rising edge after each idle gap
func (b *Bench) FrameStarts() []uint64 {
	var starts []uint64
	busyUntil := uint64(0)
	first := true
	for _, e := range b.Pins.Edges() {
		if !e.High {
			busyUntil = e.At
			continue
		}
		if first || e.At > busyUntil {
			starts = append(starts, e.At)
		}
		first = false
	}
	return starts
}

// WriteTrace prints each pin's pulses in microseconds
func (b *Bench) WriteTrace(w io.Writer) error {
	clock := b.Scheduler.Config().Clock
	byPin := make(map[core.GPIOPin][]Pulse)
	for pin := core.GPIOPin(0); pin <= MaxPin; pin++ {
		if pulses := b.Pins.Pulses(pin); len(pulses) > 0 {
			byPin[pin] = pulses
		}
	}

	pins := make([]int, 0, len(byPin))
	for pin := range byPin {
		pins = append(pins, int(pin))
	}
	sort.Ints(pins)

	for _, pin := range pins {
		for _, p := range byPin[core.GPIOPin(pin)] {
			_, err := fmt.Fprintf(w, "pin %2d  start %8dus  width %5dus (%d ticks)\n",
				pin, clock.TicksToUS(uint32(p.Start)), clock.TicksToUS(uint32(p.Width)), p.Width)
			if err != nil {
				return err
			}
		}
	}

	starts := b.FrameStarts()
	for i := 1; i < len(starts); i++ {
		period := starts[i] - starts[i-1]
		_, err := fmt.Fprintf(w, "frame %3d  period %6dus (%d ticks)\n",
			i, clock.TicksToUS(uint32(period)), period)
		if err != nil {
			return err
		}
	}
	return nil
}
