package core

import "sync/atomic"

// Phase is the scheduler's position within a frame
type Phase uint8

const (
	PhaseIdleRefresh Phase = iota // Counting down the rest of the frame
	PhasePulseActive              // Cursor's pin is HIGH
)

// State is the scheduler's frame bookkeeping.
// FrameTicks + IdleCountdown*idleStep stays within one idle step of the
// frame budget.
type State struct {
	Phase         Phase
	Cursor        uint8  // Pulsing slot, InvalidSlot while idle
	FrameTicks    uint32 // Pulse ticks consumed in the current frame
	IdleCountdown uint32 // Idle interrupts left before the next frame
}

// PinWrite is one pin level change requested by a transition
type PinWrite struct {
	Slot uint8
	Pin  GPIOPin
	High bool
}

// Effects are the hardware actions a transition asks for.
// Writes are applied in order, so a LOW always precedes the next HIGH.
type Effects struct {
	Writes     [2]PinWrite
	NumWrites  uint8
	Compare    uint8 // Next compare value
	FrameStart bool  // First pulse of a frame began
	FrameEnd   bool  // Last pulse of a frame ended
}

func (fx *Effects) write(slot uint8, pin GPIOPin, high bool) {
	fx.Writes[fx.NumWrites] = PinWrite{Slot: slot, Pin: pin, High: high}
	fx.NumWrites++
}

// idleState is the state of a freshly armed or disarmed scheduler
func idleState() State {
	return State{Phase: PhaseIdleRefresh, Cursor: InvalidSlot}
}

// OnCompareEvent computes the transition for one compare-match interrupt.
// It only reads the table; the caller applies the returned effects.
func OnCompareEvent(st State, table *ChannelTable, cfg Config) (State, Effects) {
	var fx Effects

	if st.Phase == PhasePulseActive && st.Cursor < MaxChannels {
		// Pulse done, go LOW
		ch := table.Channel(st.Cursor)
		fx.write(st.Cursor, ch.Pin(), false)

		if next := table.NextActive(st.Cursor + 1); next != InvalidSlot {
			st = startPulse(st, table, next, &fx)
			return st, fx
		}

		// No more channels this frame, wait out the rest of it
		budget := cfg.TicksPerFrame()
		var remaining uint32
		if st.FrameTicks < budget {
			remaining = budget - st.FrameTicks
		}
		st.IdleCountdown = remaining / cfg.idleStep()
		st.FrameTicks = 0
		st.Phase = PhaseIdleRefresh
		st.Cursor = InvalidSlot
		fx.Compare = uint8(cfg.idleStep())
		fx.FrameEnd = true
		return st, fx
	}

	// Idle refresh
	if st.IdleCountdown > 0 {
		st.IdleCountdown--
	}
	if st.IdleCountdown > 0 {
		fx.Compare = uint8(cfg.idleStep())
		return st, fx
	}

	// Frame elapsed, restart from the first active channel
	first := table.NextActive(0)
	if first == InvalidSlot {
		fx.Compare = uint8(cfg.idleStep())
		return st, fx
	}
	st = startPulse(st, table, first, &fx)
	fx.FrameStart = true
	return st, fx
}

// startPulse drives slot HIGH for its current pulse width.
// The width is sampled here, so writes never change a pulse in flight.
func startPulse(st State, table *ChannelTable, slot uint8, fx *Effects) State {
	ch := table.Channel(slot)
	ticks := ch.Ticks()
	if ticks > 0xFF {
		ticks = 0xFF
	}
	fx.write(slot, ch.Pin(), true)
	fx.Compare = uint8(ticks)
	st.FrameTicks += ticks
	st.Phase = PhasePulseActive
	st.Cursor = slot
	return st
}

// SchedulerStats are diagnostic counters
type SchedulerStats struct {
	Frames       uint32 // Frames started since boot
	LastIdle     uint32 // Idle countdown computed at the end of the last frame
	Armed        bool
	ChannelsUsed int
}

// Scheduler multiplexes up to MaxChannels servo pulse trains onto one
// compare-match timer.
type Scheduler struct {
	cfg   Config
	gpio  GPIODriver
	timer CompareTimer

	table ChannelTable
	state State // Owned by the interrupt once armed

	armed    atomic.Bool
	frames   atomic.Uint32
	lastIdle atomic.Uint32
}

// NewScheduler creates the scheduler for one compare timer.
// Construct it once at startup and route the timer's compare interrupt to
// HandleCompare.
func NewScheduler(cfg Config, gpio GPIODriver, timer CompareTimer) *Scheduler {
	return &Scheduler{
		cfg:   cfg,
		gpio:  gpio,
		timer: timer,
		state: idleState(),
	}
}

// Config returns the timing configuration
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Channels exposes the channel table (read-only use)
func (s *Scheduler) Channels() *ChannelTable {
	return &s.table
}

// HandleCompare is the compare-match interrupt callback
func (s *Scheduler) HandleCompare() {
	if !s.armed.Load() {
		return
	}
	next, fx := OnCompareEvent(s.state, &s.table, s.cfg)
	s.state = next
	s.apply(fx)
}

// apply performs a transition's hardware effects
func (s *Scheduler) apply(fx Effects) {
	for i := uint8(0); i < fx.NumWrites; i++ {
		w := fx.Writes[i]
		_ = s.gpio.SetPin(w.Pin, w.High)
		s.table.channels[w.Slot].high.Store(w.High)
	}
	s.timer.SetCompare(fx.Compare)

	if fx.FrameStart {
		frame := s.frames.Add(1)
		RecordEvent(EvtFrameStart, s.state.Cursor, frame, s.state.FrameTicks)
	}
	if fx.FrameEnd {
		s.lastIdle.Store(s.state.IdleCountdown)
		RecordEvent(EvtFrameEnd, InvalidSlot, s.frames.Load(), s.state.IdleCountdown)
	}
}

// arm seeds the first pulse and starts the timer.
// Runs with interrupts masked so a compare event cannot observe a half
// configured scheduler.
func (s *Scheduler) arm() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	first := s.table.NextActive(0)
	if first == InvalidSlot {
		return
	}

	var fx Effects
	s.state = startPulse(idleState(), &s.table, first, &fx)
	s.apply(fx)
	s.timer.Start()
	s.armed.Store(true)

	frame := s.frames.Add(1)
	RecordEvent(EvtArm, first, frame, s.state.FrameTicks)
}

// disarm stops the compare interrupt.
// A pin left HIGH by an interrupted pulse is driven LOW.
func (s *Scheduler) disarm() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.timer.Stop()
	s.armed.Store(false)

	if s.state.Phase == PhasePulseActive && s.state.Cursor < MaxChannels {
		ch := &s.table.channels[s.state.Cursor]
		_ = s.gpio.SetPin(ch.Pin(), false)
		ch.high.Store(false)
	}
	s.state = idleState()

	RecordEvent(EvtDisarm, InvalidSlot, s.frames.Load(), 0)
}

// Armed reports whether the compare interrupt is running
func (s *Scheduler) Armed() bool {
	return s.armed.Load()
}

// Snapshot returns a copy of the frame bookkeeping
func (s *Scheduler) Snapshot() State {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return s.state
}

// Stats returns diagnostic counters
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Frames:       s.frames.Load(),
		LastIdle:     s.lastIdle.Load(),
		Armed:        s.armed.Load(),
		ChannelsUsed: s.table.Allocated(),
	}
}
