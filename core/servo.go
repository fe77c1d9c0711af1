package core

// Servo is a handle bound to one scheduler slot.
// A handle created after all slots are taken is invalid: Attach fails and
// every other call is a no-op.
type Servo struct {
	sched *Scheduler
	slot  uint8
	minUs int
	maxUs int
}

// NewServo reserves the next channel slot for a new handle
func (s *Scheduler) NewServo() *Servo {
	slot := s.table.Allocate()
	if slot == InvalidSlot {
		RecordEvent(EvtSlotExhausted, InvalidSlot, s.frames.Load(), uint32(s.table.Allocated()))
		DebugPrintln("[SERVO] no free channel slot")
	}
	return &Servo{
		sched: s,
		slot:  slot,
		minUs: MinPulseWidth,
		maxUs: MaxPulseWidth,
	}
}

// Slot returns the handle's channel index, InvalidSlot for an invalid handle
func (sv *Servo) Slot() uint8 {
	return sv.slot
}

// Bounds returns the pulse width range in microseconds
func (sv *Servo) Bounds() (minUs, maxUs int) {
	return sv.minUs, sv.maxUs
}

func (sv *Servo) channel() *Channel {
	return sv.sched.table.Channel(sv.slot)
}

// Attach starts pulsing pin with the default 544-2400us range
func (sv *Servo) Attach(pin GPIOPin) bool {
	return sv.AttachRange(pin, MinPulseWidth, MaxPulseWidth)
}

// AttachRange starts pulsing pin with a custom pulse range.
// A bound outside (300, 3000), or a max not above min, is ignored and the
// previous bound kept.
func (sv *Servo) AttachRange(pin GPIOPin, minUs, maxUs int) bool {
	ch := sv.channel()
	if ch == nil {
		return false
	}

	if err := sv.sched.gpio.ConfigureOutput(pin); err != nil {
		DebugPrintln("[SERVO] configure pin " + Itoa(int(pin)) + " failed: " + err.Error())
		return false
	}
	_ = sv.sched.gpio.SetPin(pin, false)

	newMin, newMax := sv.minUs, sv.maxUs
	if minUs > MinPulseLimit && minUs < MaxPulseLimit {
		newMin = minUs
	}
	if maxUs > newMin && maxUs < MaxPulseLimit {
		newMax = maxUs
	}
	if newMin < newMax {
		sv.minUs, sv.maxUs = newMin, newMax
	}

	ch.pin.Store(uint32(pin))
	ch.ticks.Store(sv.sched.cfg.Clock.TicksFromUS(DefaultPulseWidth))
	ch.high.Store(false)
	ch.active.Store(true)
	RecordEvent(EvtAttach, sv.slot, sv.sched.frames.Load(), uint32(pin))

	if !sv.sched.armed.Load() {
		sv.sched.arm()
	}
	return true
}

// Detach stops pulsing this channel.
// A pulse already in flight still completes; the slot stays reserved.
func (sv *Servo) Detach() {
	ch := sv.channel()
	if ch == nil {
		return
	}
	ch.active.Store(false)
	RecordEvent(EvtDetach, sv.slot, sv.sched.frames.Load(), 0)

	if !sv.sched.table.AnyActive() && sv.sched.armed.Load() {
		sv.sched.disarm()
	}
}

// Write sets the position.
// Values below MinPulseWidth are degrees, clamped to 0-180; anything else
// is a pulse width in microseconds.
func (sv *Servo) Write(value int) {
	ch := sv.channel()
	if ch == nil || !ch.Active() {
		return
	}
	if value < MinPulseWidth {
		value = clamp(value, 0, MaxAngle)
		value = mapRange(value, 0, MaxAngle, sv.minUs, sv.maxUs)
	}
	sv.WriteMicroseconds(value)
}

// WriteMicroseconds sets the pulse width, clamped to the attached range.
// The scheduler picks it up when this channel's next pulse starts.
func (sv *Servo) WriteMicroseconds(us int) {
	ch := sv.channel()
	if ch == nil || !ch.Active() {
		return
	}
	us = clamp(us, sv.minUs, sv.maxUs)
	us -= TrimDuration
	ch.ticks.Store(sv.sched.cfg.Clock.TicksFromUS(uint32(us)))
}

// Read returns the last commanded position in degrees (0-180)
func (sv *Servo) Read() int {
	deg := mapRange(sv.ReadMicroseconds()+1, sv.minUs, sv.maxUs, 0, MaxAngle)
	return clamp(deg, 0, MaxAngle)
}

// ReadMicroseconds returns the last commanded pulse width, at tick
// resolution. Zero for an invalid handle.
func (sv *Servo) ReadMicroseconds() int {
	ch := sv.channel()
	if ch == nil {
		return 0
	}
	return int(sv.sched.cfg.Clock.TicksToUS(ch.Ticks())) + TrimDuration
}

// Attached reports whether the channel is being pulsed
func (sv *Servo) Attached() bool {
	ch := sv.channel()
	if ch == nil {
		return false
	}
	return ch.Active()
}

// clamp limits v to [lo, hi]
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// mapRange linearly maps x from [inMin, inMax] to [outMin, outMax]
func mapRange(x, inMin, inMax, outMin, outMax int) int {
	if inMax == inMin {
		return outMin
	}
	return (x-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}
