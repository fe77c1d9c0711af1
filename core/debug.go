package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// SchedulerEvent captures a scheduler event for post-mortem analysis
type SchedulerEvent struct {
	EventType uint8  // Event type code
	Slot      uint8  // Channel slot, InvalidSlot if not channel specific
	Frame     uint32 // Frame counter at event
	Value     uint32 // Context-dependent value
}

// Event type codes
const (
	EvtArm           = 1 // Scheduler armed (Value = first ticks)
	EvtDisarm        = 2 // Scheduler disarmed
	EvtFrameStart    = 3 // First pulse of a frame started (Value = ticks)
	EvtFrameEnd      = 4 // Last pulse of a frame ended (Value = idle countdown)
	EvtAttach        = 5 // Handle attached (Value = pin)
	EvtDetach        = 6 // Handle detached
	EvtSlotExhausted = 7 // Handle constructed with no free slot
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Event ring buffer, written from both handle calls and the interrupt
	eventRing     [EventRingSize]SchedulerEvent
	eventRingHead uint8
	eventsEnabled bool = true
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer.
// Never call it from interrupt context; use RecordEvent there.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// SetEventsEnabled turns event capture on or off
func SetEventsEnabled(enabled bool) {
	eventsEnabled = enabled
}

// RecordEvent captures an event in the ring buffer.
// It never blocks and is safe to call from the compare interrupt.
func RecordEvent(eventType, slot uint8, frame, value uint32) {
	if !eventsEnabled {
		return
	}
	state := disableInterrupts()
	idx := eventRingHead
	eventRing[idx] = SchedulerEvent{
		EventType: eventType,
		Slot:      slot,
		Frame:     frame,
		Value:     value,
	}
	eventRingHead = (idx + 1) % EventRingSize
	restoreInterrupts(state)
}

// Events returns the captured events from oldest to newest
func Events() []SchedulerEvent {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	var out []SchedulerEvent
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

// EventName returns a short label for an event type
func EventName(eventType uint8) string {
	switch eventType {
	case EvtArm:
		return "ARM"
	case EvtDisarm:
		return "DISARM"
	case EvtFrameStart:
		return "FRAME_START"
	case EvtFrameEnd:
		return "FRAME_END"
	case EvtAttach:
		return "ATTACH"
	case EvtDetach:
		return "DETACH"
	case EvtSlotExhausted:
		return "NO_SLOT!"
	default:
		return "UNKNOWN"
	}
}

// DumpEventRing outputs the event ring buffer (call on shutdown/error)
func DumpEventRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[SERVO] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[SERVO] " + EventName(evt.EventType) +
			" slot=" + Itoa(int(evt.Slot)) +
			" frame=" + Itoa(int(evt.Frame)) +
			" v=" + Itoa(int(evt.Value)))
	}
	debugPrintln("[SERVO] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	for i := range eventRing {
		eventRing[i] = SchedulerEvent{}
	}
	eventRingHead = 0
}
