package core

import (
	"strings"
	"testing"
)

func usTicks(us int) uint32 {
	return ReferenceClock().TicksFromUS(uint32(us - TrimDuration))
}

func TestSlotAllocation(t *testing.T) {
	sched, _, _ := newTestScheduler()

	for i := 0; i < MaxChannels; i++ {
		sv := sched.NewServo()
		if sv.Slot() != uint8(i) {
			t.Errorf("Handle %d got slot %d", i, sv.Slot())
		}
	}

	extra := sched.NewServo()
	if extra.Slot() != InvalidSlot {
		t.Fatalf("Sixth handle should be invalid, got slot %d", extra.Slot())
	}
	if extra.Attach(2) {
		t.Error("Invalid handle attached")
	}
	extra.Write(90)
	extra.WriteMicroseconds(1500)
	extra.Detach()
	if extra.Attached() || extra.ReadMicroseconds() != 0 {
		t.Error("Invalid handle should report detached and zero width")
	}
	if sched.Armed() {
		t.Error("Invalid handle armed the scheduler")
	}
	if sched.Stats().ChannelsUsed != MaxChannels {
		t.Errorf("ChannelsUsed %d, want %d", sched.Stats().ChannelsUsed, MaxChannels)
	}
}

func TestWriteAnglesAndMicroseconds(t *testing.T) {
	sched, _, _ := newTestScheduler()
	sv := sched.NewServo()
	sv.Attach(3)
	ch := sched.Channels().Channel(sv.Slot())

	tests := []struct {
		value int
		us    int
	}{
		{0, 544},
		{180, 2400},
		{90, 1472},
		{-20, 544},
		{300, 2400}, // Degrees clamp to 180
		{543, 2400},
		{1472, 1472},
		{5000, 2400},
	}
	for _, tt := range tests {
		sv.Write(tt.value)
		if ch.Ticks() != usTicks(tt.us) {
			t.Errorf("Write(%d): %d ticks, want %d (%dus)", tt.value, ch.Ticks(), usTicks(tt.us), tt.us)
		}
	}

	sv.WriteMicroseconds(100)
	if ch.Ticks() != usTicks(MinPulseWidth) {
		t.Errorf("WriteMicroseconds below range: %d ticks", ch.Ticks())
	}
}

func TestReadBack(t *testing.T) {
	sched, _, _ := newTestScheduler()
	sv := sched.NewServo()
	sv.Attach(3)

	sv.Write(0)
	if sv.Read() != 0 {
		t.Errorf("Read after Write(0) = %d", sv.Read())
	}

	sv.Write(90)
	if got := sv.Read(); got < 88 || got > 90 {
		t.Errorf("Read after Write(90) = %d", got)
	}

	sv.Write(180)
	if got := sv.Read(); got < 177 || got > 180 {
		t.Errorf("Read after Write(180) = %d", got)
	}

	sv.WriteMicroseconds(1500)
	period := int(ReferenceClock().TickPeriodUS())
	if got := sv.ReadMicroseconds(); got > 1500 || 1500-got > period {
		t.Errorf("ReadMicroseconds = %d, want within %dus of 1500", got, period)
	}
}

func TestAttachSetsDefaultWidth(t *testing.T) {
	sched, _, _ := newTestScheduler()
	sv := sched.NewServo()
	sv.Attach(3)
	sv.Write(10)

	sv.Detach()
	sv.Attach(3)
	if got := sched.Channels().Channel(0).Ticks(); got != ReferenceClock().TicksFromUS(DefaultPulseWidth) {
		t.Errorf("Re-attach should reset to the default width, got %d ticks", got)
	}
}

func TestAttachRangeBounds(t *testing.T) {
	tests := []struct {
		name             string
		minUs, maxUs     int
		wantMin, wantMax int
	}{
		{"custom", 1000, 2000, 1000, 2000},
		{"min too low", 200, 2000, MinPulseWidth, 2000},
		{"max too high", 1000, 3500, 1000, MaxPulseWidth},
		{"both high", 2500, 2600, 2500, 2600},
		{"max below new min", 2500, 0, MinPulseWidth, MaxPulseWidth},
		{"inverted", 2000, 1000, 2000, MaxPulseWidth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, _, _ := newTestScheduler()
			sv := sched.NewServo()
			if !sv.AttachRange(5, tt.minUs, tt.maxUs) {
				t.Fatal("AttachRange failed")
			}
			minUs, maxUs := sv.Bounds()
			if minUs != tt.wantMin || maxUs != tt.wantMax {
				t.Errorf("Bounds = (%d, %d), want (%d, %d)", minUs, maxUs, tt.wantMin, tt.wantMax)
			}
			if minUs >= maxUs {
				t.Errorf("Bounds inverted: (%d, %d)", minUs, maxUs)
			}
		})
	}
}

func TestCustomRangeMapping(t *testing.T) {
	sched, _, _ := newTestScheduler()
	sv := sched.NewServo()
	sv.AttachRange(5, 1000, 2000)
	ch := sched.Channels().Channel(sv.Slot())

	sv.Write(0)
	if ch.Ticks() != usTicks(1000) {
		t.Errorf("Write(0) with custom range: %d ticks, want %d", ch.Ticks(), usTicks(1000))
	}
	sv.Write(2400)
	if ch.Ticks() != usTicks(2000) {
		t.Errorf("Width above custom max not clamped: %d ticks", ch.Ticks())
	}
}

func TestAttachConfigureFailure(t *testing.T) {
	sched, gpio, timer := newTestScheduler()
	sv := sched.NewServo()

	if sv.Attach(gpio.badPin) {
		t.Fatal("Attach should fail when the pin cannot be configured")
	}
	if sv.Attached() || sched.Armed() || timer.starts != 0 {
		t.Error("Failed attach must not activate the channel or arm")
	}
}

func TestWriteIgnoredWhenDetached(t *testing.T) {
	sched, _, _ := newTestScheduler()
	sv := sched.NewServo()
	sv.Attach(2)
	sv.Write(45)
	before := sched.Channels().Channel(0).Ticks()

	other := sched.NewServo()
	other.Attach(3)
	sv.Detach()
	sv.Write(170)
	if sched.Channels().Channel(0).Ticks() != before {
		t.Error("Write on a detached handle changed its width")
	}
}

func TestArmOncePerRun(t *testing.T) {
	sched, gpio, timer := newTestScheduler()
	a := sched.NewServo()
	b := sched.NewServo()
	a.Attach(1)
	b.Attach(2)
	if timer.starts != 1 {
		t.Errorf("Expected a single arm, got %d", timer.starts)
	}

	a.Detach()
	if timer.stops != 0 || !sched.Armed() {
		t.Error("Scheduler disarmed with a channel still active")
	}

	// Slot 0 is mid-pulse from the seed when the last channel goes
	b.Detach()
	if timer.stops != 1 || sched.Armed() {
		t.Error("Detaching the last channel should disarm")
	}
	if gpio.pins[1] {
		t.Error("Disarm left a pin HIGH")
	}
	if snap := sched.Snapshot(); snap.Phase != PhaseIdleRefresh || snap.Cursor != InvalidSlot {
		t.Errorf("Expected idle state after disarm, got %+v", snap)
	}

	b.Attach(2)
	if timer.starts != 2 || !gpio.pins[2] {
		t.Error("Re-attach should re-arm on the remaining active channel")
	}
}

func TestEventRing(t *testing.T) {
	ClearEventRing()
	defer ClearEventRing()

	sched, _, _ := newTestScheduler()
	sv := sched.NewServo()
	sv.Attach(1)
	sv.Detach()
	for i := 0; i < MaxChannels; i++ {
		sched.NewServo()
	}

	var names []string
	for _, evt := range Events() {
		names = append(names, EventName(evt.EventType))
	}
	got := strings.Join(names, " ")
	if got != "ATTACH ARM DETACH DISARM NO_SLOT!" {
		t.Errorf("Unexpected event sequence: %s", got)
	}

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})
	DumpEventRing()
	if len(lines) != 7 || !strings.Contains(lines[2], "ARM slot=0") {
		t.Errorf("Unexpected dump: %v", lines)
	}
}

func TestEventRingWraps(t *testing.T) {
	ClearEventRing()
	defer ClearEventRing()

	for i := 0; i < EventRingSize+4; i++ {
		RecordEvent(EvtFrameStart, 0, uint32(i), 0)
	}
	events := Events()
	if len(events) != EventRingSize {
		t.Fatalf("Expected %d events, got %d", EventRingSize, len(events))
	}
	if events[0].Frame != 4 || events[len(events)-1].Frame != EventRingSize+3 {
		t.Errorf("Ring not oldest-first: %d..%d", events[0].Frame, events[len(events)-1].Frame)
	}
}
