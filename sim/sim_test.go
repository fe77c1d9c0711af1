package sim

import (
	"bytes"
	"strings"
	"testing"

	"servomux/core"
)

func ticksFor(us int) uint64 {
	return uint64(core.ReferenceClock().TicksFromUS(uint32(us - core.TrimDuration)))
}

func withinIdleStep(t *testing.T, b *Bench, starts []uint64) {
	t.Helper()
	budget := b.TicksPerFrame()
	step := uint64(core.DefaultIdleStepTicks)
	for i := 1; i < len(starts); i++ {
		period := starts[i] - starts[i-1]
		if period+step < budget || period > budget+step {
			t.Errorf("Frame %d period %d ticks, want %d +/- %d", i, period, budget, step)
		}
	}
}

func TestSingleChannelRefresh(t *testing.T) {
	b := NewBench(core.DefaultConfig())
	sv := b.Scheduler.NewServo()
	if !sv.Attach(3) {
		t.Fatal("Attach failed")
	}

	b.RunFrames(5)

	pulses := b.Pins.Pulses(3)
	if len(pulses) < 4 {
		t.Fatalf("Expected at least 4 pulses in 5 frames, got %d", len(pulses))
	}
	want := uint64(core.ReferenceClock().TicksFromUS(core.DefaultPulseWidth))
	for i, p := range pulses {
		if p.Width != want {
			t.Errorf("Pulse %d width %d ticks, want %d", i, p.Width, want)
		}
	}
	withinIdleStep(t, b, b.FrameStarts())
}

func TestChannelsPulseInSlotOrder(t *testing.T) {
	b := NewBench(core.DefaultConfig())
	widths := []int{1500, 1000, 2400}
	pins := []core.GPIOPin{4, 2, 7}

	for i, us := range widths {
		sv := b.Scheduler.NewServo()
		sv.Attach(pins[i])
		sv.WriteMicroseconds(us)
	}

	b.RunFrames(4)

	if b.Pins.MaxSimultaneousHigh() != 1 {
		t.Errorf("At most one pin may be HIGH, saw %d", b.Pins.MaxSimultaneousHigh())
	}

	first := b.Pins.Pulses(pins[0])
	second := b.Pins.Pulses(pins[1])
	third := b.Pins.Pulses(pins[2])
	if len(first) < 3 || len(second) < 3 || len(third) < 3 {
		t.Fatalf("Expected 3+ pulses per channel, got %d %d %d", len(first), len(second), len(third))
	}

	// The first pulse of channel 0 was seeded before the writes landed
	for f := 1; f < 3; f++ {
		if first[f].Width != ticksFor(widths[0]) {
			t.Errorf("Frame %d: channel 0 width %d, want %d", f, first[f].Width, ticksFor(widths[0]))
		}
		if second[f].Width != ticksFor(widths[1]) || third[f].Width != ticksFor(widths[2]) {
			t.Errorf("Frame %d: widths %d %d, want %d %d", f, second[f].Width, third[f].Width,
				ticksFor(widths[1]), ticksFor(widths[2]))
		}
		if second[f].Start != first[f].Start+first[f].Width {
			t.Errorf("Frame %d: channel 1 started at %d, expected right after channel 0 at %d",
				f, second[f].Start, first[f].Start+first[f].Width)
		}
		if third[f].Start != second[f].Start+second[f].Width {
			t.Errorf("Frame %d: channel 2 started at %d, expected right after channel 1 at %d",
				f, third[f].Start, second[f].Start+second[f].Width)
		}
	}

	withinIdleStep(t, b, b.FrameStarts())
}

func TestFrameBudgetWithFiveChannels(t *testing.T) {
	b := NewBench(core.DefaultConfig())
	for i := 0; i < core.MaxChannels; i++ {
		sv := b.Scheduler.NewServo()
		sv.Attach(core.GPIOPin(i))
		sv.WriteMicroseconds(core.MaxPulseWidth)
	}

	b.RunFrames(6)

	starts := b.FrameStarts()
	if len(starts) < 5 {
		t.Fatalf("Expected 5+ frames, got %d", len(starts))
	}
	withinIdleStep(t, b, starts)

	if b.Scheduler.Stats().LastIdle == 0 {
		t.Error("Five max-width pulses should still leave idle time in the frame")
	}
}

func TestWriteLatchedAtNextPulse(t *testing.T) {
	b := NewBench(core.DefaultConfig())
	sv := b.Scheduler.NewServo()
	sv.Attach(5)

	// Mid-pulse: the new width must not change the pulse in flight
	b.Timer.Advance(50)
	if !b.Pins.Level(5) {
		t.Fatal("Pin should be HIGH during its first pulse")
	}
	sv.WriteMicroseconds(2000)

	b.RunFrames(2)

	pulses := b.Pins.Pulses(5)
	if len(pulses) < 2 {
		t.Fatalf("Expected 2+ pulses, got %d", len(pulses))
	}
	if want := uint64(core.ReferenceClock().TicksFromUS(core.DefaultPulseWidth)); pulses[0].Width != want {
		t.Errorf("In-flight pulse width %d, want unchanged %d", pulses[0].Width, want)
	}
	if pulses[1].Width != ticksFor(2000) {
		t.Errorf("Next pulse width %d, want %d", pulses[1].Width, ticksFor(2000))
	}
}

func TestDetachCompletesInFlightPulse(t *testing.T) {
	b := NewBench(core.DefaultConfig())
	a := b.Scheduler.NewServo()
	c := b.Scheduler.NewServo()
	a.Attach(0)
	c.Attach(1)
	c.WriteMicroseconds(1000)

	// Channel 1 goes HIGH when channel 0 finishes
	b.Timer.Advance(ticksFor(core.DefaultPulseWidth+core.TrimDuration) + 5)
	if !b.Pins.Level(1) {
		t.Fatal("Channel 1 should be pulsing")
	}
	c.Detach()

	b.RunFrames(4)

	pulses := b.Pins.Pulses(1)
	if len(pulses) != 1 {
		t.Fatalf("Expected only the in-flight pulse on a detached channel, got %d", len(pulses))
	}
	if pulses[0].Width != ticksFor(1000) {
		t.Errorf("In-flight pulse cut short: %d ticks, want %d", pulses[0].Width, ticksFor(1000))
	}
	if len(b.Pins.Pulses(0)) < 4 {
		t.Errorf("Channel 0 should keep pulsing, got %d pulses", len(b.Pins.Pulses(0)))
	}
	if !b.Scheduler.Armed() {
		t.Error("Scheduler must stay armed while a channel is active")
	}
}

func TestDetachLastChannelDisarms(t *testing.T) {
	b := NewBench(core.DefaultConfig())
	sv := b.Scheduler.NewServo()
	sv.Attach(6)

	b.Timer.Advance(40)
	sv.Detach()

	if b.Timer.Running() || b.Scheduler.Armed() {
		t.Fatal("Detaching the last channel should stop the timer")
	}
	if b.Pins.Level(6) {
		t.Error("Pin left HIGH after disarm")
	}
	// The seed pulse is cut at the detach instead of running its full width
	if cut := b.Pins.Pulses(6); len(cut) != 1 || cut[0].Width != 40 {
		t.Errorf("Expected one 40-tick pulse ended by disarm, got %+v", cut)
	}

	events := b.Timer.Events()
	b.RunFrames(3)
	if b.Timer.Events() != events {
		t.Error("Compare events fired while disarmed")
	}

	// Re-attach starts a fresh frame
	sv.Attach(6)
	if !b.Scheduler.Armed() || !b.Pins.Level(6) {
		t.Fatal("Re-attach should re-arm and seed a pulse")
	}
	start := b.Timer.Now()
	b.RunFrames(2)
	pulses := b.Pins.Pulses(6)
	if len(pulses) < 2 || pulses[1].Start != start {
		t.Errorf("Expected a new pulse at %d after re-arm, got %+v", start, pulses)
	}
}

func TestSlowerClock(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Clock = core.Clock{CyclesPerMicrosecond: 8}
	b := NewBench(cfg)
	sv := b.Scheduler.NewServo()
	sv.Attach(2)

	b.RunFrames(4)

	if b.TicksPerFrame() != 625 {
		t.Errorf("Expected 625 ticks per frame at 8MHz, got %d", b.TicksPerFrame())
	}
	withinIdleStep(t, b, b.FrameStarts())
}

func TestWriteTrace(t *testing.T) {
	b := NewBench(core.DefaultConfig())
	sv := b.Scheduler.NewServo()
	sv.Attach(1)
	b.RunFrames(3)

	var buf bytes.Buffer
	if err := b.WriteTrace(&buf); err != nil {
		t.Fatalf("WriteTrace failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "pin  1") || !strings.Contains(out, "frame   1") {
		t.Errorf("Unexpected trace output:\n%s", out)
	}
}

func TestCompareIntervalIsCompareValue(t *testing.T) {
	timer := NewTimer()
	fired := 0
	timer.OnCompare(func() { fired++ })
	timer.SetCompare(93)
	timer.Start()

	if !timer.Step() || timer.Now() != 93 {
		t.Errorf("First match at tick %d, want 93", timer.Now())
	}
	timer.SetCompare(0)
	timer.Step()
	if timer.Now() != 94 {
		t.Errorf("Zero compare should fire on the next tick, now %d", timer.Now())
	}

	timer.SetCompare(24)
	timer.Advance(100)
	if fired != 2+4 || timer.Now() != 194 {
		t.Errorf("Expected 4 idle matches in 100 ticks, fired %d now %d", fired-2, timer.Now())
	}

	timer.Stop()
	if timer.Step() {
		t.Error("Stopped timer fired")
	}
}
