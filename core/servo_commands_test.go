package core

import (
	"errors"
	"testing"

	"servomux/protocol"
)

type response struct {
	id      uint16
	payload []byte
}

type servoHarness struct {
	registry  *CommandRegistry
	sched     *Scheduler
	gpio      *MockGPIODriver
	cmds      *ServoCommands
	responses []response
}

func newServoHarness() *servoHarness {
	h := &servoHarness{registry: NewCommandRegistry()}
	h.sched, h.gpio, _ = newTestScheduler()
	h.cmds = RegisterServoCommands(h.registry, h.sched, func(cmdID uint16, args func(protocol.OutputBuffer)) {
		out := protocol.NewScratchOutput()
		args(out)
		h.responses = append(h.responses, response{id: cmdID, payload: append([]byte(nil), out.Result()...)})
	})
	return h
}

func (h *servoHarness) send(t *testing.T, cmdID uint16, args ...int32) {
	t.Helper()
	out := protocol.NewScratchOutput()
	for _, a := range args {
		protocol.EncodeVLQInt(out, a)
	}
	data := out.Result()
	if err := h.registry.Dispatch(cmdID, &data); err != nil {
		t.Fatalf("Dispatch(%d) failed: %v", cmdID, err)
	}
}

func TestServoCommandsRegistered(t *testing.T) {
	h := newServoHarness()
	if h.registry.Count() != 7 {
		t.Errorf("Expected 7 servo commands, got %d", h.registry.Count())
	}
	cmd, ok := h.registry.GetCommand(protocol.CmdServoAttach)
	if !ok || cmd.Format != protocol.CommandFormats[protocol.CmdServoAttach] {
		t.Errorf("servo_attach not registered with its format")
	}
}

func TestIdentifyCommand(t *testing.T) {
	h := newServoHarness()
	h.send(t, protocol.CmdIdentify)

	if len(h.responses) != 1 || h.responses[0].id != protocol.RespIdentify {
		t.Fatalf("Expected one identify response, got %+v", h.responses)
	}
	payload := h.responses[0].payload
	version, err := protocol.DecodeVLQString(&payload)
	if err != nil || version != protocol.Version {
		t.Errorf("Version %q (%v), want %q", version, err, protocol.Version)
	}
	servos, _ := protocol.DecodeVLQUint(&payload)
	if servos != MaxChannels {
		t.Errorf("Reported %d servos, want %d", servos, MaxChannels)
	}
}

func TestServoCommandFlow(t *testing.T) {
	h := newServoHarness()

	h.send(t, protocol.CmdConfigServo, 3)
	h.send(t, protocol.CmdServoAttach, 3, 9, 1000, 2000)

	sv, ok := h.cmds.Servo(3)
	if !ok || !sv.Attached() {
		t.Fatal("Servo 3 should be configured and attached")
	}
	if minUs, maxUs := sv.Bounds(); minUs != 1000 || maxUs != 2000 {
		t.Errorf("Bounds (%d, %d), want (1000, 2000)", minUs, maxUs)
	}
	if !h.gpio.pins[9] || !h.sched.Armed() {
		t.Error("Attach should arm and seed pin 9")
	}

	h.send(t, protocol.CmdServoWrite, 3, 180)
	h.send(t, protocol.CmdServoQuery, 3)

	payload := h.responses[len(h.responses)-1].payload
	st, err := protocol.DecodeServoState(&payload)
	if err != nil {
		t.Fatalf("DecodeServoState failed: %v", err)
	}
	if st.OID != 3 || !st.Attached || st.US != sv.ReadMicroseconds() || st.Angle != sv.Read() {
		t.Errorf("Unexpected state %+v", st)
	}

	h.send(t, protocol.CmdServoWriteUS, 3, 1500)
	if got := h.sched.Channels().Channel(sv.Slot()).Ticks(); got != usTicks(1500) {
		t.Errorf("write_us gave %d ticks, want %d", got, usTicks(1500))
	}

	h.send(t, protocol.CmdServoDetach, 3)
	if sv.Attached() || h.sched.Armed() {
		t.Error("Detach should stop the only channel and disarm")
	}
}

func TestConfigServoIsIdempotent(t *testing.T) {
	h := newServoHarness()
	h.send(t, protocol.CmdConfigServo, 1)
	first, _ := h.cmds.Servo(1)
	h.send(t, protocol.CmdConfigServo, 1)
	second, _ := h.cmds.Servo(1)

	if first != second || h.sched.Stats().ChannelsUsed != 1 {
		t.Error("Re-configuring an oid must not take another slot")
	}
}

func TestUnknownOIDIgnored(t *testing.T) {
	h := newServoHarness()
	h.send(t, protocol.CmdServoAttach, 8, 2, 0, 0)
	h.send(t, protocol.CmdServoWrite, 8, 90)
	h.send(t, protocol.CmdServoDetach, 8)

	if h.sched.Armed() {
		t.Error("Command for an unconfigured oid armed the scheduler")
	}

	h.send(t, protocol.CmdServoQuery, 8)
	payload := h.responses[0].payload
	st, _ := protocol.DecodeServoState(&payload)
	if st.OID != 8 || st.Attached {
		t.Errorf("Unexpected state for unknown oid: %+v", st)
	}
}

func TestTruncatedArguments(t *testing.T) {
	h := newServoHarness()
	h.send(t, protocol.CmdConfigServo, 0)

	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, 0)
	data := out.Result()
	if err := h.registry.Dispatch(protocol.CmdServoAttach, &data); err == nil {
		t.Error("Expected an error for a truncated servo_attach")
	}
}

func TestOIDAboveRangeRejected(t *testing.T) {
	h := newServoHarness()
	h.send(t, protocol.CmdConfigServo, 44)
	h.send(t, protocol.CmdServoAttach, 44, 3, 0, 0)
	sv, _ := h.cmds.Servo(44)
	before := sv.ReadMicroseconds()

	// 300 would alias oid 44 if truncated to 8 bits
	for _, cmdID := range []uint16{protocol.CmdConfigServo, protocol.CmdServoWrite, protocol.CmdServoDetach} {
		out := protocol.NewScratchOutput()
		protocol.EncodeVLQUint(out, 300)
		protocol.EncodeVLQInt(out, 2400)
		data := out.Result()
		if err := h.registry.Dispatch(cmdID, &data); !errors.Is(err, ErrInvalidOID) {
			t.Errorf("Command %d with oid 300: got %v, want ErrInvalidOID", cmdID, err)
		}
	}

	if !sv.Attached() || sv.ReadMicroseconds() != before {
		t.Error("Out-of-range oid changed the servo bound to oid 44")
	}
	if h.sched.Stats().ChannelsUsed != 1 {
		t.Errorf("Out-of-range oid took a slot, %d used", h.sched.Stats().ChannelsUsed)
	}
}
