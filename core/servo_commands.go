package core

import (
	"errors"

	"servomux/protocol"
)

// ErrInvalidOID is returned for an oid that does not fit the 8-bit oid space
var ErrInvalidOID = errors.New("oid out of range")

// Responder sends a response frame to the host
type Responder func(cmdID uint16, args func(output protocol.OutputBuffer))

// ServoCommands binds host object IDs to servo handles
type ServoCommands struct {
	sched   *Scheduler
	servos  map[uint8]*Servo
	respond Responder
}

// RegisterServoCommands registers the servo command set with r
func RegisterServoCommands(r *CommandRegistry, sched *Scheduler, respond Responder) *ServoCommands {
	c := &ServoCommands{
		sched:   sched,
		servos:  make(map[uint8]*Servo),
		respond: respond,
	}

	r.Register(protocol.CmdIdentify, protocol.CommandFormats[protocol.CmdIdentify], c.handleIdentify)
	r.Register(protocol.CmdConfigServo, protocol.CommandFormats[protocol.CmdConfigServo], c.handleConfigServo)
	r.Register(protocol.CmdServoAttach, protocol.CommandFormats[protocol.CmdServoAttach], c.handleAttach)
	r.Register(protocol.CmdServoDetach, protocol.CommandFormats[protocol.CmdServoDetach], c.handleDetach)
	r.Register(protocol.CmdServoWrite, protocol.CommandFormats[protocol.CmdServoWrite], c.handleWrite)
	r.Register(protocol.CmdServoWriteUS, protocol.CommandFormats[protocol.CmdServoWriteUS], c.handleWriteUS)
	r.Register(protocol.CmdServoQuery, protocol.CommandFormats[protocol.CmdServoQuery], c.handleQuery)

	return c
}

// Servo returns the handle bound to oid
func (c *ServoCommands) Servo(oid uint8) (*Servo, bool) {
	sv, ok := c.servos[oid]
	return sv, ok
}

// lookup decodes an oid and returns its handle, nil if not configured
func (c *ServoCommands) lookup(data *[]byte) (uint8, *Servo, error) {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return 0, nil, err
	}
	if oid > 0xFF {
		return 0, nil, ErrInvalidOID
	}
	return uint8(oid), c.servos[uint8(oid)], nil
}

// handleIdentify reports version and channel capacity
// Format: identify
func (c *ServoCommands) handleIdentify(data *[]byte) error {
	c.respond(protocol.RespIdentify, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQString(output, protocol.Version)
		protocol.EncodeVLQUint(output, MaxChannels)
	})
	return nil
}

// handleConfigServo reserves a channel slot for oid
// Format: config_servo oid=%c
func (c *ServoCommands) handleConfigServo(data *[]byte) error {
	oid, sv, err := c.lookup(data)
	if err != nil {
		return err
	}
	if sv != nil {
		// Already configured, slots are never released
		return nil
	}
	c.servos[oid] = c.sched.NewServo()
	return nil
}

// handleAttach starts pulsing the servo
// Format: servo_attach oid=%c pin=%u min_us=%u max_us=%u
func (c *ServoCommands) handleAttach(data *[]byte) error {
	_, sv, err := c.lookup(data)
	if err != nil {
		return err
	}
	pin, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	minUs, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	maxUs, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	if sv == nil {
		// Invalid OID - servo not configured
		return nil
	}
	if !sv.AttachRange(GPIOPin(pin), int(minUs), int(maxUs)) {
		DebugPrintln("[SERVO] attach failed on pin " + Itoa(int(pin)))
	}
	return nil
}

// handleDetach stops pulsing the servo
// Format: servo_detach oid=%c
func (c *ServoCommands) handleDetach(data *[]byte) error {
	_, sv, err := c.lookup(data)
	if err != nil {
		return err
	}
	if sv != nil {
		sv.Detach()
	}
	return nil
}

// handleWrite sets an angle or pulse width
// Format: servo_write oid=%c value=%i
func (c *ServoCommands) handleWrite(data *[]byte) error {
	_, sv, err := c.lookup(data)
	if err != nil {
		return err
	}
	value, err := protocol.DecodeVLQInt(data)
	if err != nil {
		return err
	}
	if sv != nil {
		sv.Write(int(value))
	}
	return nil
}

// handleWriteUS sets a pulse width in microseconds
// Format: servo_write_us oid=%c value=%u
func (c *ServoCommands) handleWriteUS(data *[]byte) error {
	_, sv, err := c.lookup(data)
	if err != nil {
		return err
	}
	value, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if sv != nil {
		sv.WriteMicroseconds(int(value))
	}
	return nil
}

// handleQuery reports the last commanded position
// Format: servo_query oid=%c
func (c *ServoCommands) handleQuery(data *[]byte) error {
	oid, sv, err := c.lookup(data)
	if err != nil {
		return err
	}

	st := protocol.ServoState{OID: oid}
	if sv != nil {
		st.Attached = sv.Attached()
		st.Angle = sv.Read()
		st.US = sv.ReadMicroseconds()
	}
	c.respond(protocol.RespServoState, func(output protocol.OutputBuffer) {
		protocol.EncodeServoState(output, st)
	})
	return nil
}
