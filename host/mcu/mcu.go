// Package mcu is the host-side client for the servo firmware
package mcu

import (
	"errors"
	"fmt"
	"time"

	"servomux/core"
	"servomux/host/serial"
	"servomux/protocol"
)

// ErrNotConnected is returned by calls on a closed client
var ErrNotConnected = errors.New("not connected to MCU")

// DefaultTimeout bounds each command's ACK and response wait
const DefaultTimeout = 2 * time.Second

// Identity is the decoded identify_response
type Identity struct {
	Version string
	Servos  int
}

// MCU represents a connection to a servo controller
type MCU struct {
	// Transport layer
	transport *protocol.HostTransport

	// Serial port
	port serial.Port

	timeout   time.Duration
	connected bool
}

// New wraps an open port. The caller hands ownership of port to the client.
func New(port serial.Port) *MCU {
	return &MCU{
		transport: protocol.NewHostTransport(port),
		port:      port,
		timeout:   DefaultTimeout,
		connected: true,
	}
}

// Connect opens the configured port, or a simulated board at the
// reference clock when the device is VirtualDevice
func Connect(cfg *serial.Config) (*MCU, error) {
	if cfg != nil && cfg.Device == VirtualDevice {
		return New(NewVirtualPort(core.DefaultConfig())), nil
	}

	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush serial port: %w", err)
	}

	// Give the board time to come out of reset
	time.Sleep(100 * time.Millisecond)

	return New(port), nil
}

// SetTimeout changes the per-command wait
func (m *MCU) SetTimeout(timeout time.Duration) {
	m.timeout = timeout
}

// Close closes the connection to the MCU
func (m *MCU) Close() error {
	if !m.connected {
		return nil
	}
	m.connected = false
	return m.transport.Close()
}

// IsConnected returns whether the MCU is connected
func (m *MCU) IsConnected() bool {
	return m.connected
}

// Identify asks the firmware for its version and channel count
func (m *MCU) Identify() (Identity, error) {
	var id Identity
	payload, err := m.request(protocol.CmdIdentify, nil, protocol.RespIdentify)
	if err != nil {
		return id, err
	}

	version, err := protocol.DecodeVLQString(&payload)
	if err != nil {
		return id, fmt.Errorf("failed to decode version: %w", err)
	}
	servos, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return id, fmt.Errorf("failed to decode servo count: %w", err)
	}
	id.Version = version
	id.Servos = int(servos)
	return id, nil
}

// ConfigServo reserves a channel for oid
func (m *MCU) ConfigServo(oid uint8) error {
	return m.send(protocol.CmdConfigServo, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
	})
}

// Attach starts pulsing oid on pin. Zero bounds keep the firmware's
// current range.
func (m *MCU) Attach(oid uint8, pin uint32, minUs, maxUs int) error {
	return m.send(protocol.CmdServoAttach, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
		protocol.EncodeVLQUint(output, pin)
		protocol.EncodeVLQUint(output, uint32(minUs))
		protocol.EncodeVLQUint(output, uint32(maxUs))
	})
}

// Detach stops pulsing oid
func (m *MCU) Detach(oid uint8) error {
	return m.send(protocol.CmdServoDetach, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
	})
}

// Write sends an angle (below 544) or a pulse width in microseconds
func (m *MCU) Write(oid uint8, value int) error {
	return m.send(protocol.CmdServoWrite, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
		protocol.EncodeVLQInt(output, int32(value))
	})
}

// WriteMicroseconds sends a pulse width in microseconds
func (m *MCU) WriteMicroseconds(oid uint8, us int) error {
	if us < 0 {
		return fmt.Errorf("negative pulse width %d", us)
	}
	return m.send(protocol.CmdServoWriteUS, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
		protocol.EncodeVLQUint(output, uint32(us))
	})
}

// Query reads back the servo's attach state and last commanded position
func (m *MCU) Query(oid uint8) (protocol.ServoState, error) {
	payload, err := m.request(protocol.CmdServoQuery, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
	}, protocol.RespServoState)
	if err != nil {
		return protocol.ServoState{}, err
	}

	st, err := protocol.DecodeServoState(&payload)
	if err != nil {
		return st, fmt.Errorf("failed to decode servo_state: %w", err)
	}
	if st.OID != oid {
		return st, fmt.Errorf("servo_state for oid %d, expected %d", st.OID, oid)
	}
	return st, nil
}

// send transmits one command and waits for its ACK
func (m *MCU) send(cmdID uint16, args func(output protocol.OutputBuffer)) error {
	if !m.connected {
		return ErrNotConnected
	}
	if err := m.transport.SendCommandWithTimeout(cmdID, args, m.timeout); err != nil {
		return fmt.Errorf("failed to send %s: %w", commandName(cmdID), err)
	}
	return nil
}

// request sends a command and returns the body of the matching response,
// skipping any other responses that arrive first
func (m *MCU) request(cmdID uint16, args func(output protocol.OutputBuffer), respID uint16) ([]byte, error) {
	if err := m.send(cmdID, args); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(m.timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("no %s response within %v", commandName(respID), m.timeout)
		}
		msg, err := m.transport.ReceiveResponse(remaining)
		if err != nil {
			return nil, fmt.Errorf("failed to receive %s: %w", commandName(respID), err)
		}

		payload := msg.Payload
		id, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response ID: %w", err)
		}
		if uint16(id) == respID {
			return payload, nil
		}
	}
}

// commandName returns the message's dictionary name
func commandName(id uint16) string {
	format, ok := protocol.CommandFormats[id]
	if !ok {
		return fmt.Sprintf("command %d", id)
	}
	for i, c := range format {
		if c == ' ' {
			return format[:i]
		}
	}
	return format
}
