package mcu

import (
	"io"
	"sync"

	"servomux/core"
	"servomux/protocol"
	"servomux/sim"
)

// VirtualDevice is the device name that selects the simulated board
const VirtualDevice = "sim"

// VirtualPort is a serial.Port backed by the servo firmware running on the
// simulator. Each block written advances simulated time by one frame.
type VirtualPort struct {
	mu       sync.Mutex
	bench    *sim.Bench
	registry *core.CommandRegistry
	fw       *protocol.Transport
	input    *protocol.FifoBuffer
	output   *protocol.ScratchOutput

	pending   chan []byte
	rest      []byte // Unread tail of the last chunk
	closed    chan struct{}
	closeOnce sync.Once
}

// NewVirtualPort boots the firmware command stack on a simulated board
func NewVirtualPort(cfg core.Config) *VirtualPort {
	p := &VirtualPort{
		bench:    sim.NewBench(cfg),
		registry: core.NewCommandRegistry(),
		input:    protocol.NewFifoBuffer(protocol.MessageMax),
		output:   protocol.NewScratchOutput(),
		pending:  make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
	p.fw = protocol.NewTransport(p.output, p.registry.Dispatch)
	core.RegisterServoCommands(p.registry, p.bench.Scheduler, p.fw.SendCommand)
	return p
}

// Bench returns the simulated board
func (p *VirtualPort) Bench() *sim.Bench {
	return p.bench
}

// Write feeds host bytes to the firmware transport
func (p *VirtualPort) Write(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, io.ErrClosedPipe
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	written := p.input.Write(b)
	p.fw.Receive(p.input)
	p.bench.RunFrames(1)

	if out := p.output.Result(); len(out) > 0 {
		chunk := append([]byte(nil), out...)
		p.output.Reset()
		select {
		case p.pending <- chunk:
		case <-p.closed:
			return written, io.ErrClosedPipe
		}
	}
	return written, nil
}

// Read returns firmware output, blocking until some is available
func (p *VirtualPort) Read(b []byte) (int, error) {
	if len(p.rest) == 0 {
		select {
		case chunk := <-p.pending:
			p.rest = chunk
		case <-p.closed:
			return 0, io.EOF
		}
	}
	n := copy(b, p.rest)
	p.rest = p.rest[n:]
	return n, nil
}

// Flush drops queued firmware output
func (p *VirtualPort) Flush() error {
	for {
		select {
		case <-p.pending:
		default:
			return nil
		}
	}
}

// Close stops the port; pending reads return io.EOF
func (p *VirtualPort) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}
