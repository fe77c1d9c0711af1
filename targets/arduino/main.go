//go:build atmega328p

package main

import (
	"device/avr"
	"machine"
	"runtime/interrupt"
	"servomux/core"
	"servomux/protocol"
	"servomux/targets/avrhal"
	"time"
)

// BaudRate is the host link speed
const BaudRate = 250000

// maxPin is PD7. machine numbers PORTB from 0, PORTC from 8, PORTD from 16.
const maxPin core.GPIOPin = 23

var (
	scheduler *core.Scheduler

	// Buffers for communication
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport
	registry     *core.CommandRegistry

	// Debug counters
	msgerrors uint32
)

func main() {
	uart := machine.Serial
	uart.Configure(machine.UARTConfig{BaudRate: BaudRate})

	scheduler = core.NewScheduler(core.DefaultConfig(), avrhal.NewGPIODriver(maxPin), Timer2{})
	interrupt.New(avr.IRQ_TIMER2_COMPA, handleTimer2)

	inputBuffer = protocol.NewFifoBuffer(128)
	outputBuffer = protocol.NewScratchOutput()

	registry = core.NewCommandRegistry()
	transport = protocol.NewTransport(outputBuffer, registry.Dispatch)
	transport.SetResetCallback(func() {
		core.DebugPrintln("[PROTO] host restarted sequence")
	})
	transport.SetErrorCallback(func(err error) {
		msgerrors++
		core.DebugPrintln("[PROTO] " + err.Error())
	})
	core.RegisterServoCommands(registry, scheduler, transport.SendCommand)

	for {
		// Drain the UART into the FIFO
		for uart.Buffered() > 0 {
			b, err := uart.ReadByte()
			if err != nil {
				msgerrors++
				break
			}
			if inputBuffer.Write([]byte{b}) == 0 {
				msgerrors++
				break
			}
		}

		if inputBuffer.Available() > 0 {
			data := inputBuffer.Data()
			originalLen := len(data)
			inputBuf := protocol.NewSliceInputBuffer(data)

			transport.Receive(inputBuf)

			if consumed := originalLen - inputBuf.Available(); consumed > 0 {
				inputBuffer.Pop(consumed)
			}
		}

		if result := outputBuffer.Result(); len(result) > 0 {
			uart.Write(result)
			outputBuffer.Reset()
		}

		time.Sleep(100 * time.Microsecond)
	}
}

// handleTimer2 routes the Timer2 compare match to the scheduler
func handleTimer2(interrupt.Interrupt) {
	scheduler.HandleCompare()
}
