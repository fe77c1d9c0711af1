package protocol

import "sync/atomic"

// CommandHandler handles one decoded command; it decodes its own arguments
// from data and must consume exactly them
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware side of the link: it parses host blocks,
// dispatches their commands and acknowledges each block.
type Transport struct {
	synchronized atomic.Bool
	nextSequence atomic.Uint32 // Expected host sequence (0x10-0x1F)

	output        OutputBuffer
	handler       CommandHandler
	resetCallback func()
	errorCallback func(error)
}

// NewTransport creates a synchronized transport writing to output
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		output:  output,
		handler: handler,
	}
	t.synchronized.Store(true)
	t.nextSequence.Store(MessageDest)
	return t
}

// Receive consumes complete blocks from input.
// Partial blocks stay buffered; garbage is skipped up to the next sync byte.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !t.synchronized.Load() {
			idx := -1
			for i, b := range data {
				if b == MessageValueSync {
					idx = i
					break
				}
			}
			if idx < 0 {
				data = nil
				break
			}
			data = data[idx+1:]
			t.synchronized.Store(true)
			t.encodeAck()
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		seq := data[MessagePositionSeq]
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax || seq&^MessageSeqMask != MessageDest {
			t.synchronized.Store(false)
			continue
		}
		if len(data) < msgLen {
			break
		}
		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			t.synchronized.Store(false)
			continue
		}
		crc := uint16(data[msgLen-MessageTrailerCRC])<<8 | uint16(data[msgLen-MessageTrailerCRC+1])
		if crc != CRC16(data[:msgLen-MessageTrailerSize]) {
			t.synchronized.Store(false)
			continue
		}

		frame := data[MessageHeaderSize : msgLen-MessageTrailerSize]
		data = data[msgLen:]

		expected := uint8(t.nextSequence.Load())
		if seq == MessageDest && expected != MessageDest {
			// Host restarted its sequence
			expected = MessageDest
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}
		if seq == expected {
			t.nextSequence.Store(uint32(nextSeq(seq)))
			t.parseFrame(frame)
		}
		// A mismatched sequence is answered with the expected one (NAK)
		t.encodeAck()
	}

	if consumed := input.Available() - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

// parseFrame dispatches every command in a frame
func (t *Transport) parseFrame(frame []byte) {
	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.synchronized.Store(false)
			return
		}
		if t.handler == nil {
			return
		}
		if err := t.handler(uint16(cmdID), &frame); err != nil {
			if t.errorCallback != nil {
				t.errorCallback(err)
			}
			return
		}
	}
}

// encodeAck writes an empty block carrying the next expected sequence
func (t *Transport) encodeAck() {
	block := []byte{MessageLengthMin, uint8(t.nextSequence.Load())}
	t.output.Output(appendTrailer(block))
}

// SendCommand frames a response or command with its VLQ arguments
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	start := t.output.CurPosition()
	t.output.Output([]byte{0, uint8(t.nextSequence.Load())})
	EncodeVLQUint(t.output, uint32(cmdID))
	if args != nil {
		args(t.output)
	}
	t.output.Update(start, uint8(len(t.output.DataSince(start))+MessageTrailerSize))

	crc := CRC16(t.output.DataSince(start))
	t.output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}

// Reset returns the transport to its power-on state
func (t *Transport) Reset() {
	t.synchronized.Store(true)
	t.nextSequence.Store(MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets a callback run when the host restarts its sequence
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetErrorCallback sets a callback for command handler errors
func (t *Transport) SetErrorCallback(callback func(error)) {
	t.errorCallback = callback
}

// Synchronized reports whether the transport is aligned on block boundaries
func (t *Transport) Synchronized() bool {
	return t.synchronized.Load()
}
