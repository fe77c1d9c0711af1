// Package protocol implements the framed serial protocol between the servo
// firmware and the host: VLQ-encoded commands inside CRC-checked message
// blocks.
package protocol

// Version is the firmware protocol version reported by identify
const Version = "0.1.0"

// Message block layout:
//
//	len | seq | payload... | crc_hi | crc_lo | sync
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// MessageMax is the scratch output size; several blocks may be queued
	MessageMax = 256
)

// nextSeq advances a host sequence number (0x10-0x1F, wrapping)
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
