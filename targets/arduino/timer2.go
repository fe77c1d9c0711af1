//go:build atmega328p

package main

import (
	"device/avr"
)

// Timer2 is the ATmega328P's 8-bit Timer2 as a core.CompareTimer.
// Timer1 stays free for the board's 16-bit uses.
type Timer2 struct{}

// SetCompare restarts the count with a new compare value
func (Timer2) SetCompare(ticks uint8) {
	avr.TCNT2.Set(0)
	avr.OCR2A.Set(ticks)
}

// Start selects CTC mode at clk/256 and enables the compare interrupt
func (Timer2) Start() {
	avr.TCCR2A.Set(avr.TCCR2A_WGM21)
	avr.TCCR2B.Set(avr.TCCR2B_CS22 | avr.TCCR2B_CS21)
	avr.TIFR2.Set(avr.TIFR2_OCF2A)
	avr.TIMSK2.SetBits(avr.TIMSK2_OCIE2A)
}

// Stop disables the compare interrupt and halts the timer
func (Timer2) Stop() {
	avr.TIMSK2.ClearBits(avr.TIMSK2_OCIE2A)
	avr.TCCR2B.Set(0)
}
