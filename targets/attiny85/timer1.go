//go:build attiny85

package main

import (
	"device/avr"
)

// Timer1 is the ATtiny85's Timer1 as a core.CompareTimer.
// CTC1 clears the count on OCR1C; the interrupt fires on OCR1A. Both hold
// the same value so the interrupt lands on the clear.
type Timer1 struct{}

// SetCompare restarts the count with a new compare value
func (Timer1) SetCompare(ticks uint8) {
	avr.TCNT1.Set(0)
	avr.OCR1A.Set(ticks)
	avr.OCR1C.Set(ticks)
}

// Start selects CTC mode at clk/256 and enables the compare interrupt
func (Timer1) Start() {
	avr.TCCR1.Set(avr.TCCR1_CTC1 | avr.TCCR1_CS13 | avr.TCCR1_CS10)
	avr.TIFR.Set(avr.TIFR_OCF1A) // Drop any stale match
	avr.TIMSK.SetBits(avr.TIMSK_OCIE1A)
}

// Stop disables the compare interrupt and halts the timer
func (Timer1) Stop() {
	avr.TIMSK.ClearBits(avr.TIMSK_OCIE1A)
	avr.TCCR1.Set(0)
}
