//go:build !tinygo

package core

// irqState is the saved interrupt mask on regular Go.
// There is no interrupt controller here; the mask depth is tracked so host
// tests can check which code ran inside a critical section.
type irqState int32

var maskDepth int32

// disableInterrupts enters a critical section and returns the previous depth
func disableInterrupts() irqState {
	prev := irqState(maskDepth)
	maskDepth++
	return prev
}

// restoreInterrupts leaves the critical section entered by disableInterrupts
func restoreInterrupts(state irqState) {
	maskDepth = int32(state)
}

// interruptsMasked reports whether a critical section is open
func interruptsMasked() bool {
	return maskDepth > 0
}
