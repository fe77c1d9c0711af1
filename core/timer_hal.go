package core

// CompareTimer is the single compare-match timer the scheduler multiplexes.
// The target runs it in clear-timer-on-compare mode with the /256 prescaler
// and calls Scheduler.HandleCompare from the compare-match interrupt.
type CompareTimer interface {
	// SetCompare restarts the count and fires the next interrupt after ticks
	SetCompare(ticks uint8)

	// Start selects CTC mode and the prescaler, then enables the
	// compare-match interrupt
	Start()

	// Stop disables the compare-match interrupt
	Stop()
}
