package core

import "sync/atomic"

// MaxChannels is the number of servo slots the scheduler can multiplex
const MaxChannels = 5

// InvalidSlot marks a handle that could not get a channel
const InvalidSlot uint8 = 255

// Channel is one servo slot.
// pin, active and ticks are written by handle calls and read by the
// compare interrupt; high is written only by the interrupt.
type Channel struct {
	pin    atomic.Uint32
	active atomic.Bool
	ticks  atomic.Uint32
	high   atomic.Bool
}

// Pin returns the output pin driven by this channel
func (c *Channel) Pin() GPIOPin {
	return GPIOPin(c.pin.Load())
}

// Active reports whether the channel is pulsed each frame
func (c *Channel) Active() bool {
	return c.active.Load()
}

// Ticks returns the pulse width in timer ticks
func (c *Channel) Ticks() uint32 {
	return c.ticks.Load()
}

// High reports the level the scheduler last drove on the pin
func (c *Channel) High() bool {
	return c.high.Load()
}

// ChannelTable is the fixed set of servo slots.
// Slots are handed out once and never returned; the table itself does no
// locking.
type ChannelTable struct {
	channels  [MaxChannels]Channel
	allocated uint8
}

// Allocate reserves the next unused slot, or returns InvalidSlot when the
// table is full
func (t *ChannelTable) Allocate() uint8 {
	if t.allocated >= MaxChannels {
		return InvalidSlot
	}
	slot := t.allocated
	t.allocated++
	return slot
}

// Allocated returns how many slots have been handed out
func (t *ChannelTable) Allocated() int {
	return int(t.allocated)
}

// Channel returns the slot's channel, or nil for an invalid slot
func (t *ChannelTable) Channel(slot uint8) *Channel {
	if slot >= MaxChannels {
		return nil
	}
	return &t.channels[slot]
}

// NextActive returns the first active slot at or after start
func (t *ChannelTable) NextActive(start uint8) uint8 {
	for i := start; i < MaxChannels; i++ {
		if t.channels[i].active.Load() {
			return i
		}
	}
	return InvalidSlot
}

// AnyActive reports whether at least one slot is active
func (t *ChannelTable) AnyActive() bool {
	return t.NextActive(0) != InvalidSlot
}
