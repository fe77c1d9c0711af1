package core

import "errors"

var errMockPin = errors.New("mock: pin not available")

// MockGPIODriver is a test implementation of GPIODriver
type MockGPIODriver struct {
	pins       map[GPIOPin]bool
	configured map[GPIOPin]bool
	badPin     GPIOPin
	writes     int
}

func NewMockGPIODriver() *MockGPIODriver {
	return &MockGPIODriver{
		pins:       make(map[GPIOPin]bool),
		configured: make(map[GPIOPin]bool),
		badPin:     99,
	}
}

func (m *MockGPIODriver) ConfigureOutput(pin GPIOPin) error {
	if pin == m.badPin {
		return errMockPin
	}
	m.configured[pin] = true
	m.pins[pin] = false
	return nil
}

func (m *MockGPIODriver) SetPin(pin GPIOPin, value bool) error {
	if !m.configured[pin] {
		return errMockPin
	}
	m.pins[pin] = value
	m.writes++
	return nil
}

// MockTimer records what the scheduler asks of the compare timer
type MockTimer struct {
	compare       uint8
	starts        int
	stops         int
	running       bool
	startedMasked bool
}

func (m *MockTimer) SetCompare(ticks uint8) {
	m.compare = ticks
}

func (m *MockTimer) Start() {
	m.starts++
	m.running = true
	m.startedMasked = interruptsMasked()
}

func (m *MockTimer) Stop() {
	m.stops++
	m.running = false
}

func newTestScheduler() (*Scheduler, *MockGPIODriver, *MockTimer) {
	gpio := NewMockGPIODriver()
	timer := &MockTimer{}
	return NewScheduler(DefaultConfig(), gpio, timer), gpio, timer
}

// setChannel fills a table slot directly, bypassing handles
func setChannel(table *ChannelTable, slot uint8, pin GPIOPin, ticks uint32, active bool) {
	ch := &table.channels[slot]
	ch.pin.Store(uint32(pin))
	ch.ticks.Store(ticks)
	ch.active.Store(active)
}
