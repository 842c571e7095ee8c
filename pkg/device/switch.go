package device

import (
	"sync"

	"github.com/itohio/gospl/pkg/battery"
	"github.com/itohio/gospl/pkg/config"
)

// MockSwitch is a mode switch moved by software.
type MockSwitch struct {
	mu       sync.RWMutex
	position Position
	changed  chan struct{}
}

// NewMockSwitch creates a switch at p.
func NewMockSwitch(p Position) *MockSwitch {
	return &MockSwitch{
		position: p,
		changed:  make(chan struct{}, 1),
	}
}

// Position returns the current position.
func (s *MockSwitch) Position() Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

// Changed returns the position change channel.
func (s *MockSwitch) Changed() <-chan struct{} {
	return s.changed
}

// Set moves the switch and signals a change if the position differs.
func (s *MockSwitch) Set(p Position) {
	s.mu.Lock()
	changed := s.position != p
	s.position = p
	s.mu.Unlock()

	if !changed {
		return
	}
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Cycle moves the switch to the next position, skipping None.
func (s *MockSwitch) Cycle() Position {
	next := s.Position() + 1
	if next > PositionDefault {
		next = PositionUSB
	}
	s.Set(next)
	return next
}

// SimBattery simulates the battery sense ADC at a settable voltage.
type SimBattery struct {
	cfg     config.BatteryConfig
	monitor *battery.Monitor

	mu      sync.RWMutex
	voltage float64
}

// NewSimBattery creates a battery at voltage v.
func NewSimBattery(cfg config.BatteryConfig, v float64) *SimBattery {
	return &SimBattery{
		cfg:     cfg,
		monitor: battery.NewMonitor(cfg),
		voltage: v,
	}
}

// SetVoltage changes the simulated battery voltage.
func (b *SimBattery) SetVoltage(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.voltage = v
}

// State takes one sense reading and returns the averaged band.
func (b *SimBattery) State() battery.Band {
	b.mu.RLock()
	v := b.voltage
	b.mu.RUnlock()

	b.monitor.Add(battery.VoltageToADC(v, b.cfg))
	return b.monitor.Band()
}

// LEDEvent is one LED state change seen by MockLED.
type LEDEvent struct {
	Red bool // Red LED, green otherwise
	On  bool
}

// MockLED records every LED change.
type MockLED struct {
	mu     sync.Mutex
	red    bool
	green  bool
	events []LEDEvent
}

// SetRed switches the red LED.
func (l *MockLED) SetRed(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.red = on
	l.events = append(l.events, LEDEvent{Red: true, On: on})
}

// SetGreen switches the green LED.
func (l *MockLED) SetGreen(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.green = on
	l.events = append(l.events, LEDEvent{Red: false, On: on})
}

// State returns the current red and green states.
func (l *MockLED) State() (red, green bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.red, l.green
}

// Events returns a copy of the recorded changes.
func (l *MockLED) Events() []LEDEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LEDEvent(nil), l.events...)
}

// Flashes counts how many times the given LED was switched on.
func (l *MockLED) Flashes(red bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, e := range l.events {
		if e.Red == red && e.On {
			n++
		}
	}
	return n
}

// Reset forgets the recorded changes.
func (l *MockLED) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}
