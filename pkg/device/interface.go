// Package device defines the hardware collaborators of the recorder and
// provides simulated and filesystem backed implementations of them.
package device

import (
	"io"
	"time"

	"github.com/itohio/gospl/pkg/battery"
	"github.com/itohio/gospl/pkg/config"
)

// Position is the position of the mode switch.
type Position uint8

const (
	PositionNone Position = iota
	PositionUSB
	PositionCustom
	PositionDefault
)

func (p Position) String() string {
	switch p {
	case PositionNone:
		return "none"
	case PositionUSB:
		return "usb"
	case PositionCustom:
		return "custom"
	case PositionDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Clock is the real-time clock.
type Clock interface {
	Now() time.Time
	Set(t time.Time)
	IsSet() bool
}

// Switch reads the mode switch. Changed is signalled on every position
// change; a pending signal is kept until it is received.
type Switch interface {
	Position() Position
	Changed() <-chan struct{}
}

// Battery reports the battery voltage band.
type Battery interface {
	State() battery.Band
}

// File is an open storage file.
type File interface {
	io.Writer
	io.Seeker
	io.Closer
}

// Storage opens files on the recording medium.
type Storage interface {
	Create(name string) (File, error)
	Append(name string) (File, error)
}

// BlockHandler receives one transfer of raw samples. primary alternates
// between the two halves of the double buffer. The block is only valid
// until the handler returns.
type BlockHandler func(block []int16, primary bool)

// Acquisition delivers raw microphone samples. Start calls handler on its
// own goroutine until Stop, which returns once the handler is no longer
// running.
type Acquisition interface {
	Start(s *config.Settings, handler BlockHandler) error
	Stop() error
}

// LED drives the red and green indicator LEDs.
type LED interface {
	SetRed(on bool)
	SetGreen(on bool)
}

// Identity provides the unique device identifier.
type Identity interface {
	DeviceID() uint64
}

var (
	_ Acquisition = (*Mock)(nil)
	_ Storage     = (*DirStorage)(nil)
	_ Storage     = (*MemStorage)(nil)
	_ Clock       = (*SystemClock)(nil)
	_ Clock       = (*ManualClock)(nil)
	_ Switch      = (*MockSwitch)(nil)
	_ Battery     = (*SimBattery)(nil)
	_ LED         = (*MockLED)(nil)
	_ Identity    = ID(0)
)

// ID is a fixed device identifier.
type ID uint64

// DeviceID returns the identifier.
func (id ID) DeviceID() uint64 {
	return uint64(id)
}
