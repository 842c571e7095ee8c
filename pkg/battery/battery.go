// Package battery converts battery sense readings into the voltage bands
// reported in recordings and shown on the LEDs.
package battery

import (
	"fmt"
	"math"
)

// Band is a battery voltage class in 0.1 V steps between Low and Full.
type Band uint8

const (
	Low  Band = iota // Below 3.6 V
	V3_6             // 3.6 V
	V3_7
	V3_8
	V3_9
	V4_0
	V4_1
	V4_2
	V4_3
	V4_4
	V4_5
	V4_6
	V4_7
	V4_8
	V4_9
	Full // 5.0 V and above
)

// LowBatteryFlashes is the flash count shown for a low battery.
const LowBatteryFlashes = 10

const (
	lowVoltage  = 3.6
	fullVoltage = 5.0
)

// FromVoltage classifies a battery voltage.
func FromVoltage(v float64) Band {
	if v < lowVoltage {
		return Low
	}
	if v >= fullVoltage {
		return Full
	}
	// Tenths above 3.5 V; the epsilon keeps 4.2 from landing in 4.1
	return Band(int(math.Floor(v*10+1e-6)) - 35)
}

// Voltage returns the lower edge of the band in volts.
func (b Band) Voltage() float64 {
	switch {
	case b == Low:
		return 0
	case b >= Full:
		return fullVoltage
	default:
		return float64(int(b)+35) / 10
	}
}

// String renders the band the way recording comments do.
func (b Band) String() string {
	switch {
	case b == Low:
		return "less than 3.6V"
	case b >= Full:
		return "greater than 4.9V"
	default:
		return fmt.Sprintf("%d.%dV", (int(b)+35)/10, (int(b)+35)%10)
	}
}

// Flashes returns how many times the LED flashes to show the band.
func (b Band) Flashes() int {
	switch {
	case b == Low:
		return LowBatteryFlashes
	case b >= V4_6:
		return 4
	case b >= V4_4:
		return 3
	case b >= V4_0:
		return 2
	default:
		return 1
	}
}
