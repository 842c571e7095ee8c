package recorder

import (
	"time"

	"github.com/itohio/gospl/pkg/battery"
)

// flash lights the selected LEDs for d.
func (r *Recorder) flash(red, green bool, d time.Duration) {
	r.setLEDs(red, green, true)
	r.opts.Delay(d)
	r.setLEDs(red, green, false)
}

func (r *Recorder) setLEDs(red, green, on bool) {
	if red {
		r.dev.LED.SetRed(on)
	}
	if green {
		r.dev.LED.SetGreen(on)
	}
}

// flashBatteryLevel flashes red once per band step, or rapidly when low.
func (r *Recorder) flashBatteryLevel() {
	band := r.dev.Battery.State()
	n := band.Flashes()

	gap := LongFlashDuration
	if n == battery.LowBatteryFlashes {
		gap = ShortFlashDuration
	}

	for range n {
		r.flash(true, false, ShortFlashDuration)
		r.opts.Delay(gap)
	}
}
