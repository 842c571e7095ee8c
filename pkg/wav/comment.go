package wav

import (
	"fmt"
	"strings"
	"time"

	"github.com/itohio/gospl/pkg/battery"
)

// Cancellation says why a recording ended early.
type Cancellation int

const (
	NotCancelled Cancellation = iota
	CancelledLowBattery
	CancelledSwitchChanged
)

// Provenance is what a recording comment says about where it came from.
type Provenance struct {
	Start           time.Time
	TimezoneHours   int8
	TimezoneMinutes int8
	DeviceName      string
	DeviceID        uint64
	Gain            uint8
	Battery         battery.Band
	Cancelled       Cancellation
}

// Offset returns the configured timezone offset.
func (p Provenance) Offset() time.Duration {
	return time.Duration(p.TimezoneHours)*time.Hour + time.Duration(p.TimezoneMinutes)*time.Minute
}

// LocalStart returns the start time shifted by the timezone offset.
func (p Provenance) LocalStart() time.Time {
	return p.Start.UTC().Add(p.Offset())
}

// Artist returns the IART text: device name and 64-bit identifier.
func (p Provenance) Artist() string {
	return fmt.Sprintf("%s %016X", p.DeviceName, p.DeviceID)
}

// Comment returns the ICMT text.
func (p Provenance) Comment() string {
	var b strings.Builder

	b.WriteString("Recorded at ")
	b.WriteString(p.LocalStart().Format("15:04:05 02/01/2006"))
	b.WriteString(" (UTC")
	if p.TimezoneHours < 0 {
		fmt.Fprintf(&b, "%d", p.TimezoneHours)
	} else if p.TimezoneHours > 0 {
		fmt.Fprintf(&b, "+%d", p.TimezoneHours)
	}
	if p.TimezoneMinutes < 0 {
		fmt.Fprintf(&b, ":%2d", -int(p.TimezoneMinutes))
	} else if p.TimezoneMinutes > 0 {
		fmt.Fprintf(&b, ":%2d", p.TimezoneMinutes)
	}
	fmt.Fprintf(&b, ") by %s at gain setting %d while battery state was %s.", p.Artist(), p.Gain, p.Battery)

	switch p.Cancelled {
	case CancelledLowBattery:
		b.WriteString(" Recording cancelled before completion due to low battery voltage.")
	case CancelledSwitchChanged:
		b.WriteString(" Recording cancelled before completion due to change of switch position.")
	}

	return b.String()
}

// FileName returns the recording file name, YYYYMMDD_HHMMSS.WAV in local time.
func (p Provenance) FileName() string {
	return p.LocalStart().Format("20060102_150405") + ".WAV"
}
