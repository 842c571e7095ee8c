// Package state persists the device settings and scheduler bookkeeping
// across power-down as one schema versioned record.
package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/itohio/gospl/pkg/config"
	"github.com/itohio/gospl/pkg/device"
	"github.com/itohio/gospl/pkg/schedule"
)

// Version is the schema version of the encoded record. A stored record with
// another version is treated as absent.
const Version uint8 = 1

var (
	// ErrNoRecord reports that nothing has been persisted yet, which is the
	// case after a full reset.
	ErrNoRecord = errors.New("no persisted record")
	// ErrVersion reports a record written with another schema version.
	ErrVersion = errors.New("persisted record schema version mismatch")
	// ErrCorrupt reports a truncated record.
	ErrCorrupt = errors.New("persisted record is corrupt")
)

type wireHeader struct {
	Version                 uint8
	PreviousSwitch          uint8
	TimeOfNextRecording     uint32
	DurationOfNextRecording uint32
}

var headerSize = binary.Size(wireHeader{})

// RecordSize is the encoded size of a record.
var RecordSize = headerSize + SettingsSize

// Record is everything that survives power-down.
type Record struct {
	PreviousSwitch device.Position
	Next           schedule.Recording
	Settings       config.Settings
}

// Fresh returns the record installed on first power-up: default settings,
// a recording due immediately with zero duration and no previous switch
// position.
func Fresh() Record {
	return Record{
		PreviousSwitch: device.PositionNone,
		Next:           schedule.Recording{Start: 0, Duration: 0},
		Settings:       config.DefaultSettings(),
	}
}

// Marshal encodes the record.
func (r *Record) Marshal() []byte {
	h := wireHeader{
		Version:                 Version,
		PreviousSwitch:          uint8(r.PreviousSwitch),
		TimeOfNextRecording:     r.Next.Start,
		DurationOfNextRecording: r.Next.Duration,
	}

	var buf bytes.Buffer
	buf.Grow(RecordSize)
	_ = binary.Write(&buf, binary.LittleEndian, &h)
	buf.Write(MarshalSettings(&r.Settings))
	return buf.Bytes()
}

// Unmarshal decodes a record produced by Marshal.
func Unmarshal(data []byte) (Record, error) {
	if len(data) == 0 {
		return Record{}, ErrNoRecord
	}
	if data[0] != Version {
		return Record{}, fmt.Errorf("%w: got %d, want %d", ErrVersion, data[0], Version)
	}
	if len(data) < RecordSize {
		return Record{}, fmt.Errorf("%w: need %d bytes, got %d", ErrCorrupt, RecordSize, len(data))
	}

	var h wireHeader
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &h); err != nil {
		return Record{}, fmt.Errorf("failed to decode record header: %w", err)
	}

	settings, err := UnmarshalSettings(data[headerSize:])
	if err != nil {
		return Record{}, err
	}

	return Record{
		PreviousSwitch: device.Position(h.PreviousSwitch),
		Next: schedule.Recording{
			Start:    h.TimeOfNextRecording,
			Duration: h.DurationOfNextRecording,
		},
		Settings: settings,
	}, nil
}
