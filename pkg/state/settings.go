package state

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/itohio/gospl/pkg/config"
)

// SettingsSize is the encoded size of a settings record.
var SettingsSize = binary.Size(wireSettings{})

type wirePeriod struct {
	StartMinutes uint16
	StopMinutes  uint16
}

// wireSettings is the packed, little endian settings layout shared by the
// persisted record and the configuration channel.
type wireSettings struct {
	Time                       uint32
	Gain                       uint8
	ClockDivider               uint8
	AcquisitionCycles          uint8
	OversampleRate             uint8
	SampleRate                 uint32
	SampleRateDivider          uint8
	SleepDuration              uint16
	RecordDuration             uint16
	EnableLED                  bool
	ActiveStartStopPeriods     uint8
	StartStopPeriods           [config.MaxStartStopPeriods]wirePeriod
	TimezoneHours              int8
	EnableBatteryCheck         bool
	DisableBatteryLevelDisplay bool
	TimezoneMinutes            int8
}

// MarshalSettings encodes settings. Periods beyond MaxStartStopPeriods are
// dropped, missing ones are zero.
func MarshalSettings(s *config.Settings) []byte {
	w := wireSettings{
		Time:                       s.Time,
		Gain:                       s.Gain,
		ClockDivider:               s.ClockDivider,
		AcquisitionCycles:          s.AcquisitionCycles,
		OversampleRate:             s.OversampleRate,
		SampleRate:                 s.SampleRate,
		SampleRateDivider:          s.SampleRateDivider,
		SleepDuration:              s.SleepDuration,
		RecordDuration:             s.RecordDuration,
		EnableLED:                  s.EnableLED,
		ActiveStartStopPeriods:     s.ActiveStartStopPeriods,
		TimezoneHours:              s.TimezoneHours,
		EnableBatteryCheck:         s.EnableBatteryCheck,
		DisableBatteryLevelDisplay: s.DisableBatteryLevelDisplay,
		TimezoneMinutes:            s.TimezoneMinutes,
	}
	for i, p := range s.StartStopPeriods {
		if i == len(w.StartStopPeriods) {
			break
		}
		w.StartStopPeriods[i] = wirePeriod{StartMinutes: p.StartMinutes, StopMinutes: p.StopMinutes}
	}

	var buf bytes.Buffer
	buf.Grow(SettingsSize)
	// Writes to a bytes.Buffer do not fail.
	_ = binary.Write(&buf, binary.LittleEndian, &w)
	return buf.Bytes()
}

// UnmarshalSettings decodes a settings record produced by MarshalSettings.
func UnmarshalSettings(data []byte) (config.Settings, error) {
	if len(data) < SettingsSize {
		return config.Settings{}, fmt.Errorf("%w: settings need %d bytes, got %d", ErrCorrupt, SettingsSize, len(data))
	}

	var w wireSettings
	if err := binary.Read(bytes.NewReader(data[:SettingsSize]), binary.LittleEndian, &w); err != nil {
		return config.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}

	s := config.Settings{
		Time:                       w.Time,
		Gain:                       w.Gain,
		ClockDivider:               w.ClockDivider,
		AcquisitionCycles:          w.AcquisitionCycles,
		OversampleRate:             w.OversampleRate,
		SampleRate:                 w.SampleRate,
		SampleRateDivider:          w.SampleRateDivider,
		SleepDuration:              w.SleepDuration,
		RecordDuration:             w.RecordDuration,
		EnableLED:                  w.EnableLED,
		ActiveStartStopPeriods:     w.ActiveStartStopPeriods,
		StartStopPeriods:           make([]config.StartStopPeriod, len(w.StartStopPeriods)),
		TimezoneHours:              w.TimezoneHours,
		EnableBatteryCheck:         w.EnableBatteryCheck,
		DisableBatteryLevelDisplay: w.DisableBatteryLevelDisplay,
		TimezoneMinutes:            w.TimezoneMinutes,
	}
	for i, p := range w.StartStopPeriods {
		s.StartStopPeriods[i] = config.StartStopPeriod{StartMinutes: p.StartMinutes, StopMinutes: p.StopMinutes}
	}
	return s, nil
}
