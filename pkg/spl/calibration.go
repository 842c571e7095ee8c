package spl

import (
	"errors"
	"fmt"
	"sort"

	"github.com/itohio/gospl/pkg/config"
)

// GainSettings is the number of microphone gain settings with a calibration offset.
const GainSettings = config.MaxGain + 1

// ErrUnknownCalibration is returned for a calibration table that does not exist.
var ErrUnknownCalibration = errors.New("unknown calibration table")

// Offsets maps a gain setting to its calibration offset in dB.
type Offsets [GainSettings]float32

// Calibrations are the built-in calibration tables, one per measured
// microphone batch. Offsets are indexed by gain setting 0 (low) to 4 (high).
var Calibrations = map[string]Offsets{
	"main-2020": {82.5, 78.4, 71.8, 67.8, 65.6},
	"spl-2020":  {78.7, 74.5, 68.2, 64.0, 62.0},
}

// CalibrationNames returns the sorted names of the built-in tables.
func CalibrationNames() []string {
	names := make([]string, 0, len(Calibrations))
	for name := range Calibrations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OffsetsFor resolves the calibration configuration. Five explicit offsets
// take precedence over the named table.
func OffsetsFor(cfg config.CalibrationConfig) (Offsets, error) {
	if len(cfg.Offsets) == GainSettings {
		var o Offsets
		copy(o[:], cfg.Offsets)
		return o, nil
	}
	if len(cfg.Offsets) != 0 {
		return Offsets{}, fmt.Errorf("calibration needs %d offsets, got %d", GainSettings, len(cfg.Offsets))
	}

	o, ok := Calibrations[cfg.Table]
	if !ok {
		return Offsets{}, fmt.Errorf("%w: %q", ErrUnknownCalibration, cfg.Table)
	}
	return o, nil
}

// Offset returns the offset for a gain setting.
func (o Offsets) Offset(gain uint8) (float32, error) {
	if int(gain) >= len(o) {
		return 0, fmt.Errorf("gain %d has no calibration offset", gain)
	}
	return o[gain], nil
}
