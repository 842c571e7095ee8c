package battery

import (
	"sync"

	"github.com/itohio/gospl/pkg/config"
)

// adcFullScale is the top code of the 12-bit battery sense ADC.
const adcFullScale = 4095.0

// adcToVoltage converts a 12-bit ADC reading to voltage.
func adcToVoltage(adc uint16, vref float64) float64 {
	return (float64(adc) / adcFullScale) * vref
}

// voltageDivider calculates the input voltage from the measured output voltage.
// Formula: V_in = V_out * ((R1 + R2) / R2)
func voltageDivider(vout float64, r1, r2 float64) float64 {
	return vout * ((r1 + r2) / r2)
}

// VoltageToADC is the inverse of the sense chain: the code the ADC reads
// for a battery at v volts.
func VoltageToADC(v float64, cfg config.BatteryConfig) uint16 {
	code := v * cfg.R2 / (cfg.R1 + cfg.R2) / cfg.VRef * adcFullScale
	if code < 0 {
		return 0
	}
	if code > adcFullScale {
		return adcFullScale
	}
	return uint16(code + 0.5)
}

// Monitor averages the last Window battery sense readings.
type Monitor struct {
	cfg config.BatteryConfig

	mu       sync.Mutex
	readings []uint16
}

// NewMonitor creates a monitor for the given sense divider.
func NewMonitor(cfg config.BatteryConfig) *Monitor {
	if cfg.Window <= 0 {
		cfg.Window = 1 // No averaging if invalid
	}
	return &Monitor{
		cfg:      cfg,
		readings: make([]uint16, 0, cfg.Window),
	}
}

// Add records one raw ADC reading.
func (m *Monitor) Add(adc uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readings = append(m.readings, adc)
	if len(m.readings) > m.cfg.Window {
		m.readings = m.readings[1:] // Remove oldest
	}
}

// Voltage returns the averaged battery voltage, 0 if nothing was read yet.
func (m *Monitor) Voltage() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.readings) == 0 {
		return 0
	}

	var sum uint32
	for _, r := range m.readings {
		sum += uint32(r)
	}
	avg := uint16(float64(sum)/float64(len(m.readings)) + 0.5) // Round to nearest

	return voltageDivider(adcToVoltage(avg, m.cfg.VRef), m.cfg.R1, m.cfg.R2)
}

// Band returns the band of the averaged voltage.
func (m *Monitor) Band() Band {
	return FromVoltage(m.Voltage())
}
