package battery

import (
	"testing"

	"github.com/itohio/gospl/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestFromVoltage(t *testing.T) {
	tests := []struct {
		name    string
		voltage float64
		want    Band
	}{
		{name: "flat", voltage: 0, want: Low},
		{name: "just below low", voltage: 3.59, want: Low},
		{name: "low edge", voltage: 3.6, want: V3_6},
		{name: "4.2", voltage: 4.2, want: V4_2},
		{name: "4.25", voltage: 4.25, want: V4_2},
		{name: "top band", voltage: 4.99, want: V4_9},
		{name: "full", voltage: 5.0, want: Full},
		{name: "overcharged", voltage: 6.1, want: Full},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromVoltage(tt.voltage))
		})
	}
}

func TestBand_String(t *testing.T) {
	assert.Equal(t, "less than 3.6V", Low.String())
	assert.Equal(t, "3.6V", V3_6.String())
	assert.Equal(t, "4.0V", V4_0.String())
	assert.Equal(t, "4.9V", V4_9.String())
	assert.Equal(t, "greater than 4.9V", Full.String())
}

func TestBand_Voltage(t *testing.T) {
	assert.Equal(t, 0.0, Low.Voltage())
	assert.InDelta(t, 4.3, V4_3.Voltage(), 1e-9)
	assert.Equal(t, 5.0, Full.Voltage())

	for b := V3_6; b <= V4_9; b++ {
		assert.Equal(t, b, FromVoltage(b.Voltage()), "band %s", b)
	}
}

func TestBand_Flashes(t *testing.T) {
	tests := []struct {
		band Band
		want int
	}{
		{Low, LowBatteryFlashes},
		{V3_6, 1},
		{V3_9, 1},
		{V4_0, 2},
		{V4_3, 2},
		{V4_4, 3},
		{V4_5, 3},
		{V4_6, 4},
		{Full, 4},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.band.Flashes(), "band %s", tt.band)
	}
}

func TestADCToVoltage(t *testing.T) {
	tests := []struct {
		name string
		adc  uint16
		vref float64
		want float64
	}{
		{name: "zero ADC", adc: 0, vref: 3.3, want: 0.0},
		{name: "max ADC", adc: 4095, vref: 3.3, want: 3.3},
		{name: "half ADC", adc: 2047, vref: 3.3, want: 1.65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, adcToVoltage(tt.adc, tt.vref), 0.01)
		})
	}
}

func TestVoltageDivider(t *testing.T) {
	assert.InDelta(t, 3.3, voltageDivider(1.65, 20000, 20000), 1e-9)
	assert.InDelta(t, 4.0, voltageDivider(1.0, 30000, 10000), 1e-9)
}

func TestVoltageToADC(t *testing.T) {
	cfg := config.Default().Battery

	assert.Equal(t, uint16(0), VoltageToADC(-1, cfg))
	assert.Equal(t, uint16(4095), VoltageToADC(10, cfg))

	for _, v := range []float64{3.7, 4.2, 4.75} {
		adc := VoltageToADC(v, cfg)
		got := voltageDivider(adcToVoltage(adc, cfg.VRef), cfg.R1, cfg.R2)
		assert.InDelta(t, v, got, 0.002)
	}
}

func TestMonitor(t *testing.T) {
	cfg := config.Default().Battery
	cfg.Window = 4
	m := NewMonitor(cfg)

	assert.Equal(t, 0.0, m.Voltage())
	assert.Equal(t, Low, m.Band())

	for range 4 {
		m.Add(VoltageToADC(4.25, cfg))
	}
	assert.InDelta(t, 4.25, m.Voltage(), 0.002)
	assert.Equal(t, V4_2, m.Band())

	// Old readings fall out of the window
	for range 4 {
		m.Add(VoltageToADC(3.4, cfg))
	}
	assert.Equal(t, Low, m.Band())
}

func TestMonitor_Averages(t *testing.T) {
	cfg := config.Default().Battery
	cfg.Window = 2
	m := NewMonitor(cfg)

	m.Add(VoltageToADC(4.05, cfg))
	m.Add(VoltageToADC(4.45, cfg))
	assert.InDelta(t, 4.25, m.Voltage(), 0.002)
}

func TestNewMonitor_InvalidWindow(t *testing.T) {
	m := NewMonitor(config.BatteryConfig{R1: 1, R2: 1, VRef: 3.3})

	m.Add(100)
	m.Add(4095)
	assert.InDelta(t, 6.6, m.Voltage(), 1e-9)
}
