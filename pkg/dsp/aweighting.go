package dsp

import (
	"math"
	"math/cmplx"
)

// Corner frequencies of the A-weighting curve (Hz).
const (
	CornerF1 = 20.6
	CornerF2 = 107.7
	CornerF3 = 737.9
	CornerF4 = 12194.0
)

// GainA normalises the A-weighting response to 0 dB at 1 kHz.
const GainA = 1.2589254117941673

// AWeightingCoefficients hold the digital sections derived from the four
// corner frequencies by the bilinear transform.
type AWeightingCoefficients struct {
	W1, W2, W3, W4 float64 // Angular corner frequencies (rad/s)

	A1 [2]float64 // Second-order section at W1
	B1 [3]float64
	A2 float64 // First-order section at W2
	B2 [2]float64
	A3 float64 // First-order section at W3
	B3 [2]float64
	A4 [2]float64 // Second-order section at W4
	B4 [3]float64
}

// AWeightingFor derives the coefficients for sample rate fs.
func AWeightingFor(fs float64) AWeightingCoefficients {
	var c AWeightingCoefficients

	c.W1 = 2 * math.Pi * CornerF1
	c.W2 = 2 * math.Pi * CornerF2
	c.W3 = 2 * math.Pi * CornerF3
	c.W4 = 2 * math.Pi * CornerF4

	k := 2 * fs

	a0 := (c.W1 + k) * (c.W1 + k)
	c.A1[0] = 2 * (c.W1*c.W1 - k*k) / a0
	c.A1[1] = (c.W1 - k) * (c.W1 - k) / a0
	c.B1 = [3]float64{k / a0, 0, -k / a0}

	a0 = c.W2 + k
	c.B2 = [2]float64{k / a0, -k / a0}
	c.A2 = (c.W2 - k) / a0

	a0 = c.W3 + k
	c.B3 = [2]float64{k / a0, -k / a0}
	c.A3 = (c.W3 - k) / a0

	a0 = (c.W4 + k) * (c.W4 + k)
	c.A4[0] = 2 * (c.W4*c.W4 - k*k) / a0
	c.A4[1] = (c.W4 - k) * (c.W4 - k) / a0
	c.B4 = [3]float64{k / a0, 0, -k / a0}

	return c
}

// Response returns the complex frequency response at freq for sample rate fs.
func (c AWeightingCoefficients) Response(freq, fs float64) complex128 {
	z1 := cmplx.Exp(complex(0, -2*math.Pi*freq/fs)) // z^-1
	z2 := z1 * z1

	h := complex(c.B1[0], 0) + complex(c.B1[1], 0)*z1 + complex(c.B1[2], 0)*z2
	h /= 1 + complex(c.A1[0], 0)*z1 + complex(c.A1[1], 0)*z2

	h *= (complex(c.B2[0], 0) + complex(c.B2[1], 0)*z1) / (1 + complex(c.A2, 0)*z1)
	h *= (complex(c.B3[0], 0) + complex(c.B3[1], 0)*z1) / (1 + complex(c.A3, 0)*z1)

	h *= (complex(c.B4[0], 0) + complex(c.B4[1], 0)*z1 + complex(c.B4[2], 0)*z2) /
		(1 + complex(c.A4[0], 0)*z1 + complex(c.A4[1], 0)*z2)

	return h * complex(GainA*c.W4*c.W4, 0)
}

// MagnitudeDB returns the response magnitude at freq in dB.
func (c AWeightingCoefficients) MagnitudeDB(freq, fs float64) float64 {
	return 20 * math.Log10(cmplx.Abs(c.Response(freq, fs)))
}

// AWeighting is the cascade of two second-order and two first-order
// sections. The recursion runs in float64: the W1 double pole sits close
// to the unit circle at high sample rates.
type AWeighting struct {
	coef AWeightingCoefficients
	gain float64

	rec0 [3]float64
	rec1 [2]float64
	rec2 [2]float64
	rec3 [3]float64
}

// NewAWeighting creates the filter for sample rate fs.
func NewAWeighting(fs float64) *AWeighting {
	c := AWeightingFor(fs)
	return &AWeighting{
		coef: c,
		gain: GainA * c.W4 * c.W4,
	}
}

// Coefficients returns the filter coefficients.
func (f *AWeighting) Coefficients() AWeightingCoefficients {
	return f.coef
}

// Reset zeroes all four delay lines.
func (f *AWeighting) Reset() {
	f.rec0 = [3]float64{}
	f.rec1 = [2]float64{}
	f.rec2 = [2]float64{}
	f.rec3 = [3]float64{}
}

// Step filters one sample.
func (f *AWeighting) Step(x float32) float32 {
	c := &f.coef

	f.rec3[0] = float64(x) - (c.A1[0]*f.rec3[1] + c.A1[1]*f.rec3[2])
	f.rec2[0] = c.B1[0]*f.rec3[0] + c.B1[1]*f.rec3[1] + c.B1[2]*f.rec3[2] - c.A2*f.rec2[1]
	f.rec1[0] = c.B2[0]*f.rec2[0] + c.B2[1]*f.rec2[1] - c.A3*f.rec1[1]
	f.rec0[0] = c.B3[0]*f.rec1[0] + c.B3[1]*f.rec1[1] - (c.A4[0]*f.rec0[1] + c.A4[1]*f.rec0[2])
	y := f.gain * (c.B4[0]*f.rec0[0] + c.B4[1]*f.rec0[1] + c.B4[2]*f.rec0[2])

	f.rec3[2] = f.rec3[1]
	f.rec3[1] = f.rec3[0]
	f.rec2[1] = f.rec2[0]
	f.rec1[1] = f.rec1[0]
	f.rec0[2] = f.rec0[1]
	f.rec0[1] = f.rec0[0]

	return float32(y)
}
