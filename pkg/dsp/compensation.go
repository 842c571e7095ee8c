package dsp

import (
	"fmt"

	"github.com/itohio/gospl/pkg/config"
)

// ErrUnsupportedRate reports an effective sample rate missing from the
// compensation table. It is a configuration error.
var ErrUnsupportedRate = config.ErrUnsupportedRate

// CompensationCoefficients are the shared pole, zero and output gain of the
// microphone compensation filter.
type CompensationCoefficients struct {
	A float32 // Pole
	B float32 // Zero
	G float32 // Output gain
}

// compensationTable is keyed by effective sample rate (Hz).
var compensationTable = []struct {
	rate uint32
	coef CompensationCoefficients
}{
	{8000, CompensationCoefficients{A: -0.97, B: -0.948, G: 1.0198586881755944}},
	{16000, CompensationCoefficients{A: -0.98, B: -0.97, G: 1.0068852990025103}},
	{32000, CompensationCoefficients{A: -0.998, B: -0.9895, G: 1.005779339050867}},
	{48000, CompensationCoefficients{A: -0.999, B: -0.993, G: 1.0033250259620856}},
	{96000, CompensationCoefficients{A: -0.999, B: -0.9964, G: 1.0}},
	{192000, CompensationCoefficients{A: -0.9995, B: -0.9979, G: 0.9992823605244088}},
	{256000, CompensationCoefficients{A: -0.9995, B: -0.9985, G: 0.9992823605244088}},
	{384000, CompensationCoefficients{A: -0.9996, B: -0.99895, G: 0.9981619947924345}},
}

// CompensationFor returns the coefficients for an effective sample rate.
func CompensationFor(rate uint32) (CompensationCoefficients, error) {
	for _, e := range compensationTable {
		if e.rate == rate {
			return e.coef, nil
		}
	}
	return CompensationCoefficients{}, fmt.Errorf("%w: %d Hz", ErrUnsupportedRate, rate)
}

// SupportedRates lists the effective sample rates with compensation coefficients.
func SupportedRates() []uint32 {
	rates := make([]uint32, len(compensationTable))
	for i, e := range compensationTable {
		rates[i] = e.rate
	}
	return rates
}

// Compensation flattens the microphone response with two cascaded
// first-order sections sharing one pole and one zero.
type Compensation struct {
	coef CompensationCoefficients
	rec0 [2]float32
	rec1 [2]float32
}

// NewCompensation creates the filter for an effective sample rate.
func NewCompensation(rate uint32) (*Compensation, error) {
	coef, err := CompensationFor(rate)
	if err != nil {
		return nil, err
	}
	return &Compensation{coef: coef}, nil
}

// Coefficients returns the filter coefficients.
func (f *Compensation) Coefficients() CompensationCoefficients {
	return f.coef
}

// Reset zeroes both delay lines.
func (f *Compensation) Reset() {
	f.rec0 = [2]float32{}
	f.rec1 = [2]float32{}
}

// Step filters one sample.
func (f *Compensation) Step(x float32) float32 {
	a, b := f.coef.A, f.coef.B

	f.rec1[0] = x - a*f.rec1[1]
	f.rec0[0] = f.rec1[0] + b*f.rec1[1] - a*f.rec0[1]
	y := f.coef.G * (f.rec0[0] + b*f.rec0[1])

	f.rec1[1] = f.rec1[0]
	f.rec0[1] = f.rec0[0]

	return y
}
