// Package spl accumulates A-weighted samples into a calibrated sound
// pressure level and writes the SPL log.
package spl

import (
	"errors"
	"math"
)

var (
	// ErrNoSamples is returned when a level is requested before any sample was added.
	ErrNoSamples = errors.New("no samples accumulated")
	// ErrSilent is returned when the accumulated energy is zero.
	ErrSilent = errors.New("accumulated energy is zero")
)

// Accumulator keeps the running mean of squared samples.
//
// The mean is float64: a float32 mean stops moving once n exceeds the
// float32 mantissa, which a one hour recording at 48 kHz does.
type Accumulator struct {
	mean float64
	n    uint64
}

// Add updates the mean with one sample: mean = (n·mean + x²)/(n+1).
func (a *Accumulator) Add(x float32) {
	v := float64(x)
	a.mean = (float64(a.n)*a.mean + v*v) / float64(a.n+1)
	a.n++
}

// Reset clears the mean and the count.
func (a *Accumulator) Reset() {
	a.mean = 0
	a.n = 0
}

// Count returns the number of samples added since the last reset.
func (a *Accumulator) Count() uint64 {
	return a.n
}

// Mean returns the mean of squared samples.
func (a *Accumulator) Mean() float64 {
	return a.mean
}

// Level converts the mean to dB and adds the calibration offset.
func (a *Accumulator) Level(offset float32) (float32, error) {
	if a.n == 0 {
		return 0, ErrNoSamples
	}
	if a.mean <= 0 {
		return 0, ErrSilent
	}

	db := 10*math.Log10(a.mean) + float64(offset)
	if math.IsNaN(db) || math.IsInf(db, 0) {
		return 0, ErrSilent
	}
	return float32(db), nil
}
