package dsp

import "math"

// DCBlockingFactor is the pole of the DC blocking recursion.
const DCBlockingFactor float32 = 0.995

// DCBlocker removes the constant offset from the decimated stream:
//
//	y[n] = x[n] - x[n-1] + α·y[n-1]
//
// The sample path is integer, the recursive term is computed in float32 and
// truncated. The recursion keeps the unsaturated output.
type DCBlocker struct {
	prevInput  int32
	prevOutput int32
}

// Reset zeroes the filter state.
func (f *DCBlocker) Reset() {
	f.prevInput = 0
	f.prevOutput = 0
}

// Step filters one sample and returns it saturated to the int16 range.
func (f *DCBlocker) Step(x int32) int16 {
	scaled := int32(DCBlockingFactor * float32(f.prevOutput))
	y := x - f.prevInput + scaled

	f.prevOutput = y
	f.prevInput = x

	return Saturate(y)
}

// Saturate clamps v to the int16 range.
func Saturate(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
