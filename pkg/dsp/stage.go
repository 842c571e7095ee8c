// Package dsp implements the per-sample signal chain of the recorder:
// decimation, DC blocking, microphone compensation and A-weighting.
package dsp

// Stage is a filter section on the SPL path. Reset zeroes the delay lines,
// Step consumes one input sample and produces one output sample.
type Stage interface {
	Reset()
	Step(x float32) float32
}

var (
	_ Stage = (*Compensation)(nil)
	_ Stage = (*AWeighting)(nil)
)
