package dsp

import (
	"fmt"

	"github.com/itohio/gospl/pkg/config"
)

const (
	// BlockSamples is the number of raw samples delivered per acquisition transfer.
	BlockSamples = config.BlockSamples
	// Normalization scales decimated samples onto the SPL path.
	Normalization float32 = 3276.8
	// shiftTarget is the oversampling product the analog front end gain is normalised to.
	shiftTarget = 16
)

// Accumulator receives one A-weighted sample per decimated sample.
type Accumulator interface {
	Add(x float32)
}

// Chain is the filter stage run once per acquisition transfer. It decimates
// raw blocks, DC-blocks the audio path and feeds the pre-DC decimated
// stream through compensation and A-weighting into an accumulator.
//
// A Chain is owned by the acquisition context and is not safe for
// concurrent use.
type Chain struct {
	divider int
	shift   int

	dc   DCBlocker
	comp *Compensation
	aw   *AWeighting
	acc  Accumulator
}

// NewChain builds the chain for the given settings. It fails with
// ErrUnsupportedRate when the effective rate has no compensation filter.
func NewChain(s *config.Settings, acc Accumulator) (*Chain, error) {
	if s.SampleRateDivider == 0 || BlockSamples%int(s.SampleRateDivider) != 0 {
		return nil, fmt.Errorf("%w: sample rate divider %d does not divide the %d sample block",
			config.ErrInvalidSettings, s.SampleRateDivider, BlockSamples)
	}

	rate := s.EffectiveSampleRate()
	comp, err := NewCompensation(rate)
	if err != nil {
		return nil, err
	}

	return &Chain{
		divider: int(s.SampleRateDivider),
		shift:   BitsToShift(s.OversampleRate, s.SampleRateDivider),
		comp:    comp,
		aw:      NewAWeighting(float64(rate)),
		acc:     acc,
	}, nil
}

// BitsToShift returns the shift normalising oversampleRate*divider toward
// 16: positive shifts left, negative shifts right.
func BitsToShift(oversampleRate, divider uint8) int {
	oversampling := uint16(oversampleRate) * uint16(divider)
	if oversampling == 0 {
		return 0
	}

	shift := 0
	for oversampling > shiftTarget {
		oversampling >>= 1
		shift--
	}
	for oversampling < shiftTarget {
		oversampling <<= 1
		shift++
	}
	return shift
}

// Divider returns the decimation factor.
func (c *Chain) Divider() int {
	return c.divider
}

// Shift returns the session bit shift.
func (c *Chain) Shift() int {
	return c.shift
}

// OutputSamples returns how many samples Process produces for n raw samples.
func (c *Chain) OutputSamples(n int) int {
	return n / c.divider
}

// Reset zeroes every delay line. The accumulator is reset by its owner.
func (c *Chain) Reset() {
	c.dc.Reset()
	c.comp.Reset()
	c.aw.Reset()
}

// Process decimates src into dst and returns the number of samples written.
// dst must hold at least OutputSamples(len(src)) samples.
func (c *Chain) Process(src []int16, dst []int16) int {
	n := 0
	for i := 0; i+c.divider <= len(src); i += c.divider {
		var sample int32
		for _, v := range src[i : i+c.divider] {
			sample += int32(v)
		}

		if c.shift > 0 {
			sample <<= c.shift
		} else if c.shift < 0 {
			sample >>= -c.shift
		}

		weighted := c.aw.Step(c.comp.Step(float32(sample) / Normalization))
		if c.acc != nil {
			c.acc.Add(weighted)
		}

		dst[n] = c.dc.Step(sample)
		n++
	}
	return n
}
