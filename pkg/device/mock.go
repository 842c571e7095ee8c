package device

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/gospl/pkg/config"
	"github.com/itohio/gospl/pkg/dsp"
)

// Mock simulates the microphone, ADC and DMA double buffer. It delivers a
// test tone plus noise in blocks of dsp.BlockSamples raw samples.
type Mock struct {
	cfg config.MockConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	blocks atomic.Uint64
}

// NewMock creates a simulated acquisition device.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		cfg = &config.MockConfig{
			Frequency:  1000,
			Amplitude:  1000,
			NoiseLevel: 20,
		}
	}
	return &Mock{cfg: *cfg}
}

// Start begins delivering blocks to handler at the raw sample rate of s,
// or every BlockInterval if one is configured.
func (m *Mock) Start(s *config.Settings, handler BlockHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("acquisition already started")
	}
	if s.SampleRate == 0 {
		return fmt.Errorf("%w: sample rate is zero", config.ErrInvalidSettings)
	}

	interval := m.cfg.BlockInterval
	if interval <= 0 {
		interval = time.Duration(float64(dsp.BlockSamples) / float64(s.SampleRate) * float64(time.Second))
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	m.blocks.Store(0)

	go m.generateBlocks(ctx, float32(s.SampleRate), interval, handler)

	return nil
}

// Stop halts delivery and waits until the handler has returned.
func (m *Mock) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.cancel()
	<-m.done
	m.running = false

	return nil
}

// Blocks returns the number of blocks delivered since Start.
func (m *Mock) Blocks() uint64 {
	return m.blocks.Load()
}

// generateBlocks fills the two halves of the double buffer in turn.
func (m *Mock) generateBlocks(ctx context.Context, rate float32, interval time.Duration, handler BlockHandler) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var halves [2][dsp.BlockSamples]int16
	rng := rand.New(rand.NewSource(1))
	step := 2 * math32.Pi * float32(m.cfg.Frequency) / rate
	phase := float32(0)
	primary := true

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			block := halves[0][:]
			if !primary {
				block = halves[1][:]
			}
			phase = m.generateBlock(block, phase, step, rng)

			handler(block, primary)
			m.blocks.Add(1)
			primary = !primary
		}
	}
}

// generateBlock writes one block of tone plus noise and returns the next phase.
func (m *Mock) generateBlock(block []int16, phase, step float32, rng *rand.Rand) float32 {
	amplitude := float32(m.cfg.Amplitude)
	noise := float32(m.cfg.NoiseLevel)

	for i := range block {
		v := amplitude * math32.Sin(phase)
		if noise > 0 {
			v += noise * (2*rng.Float32() - 1)
		}
		if v >= 0 {
			v += 0.5
		} else {
			v -= 0.5
		}
		block[i] = dsp.Saturate(int32(v))

		phase += step
		if phase >= 2*math32.Pi {
			phase -= 2 * math32.Pi
		}
	}
	return phase
}
