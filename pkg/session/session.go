// Package session runs one recording: it wires the acquisition handler to
// the filter chain and buffer pool, drains buffers into a WAV file, watches
// for abort conditions and appends the SPL of the recording to the log.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/itohio/gospl/pkg/battery"
	"github.com/itohio/gospl/pkg/buffer"
	"github.com/itohio/gospl/pkg/config"
	"github.com/itohio/gospl/pkg/device"
	"github.com/itohio/gospl/pkg/dsp"
	"github.com/itohio/gospl/pkg/spl"
	"github.com/itohio/gospl/pkg/wav"
)

// SkippedBuffers is the number of filled buffers discarded at the start of
// every recording while the analog front end settles.
const SkippedBuffers = 1

var (
	// ErrStorage classifies every open, write, seek and close failure and
	// buffer overruns.
	ErrStorage = errors.New("storage failure")
	// ErrBusy is returned when Run is called while a recording is in progress.
	ErrBusy = errors.New("recording already in progress")
)

// Outcome is how a recording ended.
type Outcome int

const (
	Completed Outcome = iota
	SwitchChanged
	BatteryLow
	StorageError
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case SwitchChanged:
		return "switch changed"
	case BatteryLow:
		return "battery low"
	case StorageError:
		return "storage error"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a Session.
type State int32

const (
	Idle State = iota
	Armed
	Recording
	Finalizing
	Done    // Recording ran to its target length
	Aborted // Recording ended early
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Recording:
		return "recording"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Devices are the collaborators a recording needs.
type Devices struct {
	Acquisition device.Acquisition
	Storage     device.Storage
	Switch      device.Switch
	Battery     device.Battery
	LED         device.LED
	Clock       device.Clock
	Identity    device.Identity
}

// Options configure a Session.
type Options struct {
	DeviceName    string
	LogFile       string
	Offsets       spl.Offsets
	Buffers       int // Defaults to buffer.DefaultBuffers
	BufferSamples int // Defaults to buffer.DefaultBufferSamples
}

// Result describes a finished recording.
type Result struct {
	Outcome Outcome
	File    string
	Start   time.Time
	Samples uint32
	Battery battery.Band // Battery band at the start of the recording
	Level   float32      // Valid when Logged
	Logged  bool         // The SPL line was appended to the log
}

// Session owns the filter chain, the buffer pool and the accumulator of
// the recordings it runs. Only one recording runs at a time.
type Session struct {
	dev  Devices
	opts Options

	pool  *buffer.Pool
	acc   spl.Accumulator
	chain *dsp.Chain

	scratch []int16 // Decimated block, producer owned
	state   atomic.Int32
}

// New creates an idle session.
func New(dev Devices, opts Options) *Session {
	if opts.Buffers <= 0 {
		opts.Buffers = buffer.DefaultBuffers
	}
	if opts.BufferSamples <= 0 {
		opts.BufferSamples = buffer.DefaultBufferSamples
	}

	return &Session{
		dev:     dev,
		opts:    opts,
		pool:    buffer.New(opts.Buffers, opts.BufferSamples),
		scratch: make([]int16, dsp.BlockSamples),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run records for duration seconds at the settings' effective rate. The red
// LED is lit while buffers are written when enableLED is set.
//
// Configuration errors are returned before anything is written. A storage
// failure returns a StorageError result together with an error wrapping
// ErrStorage. Cancelling ctx ends the recording as SwitchChanged.
func (s *Session) Run(ctx context.Context, settings *config.Settings, duration uint32, enableLED bool) (Result, error) {
	if !s.state.CompareAndSwap(int32(Idle), int32(Armed)) {
		return Result{}, ErrBusy
	}
	defer s.reset()

	offset, err := s.opts.Offsets.Offset(settings.Gain)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", config.ErrInvalidSettings, err)
	}

	chain, err := dsp.NewChain(settings, &s.acc)
	if err != nil {
		return Result{}, err
	}
	s.chain = chain
	s.pool.Reset()
	s.acc.Reset()

	// Edges from before the recording started do not abort it.
	select {
	case <-s.dev.Switch.Changed():
	default:
	}

	res := Result{
		Start:   s.dev.Clock.Now().UTC(),
		Battery: s.dev.Battery.State(),
	}
	prov := wav.Provenance{
		Start:           res.Start,
		TimezoneHours:   settings.TimezoneHours,
		TimezoneMinutes: settings.TimezoneMinutes,
		DeviceName:      s.opts.DeviceName,
		DeviceID:        s.dev.Identity.DeviceID(),
		Gain:            settings.Gain,
		Battery:         res.Battery,
	}
	res.File = prov.FileName()

	s.state.Store(int32(Recording))

	f, err := s.dev.Storage.Create(res.File)
	if err != nil {
		res.Outcome = StorageError
		return res, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	w, err := wav.Create(f, settings.EffectiveSampleRate())
	if err != nil {
		f.Close()
		res.Outcome = StorageError
		return res, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if err := s.dev.Acquisition.Start(settings, s.handle); err != nil {
		f.Close()
		return res, fmt.Errorf("failed to start acquisition: %w", err)
	}

	log.Printf("recording %s for %ds at %d Hz", res.File, duration, settings.EffectiveSampleRate())

	target := uint64(settings.EffectiveSampleRate()) * uint64(duration)
	outcome, recErr := s.drain(ctx, settings, w, target, enableLED)

	s.state.Store(int32(Finalizing))
	if err := s.dev.Acquisition.Stop(); err != nil {
		log.Printf("failed to stop acquisition: %v", err)
	}
	s.dev.LED.SetRed(false)

	switch outcome {
	case BatteryLow:
		prov.Cancelled = wav.CancelledLowBattery
	case SwitchChanged:
		prov.Cancelled = wav.CancelledSwitchChanged
	}

	if err := w.Finalize(prov.Comment(), prov.Artist()); err != nil && recErr == nil {
		outcome, recErr = StorageError, err
	}
	if err := f.Close(); err != nil && recErr == nil {
		outcome, recErr = StorageError, err
	}

	res.Outcome = outcome
	res.Samples = w.Samples()
	if outcome == Completed {
		s.state.Store(int32(Done))
	} else {
		s.state.Store(int32(Aborted))
	}

	if outcome == StorageError {
		log.Printf("recording %s failed after %d samples: %v", res.File, res.Samples, recErr)
		return res, fmt.Errorf("%w: %w", ErrStorage, recErr)
	}

	log.Printf("recording %s %s with %d samples", res.File, outcome, res.Samples)

	level, err := s.acc.Level(offset)
	if err != nil {
		log.Printf("skipping spl log for %s: %v", res.File, err)
		return res, nil
	}
	res.Level = level

	if err := s.appendLevel(res.Start, level); err != nil {
		log.Printf("failed to append spl log: %v", err)
		return res, nil
	}
	res.Logged = true

	return res, nil
}

// handle runs on the acquisition goroutine.
func (s *Session) handle(block []int16, _ bool) {
	n := s.chain.Process(block, s.scratch)
	out := s.scratch[:n]

	for len(out) > 0 && !s.pool.Overrun() {
		s.pool.Write(func(dst []int16) int {
			c := copy(dst, out)
			out = out[c:]
			return c
		})
	}
}

// drain writes published buffers to w until target samples are stored or
// the recording is aborted. Each buffer is preceded by the switch check,
// the battery check and the overrun check, in that order.
func (s *Session) drain(ctx context.Context, settings *config.Settings, w *wav.Writer, target uint64, enableLED bool) (Outcome, error) {
	changed := s.dev.Switch.Changed()
	skip := SkippedBuffers
	written := uint64(0)

	for written < target {
		select {
		case <-ctx.Done():
			return SwitchChanged, nil
		case <-changed:
			return SwitchChanged, nil
		default:
		}

		buf, ok := s.pool.Peek()
		if !ok && !s.pool.Overrun() {
			select {
			case <-ctx.Done():
			case <-changed:
				return SwitchChanged, nil
			case <-s.pool.Wait():
			}
			continue
		}

		if settings.EnableBatteryCheck && s.dev.Battery.State() == battery.Low {
			return BatteryLow, nil
		}

		if s.pool.Overrun() {
			return StorageError, fmt.Errorf("buffer overrun after %d samples", written)
		}

		if skip > 0 {
			skip--
			s.pool.Release()
			continue
		}

		n := min(uint64(len(buf)), target-written)
		if enableLED {
			s.dev.LED.SetRed(true)
		}
		err := w.Write(buf[:n])
		s.dev.LED.SetRed(false)
		if err != nil {
			return StorageError, err
		}

		s.pool.Release()
		written += n
	}

	return Completed, nil
}

func (s *Session) appendLevel(start time.Time, level float32) error {
	f, err := s.dev.Storage.Append(s.opts.LogFile)
	if err != nil {
		return err
	}
	if err := spl.WriteLine(f, start, level); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// reset zeroes the DSP state and returns the session to Idle.
func (s *Session) reset() {
	if s.chain != nil {
		s.chain.Reset()
	}
	s.acc.Reset()
	s.pool.Reset()
	s.state.Store(int32(Idle))
}
