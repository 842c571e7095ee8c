// Package recorder runs the wake cycle of the device: on every wake it
// reads the switch, serves the configuration channel or decides whether a
// recording is due, runs it, and returns how long to power down.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/itohio/gospl/pkg/battery"
	"github.com/itohio/gospl/pkg/config"
	"github.com/itohio/gospl/pkg/configlink"
	"github.com/itohio/gospl/pkg/device"
	"github.com/itohio/gospl/pkg/dsp"
	"github.com/itohio/gospl/pkg/schedule"
	"github.com/itohio/gospl/pkg/session"
	"github.com/itohio/gospl/pkg/spl"
	"github.com/itohio/gospl/pkg/state"
)

const (
	// DefaultWaitInterval is the power down time in USB and unconfigured modes.
	DefaultWaitInterval = time.Second
	// WaitingFlashInterval bounds the power down time while waiting for a
	// recording so the waiting flash repeats.
	WaitingFlashInterval = 2 * time.Second
	// WaitingFlashDuration is the green flash shown while waiting.
	WaitingFlashDuration = 10 * time.Millisecond
	// ShortFlashDuration is used for battery level and configuration flashes.
	ShortFlashDuration = 100 * time.Millisecond
	// LongFlashDuration is used for errors and the low battery warning.
	LongFlashDuration = 500 * time.Millisecond
)

// ConfigChannel serves configuration requests until ctx is done.
type ConfigChannel interface {
	Serve(ctx context.Context, h configlink.Handler) error
}

// Devices are the collaborators of the recorder.
type Devices struct {
	session.Devices

	Config ConfigChannel // Optional
}

// Options configure a Recorder.
type Options struct {
	Session     session.Options
	Version     [configlink.VersionLength]byte
	Description string
	Delay       func(time.Duration) // LED timing, defaults to time.Sleep
}

// Recorder owns the persisted record and the recording session.
type Recorder struct {
	dev     Devices
	store   state.Store
	opts    Options
	session *session.Session

	mu     sync.Mutex
	record state.Record // Valid while the configuration channel is served
}

var _ configlink.Handler = (*Recorder)(nil)

// New creates a recorder.
func New(dev Devices, store state.Store, opts Options) *Recorder {
	if opts.Delay == nil {
		opts.Delay = time.Sleep
	}
	return &Recorder{
		dev:     dev,
		store:   store,
		opts:    opts,
		session: session.New(dev.Devices, opts.Session),
	}
}

// Wake runs one wake cycle and returns how long to power down.
func (r *Recorder) Wake(ctx context.Context) (time.Duration, error) {
	rec, fresh, err := r.load()
	if err != nil {
		return 0, err
	}

	pos := r.dev.Switch.Position()

	if !fresh && pos != rec.PreviousSwitch && pos == device.PositionUSB && !rec.Settings.DisableBatteryLevelDisplay {
		r.flashBatteryLevel()
	}

	if pos == device.PositionUSB {
		rec = r.serveConfig(ctx, rec)
		return r.powerDown(&rec, pos, DefaultWaitInterval)
	}

	if pos == device.PositionCustom && !r.configured(&rec.Settings) {
		r.flash(true, true, ShortFlashDuration)
		return r.powerDown(&rec, pos, DefaultWaitInterval)
	}

	now := uint32(r.dev.Clock.Now().Unix())

	if pos != rec.PreviousSwitch {
		if pos == device.PositionDefault {
			rec.Next = schedule.Recording{Start: now, Duration: uint32(rec.Settings.RecordDuration)}
		} else {
			rec.Next = schedule.Next(now, &rec.Settings)
		}
		log.Printf("switch moved to %s, next recording %s", pos, rec.Next)
	}

	enableLED := pos == device.PositionDefault || rec.Settings.EnableLED

	if rec.Next.Due(now) {
		outcome, err := r.runSession(ctx, &rec, enableLED)
		if err != nil {
			log.Printf("recording due at %s failed: %v", rec.Next, err)
		}

		if pos == device.PositionDefault {
			if err != nil || outcome != session.SwitchChanged {
				rec.Next.Start = now + uint32(rec.Settings.RecordDuration) + uint32(rec.Settings.SleepDuration)
			}
		} else {
			rec.Next = schedule.Next(now, &rec.Settings)
		}
	} else if enableLED {
		r.flash(false, true, WaitingFlashDuration)
	}

	sleep := time.Duration(0)
	if rec.Next.Start > now {
		sleep = min(time.Duration(rec.Next.Start-now)*time.Second, WaitingFlashInterval)
	}

	return r.powerDown(&rec, pos, sleep)
}

// load returns the persisted record, installing the fresh record when
// nothing usable is stored.
func (r *Recorder) load() (state.Record, bool, error) {
	rec, err := r.store.Load()
	switch {
	case err == nil:
		return rec, false, nil
	case errors.Is(err, state.ErrNoRecord), errors.Is(err, state.ErrVersion), errors.Is(err, state.ErrCorrupt):
		log.Printf("initial power up: %v", err)
		return state.Fresh(), true, nil
	default:
		return state.Record{}, false, fmt.Errorf("failed to load persisted record: %w", err)
	}
}

func (r *Recorder) powerDown(rec *state.Record, pos device.Position, sleep time.Duration) (time.Duration, error) {
	rec.PreviousSwitch = pos
	if err := r.store.Save(*rec); err != nil {
		return sleep, fmt.Errorf("failed to persist record: %w", err)
	}
	return sleep, nil
}

// configured reports whether custom mode can schedule recordings.
func (r *Recorder) configured(s *config.Settings) bool {
	if !r.dev.Clock.IsSet() || len(s.ActivePeriods()) == 0 {
		return false
	}
	if err := s.ValidateSchedule(); err != nil {
		log.Printf("ignoring schedule: %v", err)
		return false
	}
	return true
}

// runSession runs a session unless the battery check forbids it. The
// outcome is only meaningful when the error is nil or wraps
// session.ErrStorage; any other error means nothing was recorded.
func (r *Recorder) runSession(ctx context.Context, rec *state.Record, enableLED bool) (session.Outcome, error) {
	s := &rec.Settings

	if s.EnableBatteryCheck && r.dev.Battery.State() == battery.Low {
		log.Printf("battery low, skipping recording")
		if enableLED {
			r.flash(true, true, LongFlashDuration)
		}
		return session.BatteryLow, nil
	}

	res, err := r.session.Run(ctx, s, rec.Next.Duration, enableLED)
	if err != nil {
		r.flash(true, true, LongFlashDuration)
		switch {
		case errors.Is(err, session.ErrStorage):
			return res.Outcome, err
		case errors.Is(err, dsp.ErrUnsupportedRate), errors.Is(err, config.ErrInvalidSettings):
			return res.Outcome, fmt.Errorf("cannot record with current settings: %w", err)
		default:
			return res.Outcome, fmt.Errorf("recording not started: %w", err)
		}
	}

	if res.Logged {
		log.Printf("%s: %s dB(A)", res.File, spl.FormatLevel(res.Level))
	}
	return res.Outcome, nil
}

// serveConfig answers the configuration channel and returns the record as
// left by it.
func (r *Recorder) serveConfig(ctx context.Context, rec state.Record) state.Record {
	r.mu.Lock()
	r.record = rec
	r.mu.Unlock()

	if r.dev.Config != nil {
		cctx, cancel := context.WithTimeout(ctx, DefaultWaitInterval)
		defer cancel()
		if err := r.dev.Config.Serve(cctx, r); err != nil {
			log.Printf("configuration channel failed: %v", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record
}

// Info returns the device information for the configuration channel.
func (r *Recorder) Info() configlink.Info {
	return configlink.Info{
		Time:        uint32(r.dev.Clock.Now().Unix()),
		DeviceID:    r.dev.Identity.DeviceID(),
		Battery:     r.dev.Battery.State(),
		Version:     r.opts.Version,
		Description: r.opts.Description,
	}
}

// SetSettings validates and stores settings received over the
// configuration channel and sets the clock to their time.
func (r *Recorder) SetSettings(s config.Settings) (config.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := s.Validate(); err != nil {
		return r.record.Settings.Clone(), err
	}

	r.record.Settings = s.Clone()
	if err := r.store.Save(r.record); err != nil {
		return r.record.Settings.Clone(), fmt.Errorf("failed to persist settings: %w", err)
	}

	r.dev.Clock.Set(time.Unix(int64(s.Time), 0))
	log.Printf("settings received, clock set to %s", r.dev.Clock.Now().UTC().Format(time.DateTime))

	return s, nil
}
