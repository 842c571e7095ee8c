package recorder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/itohio/gospl/pkg/config"
	"github.com/itohio/gospl/pkg/configlink"
	"github.com/itohio/gospl/pkg/device"
	"github.com/itohio/gospl/pkg/dsp"
	"github.com/itohio/gospl/pkg/schedule"
	"github.com/itohio/gospl/pkg/session"
	"github.com/itohio/gospl/pkg/spl"
	"github.com/itohio/gospl/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var midnight = time.Date(2020, time.February, 26, 0, 0, 0, 0, time.UTC)

type fixture struct {
	clock   *device.ManualClock
	sw      *device.MockSwitch
	battery *device.SimBattery
	led     *device.MockLED
	storage *device.MemStorage
	store   *state.MemoryStore

	mu     sync.Mutex
	delays []time.Duration

	recorder *Recorder
}

func newFixture(t *testing.T, pos device.Position, voltage float64, cfg ConfigChannel) *fixture {
	t.Helper()

	offsets, err := spl.OffsetsFor(config.Default().Calibration)
	require.NoError(t, err)

	mockCfg := config.Default().Mock
	mockCfg.BlockInterval = time.Millisecond

	f := &fixture{
		clock:   device.NewManualClock(midnight),
		sw:      device.NewMockSwitch(pos),
		battery: device.NewSimBattery(config.Default().Battery, voltage),
		led:     &device.MockLED{},
		storage: device.NewMemStorage(),
		store:   state.NewMemoryStore(),
	}
	f.recorder = New(Devices{
		Devices: session.Devices{
			Acquisition: device.NewMock(&mockCfg),
			Storage:     f.storage,
			Switch:      f.sw,
			Battery:     f.battery,
			LED:         f.led,
			Clock:       f.clock,
			Identity:    device.ID(mockCfg.DeviceID),
		},
		Config: cfg,
	}, f.store, Options{
		Session: session.Options{
			DeviceName:    "AudioMoth",
			LogFile:       "SPL.log",
			Offsets:       offsets,
			Buffers:       64,
			BufferSamples: dsp.BlockSamples,
		},
		Version:     [configlink.VersionLength]byte{1, 0, 0},
		Description: "gospl",
		Delay: func(d time.Duration) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.delays = append(f.delays, d)
		},
	})
	return f
}

func (f *fixture) Delays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.delays...)
}

func (f *fixture) save(t *testing.T, rec state.Record) {
	t.Helper()
	require.NoError(t, f.store.Save(rec))
}

func (f *fixture) load(t *testing.T) state.Record {
	t.Helper()
	rec, err := f.store.Load()
	require.NoError(t, err)
	return rec
}

func (f *fixture) now() uint32 {
	return uint32(f.clock.Now().Unix())
}

func (f *fixture) recordings() []string {
	var names []string
	for _, name := range f.storage.Names() {
		if strings.HasSuffix(name, ".WAV") {
			names = append(names, name)
		}
	}
	return names
}

// quickSettings records one second at 8 kHz.
func quickSettings() config.Settings {
	s := config.DefaultSettings()
	s.SampleRate = 8000
	s.SampleRateDivider = 1
	s.OversampleRate = 16
	s.RecordDuration = 1
	s.SleepDuration = 5
	return s
}

func TestWake_FreshCustomUnconfigured(t *testing.T) {
	f := newFixture(t, device.PositionCustom, 4.2, nil)

	sleep, err := f.recorder.Wake(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultWaitInterval, sleep)

	rec := f.load(t)
	assert.Equal(t, device.PositionCustom, rec.PreviousSwitch)
	assert.Equal(t, schedule.Recording{}, rec.Next)
	assert.Equal(t, config.DefaultSettings(), rec.Settings)

	assert.Equal(t, 1, f.led.Flashes(true))
	assert.Equal(t, 1, f.led.Flashes(false))
	assert.Equal(t, []time.Duration{ShortFlashDuration}, f.Delays())
}

func TestWake_CustomRejectsInvalidSchedule(t *testing.T) {
	f := newFixture(t, device.PositionCustom, 4.2, nil)
	f.clock.Set(midnight)

	s := quickSettings()
	s.ActiveStartStopPeriods = 2
	s.StartStopPeriods[1] = config.StartStopPeriod{StartMinutes: 100, StopMinutes: 90}
	f.save(t, state.Record{PreviousSwitch: device.PositionCustom, Settings: s})

	sleep, err := f.recorder.Wake(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultWaitInterval, sleep)
	assert.Equal(t, []time.Duration{ShortFlashDuration}, f.Delays())
	assert.Empty(t, f.recordings())
}

func TestWake_VersionMismatchIsFreshPowerUp(t *testing.T) {
	f := newFixture(t, device.PositionUSB, 4.2, nil)

	old := state.Record{PreviousSwitch: device.PositionDefault, Settings: quickSettings()}
	data := old.Marshal()
	data[0] = state.Version + 1
	f.recorder.store = &rawStore{MemoryStore: f.store, data: data}

	_, err := f.recorder.Wake(context.Background())
	require.NoError(t, err)
	assert.Zero(t, f.led.Flashes(true), "no battery flash on initial power up")
	assert.Equal(t, config.DefaultSettings(), f.load(t).Settings)
}

// rawStore serves fixed bytes on the first load.
type rawStore struct {
	*state.MemoryStore
	data []byte
	used bool
}

func (s *rawStore) Load() (state.Record, error) {
	if !s.used {
		s.used = true
		return state.Unmarshal(s.data)
	}
	return s.MemoryStore.Load()
}

type failingStore struct{}

func (failingStore) Load() (state.Record, error) { return state.Record{}, errors.New("bus fault") }
func (failingStore) Save(state.Record) error     { return errors.New("bus fault") }

func TestWake_StoreFailure(t *testing.T) {
	f := newFixture(t, device.PositionDefault, 4.2, nil)
	f.recorder.store = failingStore{}

	_, err := f.recorder.Wake(context.Background())
	assert.Error(t, err)
}

func TestWake_USBFlashesBatteryLevel(t *testing.T) {
	tests := []struct {
		name    string
		voltage float64
		flashes int
		gap     time.Duration
	}{
		{name: "low", voltage: 3.4, flashes: 10, gap: ShortFlashDuration},
		{name: "3.9V", voltage: 3.95, flashes: 1, gap: LongFlashDuration},
		{name: "4.2V", voltage: 4.25, flashes: 2, gap: LongFlashDuration},
		{name: "4.5V", voltage: 4.55, flashes: 3, gap: LongFlashDuration},
		{name: "full", voltage: 5.2, flashes: 4, gap: LongFlashDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, device.PositionUSB, tt.voltage, nil)
			f.save(t, state.Record{PreviousSwitch: device.PositionDefault, Settings: quickSettings()})

			sleep, err := f.recorder.Wake(context.Background())
			require.NoError(t, err)
			assert.Equal(t, DefaultWaitInterval, sleep)
			assert.Equal(t, tt.flashes, f.led.Flashes(true))
			assert.Zero(t, f.led.Flashes(false))

			delays := f.Delays()
			require.Len(t, delays, 2*tt.flashes)
			assert.Equal(t, ShortFlashDuration, delays[0])
			assert.Equal(t, tt.gap, delays[1])

			// Staying in USB does not flash again
			f.led.Reset()
			_, err = f.recorder.Wake(context.Background())
			require.NoError(t, err)
			assert.Zero(t, f.led.Flashes(true))
			assert.Equal(t, device.PositionUSB, f.load(t).PreviousSwitch)
		})
	}
}

func TestWake_USBBatteryDisplayDisabled(t *testing.T) {
	f := newFixture(t, device.PositionUSB, 4.2, nil)
	s := quickSettings()
	s.DisableBatteryLevelDisplay = true
	f.save(t, state.Record{PreviousSwitch: device.PositionDefault, Settings: s})

	_, err := f.recorder.Wake(context.Background())
	require.NoError(t, err)
	assert.Zero(t, f.led.Flashes(true))
}

// scriptedChannel calls the handler once per Serve.
type scriptedChannel struct {
	script func(h configlink.Handler)
}

func (c *scriptedChannel) Serve(_ context.Context, h configlink.Handler) error {
	c.script(h)
	return nil
}

func TestWake_USBServesConfiguration(t *testing.T) {
	received := quickSettings()
	received.Time = uint32(midnight.Add(3 * time.Hour).Unix())
	received.ActiveStartStopPeriods = 1

	var (
		info   configlink.Info
		stored config.Settings
		setErr error
	)
	ch := &scriptedChannel{script: func(h configlink.Handler) {
		info = h.Info()
		stored, setErr = h.SetSettings(received)
	}}

	f := newFixture(t, device.PositionUSB, 4.2, ch)

	_, err := f.recorder.Wake(context.Background())
	require.NoError(t, err)
	require.NoError(t, setErr)

	assert.Equal(t, uint64(config.Default().Mock.DeviceID), info.DeviceID)
	assert.Equal(t, "gospl", info.Description)
	assert.Equal(t, received, stored)

	assert.True(t, f.clock.IsSet())
	assert.Equal(t, received.Time, f.now())

	rec := f.load(t)
	assert.Equal(t, received, rec.Settings)
	assert.Equal(t, device.PositionUSB, rec.PreviousSwitch)
}

func TestWake_USBRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name   string
		modify func(s *config.Settings)
		want   error
	}{
		{name: "gain", modify: func(s *config.Settings) { s.Gain = 9 }, want: config.ErrInvalidSettings},
		{name: "unsupported rate", modify: func(s *config.Settings) { s.SampleRate = 44100 }, want: dsp.ErrUnsupportedRate},
		{name: "divider", modify: func(s *config.Settings) { s.SampleRate = 24000; s.SampleRateDivider = 3 }, want: config.ErrInvalidSettings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			received := quickSettings()
			tt.modify(&received)

			var setErr error
			ch := &scriptedChannel{script: func(h configlink.Handler) {
				_, setErr = h.SetSettings(received)
			}}

			f := newFixture(t, device.PositionUSB, 4.2, ch)
			f.save(t, state.Record{PreviousSwitch: device.PositionUSB, Settings: quickSettings()})

			_, err := f.recorder.Wake(context.Background())
			require.NoError(t, err)
			assert.ErrorIs(t, setErr, tt.want)
			assert.False(t, f.clock.IsSet())
			assert.Equal(t, quickSettings(), f.load(t).Settings)
		})
	}
}

func TestWake_DefaultRecordsImmediately(t *testing.T) {
	f := newFixture(t, device.PositionDefault, 4.2, nil)
	f.clock.Set(midnight)
	f.save(t, state.Record{PreviousSwitch: device.PositionUSB, Settings: quickSettings()})

	sleep, err := f.recorder.Wake(context.Background())
	require.NoError(t, err)
	assert.Equal(t, WaitingFlashInterval, sleep)

	assert.Equal(t, []string{"20200226_000000.WAV"}, f.recordings())
	logData, ok := f.storage.File("SPL.log")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(string(logData), "26/02/2020 00:00:00: "))

	rec := f.load(t)
	assert.Equal(t, device.PositionDefault, rec.PreviousSwitch)
	assert.Equal(t, schedule.Recording{Start: f.now() + 6, Duration: 1}, rec.Next)
}

func TestWake_DefaultWaitsForNextRecording(t *testing.T) {
	f := newFixture(t, device.PositionDefault, 4.2, nil)
	f.clock.Set(midnight)
	f.save(t, state.Record{
		PreviousSwitch: device.PositionDefault,
		Next:           schedule.Recording{Start: f.now() + 10, Duration: 1},
		Settings:       quickSettings(),
	})

	sleep, err := f.recorder.Wake(context.Background())
	require.NoError(t, err)
	assert.Equal(t, WaitingFlashInterval, sleep)
	assert.Equal(t, 1, f.led.Flashes(false), "waiting flash")
	assert.Equal(t, []time.Duration{WaitingFlashDuration}, f.Delays())

	f.clock.Advance(9 * time.Second)
	sleep, err = f.recorder.Wake(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Second, sleep)
	assert.Empty(t, f.recordings())
}

func TestWake_CustomFollowsSchedule(t *testing.T) {
	f := newFixture(t, device.PositionCustom, 4.2, nil)
	f.clock.Set(midnight.Add(30 * time.Minute))

	s := quickSettings()
	s.SleepDuration = 59
	s.ActiveStartStopPeriods = 1
	f.save(t, state.Record{PreviousSwitch: device.PositionDefault, Settings: s})

	sleep, err := f.recorder.Wake(context.Background())
	require.NoError(t, err)
	assert.Equal(t, WaitingFlashInterval, sleep)
	assert.Equal(t, uint32(midnight.Add(time.Hour).Unix()), f.load(t).Next.Start)
	assert.Empty(t, f.recordings())

	f.clock.Set(midnight.Add(time.Hour))
	sleep, err = f.recorder.Wake(context.Background())
	require.NoError(t, err)
	assert.Equal(t, WaitingFlashInterval, sleep)
	assert.Equal(t, []string{"20200226_010000.WAV"}, f.recordings())

	rec := f.load(t)
	assert.Equal(t, schedule.Recording{Start: uint32(midnight.Add(61 * time.Minute).Unix()), Duration: 1}, rec.Next)
}

func TestWake_BatteryLowSkipsRecording(t *testing.T) {
	f := newFixture(t, device.PositionDefault, 3.2, nil)
	f.clock.Set(midnight)
	s := quickSettings()
	s.EnableBatteryCheck = true
	f.save(t, state.Record{PreviousSwitch: device.PositionUSB, Settings: s})

	_, err := f.recorder.Wake(context.Background())
	require.NoError(t, err)

	assert.Empty(t, f.recordings())
	assert.Equal(t, []time.Duration{LongFlashDuration}, f.Delays())
	assert.Equal(t, f.now()+6, f.load(t).Next.Start)
}

func TestWake_UnsupportedRate(t *testing.T) {
	f := newFixture(t, device.PositionDefault, 4.2, nil)
	f.clock.Set(midnight)
	s := quickSettings()
	s.SampleRate = 44100
	f.save(t, state.Record{PreviousSwitch: device.PositionUSB, Settings: s})

	_, err := f.recorder.Wake(context.Background())
	require.NoError(t, err)

	assert.Empty(t, f.storage.Names())
	assert.Equal(t, []time.Duration{LongFlashDuration}, f.Delays())
	assert.Equal(t, f.now()+6, f.load(t).Next.Start)
}

func TestRunSession_Errors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(s *config.Settings)
		voltage float64
		fail    bool
		want    error
		outcome session.Outcome
	}{
		{name: "unsupported rate", modify: func(s *config.Settings) { s.SampleRate = 44100 }, voltage: 4.2, want: dsp.ErrUnsupportedRate},
		{name: "invalid gain", modify: func(s *config.Settings) { s.Gain = 9 }, voltage: 4.2, want: config.ErrInvalidSettings},
		{name: "storage", modify: func(s *config.Settings) {}, voltage: 4.2, fail: true, want: session.ErrStorage, outcome: session.StorageError},
		{name: "battery low", modify: func(s *config.Settings) { s.EnableBatteryCheck = true }, voltage: 3.2, outcome: session.BatteryLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, device.PositionDefault, tt.voltage, nil)
			f.clock.Set(midnight)
			f.storage.FailCreate = tt.fail
			rec := state.Record{Settings: quickSettings(), Next: schedule.Recording{Start: f.now(), Duration: 1}}
			tt.modify(&rec.Settings)

			outcome, err := f.recorder.runSession(context.Background(), &rec, true)
			if tt.want == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.want)
			}
			if tt.want == nil || errors.Is(tt.want, session.ErrStorage) {
				assert.Equal(t, tt.outcome, outcome)
			}
			assert.Equal(t, []time.Duration{LongFlashDuration}, f.Delays())
		})
	}
}
