package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MaxStartStopPeriods is the number of daily recording periods a device can hold.
	MaxStartStopPeriods = 5
	// MinutesInDay bounds start and stop minutes.
	MinutesInDay = 24 * 60
	// MaxGain is the highest microphone gain setting.
	MaxGain = 4
	// BlockSamples is the number of raw samples delivered per acquisition transfer.
	BlockSamples = 1024
)

// supportedSampleRates are the effective rates the microphone compensation
// filter has coefficients for.
var supportedSampleRates = []uint32{8000, 16000, 32000, 48000, 96000, 192000, 256000, 384000}

var (
	// ErrMalformedSchedule reports inverted, out of range, unsorted or overlapping periods.
	ErrMalformedSchedule = errors.New("malformed start/stop schedule")
	// ErrUnsupportedRate reports an effective sample rate the recording chain
	// has no compensation filter for.
	ErrUnsupportedRate = errors.New("unsupported effective sample rate")
	// ErrInvalidSettings reports settings the recording chain cannot run with.
	ErrInvalidSettings = errors.New("invalid settings")
)

// Config represents the application configuration.
type Config struct {
	Device      Settings          `yaml:"device"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Storage     StorageConfig     `yaml:"storage"`
	Battery     BatteryConfig     `yaml:"battery"`
	Serial      SerialConfig      `yaml:"serial"`
	Mock        MockConfig        `yaml:"mock"`
}

// Settings is the device configuration record. It is persisted across
// power-down and exchanged as a whole over the configuration channel.
type Settings struct {
	Time                       uint32            `yaml:"time"` // Epoch seconds, applied to the clock when received
	Gain                       uint8             `yaml:"gain"`
	ClockDivider               uint8             `yaml:"clock_divider"`
	AcquisitionCycles          uint8             `yaml:"acquisition_cycles"`
	OversampleRate             uint8             `yaml:"oversample_rate"`
	SampleRate                 uint32            `yaml:"sample_rate"`
	SampleRateDivider          uint8             `yaml:"sample_rate_divider"`
	SleepDuration              uint16            `yaml:"sleep_duration"`  // Seconds
	RecordDuration             uint16            `yaml:"record_duration"` // Seconds
	EnableLED                  bool              `yaml:"enable_led"`
	ActiveStartStopPeriods     uint8             `yaml:"active_start_stop_periods"`
	StartStopPeriods           []StartStopPeriod `yaml:"start_stop_periods"`
	TimezoneHours              int8              `yaml:"timezone_hours"`
	TimezoneMinutes            int8              `yaml:"timezone_minutes"`
	EnableBatteryCheck         bool              `yaml:"enable_battery_check"`
	DisableBatteryLevelDisplay bool              `yaml:"disable_battery_level_display"`
}

// StartStopPeriod is a daily active window in minutes of the day, [Start, Stop).
type StartStopPeriod struct {
	StartMinutes uint16 `yaml:"start"`
	StopMinutes  uint16 `yaml:"stop"`
}

// CalibrationConfig selects the SPL calibration offsets.
type CalibrationConfig struct {
	Table   string    `yaml:"table"`             // Name of a built-in calibration table
	Offsets []float32 `yaml:"offsets,omitempty"` // Per-gain override, used when exactly 5 values are given
}

// StorageConfig contains where recordings, the SPL log and persisted state live.
type StorageConfig struct {
	Dir        string `yaml:"dir"`
	LogFile    string `yaml:"log_file"`
	StateFile  string `yaml:"state_file"`
	DeviceName string `yaml:"device_name"` // Prefix of the device identifier chunk
}

// BatteryConfig describes the battery sense divider in front of the ADC.
type BatteryConfig struct {
	R1     float64 `yaml:"r1"`
	R2     float64 `yaml:"r2"`
	VRef   float64 `yaml:"vref"`
	Window int     `yaml:"window"` // Readings averaged per battery state
}

// SerialConfig contains configuration channel port settings.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// MockConfig contains simulated device configuration.
type MockConfig struct {
	DeviceID       uint64        `yaml:"device_id"`
	Frequency      float64       `yaml:"frequency"`       // Test tone frequency (Hz)
	Amplitude      float64       `yaml:"amplitude"`       // Test tone amplitude (raw ADC units)
	NoiseLevel     float64       `yaml:"noise_level"`     // Noise amplitude (raw ADC units)
	BatteryVoltage float64       `yaml:"battery_voltage"` // Simulated battery voltage (V)
	BlockInterval  time.Duration `yaml:"block_interval"`  // Time between blocks, 0 = real time
}

// DefaultSettings returns the factory device settings.
func DefaultSettings() Settings {
	return Settings{
		Time:                   0,
		Gain:                   2,
		ClockDivider:           4,
		AcquisitionCycles:      16,
		OversampleRate:         1,
		SampleRate:             384000,
		SampleRateDivider:      8,
		SleepDuration:          0,
		RecordDuration:         60,
		EnableLED:              true,
		ActiveStartStopPeriods: 0,
		StartStopPeriods: []StartStopPeriod{
			{StartMinutes: 60, StopMinutes: 120},
			{StartMinutes: 300, StopMinutes: 420},
			{StartMinutes: 540, StopMinutes: 600},
			{StartMinutes: 720, StopMinutes: 780},
			{StartMinutes: 900, StopMinutes: 960},
		},
	}
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Device: DefaultSettings(),
		Calibration: CalibrationConfig{
			Table: "main-2020",
		},
		Storage: StorageConfig{
			Dir:        "recordings",
			LogFile:    "SPL.log",
			StateFile:  "backup.bin",
			DeviceName: "AudioMoth",
		},
		Battery: BatteryConfig{
			R1:     20000,
			R2:     20000,
			VRef:   3.3,
			Window: 8,
		},
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		Mock: MockConfig{
			DeviceID:       0x24F319055B8E3C21,
			Frequency:      1000,
			Amplitude:      1000,
			NoiseLevel:     20,
			BatteryVoltage: 4.2,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Device.Validate(); err != nil {
		return nil, fmt.Errorf("invalid device settings in %s: %w", filename, err)
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Device.SampleRate == 0 {
		c.Device.SampleRate = def.Device.SampleRate
	}
	if c.Device.SampleRateDivider == 0 {
		c.Device.SampleRateDivider = def.Device.SampleRateDivider
	}
	if c.Device.OversampleRate == 0 {
		c.Device.OversampleRate = def.Device.OversampleRate
	}
	if c.Device.RecordDuration == 0 {
		c.Device.RecordDuration = def.Device.RecordDuration
	}

	if c.Calibration.Table == "" {
		c.Calibration.Table = def.Calibration.Table
	}

	if c.Storage.Dir == "" {
		c.Storage.Dir = def.Storage.Dir
	}
	if c.Storage.LogFile == "" {
		c.Storage.LogFile = def.Storage.LogFile
	}
	if c.Storage.StateFile == "" {
		c.Storage.StateFile = def.Storage.StateFile
	}
	if c.Storage.DeviceName == "" {
		c.Storage.DeviceName = def.Storage.DeviceName
	}

	if c.Battery.R1 == 0 {
		c.Battery.R1 = def.Battery.R1
	}
	if c.Battery.R2 == 0 {
		c.Battery.R2 = def.Battery.R2
	}
	if c.Battery.VRef == 0 {
		c.Battery.VRef = def.Battery.VRef
	}
	if c.Battery.Window <= 0 {
		c.Battery.Window = def.Battery.Window
	}

	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Mock.BatteryVoltage == 0 {
		c.Mock.BatteryVoltage = def.Mock.BatteryVoltage
	}
	if c.Mock.Frequency == 0 {
		c.Mock.Frequency = def.Mock.Frequency
	}
}

// EffectiveSampleRate returns the rate of the decimated stream.
func (s *Settings) EffectiveSampleRate() uint32 {
	if s.SampleRateDivider == 0 {
		return 0
	}
	return s.SampleRate / uint32(s.SampleRateDivider)
}

// SupportedSampleRates returns the effective sample rates a recording can run at.
func SupportedSampleRates() []uint32 {
	return append([]uint32(nil), supportedSampleRates...)
}

// ActivePeriods returns the periods in use. ActiveStartStopPeriods is clamped
// to MaxStartStopPeriods and to the number of periods present.
func (s *Settings) ActivePeriods() []StartStopPeriod {
	n := min(int(s.ActiveStartStopPeriods), MaxStartStopPeriods, len(s.StartStopPeriods))
	return s.StartStopPeriods[:n]
}

// Validate checks the settings the recording chain depends on and the schedule.
func (s *Settings) Validate() error {
	if s.Gain > MaxGain {
		return fmt.Errorf("%w: gain %d out of range 0..%d", ErrInvalidSettings, s.Gain, MaxGain)
	}
	if s.SampleRate == 0 {
		return fmt.Errorf("%w: sample rate is zero", ErrInvalidSettings)
	}
	if s.SampleRateDivider == 0 {
		return fmt.Errorf("%w: sample rate divider is zero", ErrInvalidSettings)
	}
	if BlockSamples%int(s.SampleRateDivider) != 0 {
		return fmt.Errorf("%w: sample rate divider %d does not divide the %d sample block",
			ErrInvalidSettings, s.SampleRateDivider, BlockSamples)
	}
	if rate := s.EffectiveSampleRate(); !slices.Contains(supportedSampleRates, rate) {
		return fmt.Errorf("%w: %w: %d Hz", ErrInvalidSettings, ErrUnsupportedRate, rate)
	}
	if s.OversampleRate == 0 {
		return fmt.Errorf("%w: oversample rate is zero", ErrInvalidSettings)
	}
	if s.RecordDuration == 0 {
		return fmt.Errorf("%w: record duration is zero", ErrInvalidSettings)
	}
	return s.ValidateSchedule()
}

// ValidateSchedule rejects active periods that are inverted, empty, beyond the
// end of the day, not in ascending order or overlapping.
func (s *Settings) ValidateSchedule() error {
	periods := s.ActivePeriods()
	for i, p := range periods {
		if p.StopMinutes > MinutesInDay {
			return fmt.Errorf("%w: period %d stops at minute %d", ErrMalformedSchedule, i, p.StopMinutes)
		}
		if p.StartMinutes >= p.StopMinutes {
			return fmt.Errorf("%w: period %d starts at %d and stops at %d", ErrMalformedSchedule, i, p.StartMinutes, p.StopMinutes)
		}
		if i > 0 && p.StartMinutes < periods[i-1].StopMinutes {
			return fmt.Errorf("%w: period %d overlaps or precedes period %d", ErrMalformedSchedule, i, i-1)
		}
	}
	return nil
}

// Clone returns a deep copy of the settings.
func (s Settings) Clone() Settings {
	s.StartStopPeriods = append([]StartStopPeriod(nil), s.StartStopPeriods...)
	return s
}
