package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvSerialPort, "/dev/ttyUSB3")
	t.Setenv(EnvStorageDir, "/tmp/sd")
	t.Setenv(EnvBatteryVoltage, "3.7")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "/dev/ttyUSB3", cfg.Serial.Port)
	assert.Equal(t, "/tmp/sd", cfg.Storage.Dir)
	assert.Equal(t, 3.7, cfg.Mock.BatteryVoltage)
	assert.Equal(t, "AudioMoth", cfg.Storage.DeviceName)
	assert.Equal(t, "main-2020", cfg.Calibration.Table)
}

func TestApplyEnv_InvalidFloat(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvBatteryVoltage, "lots")

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, 4.2, cfg.Mock.BatteryVoltage)
}

func TestApplyEnv_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GOSPL_DEVICE_NAME=Meadow\nGOSPL_CALIBRATION=spl-2020\n"), 0644))
	for _, key := range []string{EnvDeviceName, EnvCalibration} {
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() { os.Unsetenv(key) })
	}

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "Meadow", cfg.Storage.DeviceName)
	assert.Equal(t, "spl-2020", cfg.Calibration.Table)
}
