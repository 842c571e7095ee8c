package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override the configuration file.
const (
	EnvSerialPort     = "GOSPL_SERIAL_PORT"
	EnvStorageDir     = "GOSPL_STORAGE_DIR"
	EnvStateFile      = "GOSPL_STATE_FILE"
	EnvDeviceName     = "GOSPL_DEVICE_NAME"
	EnvCalibration    = "GOSPL_CALIBRATION"
	EnvBatteryVoltage = "GOSPL_BATTERY_VOLTAGE"
)

// ApplyEnv loads a .env file if one exists and applies the GOSPL_*
// environment overrides.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	c.Serial.Port = getEnv(EnvSerialPort, c.Serial.Port)
	c.Storage.Dir = getEnv(EnvStorageDir, c.Storage.Dir)
	c.Storage.StateFile = getEnv(EnvStateFile, c.Storage.StateFile)
	c.Storage.DeviceName = getEnv(EnvDeviceName, c.Storage.DeviceName)
	c.Calibration.Table = getEnv(EnvCalibration, c.Calibration.Table)
	c.Mock.BatteryVoltage = getEnvFloat(EnvBatteryVoltage, c.Mock.BatteryVoltage)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("failed to parse %s as float, using default: %v", key, err)
		return defaultValue
	}
	return floatValue
}
