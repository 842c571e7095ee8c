package configlink

import (
	"fmt"
	"time"

	"github.com/itohio/gospl/pkg/config"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	// DefaultBaudRate is used when no baud rate is configured.
	DefaultBaudRate = 115200
	// DefaultReadTimeout bounds a single read so servers can observe
	// cancellation.
	DefaultReadTimeout = 100 * time.Millisecond
)

// Port describes a serial port.
type Port struct {
	Name        string
	Description string
	USB         bool
}

// Ports returns the available serial ports.
func Ports() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(details))
	for _, d := range details {
		desc := d.Name
		if d.IsUSB {
			desc = fmt.Sprintf("%s (USB %s:%s %s)", d.Name, d.VID, d.PID, d.SerialNumber)
		}
		result = append(result, Port{
			Name:        d.Name,
			Description: desc,
			USB:         d.IsUSB,
		})
	}

	return result, nil
}

// Open opens a serial port for the configuration channel.
func Open(cfg config.SerialConfig) (serial.Port, error) {
	baudRate := cfg.BaudRate
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}

	if err := port.SetReadTimeout(DefaultReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", cfg.Port, err)
	}

	return port, nil
}
