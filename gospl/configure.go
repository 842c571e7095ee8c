package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/itohio/gospl/pkg/config"
	"github.com/itohio/gospl/pkg/configlink"
)

// exchangeTimeout bounds a request to a recorder that may not be in USB
// position.
const exchangeTimeout = 5 * time.Second

func listPorts() error {
	ports, err := configlink.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p.Description)
	}
	return nil
}

func queryInfo(ctx context.Context, cfg *config.Config) error {
	port, err := configlink.Open(cfg.Serial)
	if err != nil {
		return err
	}
	defer port.Close()

	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	info, err := configlink.NewClient(port).Info(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("device:      %016X\n", info.DeviceID)
	fmt.Printf("firmware:    %s %d.%d.%d\n", info.Description, info.Version[0], info.Version[1], info.Version[2])
	fmt.Printf("time:        %s\n", time.Unix(int64(info.Time), 0).UTC().Format(time.DateTime))
	fmt.Printf("battery:     %s\n", info.Battery)
	return nil
}

// configure sends the configured device settings, stamped with the current
// time, to a recorder in USB position.
func configure(ctx context.Context, cfg *config.Config) error {
	settings := cfg.Device.Clone()
	settings.Time = uint32(time.Now().Unix())
	if err := settings.Validate(); err != nil {
		return err
	}

	port, err := configlink.Open(cfg.Serial)
	if err != nil {
		return err
	}
	defer port.Close()

	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	stored, err := configlink.NewClient(port).SetSettings(ctx, &settings)
	if err != nil {
		return fmt.Errorf("failed to configure recorder on %s: %w", cfg.Serial.Port, err)
	}

	log.Printf("recorder on %s configured: %d Hz / %d, gain %d, record %ds, sleep %ds, %d periods",
		cfg.Serial.Port, stored.SampleRate, stored.SampleRateDivider, stored.Gain,
		stored.RecordDuration, stored.SleepDuration, len(stored.ActivePeriods()))
	return nil
}
