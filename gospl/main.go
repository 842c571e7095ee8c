package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/itohio/gospl/pkg/config"
	"github.com/itohio/gospl/pkg/configlink"
	"github.com/itohio/gospl/pkg/device"
	"github.com/itohio/gospl/pkg/recorder"
	"github.com/itohio/gospl/pkg/session"
	"github.com/itohio/gospl/pkg/spl"
	"github.com/itohio/gospl/pkg/state"
)

var firmwareVersion = [configlink.VersionLength]byte{1, 0, 0}

const firmwareDescription = "gospl"

func main() {
	var (
		configFlag    = flag.String("config", "config.yaml", "Configuration file path")
		portFlag      = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		dirFlag       = flag.String("dir", "", "Recording directory override")
		positionFlag  = flag.String("position", "default", "Initial switch position: usb, custom or default")
		serveFlag     = flag.Bool("serve", false, "Serve the configuration channel on the serial port in USB position")
		configureFlag = flag.Bool("configure", false, "Push the device settings from the configuration file to a recorder and exit")
		infoFlag      = flag.Bool("info", false, "Query a recorder over the serial port and exit")
		portsFlag     = flag.Bool("ports", false, "List serial ports and exit")
		wakesFlag     = flag.Int("wakes", 0, "Stop after this many wake cycles (0 = run until interrupted)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ApplyEnv()

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *dirFlag != "" {
		cfg.Storage.Dir = *dirFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *portsFlag:
		err = listPorts()
	case *infoFlag:
		err = queryInfo(ctx, cfg)
	case *configureFlag:
		err = configure(ctx, cfg)
	default:
		err = run(ctx, cfg, *positionFlag, *serveFlag, *wakesFlag)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func parsePosition(s string) (device.Position, error) {
	for _, p := range []device.Position{device.PositionUSB, device.PositionCustom, device.PositionDefault} {
		if p.String() == s {
			return p, nil
		}
	}
	return device.PositionNone, fmt.Errorf("unknown switch position %q", s)
}

// run drives the recorder against simulated hardware until ctx is done.
// SIGHUP moves the switch to its next position.
func run(ctx context.Context, cfg *config.Config, position string, serve bool, wakes int) error {
	pos, err := parsePosition(position)
	if err != nil {
		return err
	}

	offsets, err := spl.OffsetsFor(cfg.Calibration)
	if err != nil {
		return fmt.Errorf("invalid calibration: %w", err)
	}

	sw := device.NewMockSwitch(pos)
	dev := recorder.Devices{
		Devices: session.Devices{
			Acquisition: device.NewMock(&cfg.Mock),
			Storage:     device.NewDirStorage(cfg.Storage.Dir),
			Switch:      sw,
			Battery:     device.NewSimBattery(cfg.Battery, cfg.Mock.BatteryVoltage),
			LED:         &ledLogger{},
			Clock:       device.NewSystemClock(),
			Identity:    device.ID(cfg.Mock.DeviceID),
		},
	}

	if serve {
		port, err := configlink.Open(cfg.Serial)
		if err != nil {
			return err
		}
		defer port.Close()
		dev.Config = configlink.NewServer(port)
		log.Printf("serving configuration channel on %s", cfg.Serial.Port)
	}

	store := state.NewFileStore(filepath.Join(cfg.Storage.Dir, cfg.Storage.StateFile))
	if _, err := store.Load(); errors.Is(err, state.ErrNoRecord) {
		// Seed the persisted settings from the configuration file.
		log.Printf("no persisted state in %s, using configured settings", store.Path())
		if err := store.Save(state.Record{
			PreviousSwitch: device.PositionNone,
			Settings:       cfg.Device.Clone(),
		}); err != nil {
			return err
		}
	}

	rec := recorder.New(dev, store, recorder.Options{
		Session: session.Options{
			DeviceName: cfg.Storage.DeviceName,
			LogFile:    cfg.Storage.LogFile,
			Offsets:    offsets,
		},
		Version:     firmwareVersion,
		Description: firmwareDescription,
	})

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	moved := cycleOnSignal(ctx, sw, hup)

	log.Printf("recorder started in %s position, recording to %s", pos, cfg.Storage.Dir)

	for i := 0; wakes == 0 || i < wakes; i++ {
		sleep, err := rec.Wake(ctx)
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-moved:
		case <-time.After(sleep):
		}
	}
	return nil
}

// cycleOnSignal moves the switch to its next position on every signal, also
// while a recording is running, and wakes the run loop early.
func cycleOnSignal(ctx context.Context, sw *device.MockSwitch, sig <-chan os.Signal) <-chan struct{} {
	moved := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sig:
				log.Printf("switch moved to %s", sw.Cycle())
				select {
				case moved <- struct{}{}:
				default:
				}
			}
		}
	}()
	return moved
}
