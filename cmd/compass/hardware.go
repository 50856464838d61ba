package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gobot.io/x/gobot/v2/platforms/raspi"

	"github.com/mklimuk/compass"
	"github.com/mklimuk/compass/adapter"
	"github.com/mklimuk/compass/gpio"
	"github.com/mklimuk/compass/i2c"
	"github.com/mklimuk/compass/lsm303"
	"github.com/mklimuk/compass/pkg/config"
)

// hardware is the bus and data-ready source described by a profile.
type hardware struct {
	bus     compass.I2CBus
	pins    compass.DigitalIO
	mcp2221 *adapter.MCP2221
	mock    *lsm303.MockDevice
	closers []func() error
}

func (h *hardware) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		errs = append(errs, h.closers[i]())
	}
	return errors.Join(errs...)
}

func openHardware(ctx context.Context, cfg config.Config) (*hardware, error) {
	h := &hardware{}
	var board *raspi.Adaptor
	switch cfg.Adapter {
	case config.AdapterMCP2221:
		dev := adapter.NewMCP2221()
		err := dev.Init(ctx)
		if err != nil {
			return nil, err
		}
		h.bus = dev
		h.mcp2221 = dev
	case config.AdapterGeneric:
		bus, err := i2c.NewGenericBus(cfg.Device)
		if err != nil {
			return nil, err
		}
		h.bus = bus
		h.closers = append(h.closers, bus.Close)
	case config.AdapterGobot:
		board = raspi.NewAdaptor()
		err := board.Connect()
		if err != nil {
			return nil, fmt.Errorf("could not connect gobot adaptor: %w", err)
		}
		h.closers = append(h.closers, board.Finalize)
		bus := i2c.NewGobotBus(board, cfg.Bus)
		h.bus = bus
		h.closers = append(h.closers, bus.Close)
	case config.AdapterMock:
		dev := lsm303.NewMockDevice(rotatingField(time.Now()), gravity)
		h.bus = dev
		h.mock = dev
		h.closers = append(h.closers, dev.Close)
	default:
		return nil, fmt.Errorf("unknown adapter %q", cfg.Adapter)
	}

	switch cfg.DataReady.Source {
	case "":
	case config.SourceHost:
		pins, err := gpio.NewHostPins()
		if err != nil {
			_ = h.Close()
			return nil, err
		}
		h.pins = pins
	case config.SourceMCP2221:
		h.pins = adapter.NewGPIOPins(h.mcp2221, gpio.DefaultPollInterval)
	case config.SourceMCP23017:
		exp := gpio.NewMCP23017(h.bus, cfg.DataReady.Expander, gpio.WithRetryLimit(3))
		h.pins = gpio.NewExpanderPins(exp, gpio.DefaultPollInterval)
	case config.SourceGobot:
		h.pins = gpio.NewDigitalPins(board, gpio.DefaultPollInterval)
	case config.SourceMock:
		h.pins = h.mock
	}
	slog.DebugContext(ctx, "hardware ready", "adapter", cfg.Adapter, "drdy", cfg.DataReady.Source, "pin", cfg.DataReady.Pin)
	return h, nil
}

func openSensor(ctx context.Context, cfg config.Config) (*lsm303.LSM303DLHC, *hardware, error) {
	h, err := openHardware(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	sensor, err := lsm303.New(ctx, h.bus, h.pins, cfg.DataReady.Pin, lsm303.WithMode(lsm303.Mode(cfg.Magnetometer.Mode)))
	if err != nil {
		_ = h.Close()
		return nil, nil, err
	}
	err = configure(ctx, sensor, cfg.Magnetometer)
	if err != nil {
		_ = h.Close()
		return nil, nil, err
	}
	return sensor, h, nil
}

// configure applies the profile averaging, rate, measurement and gain.
func configure(ctx context.Context, sensor *lsm303.LSM303DLHC, mag config.Magnetometer) error {
	err := sensor.Setup(ctx, mag.Averaging, lsm303.WithOutputRate(mag.Rate), lsm303.WithMeasurementMode(mag.Measurement))
	if err != nil {
		return err
	}
	if sensor.Gain() == mag.Gain {
		return nil
	}
	return sensor.SetGain(ctx, mag.Gain)
}

// rotatingField turns a horizontal field of 400 counts once every 20 seconds.
func rotatingField(start time.Time) lsm303.AxesBehaviorFunc {
	return func(ctx context.Context) (int16, int16, int16, error) {
		angle := 2 * math.Pi * time.Since(start).Seconds() / 20
		return int16(400 * math.Cos(angle)), int16(400 * math.Sin(angle)), -300, nil
	}
}

func gravity(ctx context.Context) (int16, int16, int16, error) {
	return 0, 0, 16384, nil
}
