package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/mklimuk/compass"
	"github.com/mklimuk/compass/gpio"
)

type GPIOMode byte

const (
	GPIOModeOut         GPIOMode = 0b00000000
	GPIOModeIn          GPIOMode = 0b00001000
	GPIOModeNoOperation GPIOMode = 0xEE
)

func (m GPIOMode) String() string {
	switch m {
	case GPIOModeIn:
		return "INPUT"
	case GPIOModeOut:
		return "OUTPUT"
	default:
		return "NOOP"
	}
}

func (m GPIOMode) MarshalYAML() (any, error) {
	return m.String(), nil
}

type GPIODesignation byte

const (
	GPIOOperation GPIODesignation = 0b00000000
	// This is alternate function of GPIO0
	GPIO0LedUartRx GPIODesignation = 0b00000001
	// This is the dedicated function operation of GPIO0
	GPIO0SSPND GPIODesignation = 0b00000010
	// This is the dedicated function of GPIO1
	GPIO1ClockOutput GPIODesignation = 0b00000001
	// This is the alternate function 0 of GPIO1
	GPIO1ADC1 GPIODesignation = 0b00000010
	// This is the alternate function 1 of GPIO1
	GPIO1LedUartTx GPIODesignation = 0b00000011
	// This is the alternate function 2 of GPIO1
	GPIO1InterruptDetection GPIODesignation = 0b00000100
	// This is the dedicated function of GPIO2
	GPIO2ClockOutput GPIODesignation = 0b00000001
	// This is the alternate function 0 of GPIO2
	GPIO2ADC2 GPIODesignation = 0b00000010
	// This is the alternate function 1 of GPIO2
	GPIO2DAC1 GPIODesignation = 0b00000011
	// This is the dedicated function of GPIO3
	GPIO3LEDI2C GPIODesignation = 0b00000001
	// This is the alternate function 0 of GPIO3
	GPIO3ADC3 GPIODesignation = 0b00000010
	// This is the alternate function 1 of GPIO3
	GPIO3DAC2 GPIODesignation = 0b00000011
)

const gpioModeMask = 0b00001000
const gpioOperationMask = 0b00000111

type MCP2221GPIOValues struct {
	GPIO0Mode  GPIOMode `yaml:"GP0_mode"`
	GPIO0Value byte     `yaml:"GPIO0"`
	GPIO1Mode  GPIOMode `yaml:"GP1_mode"`
	GPIO1Value byte     `yaml:"GPIO1"`
	GPIO2Mode  GPIOMode `yaml:"GP2_mode"`
	GPIO2Value byte     `yaml:"GPIO2"`
	GPIO3Mode  GPIOMode `yaml:"GP3_mode"`
	GPIO3Value byte     `yaml:"GPIO3"`
}

// Pin returns the mode and level of GP line n.
func (v MCP2221GPIOValues) Pin(n int) (GPIOMode, byte) {
	switch n {
	case 0:
		return v.GPIO0Mode, v.GPIO0Value
	case 1:
		return v.GPIO1Mode, v.GPIO1Value
	case 2:
		return v.GPIO2Mode, v.GPIO2Value
	case 3:
		return v.GPIO3Mode, v.GPIO3Value
	}
	return GPIOModeNoOperation, 0
}

type MCP2221GPIOParameters struct {
	GPIO0Mode        GPIOMode        `yaml:"GP0_mode"`
	GPIO0Designation GPIODesignation `yaml:"GP0_designation"`
	GPIO1Mode        GPIOMode        `yaml:"GP1_mode"`
	GPIO1Designation GPIODesignation `yaml:"GP1_designation"`
	GPIO2Mode        GPIOMode        `yaml:"GP2_mode"`
	GPIO2Designation GPIODesignation `yaml:"GP2_designation"`
	GPIO3Mode        GPIOMode        `yaml:"GP3_mode"`
	GPIO3Designation GPIODesignation `yaml:"GP3_designation"`
}

// SetGPIOParameters writes the power-up GP settings to flash.
func (d *MCP2221) SetGPIOParameters(ctx context.Context, params MCP2221GPIOParameters) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdWriteFlash
	d.request[1] = 0x01
	d.request[2] = byte(params.GPIO0Designation) | byte(params.GPIO0Mode)
	d.request[3] = byte(params.GPIO1Designation) | byte(params.GPIO1Mode)
	d.request[4] = byte(params.GPIO2Designation) | byte(params.GPIO2Mode)
	d.request[5] = byte(params.GPIO3Designation) | byte(params.GPIO3Mode)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("set GP parameters command write failed: %w", err)
	}
	if d.response[1] != 0x00 {
		return ErrCommandFailed
	}
	return nil
}

// GetGPIOParameters reads the power-up GP settings from flash.
func (d *MCP2221) GetGPIOParameters(ctx context.Context) (MCP2221GPIOParameters, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdReadFlash
	d.request[1] = 0x01
	err := d.send(ctx)
	if err != nil {
		return MCP2221GPIOParameters{}, fmt.Errorf("get GP parameters command write failed: %w", err)
	}
	if d.response[1] != 0x00 {
		return MCP2221GPIOParameters{}, ErrCommandUnsupported
	}
	return MCP2221GPIOParameters{
		GPIO0Mode:        GPIOMode(d.response[4] & gpioModeMask),
		GPIO0Designation: GPIODesignation(d.response[4] & gpioOperationMask),
		GPIO1Mode:        GPIOMode(d.response[5] & gpioModeMask),
		GPIO1Designation: GPIODesignation(d.response[5] & gpioOperationMask),
		GPIO2Mode:        GPIOMode(d.response[6] & gpioModeMask),
		GPIO2Designation: GPIODesignation(d.response[6] & gpioOperationMask),
		GPIO3Mode:        GPIOMode(d.response[7] & gpioModeMask),
		GPIO3Designation: GPIODesignation(d.response[7] & gpioOperationMask),
	}, nil
}

// Read returns the levels of GP0 to GP3.
func (d *MCP2221) Read(ctx context.Context) ([]byte, error) {
	res, err := d.ReadGPIO(ctx)
	if err != nil {
		return nil, err
	}
	return []byte{res.GPIO0Value, res.GPIO1Value, res.GPIO2Value, res.GPIO3Value}, nil
}

func (d *MCP2221) ReadGPIO(ctx context.Context) (MCP2221GPIOValues, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdGetGPIOValues
	err := d.send(ctx)
	var res MCP2221GPIOValues
	if err != nil {
		return res, fmt.Errorf("read GPIO values command write failed: %w", err)
	}
	if d.response[1] != 0x00 {
		return res, ErrCommandFailed
	}
	modes := [4]*GPIOMode{&res.GPIO0Mode, &res.GPIO1Mode, &res.GPIO2Mode, &res.GPIO3Mode}
	values := [4]*byte{&res.GPIO0Value, &res.GPIO1Value, &res.GPIO2Value, &res.GPIO3Value}
	for i := 0; i < 4; i++ {
		*values[i] = d.response[2+2*i]
		*modes[i] = GPIOModeNoOperation
		if dir := d.response[3+2*i]; dir != byte(GPIOModeNoOperation) {
			*modes[i] = GPIOMode(dir << 3)
		}
	}
	return res, nil
}

// SetGPIODirection changes the runtime direction of GP line n. The line must
// be designated for GPIO operation in the power-up settings.
func (d *MCP2221) SetGPIODirection(ctx context.Context, n int, mode GPIOMode) error {
	if n < 0 || n > 3 {
		return fmt.Errorf("GP%d: %w", n, compass.ErrPinNotFound)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdSetGPIOValues
	// per line: alter output, output value, alter direction, direction
	d.request[4+4*n] = 0x01
	if mode == GPIOModeIn {
		d.request[5+4*n] = 0x01
	}
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("set GPIO values command write failed: %w", err)
	}
	if d.response[1] != 0x00 {
		return ErrCommandFailed
	}
	return nil
}

var _ compass.DigitalIO = &GPIOPins{}

// GPIOPins exposes the adapter GP lines, named "GP0" to "GP3", as
// data-ready inputs. The adapter has no edge notification so armed lines
// are polled.
type GPIOPins struct {
	dev      *MCP2221
	interval time.Duration
}

func NewGPIOPins(dev *MCP2221, interval time.Duration) *GPIOPins {
	return &GPIOPins{dev: dev, interval: interval}
}

func parseGPPin(pin string) (int, error) {
	if len(pin) != 3 || pin[:2] != "GP" || pin[2] < '0' || pin[2] > '3' {
		return 0, fmt.Errorf("adapter pin %q: %w", pin, compass.ErrPinNotFound)
	}
	return int(pin[2] - '0'), nil
}

func (p *GPIOPins) SetPinMode(ctx context.Context, pin string, mode compass.PinMode) error {
	n, err := parseGPPin(pin)
	if err != nil {
		return err
	}
	var dir GPIOMode
	switch mode {
	case compass.PinInput:
		dir = GPIOModeIn
	case compass.PinOutput:
		dir = GPIOModeOut
	default:
		return fmt.Errorf("adapter pin %s %s: %w", pin, mode, compass.ErrUnsupportedPinMode)
	}
	values, err := p.dev.ReadGPIO(ctx)
	if err != nil {
		return err
	}
	if current, _ := values.Pin(n); current == GPIOModeNoOperation {
		return fmt.Errorf("adapter pin %s is not designated for GPIO operation: %w", pin, compass.ErrUnsupportedPinMode)
	} else if current == dir {
		return nil
	}
	return p.dev.SetGPIODirection(ctx, n, dir)
}

func (p *GPIOPins) WatchPin(ctx context.Context, pin string, fn func()) error {
	n, err := parseGPPin(pin)
	if err != nil {
		return err
	}
	return gpio.PollRisingEdge(ctx, pin, p.interval, func(ctx context.Context) (bool, error) {
		values, err := p.dev.ReadGPIO(ctx)
		if err != nil {
			return false, err
		}
		_, v := values.Pin(n)
		return v != 0, nil
	}, fn)
}
