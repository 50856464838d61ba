package lsm303

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mklimuk/compass"
	"github.com/mklimuk/compass/snsctx"
)

var ErrNoDataReady = errors.New("lsm303: data-ready line not wired")

// MagnetometerCallback receives samples taken when the data-ready line fires.
// err is set when the triggered read failed; sample is then zero.
type MagnetometerCallback func(sample MagSample, err error)

// LSM303DLHC represents ST LSM303DLHC magnetometer/accelerometer.
// Typical usage:
//
//	s, err := New(ctx, bus, pins, "GPIO17", WithMode(ModeContinuous))
//	m, err := s.ReadMagnetometer(ctx)
//
// All operations are serialised on one mutex, so a sample delivered from the
// data-ready goroutine never interleaves with a call from the caller. The
// callback runs outside that lock and may call back into the driver.
type LSM303DLHC struct {
	mx        sync.Mutex
	transport compass.I2CBus
	pins      compass.DigitalIO
	drdy      string
	magAddr   byte
	accAddr   byte
	// gain scales the next magnetometer read; nextGain is what the chip
	// reported after the last SetGain and becomes active after that read.
	gain     byte
	nextGain byte
	mode     Mode
	onSample MagnetometerCallback
	// stream is the context of the armed continuous watch, nil when none is armed
	stream context.Context
}

type Config struct {
	Mode                 Mode
	MagnetometerAddress  byte
	AccelerometerAddress byte
}

type Option func(*Config)

// WithMode selects the conversion mode written at start-up (single by default).
func WithMode(mode Mode) Option {
	return func(c *Config) {
		c.Mode = mode
	}
}

func WithMagnetometerAddress(address byte) Option {
	return func(c *Config) {
		c.MagnetometerAddress = address
	}
}

func WithAccelerometerAddress(address byte) Option {
	return func(c *Config) {
		c.AccelerometerAddress = address
	}
}

// New configures the sensor and returns a driver bound to it. It sets the
// data-ready pin as input, caches the gain the magnetometer currently uses,
// writes the conversion mode and powers the accelerometer with all axes on.
// pins may be nil when the data-ready line is not wired; callback acquisition
// is then unavailable.
func New(ctx context.Context, bus compass.I2CBus, pins compass.DigitalIO, drdy string, opts ...Option) (*LSM303DLHC, error) {
	config := Config{
		Mode:                 ModeSingle,
		MagnetometerAddress:  DefaultMagnetometerAddress,
		AccelerometerAddress: DefaultAccelerometerAddress,
	}
	for _, opt := range opts {
		opt(&config)
	}
	d := &LSM303DLHC{
		transport: bus,
		pins:      pins,
		drdy:      drdy,
		magAddr:   config.MagnetometerAddress,
		accAddr:   config.AccelerometerAddress,
	}
	if pins != nil {
		err := pins.SetPinMode(ctx, drdy, compass.PinInput)
		if err != nil {
			return nil, fmt.Errorf("lsm303: could not configure data-ready pin %s: %w", drdy, err)
		}
	}
	gain, err := d.readGain(ctx)
	if err != nil {
		return nil, err
	}
	d.gain = gain
	d.nextGain = gain
	err = d.setMode(ctx, config.Mode)
	if err != nil {
		return nil, err
	}
	err = d.writeRegister(ctx, d.accAddr, regCtrl1A, ctrl1ANormalXYZ)
	if err != nil {
		return nil, fmt.Errorf("lsm303: could not power accelerometer: %w", err)
	}
	slog.DebugContext(ctx, "lsm303 initialized", "gain", gain, "mode", d.mode)
	return d, nil
}

// Gain returns the gain code that scales the next magnetometer read.
func (d *LSM303DLHC) Gain() byte {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.gain
}

// PendingGain returns the gain code read back after the last SetGain.
func (d *LSM303DLHC) PendingGain() byte {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.nextGain
}

func (d *LSM303DLHC) Mode() Mode {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.mode
}

// SetMode writes the conversion mode. Only the low 2 bits are used.
func (d *LSM303DLHC) SetMode(ctx context.Context, mode Mode) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.setMode(ctx, mode)
}

func (d *LSM303DLHC) setMode(ctx context.Context, mode Mode) error {
	mode &= 0x03
	err := d.writeRegister(ctx, d.magAddr, regMode, byte(mode))
	if err != nil {
		return fmt.Errorf("lsm303: could not set %s mode: %w", mode, err)
	}
	d.mode = mode
	return nil
}

type SetupConfig struct {
	OutputRate      byte
	MeasurementMode byte
}

type SetupOption func(*SetupConfig)

// WithOutputRate sets the output rate code (15 Hz by default).
func WithOutputRate(rate byte) SetupOption {
	return func(c *SetupConfig) {
		c.OutputRate = rate
	}
}

// WithMeasurementMode sets the bias configuration (normal by default).
func WithMeasurementMode(mode byte) SetupOption {
	return func(c *SetupConfig) {
		c.MeasurementMode = mode
	}
}

// Setup writes configuration register A: sample averaging, output rate and
// measurement mode. It does not touch gain or conversion mode.
func (d *LSM303DLHC) Setup(ctx context.Context, averaging byte, opts ...SetupOption) error {
	config := SetupConfig{
		OutputRate:      defaultOutputRate,
		MeasurementMode: MeasureNormal,
	}
	for _, opt := range opts {
		opt(&config)
	}
	cra := config.MeasurementMode&0x03 | (config.OutputRate&0x07)<<2 | (averaging&0x03)<<5
	d.mx.Lock()
	defer d.mx.Unlock()
	err := d.writeRegister(ctx, d.magAddr, regCRA, cra)
	if err != nil {
		return fmt.Errorf("lsm303: could not write configuration: %w", err)
	}
	return nil
}

// SetGain requests a new gain code and reads back the one the chip applied.
// The applied gain takes effect after the next magnetometer read, which is
// still scaled with the previous gain. When not in single mode a one-shot
// read is armed on the data-ready line and the sensor is switched to single
// mode so that this flushing read happens on its own. While a continuous
// stream has its watch armed no second watch is armed: in continuous mode the
// stream's next sample is the flushing read, otherwise the stream ends with
// that read after the switch to single mode.
func (d *LSM303DLHC) SetGain(ctx context.Context, gain byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	err := d.writeRegister(ctx, d.magAddr, regCRB, (gain&0x07)<<5)
	if err != nil {
		return fmt.Errorf("lsm303: could not write gain: %w", err)
	}
	applied, err := d.readGain(ctx)
	if err != nil {
		return err
	}
	if applied != gain&0x07 {
		slog.DebugContext(ctx, "lsm303 gain adjusted by device", "requested", gain&0x07, "applied", applied)
	}
	d.nextGain = applied
	if d.mode == ModeSingle || d.pins == nil {
		return nil
	}
	if d.stream != nil && d.stream.Err() == nil {
		if d.mode == ModeContinuous {
			return nil
		}
		return d.setMode(ctx, ModeSingle)
	}
	err = d.pins.WatchPin(ctx, d.drdy, func() { d.flush(ctx) })
	if err != nil {
		return fmt.Errorf("lsm303: could not watch data-ready pin %s: %w", d.drdy, err)
	}
	return d.setMode(ctx, ModeSingle)
}

// ReadMagnetometer reads one magnetometer sample. In single mode it also
// starts the next conversion.
func (d *LSM303DLHC) ReadMagnetometer(ctx context.Context) (MagSample, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.readMagnetometer(ctx)
}

func (d *LSM303DLHC) readMagnetometer(ctx context.Context) (MagSample, error) {
	scale := gainScale[d.gain]
	buf, err := d.readRegister(ctx, d.magAddr, regData, 6)
	if err != nil {
		return MagSample{}, fmt.Errorf("lsm303: could not read magnetometer data: %w", err)
	}
	d.gain = d.nextGain
	sample := decodeMagnetometer(buf, scale)
	if d.mode == ModeSingle {
		err = d.writeRegister(ctx, d.magAddr, regMode, byte(ModeSingle))
		if err != nil {
			return MagSample{}, fmt.Errorf("lsm303: could not start conversion: %w", err)
		}
	}
	return sample, nil
}

// ReadAccelerometer reads one raw accelerometer sample.
func (d *LSM303DLHC) ReadAccelerometer(ctx context.Context) (AccelSample, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	buf, err := d.readRegister(ctx, d.accAddr, regOutXLA|autoIncrement, 6)
	if err != nil {
		return AccelSample{}, fmt.Errorf("lsm303: could not read accelerometer data: %w", err)
	}
	return decodeAccelerometer(buf), nil
}

// StartSingleShot delivers the next conversion to cb. It arms the data-ready
// line and then starts a single conversion.
func (d *LSM303DLHC) StartSingleShot(ctx context.Context, cb MagnetometerCallback) error {
	return d.start(ctx, cb, ModeSingle)
}

// StartContinuous delivers every conversion to cb. The data-ready line is
// re-armed after each sample for as long as the driver stays in continuous
// mode and ctx is not done.
func (d *LSM303DLHC) StartContinuous(ctx context.Context, cb MagnetometerCallback) error {
	return d.start(ctx, cb, ModeContinuous)
}

func (d *LSM303DLHC) start(ctx context.Context, cb MagnetometerCallback, mode Mode) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.pins == nil {
		return ErrNoDataReady
	}
	d.onSample = cb
	err := d.arm(ctx, mode == ModeContinuous)
	if err != nil {
		return err
	}
	return d.setMode(ctx, mode)
}

func (d *LSM303DLHC) arm(ctx context.Context, repeat bool) error {
	err := d.pins.WatchPin(ctx, d.drdy, func() { d.dataReady(ctx, repeat) })
	if err != nil {
		return fmt.Errorf("lsm303: could not watch data-ready pin %s: %w", d.drdy, err)
	}
	if repeat {
		d.stream = ctx
	}
	return nil
}

func (d *LSM303DLHC) dataReady(ctx context.Context, repeat bool) {
	d.mx.Lock()
	if repeat {
		d.stream = nil
	}
	sample, err := d.readMagnetometer(ctx)
	cb := d.onSample
	var armErr error
	if repeat && d.mode == ModeContinuous && ctx.Err() == nil {
		armErr = d.arm(ctx, true)
	}
	d.mx.Unlock()
	if cb == nil {
		return
	}
	cb(sample, err)
	if armErr != nil {
		cb(MagSample{}, armErr)
	}
}

// flush consumes the conversion taken with the gain that was active before
// SetGain.
func (d *LSM303DLHC) flush(ctx context.Context) {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, err := d.readMagnetometer(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "lsm303 gain flush read failed", "error", err)
	}
}

func (d *LSM303DLHC) readGain(ctx context.Context) (byte, error) {
	buf, err := d.readRegister(ctx, d.magAddr, regCRB, 1)
	if err != nil {
		return 0, fmt.Errorf("lsm303: could not read gain: %w", err)
	}
	return buf[0] >> 5, nil
}

func (d *LSM303DLHC) writeRegister(ctx context.Context, address, reg, value byte) error {
	buf := []byte{reg, value}
	snsctx.Trace(ctx, "lsm303 register write", address, buf)
	return d.transport.WriteToAddr(ctx, address, buf)
}

func (d *LSM303DLHC) readRegister(ctx context.Context, address, reg byte, count int) ([]byte, error) {
	err := d.transport.WriteToAddr(ctx, address, []byte{reg})
	if err != nil {
		return nil, fmt.Errorf("could not set register pointer %#x: %w", reg, err)
	}
	buf := make([]byte, count)
	err = d.transport.ReadFromAddr(ctx, address, buf)
	if err != nil {
		return nil, fmt.Errorf("could not read register %#x: %w", reg, err)
	}
	snsctx.Trace(ctx, "lsm303 register read", address, buf)
	return buf, nil
}
