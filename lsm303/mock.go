package lsm303

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/compass"
)

// AxesBehaviorFunc produces raw axis counts for one conversion.
type AxesBehaviorFunc func(ctx context.Context) (x, y, z int16, err error)

// MockPin is the data-ready line name served by MockDevice.
const MockPin = "DRDY"

var _ compass.I2CBus = &MockDevice{}
var _ compass.DigitalIO = &MockDevice{}

// outputRate holds the conversion frequency in Hz per CRA rate code.
var outputRate = [8]float64{0.75, 1.5, 3, 7.5, 15, 30, 75, 220}

type mockWatch struct {
	ctx context.Context
	fn  func()
}

// MockDevice emulates the LSM303DLHC register files on a bus together with
// its data-ready line, producing samples from behavior functions. Writing
// single mode runs one conversion, continuous mode converts at the output
// rate set in CRA, and every conversion raises data-ready.
//
// Example usage:
//
//	dev := NewMockDevice(
//		func(ctx context.Context) (int16, int16, int16, error) { return 400, 0, -300, nil },
//		func(ctx context.Context) (int16, int16, int16, error) { return 0, 0, 16384, nil },
//	)
//	sensor, err := New(ctx, dev, dev, MockPin)
type MockDevice struct {
	mx      sync.Mutex
	field   AxesBehaviorFunc
	accel   AxesBehaviorFunc
	regs    map[byte]*[0x40]byte
	pointer map[byte]byte
	watches []mockWatch
	stop    chan struct{}
}

func NewMockDevice(field, accel AxesBehaviorFunc) *MockDevice {
	m := &MockDevice{
		field: field,
		accel: accel,
		regs: map[byte]*[0x40]byte{
			DefaultMagnetometerAddress:  {},
			DefaultAccelerometerAddress: {},
		},
		pointer: map[byte]byte{},
	}
	// power-on values: 15 Hz, gain 1, sleep
	m.regs[DefaultMagnetometerAddress][regCRA] = 0x10
	m.regs[DefaultMagnetometerAddress][regCRB] = 0x20
	m.regs[DefaultMagnetometerAddress][regMode] = byte(ModeSleep)
	return m
}

func (m *MockDevice) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	regs, ok := m.regs[address]
	if !ok || len(buffer) == 0 {
		return fmt.Errorf("no device at %#x", address)
	}
	reg := buffer[0] &^ autoIncrement
	if int(reg)+len(buffer)-1 > len(regs) {
		return fmt.Errorf("register %#x out of range", reg)
	}
	m.pointer[address] = reg
	if len(buffer) == 1 {
		return nil
	}
	copy(regs[reg:], buffer[1:])
	if address == DefaultMagnetometerAddress && reg == regMode {
		m.modeChanged(ctx, Mode(buffer[1]&0x03))
	}
	return nil
}

func (m *MockDevice) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	regs, ok := m.regs[address]
	if !ok {
		return fmt.Errorf("no device at %#x", address)
	}
	reg := m.pointer[address]
	if int(reg)+len(buffer) > len(regs) {
		return fmt.Errorf("register %#x out of range", reg)
	}
	if address == DefaultAccelerometerAddress && reg == regOutXLA && m.accel != nil {
		x, y, z, err := m.accel(ctx)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint16(regs[regOutXLA:], uint16(x))
		binary.LittleEndian.PutUint16(regs[regOutXLA+2:], uint16(y))
		binary.LittleEndian.PutUint16(regs[regOutXLA+4:], uint16(z))
	}
	copy(buffer, regs[reg:])
	return nil
}

func (m *MockDevice) Release(ctx context.Context) error {
	return nil
}

func (m *MockDevice) SetPinMode(ctx context.Context, pin string, mode compass.PinMode) error {
	if pin != MockPin {
		return fmt.Errorf("mock pin %q: %w", pin, compass.ErrPinNotFound)
	}
	if mode != compass.PinInput {
		return fmt.Errorf("mock pin %s %s: %w", pin, mode, compass.ErrUnsupportedPinMode)
	}
	return nil
}

func (m *MockDevice) WatchPin(ctx context.Context, pin string, fn func()) error {
	if pin != MockPin {
		return fmt.Errorf("mock pin %q: %w", pin, compass.ErrPinNotFound)
	}
	m.mx.Lock()
	defer m.mx.Unlock()
	m.watches = append(m.watches, mockWatch{ctx: ctx, fn: fn})
	return nil
}

// Close stops continuous conversions.
func (m *MockDevice) Close() error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.stopConversions()
	return nil
}

func (m *MockDevice) modeChanged(ctx context.Context, mode Mode) {
	m.stopConversions()
	switch mode {
	case ModeSingle:
		m.convert(ctx)
		// the device drops back to idle after a single conversion
		m.regs[DefaultMagnetometerAddress][regMode] = byte(ModeIdle)
	case ModeContinuous:
		stop := make(chan struct{})
		m.stop = stop
		rate := outputRate[m.regs[DefaultMagnetometerAddress][regCRA]>>2&0x07]
		go m.run(stop, time.Duration(float64(time.Second)/rate))
	}
}

func (m *MockDevice) stopConversions() {
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
}

func (m *MockDevice) run(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		m.mx.Lock()
		select {
		case <-stop:
			m.mx.Unlock()
			return
		default:
		}
		m.convert(context.Background())
		m.mx.Unlock()
	}
}

// convert fills the data registers and raises data-ready. Watches are called
// on their own goroutine since the caller holds the bus.
func (m *MockDevice) convert(ctx context.Context) {
	if m.field == nil {
		return
	}
	x, y, z, err := m.field(ctx)
	if err != nil {
		slog.WarnContext(ctx, "mock conversion failed", "error", err)
		return
	}
	regs := m.regs[DefaultMagnetometerAddress]
	binary.BigEndian.PutUint16(regs[regData:], uint16(x))
	binary.BigEndian.PutUint16(regs[regData+2:], uint16(z))
	binary.BigEndian.PutUint16(regs[regData+4:], uint16(y))
	watches := m.watches
	m.watches = nil
	go func() {
		for _, w := range watches {
			if w.ctx.Err() == nil {
				w.fn()
			}
		}
	}()
}
