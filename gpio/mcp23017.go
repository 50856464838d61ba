package gpio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/compass"
)

type registry int

const DefaultMCP23017Address = 0x21

const (
	IODIRA registry = iota
	IOPOLA
	GPINTENA
	DEFVALA
	INTCONA
	IOCONA
	GPPUA
	INTFA
	INTCAPA
	GPIOA
	IODIRB
	IOPOLB
	GPINTENB
	DEFVALB
	INTCONB
	IOCONB
	GPPUB
	INTFB
	INTCAPB
	GPIOB
	OLATB
)

// BankAddr maps registries to addresses for IOCON.BANK = 0 and IOCON.BANK = 1.
var BankAddr = []map[registry]byte{
	{
		IODIRA: 0x00, IOPOLA: 0x02, GPINTENA: 0x04, DEFVALA: 0x06, INTCONA: 0x08,
		IOCONA: 0x0A, GPPUA: 0x0C, INTFA: 0x0E, INTCAPA: 0x10, GPIOA: 0x12,
		IODIRB: 0x01, IOPOLB: 0x03, GPINTENB: 0x05, DEFVALB: 0x07, INTCONB: 0x09,
		IOCONB: 0x0B, GPPUB: 0x0D, INTFB: 0x0F, INTCAPB: 0x11, GPIOB: 0x13,
		OLATB: 0x15,
	},
	{
		IODIRA: 0x00, IOPOLA: 0x01, GPINTENA: 0x02, DEFVALA: 0x03, INTCONA: 0x04,
		IOCONA: 0x05, GPPUA: 0x06, INTFA: 0x07, INTCAPA: 0x08, GPIOA: 0x09,
		IODIRB: 0x10, IOPOLB: 0x11, GPINTENB: 0x12, DEFVALB: 0x13, INTCONB: 0x14,
		IOCONB: 0x15, GPPUB: 0x16, INTFB: 0x17, INTCAPB: 0x18, GPIOB: 0x19,
		OLATB: 0x1A,
	},
}

// Port is one of the two 8-bit I/O ports of the expander.
type Port int

const (
	PortA Port = iota
	PortB
)

func (p Port) String() string {
	if p == PortB {
		return "B"
	}
	return "A"
}

// port registries, indexed by Port
var (
	iodir = [2]registry{IODIRA, IODIRB}
	gppu  = [2]registry{GPPUA, GPPUB}
	gport = [2]registry{GPIOA, GPIOB}
	iocon = [2]registry{IOCONA, IOCONB}
)

/*
MCP23017 16-bit I/O expander. Reading a port:

1. Set 0xFF to IODIR registry (all inputs)
2. Configure pull-up in GPPU if needed
3. Read the GPIO registry
*/
type MCP23017 struct {
	mx         sync.Mutex
	transport  compass.I2CBus
	bank       int
	address    byte
	retryLimit int
}

type MCP23017Option func(*MCP23017)

// WithRetryLimit sets how many times a command is sent while the bus reports busy.
func WithRetryLimit(limit int) MCP23017Option {
	return func(m *MCP23017) {
		if limit > 0 {
			m.retryLimit = limit
		}
	}
}

func NewMCP23017(bus compass.I2CBus, address byte, opts ...MCP23017Option) *MCP23017 {
	m := &MCP23017{retryLimit: 1, transport: bus, address: address}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// retry runs op and, while the bus reports busy, releases it and tries again.
func (m *MCP23017) retry(ctx context.Context, what string, op func() error) error {
	var err error
	for i := m.retryLimit; i > 0; i-- {
		err = op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, compass.ErrBusBusy) {
			return fmt.Errorf("could not %s: %w", what, err)
		}
		// try to release the bus
		_ = m.transport.Release(ctx)
	}
	return fmt.Errorf("could not %s (retry limit reached): %w", what, err)
}

func (m *MCP23017) write(ctx context.Context, reg registry, value byte, what string) error {
	return m.retry(ctx, what, func() error {
		return m.transport.WriteToAddr(ctx, m.address, []byte{BankAddr[m.bank][reg], value})
	})
}

func (m *MCP23017) read(ctx context.Context, reg registry, what string) (byte, error) {
	var res byte
	err := m.retry(ctx, what, func() error {
		var err error
		res, err = m.readRegistry(ctx, BankAddr[m.bank][reg])
		return err
	})
	return res, err
}

func (m *MCP23017) readRegistry(ctx context.Context, addr byte) (byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	err := m.transport.WriteToAddr(ctx, m.address, []byte{addr})
	if err != nil {
		return 0x00, fmt.Errorf("could not set I/O registry address: %w", err)
	}
	buf := make([]byte, 1)
	err = m.transport.ReadFromAddr(ctx, m.address, buf)
	if err != nil {
		return 0x00, fmt.Errorf("could not read gpio data: %w", err)
	}
	return buf[0], nil
}

// Init sets the IODIR registry of port; a set bit makes the line an input.
func (m *MCP23017) Init(ctx context.Context, port Port, inout byte) error {
	return m.write(ctx, iodir[port], inout, "initialize gpio "+port.String()+" set")
}

// PullUp sets the pull-up resistors of port.
func (m *MCP23017) PullUp(ctx context.Context, port Port, settings byte) error {
	return m.write(ctx, gppu[port], settings, "set pull-up on gpio "+port.String()+" set")
}

// ReadPort reads the line levels of port.
func (m *MCP23017) ReadPort(ctx context.Context, port Port) (byte, error) {
	return m.read(ctx, gport[port], "read gpio "+port.String()+" set")
}

// ReadSettings reads the IOCON registry seen from port.
func (m *MCP23017) ReadSettings(ctx context.Context, port Port) (byte, error) {
	return m.read(ctx, iocon[port], "read gpio "+port.String()+" settings")
}

// WriteSettings writes the IOCON registry seen from port.
func (m *MCP23017) WriteSettings(ctx context.Context, port Port, settings byte) error {
	return m.write(ctx, iocon[port], settings, "write settings on gpio "+port.String()+" set")
}

// Read returns the levels of port A and port B.
func (m *MCP23017) Read(ctx context.Context) ([]byte, error) {
	res := make([]byte, 2)
	var err error
	res[0], err = m.ReadPort(ctx, PortA)
	if err != nil {
		return nil, err
	}
	res[1], err = m.ReadPort(ctx, PortB)
	if err != nil {
		return nil, err
	}
	return res, nil
}
