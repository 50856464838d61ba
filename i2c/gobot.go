package i2c

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gobot "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/compass"
)

var _ compass.I2CBus = &GobotBus{}

// GobotBus drives the bus through a gobot platform adaptor (e.g. raspi.NewAdaptor()).
// A connection is opened per sub-device address on first use. A negative bus
// number selects the adaptor default bus.
type GobotBus struct {
	mx      sync.Mutex
	adaptor gobot.Connector
	bus     int
	conns   map[byte]gobot.Connection
}

func NewGobotBus(adaptor gobot.Connector, bus int) *GobotBus {
	if bus < 0 {
		bus = adaptor.DefaultI2cBus()
	}
	return &GobotBus{
		adaptor: adaptor,
		bus:     bus,
		conns:   make(map[byte]gobot.Connection),
	}
}

func (b *GobotBus) connection(address byte) (gobot.Connection, error) {
	if conn, ok := b.conns[address]; ok {
		return conn, nil
	}
	conn, err := b.adaptor.GetI2cConnection(int(address), b.bus)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c device %x on bus %d: %w", address, b.bus, err)
	}
	b.conns[address] = conn
	return conn, nil
}

func (b *GobotBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.connection(address)
	if err != nil {
		return err
	}
	n, err := conn.Read(buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short read from i2c bus %x: %d of %d bytes", address, n, len(buffer))
	}
	return nil
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.connection(address)
	if err != nil {
		return err
	}
	_, err = conn.Write(buffer)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *GobotBus) Release(ctx context.Context) error {
	return nil
}

// Close closes every connection opened on the bus.
func (b *GobotBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var errs []error
	for address, conn := range b.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("could not close i2c device %x: %w", address, err))
		}
		delete(b.conns, address)
	}
	return errors.Join(errs...)
}
