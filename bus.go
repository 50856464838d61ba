// Package compass defines the transport contracts shared by the LSM303DLHC
// driver and the bus adapters that carry it.
package compass

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus is a bus shared by several sub-devices selected by their 7-bit address.
type I2CBus interface {
	AddressableReader
	AddressableWriter
}
