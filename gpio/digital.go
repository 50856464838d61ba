package gpio

import (
	"context"
	"fmt"
	"time"

	"github.com/mklimuk/compass"
)

// DigitalReader is implemented by gobot platform adaptors.
type DigitalReader interface {
	DigitalRead(pin string) (int, error)
}

var _ compass.DigitalIO = &DigitalPins{}

// DigitalPins polls data-ready lines through a gobot adaptor, which has no
// edge notification of its own. Pins are named the way the adaptor names
// them (header position on most boards, e.g. "7").
type DigitalPins struct {
	reader   DigitalReader
	interval time.Duration
}

func NewDigitalPins(reader DigitalReader, interval time.Duration) *DigitalPins {
	return &DigitalPins{reader: reader, interval: interval}
}

// SetPinMode only accepts plain inputs: gobot sets the direction on first read
// and offers no portable pull configuration.
func (d *DigitalPins) SetPinMode(ctx context.Context, pin string, mode compass.PinMode) error {
	if mode != compass.PinInput {
		return fmt.Errorf("pin %s %s: %w", pin, mode, compass.ErrUnsupportedPinMode)
	}
	_, err := d.reader.DigitalRead(pin)
	if err != nil {
		return fmt.Errorf("could not read pin %s: %w", pin, err)
	}
	return nil
}

func (d *DigitalPins) WatchPin(ctx context.Context, pin string, fn func()) error {
	return PollRisingEdge(ctx, pin, d.interval, func(ctx context.Context) (bool, error) {
		v, err := d.reader.DigitalRead(pin)
		return v == 1, err
	}, fn)
}
