package gpio

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/compass"
)

var _ compass.DigitalIO = &HostPins{}

// HostPins are the SoC GPIO lines of the host (e.g. "GPIO17" on a Raspberry Pi),
// watched with kernel edge detection.
type HostPins struct {
	byName func(name string) gpio.PinIO
	// edgeTimeout bounds each edge wait so that a cancelled watch returns.
	edgeTimeout time.Duration
}

func NewHostPins() (*HostPins, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	return &HostPins{byName: gpioreg.ByName, edgeTimeout: 100 * time.Millisecond}, nil
}

func (h *HostPins) pin(name string) (gpio.PinIO, error) {
	p := h.byName(name)
	if p == nil {
		return nil, fmt.Errorf("host pin %s: %w", name, compass.ErrPinNotFound)
	}
	return p, nil
}

// SetPinMode configures name as an input with rising edge detection.
func (h *HostPins) SetPinMode(ctx context.Context, name string, mode compass.PinMode) error {
	p, err := h.pin(name)
	if err != nil {
		return err
	}
	var pull gpio.Pull
	switch mode {
	case compass.PinInput:
		pull = gpio.PullNoChange
	case compass.PinInputPullUp:
		pull = gpio.PullUp
	case compass.PinInputPullDown:
		pull = gpio.PullDown
	default:
		return fmt.Errorf("host pin %s %s: %w", name, mode, compass.ErrUnsupportedPinMode)
	}
	err = p.In(pull, gpio.RisingEdge)
	if err != nil {
		return fmt.Errorf("could not set host pin %s as %s: %w", name, mode, err)
	}
	return nil
}

func (h *HostPins) WatchPin(ctx context.Context, name string, fn func()) error {
	p, err := h.pin(name)
	if err != nil {
		return err
	}
	go func() {
		for ctx.Err() == nil {
			if p.WaitForEdge(h.edgeTimeout) {
				if ctx.Err() == nil {
					fn()
				}
				return
			}
		}
	}()
	return nil
}
