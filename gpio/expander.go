package gpio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mklimuk/compass"
)

var _ compass.DigitalIO = &ExpanderPins{}

// ExpanderPins exposes the MCP23017 lines as data-ready inputs. Pins are
// named after their port and bit, "A0" to "B7". The expander has no pull-down
// resistors and the interrupt outputs are left unused: armed pins are polled.
type ExpanderPins struct {
	mx       sync.Mutex
	exp      *MCP23017
	interval time.Duration
	dir      [2]byte
	pullUp   [2]byte
}

func NewExpanderPins(exp *MCP23017, interval time.Duration) *ExpanderPins {
	// power-on default: all lines are inputs without pull-up
	return &ExpanderPins{exp: exp, interval: interval, dir: [2]byte{0xFF, 0xFF}}
}

func parseExpanderPin(pin string) (Port, byte, error) {
	if len(pin) != 2 || pin[1] < '0' || pin[1] > '7' {
		return 0, 0, fmt.Errorf("expander pin %q: %w", pin, compass.ErrPinNotFound)
	}
	bit := byte(1) << (pin[1] - '0')
	switch pin[0] {
	case 'A', 'a':
		return PortA, bit, nil
	case 'B', 'b':
		return PortB, bit, nil
	}
	return 0, 0, fmt.Errorf("expander pin %q: %w", pin, compass.ErrPinNotFound)
}

func (e *ExpanderPins) SetPinMode(ctx context.Context, pin string, mode compass.PinMode) error {
	port, bit, err := parseExpanderPin(pin)
	if err != nil {
		return err
	}
	e.mx.Lock()
	defer e.mx.Unlock()
	dir, pullUp := e.dir[port], e.pullUp[port]
	switch mode {
	case compass.PinInput:
		dir |= bit
		pullUp &^= bit
	case compass.PinInputPullUp:
		dir |= bit
		pullUp |= bit
	case compass.PinOutput:
		dir &^= bit
		pullUp &^= bit
	default:
		return fmt.Errorf("expander pin %s %s: %w", pin, mode, compass.ErrUnsupportedPinMode)
	}
	if err := e.exp.Init(ctx, port, dir); err != nil {
		return err
	}
	e.dir[port] = dir
	if err := e.exp.PullUp(ctx, port, pullUp); err != nil {
		return err
	}
	e.pullUp[port] = pullUp
	return nil
}

func (e *ExpanderPins) WatchPin(ctx context.Context, pin string, fn func()) error {
	port, bit, err := parseExpanderPin(pin)
	if err != nil {
		return err
	}
	return PollRisingEdge(ctx, pin, e.interval, func(ctx context.Context) (bool, error) {
		v, err := e.exp.ReadPort(ctx, port)
		return v&bit != 0, err
	}, fn)
}
