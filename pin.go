package compass

import (
	"context"
	"errors"
	"fmt"
)

var ErrPinNotFound = errors.New("pin not found")
var ErrUnsupportedPinMode = errors.New("unsupported pin mode")

type PinMode int

const (
	PinInput PinMode = iota
	PinInputPullUp
	PinInputPullDown
	PinOutput
)

func (m PinMode) String() string {
	switch m {
	case PinInput:
		return "input"
	case PinInputPullUp:
		return "input_pullup"
	case PinInputPullDown:
		return "input_pulldown"
	case PinOutput:
		return "output"
	default:
		return fmt.Sprintf("PinMode(%d)", int(m))
	}
}

// DigitalIO gives a driver access to the signal lines wired next to the bus,
// such as a data-ready output.
//
// WatchPin arms a one-shot watch: fn is called once on the next rising edge
// of pin and the watch is then dropped. Implementations wait on their own
// goroutine and give up when ctx is done.
type DigitalIO interface {
	SetPinMode(ctx context.Context, pin string, mode PinMode) error
	WatchPin(ctx context.Context, pin string, fn func()) error
}
