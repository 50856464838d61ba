package gpio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/compass"
)

type fakeReader struct {
	mx    sync.Mutex
	level map[string]int
	err   error
}

func (f *fakeReader) DigitalRead(pin string) (int, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.level[pin], f.err
}

func (f *fakeReader) set(pin string, v int) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.level[pin] = v
}

func TestDigitalPins_SetPinMode(t *testing.T) {
	r := &fakeReader{level: map[string]int{}}
	d := NewDigitalPins(r, time.Millisecond)
	ctx := context.Background()
	assert.NoError(t, d.SetPinMode(ctx, "7", compass.PinInput))
	assert.ErrorIs(t, d.SetPinMode(ctx, "7", compass.PinInputPullUp), compass.ErrUnsupportedPinMode)
	assert.ErrorIs(t, d.SetPinMode(ctx, "7", compass.PinOutput), compass.ErrUnsupportedPinMode)

	r.err = errors.New("not exported")
	assert.ErrorIs(t, d.SetPinMode(ctx, "7", compass.PinInput), r.err)
}

func TestDigitalPins_WatchPin(t *testing.T) {
	r := &fakeReader{level: map[string]int{"7": 0}}
	d := NewDigitalPins(r, time.Millisecond)
	fired := make(chan struct{}, 1)
	require.NoError(t, d.WatchPin(context.Background(), "7", func() { fired <- struct{}{} }))
	r.set("7", 1)
	waitFired(t, fired)
}
