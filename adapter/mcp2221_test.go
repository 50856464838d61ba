package adapter

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

// fakeHID answers each written report with the next scripted response.
// A response is built by the script from the request it answers.
type fakeHID struct {
	mx       sync.Mutex
	requests [][]byte
	script   []func(req []byte) []byte
	last     []byte
	opened   int
	closed   int
}

func (f *fakeHID) opener(id int) (hidDevice, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.opened++
	return f, nil
}

func (f *fakeHID) Write(b []byte) (int, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	req := append([]byte(nil), b...)
	f.requests = append(f.requests, req)
	f.last = req
	return len(b), nil
}

func (f *fakeHID) Read(b []byte) (int, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	if len(f.script) == 0 {
		return 0, errors.New("no scripted response")
	}
	res := f.script[0](f.last)
	f.script = f.script[1:]
	copy(b, res)
	return len(b), nil
}

func (f *fakeHID) Close() error {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.closed++
	return nil
}

func (f *fakeHID) push(fns ...func(req []byte) []byte) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.script = append(f.script, fns...)
}

// reply echoes the command code followed by the given bytes.
func reply(data ...byte) func(req []byte) []byte {
	return func(req []byte) []byte {
		res := make([]byte, reportSize)
		res[0] = req[0]
		copy(res[1:], data)
		return res
	}
}

func newTestAdapter(f *fakeHID) *MCP2221 {
	d := NewMCP2221(WithResponseWait(0))
	d.open = f.opener
	return d
}

func TestMCP2221_WriteToAddr(t *testing.T) {
	f := &fakeHID{}
	f.push(reply(0x00))
	d := newTestAdapter(f)
	require.NoError(t, d.WriteToAddr(context.Background(), 0x1E, []byte{0x02, 0x01}))
	require.Len(t, f.requests, 1)
	req := f.requests[0]
	assert.Len(t, req, reportSize)
	assert.Equal(t, []byte{0x90, 0x02, 0x00, 0x3C, 0x02, 0x01, 0x00}, req[:7])
	assert.Equal(t, 1, f.opened)
	assert.Equal(t, 1, f.closed)
}

func TestMCP2221_WriteToAddrBusy(t *testing.T) {
	f := &fakeHID{}
	f.push(reply(0x01))
	d := newTestAdapter(f)
	err := d.WriteToAddr(context.Background(), 0x1E, []byte{0x03})
	assert.ErrorIs(t, err, compass.ErrBusBusy)
}

func TestMCP2221_WriteTooLong(t *testing.T) {
	d := newTestAdapter(&fakeHID{})
	assert.Error(t, d.WriteToAddr(context.Background(), 0x1E, make([]byte, 61)))
}

func TestMCP2221_ReadFromAddr(t *testing.T) {
	f := &fakeHID{}
	f.push(reply(0x00), reply(0x00, 0x00, 0x06, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06))
	d := newTestAdapter(f)
	buf := make([]byte, 6)
	require.NoError(t, d.ReadFromAddr(context.Background(), 0x1E, buf))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, buf)
	require.Len(t, f.requests, 2)
	assert.Equal(t, []byte{0x91, 0x06, 0x00, 0x3D}, f.requests[0][:4])
	assert.Equal(t, byte(0x40), f.requests[1][0])
}

func TestMCP2221_ReadFromAddrErrors(t *testing.T) {
	tests := map[string]struct {
		responses []func([]byte) []byte
		busy      bool
	}{
		"busy":         {responses: []func([]byte) []byte{reply(0x01)}, busy: true},
		"engine error": {responses: []func([]byte) []byte{reply(0x00), reply(0x41)}},
		"size invalid": {responses: []func([]byte) []byte{reply(0x00), reply(0x00, 0x00, 0x7F)}},
		"size short":   {responses: []func([]byte) []byte{reply(0x00), reply(0x00, 0x00, 0x02)}},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			f := &fakeHID{}
			f.push(test.responses...)
			d := newTestAdapter(f)
			err := d.ReadFromAddr(context.Background(), 0x1E, make([]byte, 6))
			require.Error(t, err)
			assert.Equal(t, test.busy, errors.Is(err, compass.ErrBusBusy))
		})
	}
}

func TestMCP2221_EchoMismatch(t *testing.T) {
	f := &fakeHID{}
	f.push(func(req []byte) []byte {
		res := make([]byte, reportSize)
		res[0] = 0x51
		return res
	})
	d := newTestAdapter(f)
	_, err := d.Status(context.Background())
	assert.ErrorContains(t, err, "echoes")
}

func TestBufferToStatus(t *testing.T) {
	buf := make([]byte, reportSize)
	buf[9], buf[10] = 0x06, 0x00
	buf[11], buf[12] = 0x04, 0x00
	buf[13] = 2
	buf[14] = 0x76
	buf[15] = 0x0A
	buf[16], buf[17] = 0x3C, 0x00
	buf[25] = 1
	assert.Equal(t, &MCP2221Status{
		I2CDataBufferCounter:   2,
		I2CSpeedDivider:        0x76,
		I2CTimeout:             0x0A,
		CurrentAddress:         "3c00",
		LastWriteRequestedSize: 6,
		LastWriteSentSize:      4,
		ReadPending:            1,
	}, bufferToStatus(buf))
}

func TestMCP2221_ReleaseBus(t *testing.T) {
	f := &fakeHID{}
	f.push(reply())
	d := newTestAdapter(f)
	require.NoError(t, d.Release(context.Background()))
	assert.Equal(t, []byte{0x10, 0x00, 0x10}, f.requests[0][:3])
}

func TestMCP2221_Init(t *testing.T) {
	f := &fakeHID{}
	f.push(reply())
	d := newTestAdapter(f)
	require.NoError(t, d.Init(context.Background()))

	d = NewMCP2221(WithResponseWait(0))
	d.open = func(id int) (hidDevice, error) { return nil, ErrDeviceNotFound }
	assert.ErrorIs(t, d.Init(context.Background()), ErrDeviceNotFound)
}

func TestMCP2221_ResponseWaitCancelled(t *testing.T) {
	f := &fakeHID{}
	f.push(reply())
	d := NewMCP2221(WithResponseWait(time.Hour))
	d.open = f.opener
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Status(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.closed)
}
