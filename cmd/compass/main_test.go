package main

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/compass/cmd/compass/console"
	"github.com/mklimuk/compass/lsm303"
)

// registerBus emulates the register files of both sub-devices: a one byte
// write sets the pointer, longer writes store values, reads auto-increment.
type registerBus struct {
	mx      sync.Mutex
	regs    map[byte]*[0x40]byte
	pointer map[byte]byte
	writes  [][]byte
}

func newRegisterBus() *registerBus {
	return &registerBus{
		regs: map[byte]*[0x40]byte{
			lsm303.DefaultMagnetometerAddress:  {},
			lsm303.DefaultAccelerometerAddress: {},
		},
		pointer: map[byte]byte{},
	}
}

func (b *registerBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	reg := buffer[0] & 0x7F
	b.pointer[address] = reg
	if len(buffer) > 1 {
		b.writes = append(b.writes, append([]byte{address}, buffer...))
		copy(b.regs[address][reg:], buffer[1:])
	}
	return nil
}

func (b *registerBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	copy(buffer, b.regs[address][b.pointer[address]:])
	return nil
}

func (b *registerBus) Release(ctx context.Context) error { return nil }

func (b *registerBus) set(address, reg byte, data ...byte) {
	b.mx.Lock()
	defer b.mx.Unlock()
	copy(b.regs[address][reg:], data)
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	console.SetOutput(&out, &out)
	t.Cleanup(func() { console.SetOutput(os.Stdout, os.Stderr) })
	return &out
}

func TestParseCode(t *testing.T) {
	v, err := parseCode("7", 7)
	require.NoError(t, err)
	assert.Equal(t, byte(7), v)
	v, err = parseCode("0x3", 3)
	require.NoError(t, err)
	assert.Equal(t, byte(3), v)
	for _, arg := range []string{"", "8", "x", "300"} {
		_, err := parseCode(arg, 7)
		assert.Error(t, err, arg)
	}
}

func TestFormatMag(t *testing.T) {
	color.NoColor = true
	assert.Equal(t, console.PictoCompass+" "+console.PictoMagnet+" x=0.73 y=-1.46 z=0.00",
		formatMag(lsm303.MagSample{X: 0.73, Y: -1.46}))
	assert.Contains(t, formatMag(lsm303.MagSample{Overflow: true}), "overflow")
}

func TestParseShellCommand(t *testing.T) {
	tests := []struct {
		line string
		cmd  shellCommand
	}{
		{"", shellCommand{name: "nop"}},
		{"read", shellCommand{name: "read"}},
		{"R", shellCommand{name: "read"}},
		{"a", shellCommand{name: "acc"}},
		{"exit", shellCommand{name: "quit"}},
		{"gain 5", shellCommand{name: "gain", args: []byte{5}}},
		{"mode 0", shellCommand{name: "mode", args: []byte{0}}},
		{"setup 3 7 1", shellCommand{name: "setup", args: []byte{3, 7, 1}}},
		{"setup 2", shellCommand{name: "setup", args: []byte{2}}},
	}
	for _, test := range tests {
		t.Run(test.line, func(t *testing.T) {
			cmd, err := parseShellCommand(test.line)
			require.NoError(t, err)
			assert.Equal(t, test.cmd, cmd)
		})
	}
	for _, line := range []string{"gain", "gain 8", "mode 4", "setup", "setup 1 2 3 4", "setup 1 8", "read 1"} {
		_, err := parseShellCommand(line)
		assert.Error(t, err, line)
	}
}

func newShell(t *testing.T, bus *registerBus, confirm func(lsm303.Mode) (bool, error)) *shell {
	t.Helper()
	sensor, err := lsm303.New(context.Background(), bus, nil, "")
	require.NoError(t, err)
	return &shell{sensor: sensor, confirm: confirm}
}

func TestShell_Read(t *testing.T) {
	out := captureOutput(t)
	bus := newRegisterBus()
	// gain 1, X=1 Y=3 Z=2 counts
	bus.set(lsm303.DefaultMagnetometerAddress, 0x01, 0x20)
	bus.set(lsm303.DefaultMagnetometerAddress, 0x03, 0x00, 0x01, 0x00, 0x02, 0x00, 0x03)
	s := newShell(t, bus, confirmMode)
	require.NoError(t, s.execute(context.Background(), shellCommand{name: "read"}))
	assert.Contains(t, out.String(), "x=0.92 y=2.76 z=1.84")
}

func TestShell_Acc(t *testing.T) {
	out := captureOutput(t)
	bus := newRegisterBus()
	bus.set(lsm303.DefaultAccelerometerAddress, 0x28, 0x10, 0x00, 0xF0, 0xFF, 0x00, 0x40)
	s := newShell(t, bus, confirmMode)
	require.NoError(t, s.execute(context.Background(), shellCommand{name: "acc"}))
	assert.Contains(t, out.String(), "x=16 y=-16 z=16384")
}

func TestShell_ModeConfirm(t *testing.T) {
	captureOutput(t)
	bus := newRegisterBus()
	asked := 0
	refuse := func(mode lsm303.Mode) (bool, error) {
		asked++
		return false, nil
	}
	s := newShell(t, bus, refuse)
	require.NoError(t, s.execute(context.Background(), shellCommand{name: "mode", args: []byte{3}}))
	assert.Equal(t, 1, asked)
	assert.Equal(t, lsm303.ModeSingle, s.sensor.Mode())

	s.confirm = confirmMode
	require.NoError(t, s.execute(context.Background(), shellCommand{name: "mode", args: []byte{0}}))
	assert.Equal(t, lsm303.ModeContinuous, s.sensor.Mode())
}

func TestShell_Setup(t *testing.T) {
	captureOutput(t)
	bus := newRegisterBus()
	s := newShell(t, bus, confirmMode)
	require.NoError(t, s.execute(context.Background(), shellCommand{name: "setup", args: []byte{3, 7, 1}}))
	last := bus.writes[len(bus.writes)-1]
	assert.Equal(t, []byte{lsm303.DefaultMagnetometerAddress, 0x00, 0x7D}, last)
}

func TestShell_Gain(t *testing.T) {
	out := captureOutput(t)
	bus := newRegisterBus()
	s := newShell(t, bus, confirmMode)
	require.NoError(t, s.execute(context.Background(), shellCommand{name: "gain", args: []byte{4}}))
	assert.Equal(t, byte(4), s.sensor.PendingGain())
	assert.Equal(t, byte(0), s.sensor.Gain())
	assert.Contains(t, out.String(), "pending 4")
}

func TestConfirmMode_NotAskedForConversions(t *testing.T) {
	for _, mode := range []lsm303.Mode{lsm303.ModeContinuous, lsm303.ModeSingle} {
		ok, err := confirmMode(mode)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}
