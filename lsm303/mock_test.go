package lsm303

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/compass"
)

func staticAxes(x, y, z int16) AxesBehaviorFunc {
	return func(ctx context.Context) (int16, int16, int16, error) { return x, y, z, nil }
}

func newMockSensor(t *testing.T, field AxesBehaviorFunc, opts ...Option) (*LSM303DLHC, *MockDevice) {
	t.Helper()
	dev := NewMockDevice(field, staticAxes(16, -16, 16384))
	t.Cleanup(func() { _ = dev.Close() })
	sensor, err := New(context.Background(), dev, dev, MockPin, opts...)
	require.NoError(t, err)
	return sensor, dev
}

func receive(t *testing.T, samples <-chan MagSample) MagSample {
	t.Helper()
	select {
	case s := <-samples:
		return s
	case <-time.After(time.Second):
		t.Fatal("no sample delivered")
		return MagSample{}
	}
}

func TestMockDevice_Read(t *testing.T) {
	sensor, _ := newMockSensor(t, staticAxes(100, -200, 300))
	ctx := context.Background()
	assert.Equal(t, byte(1), sensor.Gain())

	sample, err := sensor.ReadMagnetometer(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 92.0, sample.X, 1e-4)
	assert.InDelta(t, -184.0, sample.Y, 1e-4)
	assert.InDelta(t, 276.0, sample.Z, 1e-4)

	acc, err := sensor.ReadAccelerometer(ctx)
	require.NoError(t, err)
	assert.Equal(t, AccelSample{X: 16, Y: -16, Z: 16384}, acc)
}

func TestMockDevice_Overflow(t *testing.T) {
	sensor, _ := newMockSensor(t, staticAxes(-4096, 0, 0))
	sample, err := sensor.ReadMagnetometer(context.Background())
	require.NoError(t, err)
	assert.True(t, sample.Overflow)
}

func TestMockDevice_SingleShot(t *testing.T) {
	sensor, _ := newMockSensor(t, staticAxes(1, 1, 1))
	samples := make(chan MagSample, 4)
	err := sensor.StartSingleShot(context.Background(), func(s MagSample, err error) {
		assert.NoError(t, err)
		samples <- s
	})
	require.NoError(t, err)
	s := receive(t, samples)
	assert.InDelta(t, 0.92, s.X, 1e-6)
	// one shot only
	select {
	case <-samples:
		t.Fatal("single shot delivered twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMockDevice_Continuous(t *testing.T) {
	sensor, _ := newMockSensor(t, staticAxes(2, 2, 2))
	require.NoError(t, sensor.Setup(context.Background(), Average1, WithOutputRate(Rate220Hz)))
	samples := make(chan MagSample, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := sensor.StartContinuous(ctx, func(s MagSample, err error) {
		if err == nil {
			select {
			case samples <- s:
			default:
			}
		}
	})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		receive(t, samples)
	}
	assert.Equal(t, ModeContinuous, sensor.Mode())
	require.NoError(t, sensor.SetMode(context.Background(), ModeIdle))
}

func TestMockDevice_GainTakesEffectAfterNextRead(t *testing.T) {
	sensor, _ := newMockSensor(t, staticAxes(10, 0, 0))
	ctx := context.Background()
	require.NoError(t, sensor.SetGain(ctx, 7))
	first, err := sensor.ReadMagnetometer(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 9.2, first.X, 1e-4)
	second, err := sensor.ReadMagnetometer(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 43.5, second.X, 1e-4)
}

func TestMockDevice_Pins(t *testing.T) {
	dev := NewMockDevice(nil, nil)
	ctx := context.Background()
	assert.ErrorIs(t, dev.SetPinMode(ctx, "GP1", compass.PinInput), compass.ErrPinNotFound)
	assert.ErrorIs(t, dev.SetPinMode(ctx, MockPin, compass.PinInputPullUp), compass.ErrUnsupportedPinMode)
	assert.ErrorIs(t, dev.WatchPin(ctx, "GP1", func() {}), compass.ErrPinNotFound)
	assert.Error(t, dev.WriteToAddr(ctx, 0x21, []byte{0x00}))
}

func TestMockDevice_ConversionError(t *testing.T) {
	failing := func(ctx context.Context) (int16, int16, int16, error) { return 0, 0, 0, errors.New("no field") }
	sensor, _ := newMockSensor(t, failing)
	sample, err := sensor.ReadMagnetometer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MagSample{}, sample)
}

func TestMockDevice_RegisterOutOfRange(t *testing.T) {
	dev := NewMockDevice(nil, nil)
	ctx := context.Background()
	assert.Error(t, dev.WriteToAddr(ctx, DefaultMagnetometerAddress, []byte{0x45}))
	assert.Error(t, dev.WriteToAddr(ctx, DefaultMagnetometerAddress, []byte{0x3F, 0x01, 0x02}))

	require.NoError(t, dev.WriteToAddr(ctx, DefaultMagnetometerAddress, []byte{0x3E}))
	assert.Error(t, dev.ReadFromAddr(ctx, DefaultMagnetometerAddress, make([]byte, 6)))
	assert.NoError(t, dev.ReadFromAddr(ctx, DefaultMagnetometerAddress, make([]byte, 2)))
}
