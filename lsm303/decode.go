package lsm303

import "encoding/binary"

// MagSample is a scaled magnetometer reading.
type MagSample struct {
	X, Y, Z float64
	// Overflow is set when any axis reported the saturation value.
	Overflow bool
}

// AccelSample is a raw accelerometer reading in LSB units.
type AccelSample struct {
	X, Y, Z int
}

// signCorrect turns an unsigned register word into a signed value. 32767 is
// treated as negative, so the result for it is -32769.
func signCorrect(v uint16) int {
	if v >= 32767 {
		return int(v) - 65536
	}
	return int(v)
}

// decodeMagnetometer reads the big-endian X, Z, Y words of the data block.
func decodeMagnetometer(buf []byte, scale float32) MagSample {
	x := signCorrect(binary.BigEndian.Uint16(buf[0:2]))
	z := signCorrect(binary.BigEndian.Uint16(buf[2:4]))
	y := signCorrect(binary.BigEndian.Uint16(buf[4:6]))
	f := float64(scale)
	return MagSample{
		X:        float64(x) * f,
		Y:        float64(y) * f,
		Z:        float64(z) * f,
		Overflow: x == overflowSentinel || y == overflowSentinel || z == overflowSentinel,
	}
}

// decodeAccelerometer reads the little-endian X, Y, Z words of the data block.
func decodeAccelerometer(buf []byte) AccelSample {
	return AccelSample{
		X: signCorrect(binary.LittleEndian.Uint16(buf[0:2])),
		Y: signCorrect(binary.LittleEndian.Uint16(buf[2:4])),
		Z: signCorrect(binary.LittleEndian.Uint16(buf[4:6])),
	}
}
