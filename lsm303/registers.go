package lsm303

// Sub-device addresses on the bus.
const (
	DefaultMagnetometerAddress  = 0x1E
	DefaultAccelerometerAddress = 0x32 >> 1
)

// Magnetometer registers.
const (
	regCRA  = 0x00 // measurement mode (1:0), output rate (4:2), averaging (6:5)
	regCRB  = 0x01 // gain (7:5)
	regMode = 0x02
	regData = 0x03 // X MSB, X LSB, Z MSB, Z LSB, Y MSB, Y LSB
)

// Accelerometer registers.
const (
	regCtrl1A     = 0x20
	regOutXLA     = 0x28 // X LSB, X MSB, Y LSB, Y MSB, Z LSB, Z MSB
	autoIncrement = 0x80
)

// 10 Hz output rate, normal power, X, Y and Z enabled.
const ctrl1ANormalXYZ = 0x27

// A magnetometer axis reports this value when it saturates.
const overflowSentinel = -4096

// Mode selects how the magnetometer converts.
type Mode byte

const (
	ModeContinuous Mode = 0
	ModeSingle     Mode = 1
	ModeIdle       Mode = 2
	ModeSleep      Mode = 3
)

func (m Mode) String() string {
	switch m & 0x03 {
	case ModeContinuous:
		return "continuous"
	case ModeSingle:
		return "single"
	case ModeIdle:
		return "idle"
	default:
		return "sleep"
	}
}

// Output rate codes (CRA bits 4:2).
const (
	Rate0_75Hz byte = iota
	Rate1_5Hz
	Rate3Hz
	Rate7_5Hz
	Rate15Hz
	Rate30Hz
	Rate75Hz
	Rate220Hz
)

// Sample averaging codes (CRA bits 6:5).
const (
	Average1 byte = iota
	Average2
	Average4
	Average8
)

// Measurement configuration codes (CRA bits 1:0).
const (
	MeasureNormal byte = iota
	MeasurePositiveBias
	MeasureNegativeBias
)

const defaultOutputRate = Rate15Hz

// gainScale maps the 3-bit gain code to its scale factor. Values are kept in
// single precision and widened on use.
var gainScale = [8]float32{0.73, 0.92, 1.22, 1.52, 2.27, 2.56, 3.03, 4.35}

// Scale returns the scale factor applied to raw magnetometer counts for the
// given gain code. Only the low 3 bits of code are used.
func Scale(code byte) float32 {
	return gainScale[code&0x07]
}
