package format

import (
	"math"
	"strconv"
)

// MaxFloatLen bounds the text AppendFloat produces for any float32 or float64.
const MaxFloatLen = 32

// AppendFloat appends the shortest text that round-trips v at the given bit
// size (32 or 64). Magnitudes in [1e-6, 1e21) use plain notation and anything
// outside uses exponent form with a signed, unpadded exponent ("1e+21",
// "1e-7"). The non-finite values are written as NaN, Infinity and -Infinity.
func AppendFloat(dst []byte, v float64, bits int) []byte {
	switch {
	case math.IsNaN(v):
		return append(dst, "NaN"...)
	case math.IsInf(v, 1):
		return append(dst, "Infinity"...)
	case math.IsInf(v, -1):
		return append(dst, "-Infinity"...)
	}

	fmt := byte('f')
	if abs := math.Abs(v); abs != 0 {
		if bits == 64 && (abs < 1e-6 || abs >= 1e21) ||
			bits == 32 && (float32(abs) < 1e-6 || float32(abs) >= 1e21) {
			fmt = 'e'
		}
	}
	dst = strconv.AppendFloat(dst, v, fmt, -1, bits)
	if fmt == 'e' {
		// strconv pads the exponent to two digits: e-07 becomes e-7.
		n := len(dst)
		if n >= 4 && dst[n-4] == 'e' && dst[n-3] == '-' && dst[n-2] == '0' {
			dst[n-2] = dst[n-1]
			dst = dst[:n-1]
		}
	}
	return dst
}
