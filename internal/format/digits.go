// Package format holds the allocation-free text formatters behind the CSV
// encoding buffer. The Put* functions write into a caller-sized slice of
// bytes (UTF-8) or uint16 code units (UTF-16); they never grow or allocate.
// The Append* functions produce variable-width ASCII text into a byte scratch
// slice that the buffer then widens to its own unit type.
package format

// Unit is the storage unit of an output buffer: a UTF-8 byte or a UTF-16 code
// unit. Every formatter in this package emits ASCII only, so a single code
// path serves both widths.
type Unit interface {
	~byte | ~uint16
}

// MinInt64Text is the decimal text of math.MinInt64. Its magnitude has no
// int64 representation, so it cannot go through the negate-then-digits path.
const MinInt64Text = "-9223372036854775808"

// MaxUint64Digits is the decimal width of math.MaxUint64.
const MaxUint64Digits = 20

// CountDigits returns the number of decimal digits in v (1 for zero).
//
// It splits v into a part below 10^7 with at most two divisions, then walks a
// threshold table on that part, so no formatting pass is needed to size the
// output.
func CountDigits(v uint64) int {
	digits := 1
	var part uint32
	if v >= 10000000 {
		if v >= 100000000000000 {
			part = uint32(v / 100000000000000)
			digits += 14
		} else {
			part = uint32(v / 10000000)
			digits += 7
		}
	} else {
		part = uint32(v)
	}

	switch {
	case part < 10:
	case part < 100:
		digits++
	case part < 1000:
		digits += 2
	case part < 10000:
		digits += 3
	case part < 100000:
		digits += 4
	case part < 1000000:
		digits += 5
	default:
		// part < 10^7 by construction.
		digits += 6
	}
	return digits
}

// PutUint writes the decimal digits of v to the front of dst and returns the
// number of units written. dst must hold at least CountDigits(v) units.
func PutUint[U Unit](dst []U, v uint64) int {
	n := CountDigits(v)
	_ = dst[n-1]
	for i := n - 1; i > 0; i-- {
		q := v / 10
		dst[i] = U('0' + v - q*10)
		v = q
	}
	dst[0] = U('0' + v)
	return n
}

// PutPadded writes v with leading zeros up to width digits. Values wider than
// width are written in full. It returns the number of units written.
func PutPadded[U Unit](dst []U, v uint64, width int) int {
	n := CountDigits(v)
	pad := 0
	for ; n+pad < width; pad++ {
		dst[pad] = '0'
	}
	return pad + PutUint(dst[pad:], v)
}

// PutASCII copies the ASCII string s into dst and returns len(s).
func PutASCII[U Unit](dst []U, s string) int {
	dst = dst[:len(s)]
	for i := 0; i < len(s); i++ {
		dst[i] = U(s[i])
	}
	return len(s)
}
