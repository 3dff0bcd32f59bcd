package format

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// AppendNumeric appends the plain decimal text of n: an optional minus sign,
// the integer digits and, for a negative exponent, a point followed by exactly
// -Exp fractional digits. Zero is written as "0" whatever its scale. NaN and
// the infinities use the same words as floats. An invalid Numeric appends
// nothing; callers treat it as a null.
func AppendNumeric(dst []byte, n pgtype.Numeric) []byte {
	switch {
	case !n.Valid:
		return dst
	case n.NaN:
		return append(dst, "NaN"...)
	case n.InfinityModifier == pgtype.Infinity:
		return append(dst, "Infinity"...)
	case n.InfinityModifier == pgtype.NegativeInfinity:
		return append(dst, "-Infinity"...)
	case n.Int == nil || n.Int.Sign() == 0:
		return append(dst, '0')
	}

	start := len(dst)
	dst = n.Int.Append(dst, 10)
	if n.Int.Sign() < 0 {
		start++
	}

	exp := int(n.Exp)
	switch {
	case exp > 0:
		for i := 0; i < exp; i++ {
			dst = append(dst, '0')
		}
	case exp < 0:
		frac := -exp
		digits := len(dst) - start
		if digits > frac {
			point := len(dst) - frac
			dst = append(dst, 0)
			copy(dst[point+1:], dst[point:])
			dst[point] = '.'
			break
		}
		// All digits are fractional: shift them right behind "0." and
		// frac-digits leading zeros.
		shift := 2 + frac - digits
		for i := 0; i < shift; i++ {
			dst = append(dst, 0)
		}
		copy(dst[start+shift:], dst[start:start+digits])
		dst[start] = '0'
		dst[start+1] = '.'
		for i := start + 2; i < start+shift; i++ {
			dst[i] = '0'
		}
	}
	return dst
}
