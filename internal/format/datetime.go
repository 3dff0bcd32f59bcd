package format

import "time"

// MaxTimeLen bounds the output of PutTime for any time.Time: a signed year of
// up to 12 digits, the fixed "-MM-DDTHH:mm:ss" body, an 8 unit fraction and a
// "+hh:mm" offset whose hour part may exceed two digits for odd fixed zones.
const MaxTimeLen = 48

// PutTime writes t as YYYY-MM-DDTHH:mm:ss followed by an optional seven digit
// fraction of 100ns ticks (only when non-zero) and the offset. With utc set, t
// is converted to UTC first and the suffix is always Z. Otherwise the suffix is
// Z for a zero offset and ±hh:mm for any other; offset seconds are truncated.
// Years outside 0..9999 keep at least four digits and carry a sign when
// negative. dst must hold MaxTimeLen units.
func PutTime[U Unit](dst []U, t time.Time, utc bool) int {
	offset := 0
	if utc {
		t = t.UTC()
	} else {
		_, offset = t.Zone()
	}

	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	n := 0
	if year < 0 {
		dst[0] = '-'
		n++
		year = -year
	}
	n += PutPadded(dst[n:], uint64(year), 4)
	dst[n] = '-'
	put2(dst[n+1:], int(month))
	dst[n+3] = '-'
	put2(dst[n+4:], day)
	dst[n+6] = 'T'
	put2(dst[n+7:], hour)
	dst[n+9] = ':'
	put2(dst[n+10:], minute)
	dst[n+12] = ':'
	put2(dst[n+13:], sec)
	n += 15

	if ticks := t.Nanosecond() / 100; ticks > 0 {
		dst[n] = '.'
		PutPadded(dst[n+1:], uint64(ticks), 7)
		n += 8
	}

	if offset == 0 {
		dst[n] = 'Z'
		return n + 1
	}
	dst[n] = '+'
	if offset < 0 {
		dst[n] = '-'
		offset = -offset
	}
	minutes := offset / 60
	n++
	n += PutPadded(dst[n:], uint64(minutes/60), 2)
	dst[n] = ':'
	put2(dst[n+1:], minutes%60)
	return n + 3
}

func put2[U Unit](dst []U, v int) {
	dst[0] = U('0' + v/10)
	dst[1] = U('0' + v%10)
}
