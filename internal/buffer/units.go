package buffer

import (
	"unicode/utf16"
	"unicode/utf8"
	"unsafe"
)

// UnitWriter accepts UTF-16 code units. It is the code-unit counterpart of
// io.Writer and follows the same contract for n and err.
type UnitWriter interface {
	WriteUnits(p []uint16) (n int, err error)
}

// Units is the UTF-16 width of the encoding buffer.
type Units struct {
	Buffer[uint16]
}

var _ Encoder = (*Units)(nil)

// NewUnits rents storage for at least capacity code units from the shared
// pool. sep must satisfy CheckSeparator.
func NewUnits(capacity int, sep rune, quote QuotePolicy) *Units {
	u := &Units{}
	u.init(&unitPool, capacity, utf16.AppendRune(nil, sep), sep, quote)
	return u
}

// String writes s, decoded as UTF-8, as one cell of UTF-16 code units.
// Supplementary characters become surrogate pairs and invalid bytes become
// U+FFFD. Quoting follows Bytes.String.
func (u *Units) String(s string) {
	quote := u.quoteString(s)
	// A UTF-8 sequence of k bytes never needs more than k code units, so
	// len(s) plus the quotes is enough unless quotes are doubled.
	u.ensure(len(s) + 2)
	if quote {
		u.buf[u.pos] = '"'
		u.pos++
	}
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			if c == '"' && quote {
				u.ensure(len(s) - i + 2)
				u.buf[u.pos] = '"'
				u.pos++
			}
			u.buf[u.pos] = uint16(c)
			u.pos++
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r >= 0x10000 {
			r1, r2 := utf16.EncodeRune(r)
			u.buf[u.pos] = uint16(r1)
			u.buf[u.pos+1] = uint16(r2)
			u.pos += 2
			continue
		}
		u.buf[u.pos] = uint16(r)
		u.pos++
	}
	if quote {
		u.buf[u.pos] = '"'
		u.pos++
	}
}

// Text writes p, decoded as UTF-8, as a string cell.
func (u *Units) Text(p []byte) {
	u.String(unsafe.String(unsafe.SliceData(p), len(p)))
}

// Flush writes the pending span to w and resets the cursor. The cursor is
// reset even when w fails.
func (u *Units) Flush(w UnitWriter) error {
	u.check()
	if u.pos == 0 {
		return nil
	}
	n := u.pos
	u.pos = 0
	_, err := w.WriteUnits(u.buf[:n])
	return err
}
