package buffer

import (
	"io"
	"unicode/utf8"
	"unsafe"
)

// Bytes is the UTF-8 width of the encoding buffer.
type Bytes struct {
	Buffer[byte]
}

var _ Encoder = (*Bytes)(nil)

// NewBytes rents storage for at least capacity bytes from the shared pool.
// sep must satisfy CheckSeparator.
func NewBytes(capacity int, sep rune, quote QuotePolicy) *Bytes {
	b := &Bytes{}
	b.init(&bytePool, capacity, utf8.AppendRune(nil, sep), sep, quote)
	return b
}

// String writes s as one cell. Under the quote policy the cell is wrapped in
// double quotes and embedded quotes are doubled. Invalid UTF-8 bytes are
// replaced with U+FFFD.
func (b *Bytes) String(s string) {
	quote := b.quoteString(s)
	// Every input byte produces at least one output byte; the reservation
	// covers that plus both quotes and is topped up for doubled quotes and
	// replacement characters as they appear.
	b.ensure(len(s) + 2)
	if quote {
		b.buf[b.pos] = '"'
		b.pos++
	}
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			if c == '"' && quote {
				b.ensure(len(s) - i + 2)
				b.buf[b.pos] = '"'
				b.pos++
			}
			b.buf[b.pos] = c
			b.pos++
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b.ensure(len(s) - i + 3)
			b.pos += utf8.EncodeRune(b.buf[b.pos:], r)
			i++
			continue
		}
		b.pos += copy(b.buf[b.pos:], s[i:i+size])
		i += size
	}
	if quote {
		b.buf[b.pos] = '"'
		b.pos++
	}
}

// Text writes p as a UTF-8 string cell.
func (b *Bytes) Text(p []byte) {
	b.String(unsafe.String(unsafe.SliceData(p), len(p)))
}

// Flush writes the pending span to w and resets the cursor. The cursor is
// reset even when w fails.
func (b *Bytes) Flush(w io.Writer) error {
	b.check()
	if b.pos == 0 {
		return nil
	}
	n := b.pos
	b.pos = 0
	_, err := w.Write(b.buf[:n])
	return err
}
