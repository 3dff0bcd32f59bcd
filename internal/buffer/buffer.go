// Package buffer implements the growable CSV encoding buffer. A Buffer holds
// rented storage and a write cursor; typed primitives append their CSV text at
// the cursor and Flush hands the written span to a sink. Bytes (UTF-8) and
// Units (UTF-16 code units) share the generic core and differ only in how
// strings are transcoded and where they flush to.
package buffer

import (
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"recordcsv/internal/format"
)

// QuotePolicy decides when textual cells are wrapped in double quotes.
type QuotePolicy uint8

const (
	// QuoteAlways quotes every textual cell (strings, date-times, UUIDs and
	// text conversions). Numbers and booleans are never quoted.
	QuoteAlways QuotePolicy = iota
	// QuoteMinimal quotes a textual cell only when it contains the separator,
	// a double quote, CR or LF.
	QuoteMinimal
)

func (q QuotePolicy) String() string {
	switch q {
	case QuoteAlways:
		return "always"
	case QuoteMinimal:
		return "minimal"
	}
	return fmt.Sprintf("QuotePolicy(%d)", uint8(q))
}

// ErrInvalidSeparator is returned by CheckSeparator.
var ErrInvalidSeparator = errors.New("buffer: invalid separator")

// CheckSeparator reports whether r can delimit cells. Quote and line breaks
// are reserved for framing. Characters that occur in number, date-time or UUID
// text are rejected too, since those cells are written bare.
func CheckSeparator(r rune) error {
	switch {
	case r == '"' || r == '\r' || r == '\n':
	case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
	case r == '.' || r == '-' || r == '+' || r == ':':
	case r < 0 || r > utf8.MaxRune || r == utf8.RuneError || (r >= 0xD800 && r <= 0xDFFF):
	default:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidSeparator, r)
}

// Encoder is the set of typed primitives a compiled projection writes through.
// Both Bytes and Units implement it.
type Encoder interface {
	Int64(v int64)
	Uint64(v uint64)
	Float32(v float32)
	Float64(v float64)
	Numeric(v pgtype.Numeric)
	Bool(v bool)
	String(s string)
	Text(b []byte)
	Time(t time.Time)
	TimeOffset(t time.Time)
	UUID(id uuid.UUID)
	Separator()
	Terminator()
}

const releasedMsg = "buffer: use after release"

// Buffer is the width-independent core. The zero value is not usable; use
// NewBytes or NewUnits.
type Buffer[U format.Unit] struct {
	buf      []U
	pos      int
	sep      []U
	sepRune  rune
	quote    QuotePolicy
	pool     *Pool[U]
	released bool
}

func (b *Buffer[U]) init(pool *Pool[U], capacity int, sep []U, sepRune rune, quote QuotePolicy) {
	b.pool = pool
	b.buf = pool.Rent(capacity)
	b.sep = sep
	b.sepRune = sepRune
	b.quote = quote
}

func (b *Buffer[U]) check() {
	if b.released {
		panic(releasedMsg)
	}
}

// Len returns the number of units written since the last flush.
func (b *Buffer[U]) Len() int { return b.pos }

// Cap returns the current storage size.
func (b *Buffer[U]) Cap() int { return len(b.buf) }

// Written returns the pending span. It aliases the buffer and is only valid
// until the next write.
func (b *Buffer[U]) Written() []U {
	b.check()
	return b.buf[:b.pos]
}

// Grow guarantees at least n free units. Storage grows to
// max(pos+n, 2*cap); the pending span is copied and the old storage returned
// to the pool.
func (b *Buffer[U]) Grow(n int) {
	b.check()
	if b.pos+n <= len(b.buf) {
		return
	}
	next := b.pool.Rent(max(b.pos+n, len(b.buf)*2))
	copy(next, b.buf[:b.pos])
	b.pool.Return(b.buf)
	b.buf = next
}

// Release returns the storage to the pool. The buffer must not be used
// afterwards; every method except Release panics. Release is idempotent.
func (b *Buffer[U]) Release() {
	if b.released {
		return
	}
	b.released = true
	b.pool.Return(b.buf)
	b.buf = nil
	b.pos = 0
}

// ensure is the hot-path form of Grow. A released buffer has no storage, so
// it always reaches Grow and panics there.
func (b *Buffer[U]) ensure(n int) {
	if b.pos+n > len(b.buf) {
		b.Grow(n)
	}
}

// Int64 writes v in decimal.
func (b *Buffer[U]) Int64(v int64) {
	b.ensure(format.MaxUint64Digits + 1)
	if v == math.MinInt64 {
		b.pos += format.PutASCII(b.buf[b.pos:], format.MinInt64Text)
		return
	}
	if v < 0 {
		b.buf[b.pos] = '-'
		b.pos++
		v = -v
	}
	b.pos += format.PutUint(b.buf[b.pos:], uint64(v))
}

// Uint64 writes v in decimal.
func (b *Buffer[U]) Uint64(v uint64) {
	b.ensure(format.MaxUint64Digits)
	b.pos += format.PutUint(b.buf[b.pos:], v)
}

// Float32 writes the shortest round-trip text of v.
func (b *Buffer[U]) Float32(v float32) {
	var scratch [format.MaxFloatLen]byte
	b.ascii(format.AppendFloat(scratch[:0], float64(v), 32))
}

// Float64 writes the shortest round-trip text of v.
func (b *Buffer[U]) Float64(v float64) {
	var scratch [format.MaxFloatLen]byte
	b.ascii(format.AppendFloat(scratch[:0], v, 64))
}

// Numeric writes v as plain decimal text. An invalid Numeric writes nothing.
func (b *Buffer[U]) Numeric(v pgtype.Numeric) {
	var scratch [64]byte
	b.ascii(format.AppendNumeric(scratch[:0], v))
}

// Bool writes true or false.
func (b *Buffer[U]) Bool(v bool) {
	b.ensure(5)
	if v {
		b.pos += format.PutASCII(b.buf[b.pos:], "true")
		return
	}
	b.pos += format.PutASCII(b.buf[b.pos:], "false")
}

// Time writes t converted to UTC with a Z suffix.
func (b *Buffer[U]) Time(t time.Time) { b.time(t, true) }

// TimeOffset writes t with its own offset, or Z when the offset is zero.
func (b *Buffer[U]) TimeOffset(t time.Time) { b.time(t, false) }

func (b *Buffer[U]) time(t time.Time, utc bool) {
	b.ensure(format.MaxTimeLen + 2)
	q := b.quote == QuoteAlways
	if q {
		b.buf[b.pos] = '"'
		b.pos++
	}
	b.pos += format.PutTime(b.buf[b.pos:], t, utc)
	if q {
		b.buf[b.pos] = '"'
		b.pos++
	}
}

const hexDigits = "0123456789abcdef"

// UUID writes id in its canonical lower-case 36 character form.
func (b *Buffer[U]) UUID(id uuid.UUID) {
	b.ensure(38)
	q := b.quote == QuoteAlways
	if q {
		b.buf[b.pos] = '"'
		b.pos++
	}
	dst := b.buf[b.pos : b.pos+36]
	j := 0
	for i, c := range id {
		if i == 4 || i == 6 || i == 8 || i == 10 {
			dst[j] = '-'
			j++
		}
		dst[j] = U(hexDigits[c>>4])
		dst[j+1] = U(hexDigits[c&0x0f])
		j += 2
	}
	b.pos += 36
	if q {
		b.buf[b.pos] = '"'
		b.pos++
	}
}

// Separator writes the configured cell separator.
func (b *Buffer[U]) Separator() {
	if len(b.sep) == 1 {
		b.ensure(1)
		b.buf[b.pos] = b.sep[0]
		b.pos++
		return
	}
	b.ensure(len(b.sep))
	b.pos += copy(b.buf[b.pos:], b.sep)
}

// Terminator ends the record with a line feed.
func (b *Buffer[U]) Terminator() {
	b.ensure(1)
	b.buf[b.pos] = '\n'
	b.pos++
}

func (b *Buffer[U]) ascii(s []byte) {
	b.ensure(len(s))
	dst := b.buf[b.pos : b.pos+len(s)]
	for i, c := range s {
		dst[i] = U(c)
	}
	b.pos += len(s)
}

// needsQuote reports whether s must be quoted under QuoteMinimal.
func (b *Buffer[U]) needsQuote(s string) bool {
	if b.sepRune >= utf8.RuneSelf {
		for _, r := range s {
			if r == b.sepRune || r == '"' || r == '\n' || r == '\r' {
				return true
			}
		}
		return false
	}
	sep := byte(b.sepRune)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case sep, '"', '\n', '\r':
			return true
		}
	}
	return false
}

func (b *Buffer[U]) quoteString(s string) bool {
	return b.quote == QuoteAlways || b.needsQuote(s)
}
