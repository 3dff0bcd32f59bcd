package sink

import (
	"io"

	"github.com/zeebo/xxh3"
)

// Digest passes writes through and keeps an xxh3 checksum and counts of what
// reached the underlying writer.
type Digest struct {
	w      io.Writer
	h      *xxh3.Hasher
	bytes  int64
	writes int64
}

// NewDigest wraps w.
func NewDigest(w io.Writer) *Digest {
	return &Digest{w: w, h: xxh3.New()}
}

func (d *Digest) Write(p []byte) (int, error) {
	n, err := d.w.Write(p)
	if n > 0 {
		_, _ = d.h.Write(p[:n])
		d.bytes += int64(n)
	}
	if err == nil {
		d.writes++
	}
	return n, err
}

// Sum64 returns the checksum of all bytes written so far.
func (d *Digest) Sum64() uint64 { return d.h.Sum64() }

// Bytes returns the number of bytes written.
func (d *Digest) Bytes() int64 { return d.bytes }

// Writes returns the number of successful writes.
func (d *Digest) Writes() int64 { return d.writes }
