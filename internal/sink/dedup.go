package sink

import (
	"io"

	"github.com/zeebo/xxh3"
)

// Dedup drops writes whose content was already written. The serializer
// flushes once per record, so each write is one record (or the header).
// Records are identified by their 64-bit xxh3 hash; a hash collision drops a
// distinct record, which at 2^-64 per pair is accepted.
type Dedup struct {
	w       io.Writer
	seen    map[uint64]struct{}
	dropped int64
}

// NewDedup wraps w.
func NewDedup(w io.Writer) *Dedup {
	return &Dedup{w: w, seen: make(map[uint64]struct{}, 1024)}
}

// Write forwards p unless an identical p was forwarded before. Dropped writes
// report success.
func (d *Dedup) Write(p []byte) (int, error) {
	h := xxh3.Hash(p)
	if _, ok := d.seen[h]; ok {
		d.dropped++
		return len(p), nil
	}
	n, err := d.w.Write(p)
	if err == nil {
		d.seen[h] = struct{}{}
	}
	return n, err
}

// Dropped returns the number of writes suppressed so far.
func (d *Dedup) Dropped() int64 { return d.dropped }
