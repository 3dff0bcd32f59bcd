// Package sink provides the writers the export runner stacks between the
// serializer and an output file: code-unit to byte conversion, duplicate
// suppression, checksumming and charset transcoding.
package sink

import (
	"encoding/binary"
	"io"

	"recordcsv/internal/buffer"
)

// UnitWriter is a sink of UTF-16 code units.
type UnitWriter = buffer.UnitWriter

// UTF16Writer serializes code units to an io.Writer in a fixed byte order,
// optionally preceded by a byte order mark on the first write.
type UTF16Writer struct {
	w       io.Writer
	order   binary.AppendByteOrder
	bom     bool
	started bool
	scratch []byte
}

// NewUTF16Writer returns a UnitWriter that encodes little-endian unless
// bigEndian is set.
func NewUTF16Writer(w io.Writer, bigEndian, bom bool) *UTF16Writer {
	var order binary.AppendByteOrder = binary.LittleEndian
	if bigEndian {
		order = binary.BigEndian
	}
	return &UTF16Writer{w: w, order: order, bom: bom}
}

// WriteUnits writes p as 2 bytes per unit. n counts units and is either
// len(p) or 0.
func (u *UTF16Writer) WriteUnits(p []uint16) (int, error) {
	buf := u.scratch[:0]
	if !u.started {
		u.started = true
		if u.bom {
			buf = u.order.AppendUint16(buf, 0xFEFF)
		}
	}
	for _, c := range p {
		buf = u.order.AppendUint16(buf, c)
	}
	u.scratch = buf
	if _, err := u.w.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}

// UTF16BOM returns the byte order mark of the given byte order. Writers that
// filter records, such as Dedup, must sit above it, so callers stacking one
// write the mark to the file directly and leave NewUTF16Writer's bom unset.
func UTF16BOM(bigEndian bool) []byte {
	if bigEndian {
		return []byte{0xFE, 0xFF}
	}
	return []byte{0xFF, 0xFE}
}
