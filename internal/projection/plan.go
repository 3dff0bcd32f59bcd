// Package projection compiles record projections into reusable write
// procedures. A projection is an ordered list of columns, each resolved to a
// typed encoder once at compile time; writing a sequence is then a single
// loop over the columns per element with no per-field type inspection.
package projection

import (
	"fmt"
	"io"
	"reflect"
	"slices"
	"unsafe"

	"recordcsv/internal/buffer"
)

// Spec is an uncompiled projection.
type Spec[S any] struct {
	Columns []Column[S]
	// Fill, when set, runs once per element before its cells and writes the
	// element's mapped record into rec.
	Fill func(s S, rec unsafe.Pointer)
	// NewRecord allocates the scratch record handed to Fill and the cells. It
	// is called once per write.
	NewRecord func() unsafe.Pointer
}

// Format is the CSV framing a plan writes with.
type Format struct {
	Separator rune
	Quote     buffer.QuotePolicy
}

// Plan is a compiled projection. It is immutable and safe for concurrent
// writes to different sinks.
type Plan[S any] struct {
	cols      []Column[S]
	names     []string
	fill      func(S, unsafe.Pointer)
	newRecord func() unsafe.Pointer
	format    Format
	elem      reflect.Type
}

// Compile validates spec and freezes it into a Plan.
func Compile[S any](spec Spec[S], f Format) (*Plan[S], error) {
	if len(spec.Columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrInvalidShape)
	}
	if (spec.Fill == nil) != (spec.NewRecord == nil) {
		return nil, fmt.Errorf("%w: fill and record allocation must be set together", ErrInvalidShape)
	}
	if err := buffer.CheckSeparator(f.Separator); err != nil {
		return nil, err
	}
	names := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ErrInvalidShape, i)
		}
		names[i] = c.Name
	}
	return &Plan[S]{
		cols:      slices.Clone(spec.Columns),
		names:     names,
		fill:      spec.Fill,
		newRecord: spec.NewRecord,
		format:    f,
		elem:      reflect.TypeFor[S](),
	}, nil
}

// Names returns the column names in output order.
func (p *Plan[S]) Names() []string { return slices.Clone(p.names) }

// Kinds returns the resolved column kinds in output order.
func (p *Plan[S]) Kinds() []Kind {
	kinds := make([]Kind, len(p.cols))
	for i, c := range p.cols {
		kinds[i] = c.Kind
	}
	return kinds
}

// WriteBytes encodes every element of seq as UTF-8 and flushes to w after
// each record. hint sizes the initial buffer. It returns the number of
// records written. Output already flushed is not rolled back on error.
func (p *Plan[S]) WriteBytes(w io.Writer, seq any, hint int) (int, error) {
	b := buffer.NewBytes(hint, p.format.Separator, p.format.Quote)
	defer b.Release()
	return p.write(b, seq, func() error { return b.Flush(w) })
}

// WriteUnits is WriteBytes for a UTF-16 code-unit sink.
func (p *Plan[S]) WriteUnits(w buffer.UnitWriter, seq any, hint int) (int, error) {
	u := buffer.NewUnits(hint, p.format.Separator, p.format.Quote)
	defer u.Release()
	return p.write(u, seq, func() error { return u.Flush(w) })
}

func (p *Plan[S]) write(e Encoder, seq any, flush func() error) (int, error) {
	var rec unsafe.Pointer
	if p.newRecord != nil {
		rec = p.newRecord()
	}
	n := 0
	err := p.each(seq, func(s S) error {
		if err := p.encode(e, s, rec); err != nil {
			return fmt.Errorf("record %d: %w", n+1, err)
		}
		if err := flush(); err != nil {
			return fmt.Errorf("write record %d: %w", n+1, err)
		}
		n++
		return nil
	})
	return n, err
}

func (p *Plan[S]) encode(e Encoder, s S, rec unsafe.Pointer) (err error) {
	i := -1
	defer func() {
		if r := recover(); r != nil {
			ep, ok := r.(encodePanic)
			if !ok {
				panic(r)
			}
			ee := &EncodeError{Err: ep.err}
			if i >= 0 {
				ee.Field = p.cols[i].Name
			}
			err = ee
		}
	}()

	if p.fill != nil {
		p.fill(s, rec)
	}
	for i = range p.cols {
		if i > 0 {
			e.Separator()
		}
		if cell := p.cols[i].Cell; cell != nil {
			cell(e, s, rec)
		}
	}
	e.Terminator()
	return nil
}
