// Package serializer writes sequences of records as CSV.
//
// A Serializer holds one compiled projection per source element type. Add
// compiles a projection once; Write looks up the projection for the data's
// element type and streams every element through it, flushing to the sink
// after each record:
//
//	s := serializer.New()
//	if err := s.Add(serializer.Map(func(o Order) OrderRow { ... })); err != nil {
//		return err
//	}
//	err := s.Write(os.Stdout, orders)
//
// Registration is expected to finish before writes begin. Concurrent writes to
// different sinks are safe.
package serializer

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"recordcsv/internal/buffer"
	"recordcsv/internal/header"
	"recordcsv/internal/projection"
)

var (
	ErrNilSink           = errors.New("serializer: nil sink")
	ErrNilSequence       = projection.ErrNilSequence
	ErrNoProjection      = errors.New("serializer: no projection registered for element type")
	ErrAlreadyRegistered = errors.New("serializer: projection already registered for type")
	ErrInvalidProjection = errors.New("serializer: invalid projection")
	ErrUnsupportedSink   = errors.New("serializer: unsupported sink")

	// ErrUnsupportedType and ErrInvalidShape detail ErrInvalidProjection.
	ErrUnsupportedType = projection.ErrUnsupportedType
	ErrInvalidShape    = projection.ErrInvalidShape
)

// UnitWriter is a sink of UTF-16 code units. Write prefers it over io.Writer
// when a sink implements both.
type UnitWriter = buffer.UnitWriter

// QuotePolicy decides when textual cells are quoted.
type QuotePolicy = buffer.QuotePolicy

const (
	QuoteAlways  = buffer.QuoteAlways
	QuoteMinimal = buffer.QuoteMinimal
)

type entry struct {
	typ    reflect.Type
	header header.Row
	plan   compiled
}

// Serializer is a registry of compiled projections. The zero value is not
// usable; use New.
type Serializer struct {
	opts options

	byType sync.Map // reflect.Type -> *entry
	mu     sync.Mutex
	order  atomic.Pointer[[]*entry]
	// resolved caches the entry chosen for each concrete element type.
	resolved sync.Map // reflect.Type -> *entry
}

// New returns an empty Serializer.
func New(opts ...Option) *Serializer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Serializer{opts: o}
}

// Add compiles p and registers it for p's element type. The first
// registration for a type wins; a second one reports ErrAlreadyRegistered and
// leaves the registry unchanged.
func (s *Serializer) Add(p Projection) error {
	if p == nil {
		return fmt.Errorf("%w: nil projection", ErrInvalidProjection)
	}
	if err := buffer.CheckSeparator(s.opts.delimiter); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProjection, err)
	}
	typ := p.elemType()
	if _, ok := s.byType.Load(typ); ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, typ)
	}

	plan, err := p.compile(projection.Format{Separator: s.opts.delimiter, Quote: s.opts.quote})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidProjection, typ, err)
	}
	e := &entry{
		typ:    typ,
		header: header.Build(plan.Names(), s.opts.delimiter, s.opts.camelCase),
		plan:   plan,
	}
	if _, loaded := s.byType.LoadOrStore(typ, e); loaded {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, typ)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var next []*entry
	if cur := s.order.Load(); cur != nil {
		next = slices.Clone(*cur)
	}
	next = append(next, e)
	s.order.Store(&next)
	return nil
}

// Columns returns the header names (before case adjustment) and kinds of the
// projection that would serve seq.
func (s *Serializer) Columns(seq any) ([]string, []projection.Kind, error) {
	e, err := s.lookup(seq)
	if err != nil {
		return nil, nil, err
	}
	return e.plan.Names(), e.plan.Kinds(), nil
}

// Header returns the header line that precedes records of seq, including the
// trailing newline. It is returned even when headers are disabled.
func (s *Serializer) Header(seq any) (string, error) {
	e, err := s.lookup(seq)
	if err != nil {
		return "", err
	}
	return string(e.header.Bytes), nil
}

// Write serializes seq to dst. A dst implementing UnitWriter receives UTF-16
// code units; any other io.Writer receives UTF-8. seq is a slice, array,
// receive channel or iterator (func(yield func(T) bool)) whose element type
// is assignable to a registered source type.
func (s *Serializer) Write(dst any, seq any) error {
	switch w := dst.(type) {
	case nil:
		return ErrNilSink
	case UnitWriter:
		return s.WriteUnits(w, seq)
	case io.Writer:
		return s.WriteBytes(w, seq)
	}
	return fmt.Errorf("%w: %T", ErrUnsupportedSink, dst)
}

// WriteBytes serializes seq to w as UTF-8.
func (s *Serializer) WriteBytes(w io.Writer, seq any) error {
	if isNil(w) {
		return ErrNilSink
	}
	e, err := s.lookup(seq)
	if err != nil {
		return err
	}
	if s.opts.header {
		if _, err := w.Write(e.header.Bytes); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	_, err = e.plan.WriteBytes(w, seq, s.hint(len(e.header.Bytes)))
	return err
}

// WriteUnits serializes seq to w as UTF-16 code units.
func (s *Serializer) WriteUnits(w UnitWriter, seq any) error {
	if isNil(w) {
		return ErrNilSink
	}
	e, err := s.lookup(seq)
	if err != nil {
		return err
	}
	if s.opts.header {
		if _, err := w.WriteUnits(e.header.Units); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	_, err = e.plan.WriteUnits(w, seq, s.hint(len(e.header.Units)))
	return err
}

// hint sizes the per-write buffer: a record is usually about as long as the
// header line.
func (s *Serializer) hint(headerLen int) int {
	return max(s.opts.initialBuffer, headerLen)
}

// lookup resolves the entry serving seq: the first registered type the
// element type is assignable to.
func (s *Serializer) lookup(seq any) (*entry, error) {
	elem, err := projection.ElemType(seq)
	if err != nil {
		return nil, err
	}
	if e, ok := s.resolved.Load(elem); ok {
		return e.(*entry), nil
	}
	if order := s.order.Load(); order != nil {
		for _, e := range *order {
			if elem.AssignableTo(e.typ) {
				s.resolved.Store(elem, e)
				return e, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoProjection, elem)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
