package projection

import (
	"fmt"
	"reflect"
	"strings"
	"time"
	"unsafe"
)

// Cell encodes one column of one source element. rec is the per-write scratch
// record of a mapped projection and nil otherwise.
type Cell[S any] func(e Encoder, s S, rec unsafe.Pointer)

// Column is one output cell of a projection. A nil Cell is a suppressed
// column: it keeps its position (and separators) but never emits content.
type Column[S any] struct {
	Name     string
	Kind     Kind
	Nullable bool
	Cell     Cell[S]
}

// FieldColumn resolves a column that extracts a V from each element. utc
// selects the UTC date-time form when V is (or wraps) a time.Time.
func FieldColumn[S, V any](name string, get func(S) V, utc bool) (Column[S], error) {
	if get == nil {
		return Column[S]{}, fmt.Errorf("%w: field %q has no accessor", ErrInvalidShape, name)
	}
	r, err := resolve(reflect.TypeFor[V](), utc)
	if err != nil {
		return Column[S]{}, fmt.Errorf("field %q: %w", name, err)
	}
	cell := directCell(get, r.kind)
	if cell == nil {
		enc := r.enc
		cell = func(e Encoder, s S, _ unsafe.Pointer) {
			v := get(s)
			enc(e, unsafe.Pointer(&v))
		}
	}
	return Column[S]{Name: name, Kind: r.kind, Nullable: r.nullable, Cell: cell}, nil
}

// directCell returns a cell that calls the encoder primitive without taking
// the extracted value's address through an opaque function, which would move
// it to the heap on every record. Nil when V has no direct form.
func directCell[S, V any](get func(S) V, k Kind) Cell[S] {
	t := reflect.TypeFor[V]()
	if t == timeType {
		if k == KindTime {
			return func(e Encoder, s S, _ unsafe.Pointer) {
				v := get(s)
				e.Time(*(*time.Time)(unsafe.Pointer(&v)))
			}
		}
		return func(e Encoder, s S, _ unsafe.Pointer) {
			v := get(s)
			e.TimeOffset(*(*time.Time)(unsafe.Pointer(&v)))
		}
	}
	switch {
	case k == KindInt && t.Kind() == reflect.Int64:
		return func(e Encoder, s S, _ unsafe.Pointer) {
			v := get(s)
			e.Int64(*(*int64)(unsafe.Pointer(&v)))
		}
	case k == KindInt && t.Kind() == reflect.Int:
		return func(e Encoder, s S, _ unsafe.Pointer) {
			v := get(s)
			e.Int64(int64(*(*int)(unsafe.Pointer(&v))))
		}
	case k == KindInt && t.Kind() == reflect.Int32:
		return func(e Encoder, s S, _ unsafe.Pointer) {
			v := get(s)
			e.Int64(int64(*(*int32)(unsafe.Pointer(&v))))
		}
	case k == KindUint && t.Kind() == reflect.Uint64:
		return func(e Encoder, s S, _ unsafe.Pointer) {
			v := get(s)
			e.Uint64(*(*uint64)(unsafe.Pointer(&v)))
		}
	case k == KindFloat64 && t.Kind() == reflect.Float64:
		return func(e Encoder, s S, _ unsafe.Pointer) {
			v := get(s)
			e.Float64(*(*float64)(unsafe.Pointer(&v)))
		}
	case k == KindString && t.Kind() == reflect.String:
		return func(e Encoder, s S, _ unsafe.Pointer) {
			v := get(s)
			e.String(*(*string)(unsafe.Pointer(&v)))
		}
	case k == KindBool && t.Kind() == reflect.Bool:
		return func(e Encoder, s S, _ unsafe.Pointer) {
			v := get(s)
			e.Bool(*(*bool)(unsafe.Pointer(&v)))
		}
	}
	return nil
}

// ConstColumn resolves a column that writes v for every element. A v holding
// no value (nil pointer, nil interface, nil slice, invalid nullable) yields a
// suppressed column.
func ConstColumn[S, V any](name string, v V, utc bool) (Column[S], error) {
	r, err := resolve(reflect.TypeFor[V](), utc)
	if err != nil {
		return Column[S]{}, fmt.Errorf("constant %q: %w", name, err)
	}
	p := unsafe.Pointer(&v)
	col := Column[S]{Name: name, Kind: r.kind, Nullable: r.nullable}
	if r.null != nil && r.null(p) {
		return col, nil
	}
	enc := r.enc
	col.Cell = func(e Encoder, _ S, _ unsafe.Pointer) { enc(e, p) }
	return col, nil
}

// BlankColumn is a named column that is always empty.
func BlankColumn[S any](name string) Column[S] {
	return Column[S]{Name: name, Kind: KindBlank, Nullable: true}
}

// MapSpec builds the projection of elements mapped through fn to a struct R.
// Exported fields of R become columns in declaration order. Embedded structs
// are flattened unless their type has an encoding of its own. The csv tag
// renames a column ("name"), skips a field ("-") or selects the UTC
// date-time form (",utc").
func MapSpec[S, R any](fn func(S) R) (Spec[S], error) {
	rt := reflect.TypeFor[R]()
	if fn == nil {
		return Spec[S]{}, fmt.Errorf("%w: nil map function", ErrInvalidShape)
	}
	if rt.Kind() != reflect.Struct {
		return Spec[S]{}, fmt.Errorf("%w: map target %s is not a struct", ErrInvalidShape, rt)
	}
	fields, err := structFields(rt, 0, nil)
	if err != nil {
		return Spec[S]{}, fmt.Errorf("%s: %w", rt, err)
	}
	if len(fields) == 0 {
		return Spec[S]{}, fmt.Errorf("%w: %s has no exported fields", ErrInvalidShape, rt)
	}

	cols := make([]Column[S], len(fields))
	for i, f := range fields {
		off, enc := f.offset, f.r.enc
		cols[i] = Column[S]{
			Name:     f.name,
			Kind:     f.r.kind,
			Nullable: f.r.nullable,
			Cell: func(e Encoder, _ S, rec unsafe.Pointer) {
				enc(e, unsafe.Add(rec, off))
			},
		}
	}
	return Spec[S]{
		Columns:   cols,
		Fill:      func(s S, rec unsafe.Pointer) { *(*R)(rec) = fn(s) },
		NewRecord: func() unsafe.Pointer { return unsafe.Pointer(new(R)) },
	}, nil
}

type structField struct {
	name   string
	offset uintptr
	r      resolved
}

func structFields(t reflect.Type, base uintptr, out []structField) ([]structField, error) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, opts, _ := strings.Cut(f.Tag.Get("csv"), ",")
		if name == "-" && opts == "" {
			continue
		}
		utc := hasOption(opts, "utc")

		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct && !hasEncoding(f.Type) {
			var err error
			if out, err = structFields(f.Type, base+f.Offset, out); err != nil {
				return nil, err
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		r, err := resolve(f.Type, utc)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		out = append(out, structField{name: name, offset: base + f.Offset, r: r})
	}
	return out, nil
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var o string
		o, opts, _ = strings.Cut(opts, ",")
		if o == want {
			return true
		}
	}
	return false
}

func hasEncoding(t reflect.Type) bool {
	_, err := resolve(t, false)
	return err == nil
}
