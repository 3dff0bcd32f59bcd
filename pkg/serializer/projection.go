package serializer

import (
	"fmt"
	"io"
	"reflect"

	"recordcsv/internal/projection"
)

// Projection describes how elements of one source type become CSV columns.
// Build one with Map or Fields and register it with Serializer.Add.
type Projection interface {
	elemType() reflect.Type
	compile(f projection.Format) (compiled, error)
}

// compiled is a frozen projection bound to its element type.
type compiled interface {
	Names() []string
	Kinds() []projection.Kind
	WriteBytes(w io.Writer, seq any, hint int) (int, error)
	WriteUnits(w UnitWriter, seq any, hint int) (int, error)
}

// Map projects each element through fn. The exported fields of the struct R
// become the columns, in declaration order; embedded structs are flattened.
// The csv struct tag renames a column (`csv:"name"`), skips a field
// (`csv:"-"`) or writes a date-time in UTC (`csv:",utc"`).
func Map[S, R any](fn func(S) R) Projection {
	return mapProjection[S, R]{fn: fn}
}

type mapProjection[S, R any] struct {
	fn func(S) R
}

func (mapProjection[S, R]) elemType() reflect.Type { return reflect.TypeFor[S]() }

func (m mapProjection[S, R]) compile(f projection.Format) (compiled, error) {
	spec, err := projection.MapSpec(m.fn)
	if err != nil {
		return nil, err
	}
	plan, err := projection.Compile(spec, f)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// Fields projects each element through an explicit, ordered list of columns.
func Fields[S any](specs ...FieldSpec[S]) Projection {
	return fieldsProjection[S]{specs: specs}
}

type fieldsProjection[S any] struct {
	specs []FieldSpec[S]
}

func (fieldsProjection[S]) elemType() reflect.Type { return reflect.TypeFor[S]() }

func (p fieldsProjection[S]) compile(f projection.Format) (compiled, error) {
	cols := make([]projection.Column[S], 0, len(p.specs))
	for i, spec := range p.specs {
		if spec.build == nil {
			return nil, fmt.Errorf("%w: column %d is empty", projection.ErrInvalidShape, i)
		}
		col, err := spec.build()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	plan, err := projection.Compile(projection.Spec[S]{Columns: cols}, f)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// FieldSpec is one column of a Fields projection.
type FieldSpec[S any] struct {
	build func() (projection.Column[S], error)
}

// FieldOption adjusts a single column.
type FieldOption func(*fieldConfig)

type fieldConfig struct {
	utc bool
}

// UTC writes date-time values converted to UTC with a Z suffix instead of
// with their own offset.
func UTC() FieldOption {
	return func(c *fieldConfig) { c.utc = true }
}

func applyFieldOptions(opts []FieldOption) fieldConfig {
	var c fieldConfig
	for _, o := range opts {
		o(&c)
	}
	return c
}

// Field is a column whose value is extracted from each element by get.
func Field[S, V any](name string, get func(S) V, opts ...FieldOption) FieldSpec[S] {
	c := applyFieldOptions(opts)
	return FieldSpec[S]{build: func() (projection.Column[S], error) {
		return projection.FieldColumn(name, get, c.utc)
	}}
}

// Const is a column that holds v for every element. A v with no value (nil
// pointer or interface, invalid sql.Null or pgtype value) leaves the cell
// empty in every record.
func Const[S, V any](name string, v V, opts ...FieldOption) FieldSpec[S] {
	c := applyFieldOptions(opts)
	return FieldSpec[S]{build: func() (projection.Column[S], error) {
		return projection.ConstColumn[S](name, v, c.utc)
	}}
}

// Blank is a named column that is always empty.
func Blank[S any](name string) FieldSpec[S] {
	return FieldSpec[S]{build: func() (projection.Column[S], error) {
		return projection.BlankColumn[S](name), nil
	}}
}
