package projection

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedType is returned at compile time for a field whose type
	// has no encoding: channels, functions, maps, complex numbers and structs
	// without a text conversion.
	ErrUnsupportedType = errors.New("projection: unsupported field type")
	// ErrInvalidShape is returned for malformed projections: a non-struct map
	// target, no columns, an empty column name or a nil accessor.
	ErrInvalidShape = errors.New("projection: invalid shape")
	// ErrNilSequence is returned for an untyped nil, nil channel or nil
	// iterator function. A nil slice is an empty sequence.
	ErrNilSequence = errors.New("projection: nil sequence")
	// ErrNotSequence is returned when the data is not a slice, array, receive
	// channel or iterator function.
	ErrNotSequence = errors.New("projection: not a sequence")
)

// EncodeError reports a value whose conversion to text failed while a record
// was being encoded.
type EncodeError struct {
	Field string
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("projection: encode field %q: %v", e.Field, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// encodePanic carries a conversion error out of a cell encoder. Cells have no
// error return; the record loop recovers this type and nothing else.
type encodePanic struct{ err error }

func fail(err error) { panic(encodePanic{err}) }
