package projection

import (
	"database/sql/driver"
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unsafe"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"recordcsv/internal/buffer"
)

// Encoder is the buffer surface cells write through.
type Encoder = buffer.Encoder

// encodeFunc writes the value stored at p.
type encodeFunc func(e Encoder, p unsafe.Pointer)

type resolved struct {
	kind     Kind
	nullable bool
	enc      encodeFunc
	// null reports whether the value at p holds no value. Nil for kinds that
	// always have one.
	null func(p unsafe.Pointer) bool
}

var (
	timeType          = reflect.TypeFor[time.Time]()
	uuidType          = reflect.TypeFor[uuid.UUID]()
	numericType       = reflect.TypeFor[pgtype.Numeric]()
	valuerType        = reflect.TypeFor[driver.Valuer]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	stringerType      = reflect.TypeFor[fmt.Stringer]()
)

const pgtypePath = "github.com/jackc/pgx/v5/pgtype"

// pgtype wrappers whose first field is the value and which carry a Valid flag.
// Other pgtype structs go through driver.Valuer.
var pgNullable = map[string]bool{
	"Bool": true, "Date": true, "Float4": true, "Float8": true,
	"Int2": true, "Int4": true, "Int8": true, "Text": true,
	"Timestamp": true, "Timestamptz": true, "UUID": true, "Uint32": true,
}

// resolve picks the encoding for values of type t. utc selects the UTC
// date-time form for time.Time values, including nullable ones.
func resolve(t reflect.Type, utc bool) (resolved, error) {
	switch {
	case t == timeType:
		if utc {
			return resolved{kind: KindTime, enc: func(e Encoder, p unsafe.Pointer) {
				e.Time(*(*time.Time)(p))
			}}, nil
		}
		return resolved{kind: KindTimeOffset, enc: func(e Encoder, p unsafe.Pointer) {
			e.TimeOffset(*(*time.Time)(p))
		}}, nil
	case t == numericType:
		return resolved{
			kind:     KindNumeric,
			nullable: true,
			enc:      func(e Encoder, p unsafe.Pointer) { e.Numeric(*(*pgtype.Numeric)(p)) },
			null:     func(p unsafe.Pointer) bool { return !(*pgtype.Numeric)(p).Valid },
		}, nil
	case isUUID(t):
		return resolved{kind: KindUUID, enc: func(e Encoder, p unsafe.Pointer) {
			e.UUID(*(*uuid.UUID)(p))
		}}, nil
	}

	if r, ok, err := resolveNullable(t, utc); ok {
		return r, err
	}
	if r, ok := resolveConversion(t); ok {
		return r, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return native(KindBool, func(e Encoder, p unsafe.Pointer) { e.Bool(*(*bool)(p)) }), nil
	case reflect.Int:
		return native(KindInt, func(e Encoder, p unsafe.Pointer) { e.Int64(int64(*(*int)(p))) }), nil
	case reflect.Int8:
		return native(KindInt, func(e Encoder, p unsafe.Pointer) { e.Int64(int64(*(*int8)(p))) }), nil
	case reflect.Int16:
		return native(KindInt, func(e Encoder, p unsafe.Pointer) { e.Int64(int64(*(*int16)(p))) }), nil
	case reflect.Int32:
		return native(KindInt, func(e Encoder, p unsafe.Pointer) { e.Int64(int64(*(*int32)(p))) }), nil
	case reflect.Int64:
		return native(KindInt, func(e Encoder, p unsafe.Pointer) { e.Int64(*(*int64)(p)) }), nil
	case reflect.Uint:
		return native(KindUint, func(e Encoder, p unsafe.Pointer) { e.Uint64(uint64(*(*uint)(p))) }), nil
	case reflect.Uint8:
		return native(KindUint, func(e Encoder, p unsafe.Pointer) { e.Uint64(uint64(*(*uint8)(p))) }), nil
	case reflect.Uint16:
		return native(KindUint, func(e Encoder, p unsafe.Pointer) { e.Uint64(uint64(*(*uint16)(p))) }), nil
	case reflect.Uint32:
		return native(KindUint, func(e Encoder, p unsafe.Pointer) { e.Uint64(uint64(*(*uint32)(p))) }), nil
	case reflect.Uint64:
		return native(KindUint, func(e Encoder, p unsafe.Pointer) { e.Uint64(*(*uint64)(p)) }), nil
	case reflect.Uintptr:
		return native(KindUint, func(e Encoder, p unsafe.Pointer) { e.Uint64(uint64(*(*uintptr)(p))) }), nil
	case reflect.Float32:
		return native(KindFloat32, func(e Encoder, p unsafe.Pointer) { e.Float32(*(*float32)(p)) }), nil
	case reflect.Float64:
		return native(KindFloat64, func(e Encoder, p unsafe.Pointer) { e.Float64(*(*float64)(p)) }), nil
	case reflect.String:
		return native(KindString, func(e Encoder, p unsafe.Pointer) { e.String(*(*string)(p)) }), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return resolved{
				kind:     KindBytes,
				nullable: true,
				enc: func(e Encoder, p unsafe.Pointer) {
					if b := *(*[]byte)(p); b != nil {
						e.Text(b)
					}
				},
				null: func(p unsafe.Pointer) bool { return *(*[]byte)(p) == nil },
			}, nil
		}
	case reflect.Pointer:
		inner, err := resolve(t.Elem(), utc)
		if err != nil {
			return resolved{}, err
		}
		return resolved{
			kind:     inner.kind,
			nullable: true,
			enc: func(e Encoder, p unsafe.Pointer) {
				if q := *(*unsafe.Pointer)(p); q != nil {
					inner.enc(e, q)
				}
			},
			null: func(p unsafe.Pointer) bool { return *(*unsafe.Pointer)(p) == nil },
		}, nil
	case reflect.Interface:
		return resolveInterface(t), nil
	}
	return resolved{}, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

func native(k Kind, enc encodeFunc) resolved {
	return resolved{kind: k, enc: enc}
}

func isUUID(t reflect.Type) bool {
	if t == uuidType {
		return true
	}
	return t.Kind() == reflect.Array && t.Len() == 16 && t.Elem().Kind() == reflect.Uint8 &&
		(t.Name() == "" || t.Name() == "UUID")
}

// resolveNullable handles database/sql Null types and the value-first pgtype
// wrappers: a value field followed by a Valid flag and, for date-times, an
// InfinityModifier.
func resolveNullable(t reflect.Type, utc bool) (resolved, bool, error) {
	if t.Kind() != reflect.Struct || t.NumField() < 2 {
		return resolved{}, false, nil
	}
	switch t.PkgPath() {
	case "database/sql":
		if !strings.HasPrefix(t.Name(), "Null") {
			return resolved{}, false, nil
		}
	case pgtypePath:
		if !pgNullable[t.Name()] {
			return resolved{}, false, nil
		}
	default:
		return resolved{}, false, nil
	}
	valid, ok := t.FieldByName("Valid")
	if !ok || valid.Type.Kind() != reflect.Bool {
		return resolved{}, false, nil
	}
	value := t.Field(0)
	inner, err := resolve(value.Type, utc)
	if err != nil {
		return resolved{}, true, fmt.Errorf("%s: %w", t, err)
	}

	validOff, valueOff := valid.Offset, value.Offset
	isNull := func(p unsafe.Pointer) bool { return !*(*bool)(unsafe.Add(p, validOff)) }
	r := resolved{kind: inner.kind, nullable: true, null: isNull}

	inf, ok := t.FieldByName("InfinityModifier")
	if !ok || inf.Type.Kind() != reflect.Int8 {
		r.enc = func(e Encoder, p unsafe.Pointer) {
			if *(*bool)(unsafe.Add(p, validOff)) {
				inner.enc(e, unsafe.Add(p, valueOff))
			}
		}
		return r, true, nil
	}
	infOff := inf.Offset
	r.enc = func(e Encoder, p unsafe.Pointer) {
		if !*(*bool)(unsafe.Add(p, validOff)) {
			return
		}
		switch m := *(*int8)(unsafe.Add(p, infOff)); {
		case m > 0:
			e.String("infinity")
		case m < 0:
			e.String("-infinity")
		default:
			inner.enc(e, unsafe.Add(p, valueOff))
		}
	}
	return r, true, nil
}

// resolveConversion handles types that convert themselves: driver.Valuer
// first, then encoding.TextMarshaler, then fmt.Stringer. Pointer-receiver
// methods are honored since p always addresses the value. Pointer and
// interface types are resolved by their own cases.
func resolveConversion(t reflect.Type) (resolved, bool) {
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return resolved{}, false
	}
	if ok, viaPtr := implements(t, valuerType); ok {
		box := boxer(t, viaPtr)
		return resolved{kind: KindDynamic, nullable: true, enc: func(e Encoder, p unsafe.Pointer) {
			v, err := box(p).(driver.Valuer).Value()
			if err != nil {
				fail(err)
			}
			encodeAny(e, v)
		}}, true
	}
	if ok, viaPtr := implements(t, textMarshalerType); ok {
		box := boxer(t, viaPtr)
		return resolved{kind: KindText, enc: func(e Encoder, p unsafe.Pointer) {
			b, err := box(p).(encoding.TextMarshaler).MarshalText()
			if err != nil {
				fail(err)
			}
			e.Text(b)
		}}, true
	}
	if ok, viaPtr := implements(t, stringerType); ok {
		box := boxer(t, viaPtr)
		return resolved{kind: KindText, enc: func(e Encoder, p unsafe.Pointer) {
			e.String(box(p).(fmt.Stringer).String())
		}}, true
	}
	return resolved{}, false
}

func implements(t, iface reflect.Type) (ok, viaPtr bool) {
	if t.Implements(iface) {
		return true, false
	}
	if reflect.PointerTo(t).Implements(iface) {
		return true, true
	}
	return false, false
}

func boxer(t reflect.Type, viaPtr bool) func(p unsafe.Pointer) any {
	if viaPtr {
		return func(p unsafe.Pointer) any { return reflect.NewAt(t, p).Interface() }
	}
	return func(p unsafe.Pointer) any { return reflect.NewAt(t, p).Elem().Interface() }
}

func resolveInterface(t reflect.Type) resolved {
	if t.NumMethod() == 0 {
		return resolved{
			kind:     KindDynamic,
			nullable: true,
			enc:      func(e Encoder, p unsafe.Pointer) { encodeAny(e, *(*any)(p)) },
			null:     func(p unsafe.Pointer) bool { return *(*any)(p) == nil },
		}
	}
	return resolved{
		kind:     KindDynamic,
		nullable: true,
		enc: func(e Encoder, p unsafe.Pointer) {
			encodeAny(e, reflect.NewAt(t, p).Elem().Interface())
		},
		null: func(p unsafe.Pointer) bool { return reflect.NewAt(t, p).Elem().IsNil() },
	}
}

// encodeAny writes a value whose type is only known at encode time. It covers
// everything database drivers return from a row scan.
func encodeAny(e Encoder, v any) {
	switch v := v.(type) {
	case nil:
	case string:
		e.String(v)
	case []byte:
		if v != nil {
			e.Text(v)
		}
	case bool:
		e.Bool(v)
	case int:
		e.Int64(int64(v))
	case int8:
		e.Int64(int64(v))
	case int16:
		e.Int64(int64(v))
	case int32:
		e.Int64(int64(v))
	case int64:
		e.Int64(v)
	case uint:
		e.Uint64(uint64(v))
	case uint8:
		e.Uint64(uint64(v))
	case uint16:
		e.Uint64(uint64(v))
	case uint32:
		e.Uint64(uint64(v))
	case uint64:
		e.Uint64(v)
	case float32:
		e.Float32(v)
	case float64:
		e.Float64(v)
	case time.Time:
		e.TimeOffset(v)
	case uuid.UUID:
		e.UUID(v)
	case [16]byte:
		e.UUID(v)
	case pgtype.Numeric:
		e.Numeric(v)
	case driver.Valuer:
		if isNilPointer(v) {
			return
		}
		val, err := v.Value()
		if err != nil {
			fail(err)
		}
		encodeAny(e, val)
	case encoding.TextMarshaler:
		if isNilPointer(v) {
			return
		}
		b, err := v.MarshalText()
		if err != nil {
			fail(err)
		}
		e.Text(b)
	case fmt.Stringer:
		if isNilPointer(v) {
			return
		}
		e.String(v.String())
	default:
		encodeReflect(e, reflect.ValueOf(v))
	}
}

func encodeReflect(e Encoder, rv reflect.Value) {
	switch rv.Kind() {
	case reflect.Bool:
		e.Bool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.Int64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.Uint64(rv.Uint())
	case reflect.Float32:
		e.Float32(float32(rv.Float()))
	case reflect.Float64:
		e.Float64(rv.Float())
	case reflect.String:
		e.String(rv.String())
	case reflect.Pointer, reflect.Interface:
		if !rv.IsNil() {
			encodeAny(e, rv.Elem().Interface())
		}
	case reflect.Slice, reflect.Map:
		if rv.IsNil() {
			return
		}
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			e.Text(rv.Bytes())
			return
		}
		encodeJSON(e, rv.Interface())
	case reflect.Array, reflect.Struct:
		encodeJSON(e, rv.Interface())
	default:
		e.String(fmt.Sprint(rv.Interface()))
	}
}

// encodeJSON writes composite values (json and array columns) as JSON text.
func encodeJSON(e Encoder, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		fail(err)
	}
	e.Text(b)
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
