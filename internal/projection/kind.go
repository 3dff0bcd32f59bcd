package projection

import "fmt"

// Kind is the encoding a column resolves to at compile time.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindUint
	KindFloat32
	KindFloat64
	KindNumeric
	KindBool
	KindString
	KindBytes
	KindTime
	KindTimeOffset
	KindUUID
	// KindText covers values written through MarshalText or String.
	KindText
	// KindDynamic picks the encoding per value: interface fields and
	// driver.Valuer implementations.
	KindDynamic
	// KindBlank is a column that never emits content.
	KindBlank
)

var kindNames = [...]string{
	KindInvalid:    "invalid",
	KindInt:        "int",
	KindUint:       "uint",
	KindFloat32:    "float32",
	KindFloat64:    "float64",
	KindNumeric:    "numeric",
	KindBool:       "bool",
	KindString:     "string",
	KindBytes:      "bytes",
	KindTime:       "time",
	KindTimeOffset: "time-offset",
	KindUUID:       "uuid",
	KindText:       "text",
	KindDynamic:    "dynamic",
	KindBlank:      "blank",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}
