// Package value implements the numeric value model executed by the Plum
// bytecode VM.
//
// A Value is either an Integer (32-bit signed) or a Float (64-bit IEEE 754).
// Values are small immutable structs and are always copied, never shared.
//
// Arithmetic follows a single promotion rule: if both operands are Integer
// the integer form of the operator is applied and the result is an Integer;
// otherwise both operands are promoted to Float and the float form is
// applied. Division is the exception: it always produces a Float and rejects
// an exact-zero divisor instead of producing an infinity or NaN.
//
// Integer arithmetic is checked. Any Integer result that does not fit in 32
// bits fails with ErrIntegerOverflow rather than wrapping.
package value

import (
	"math"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindInt Kind = iota
	KindFloat
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a tagged numeric union. The zero Value is Int(0).
type Value struct {
	kind Kind
	i    int32
	f    float64
}

// Int returns an Integer value.
func Int(n int32) Value {
	return Value{kind: KindInt, i: n}
}

// Float returns a Float value.
func Float(f float64) Value {
	return Value{kind: KindFloat, f: f}
}

// Kind returns the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsInt reports whether v is an Integer.
func (v Value) IsInt() bool { return v.kind == KindInt }

// IsFloat reports whether v is a Float.
func (v Value) IsFloat() bool { return v.kind == KindFloat }

// AsInt returns the Integer payload. It is only meaningful when IsInt is true.
func (v Value) AsInt() int32 { return v.i }

// AsFloat returns v as a float64, promoting an Integer.
func (v Value) AsFloat() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// IsZero reports whether v is exactly Integer 0 or Float 0.0 (either sign).
func (v Value) IsZero() bool {
	if v.kind == KindInt {
		return v.i == 0
	}
	return v.f == 0
}

// Truthy converts v to a branch condition: every nonzero value is true.
// NaN is nonzero and therefore true.
func (v Value) Truthy() bool {
	return !v.IsZero()
}

// Equal reports whether a and b hold the same variant and payload.
// Float payloads are compared bitwise so NaN equals itself.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	if a.kind == KindInt {
		return a.i == b.i
	}
	return math.Float64bits(a.f) == math.Float64bits(b.f)
}

// String renders v in its natural decimal form without a type tag.
// A whole Float prints without a fractional part ("5", not "5.0").
func (v Value) String() string {
	if v.kind == KindInt {
		return strconv.FormatInt(int64(v.i), 10)
	}
	switch {
	case math.IsNaN(v.f):
		return "NaN"
	case math.IsInf(v.f, 1):
		return "inf"
	case math.IsInf(v.f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v.f, 'f', -1, 64)
}

// GoString renders v with its kind, for %#v and test failure output.
func (v Value) GoString() string {
	if v.kind == KindInt {
		return "value.Int(" + v.String() + ")"
	}
	return "value.Float(" + v.String() + ")"
}
