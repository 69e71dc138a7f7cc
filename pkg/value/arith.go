package value

import (
	"math"

	"github.com/chain/txvm/errors"
	"github.com/chain/txvm/math/checked"
)

var (
	// ErrDivisionByZero is returned when the divisor of a division,
	// integer division or modulo is exactly Integer 0 or Float 0.0.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrIntegerOverflow is returned when an Integer result does not fit
	// in 32 bits.
	ErrIntegerOverflow = errors.New("integer overflow")

	// ErrNegativeExponent is returned by Pow when both operands are
	// Integer and the exponent is negative.
	ErrNegativeExponent = errors.New("negative integer exponent")
)

type intFunc func(a, b int64) (int64, bool)

type floatFunc func(a, b float64) float64

// binop applies the promotion rule shared by every arithmetic operator.
// Integer operands are widened to int64 so the checked result can be
// range-tested against int32.
func binop(name string, a, b Value, fi intFunc, ff floatFunc) (Value, error) {
	if a.kind == KindInt && b.kind == KindInt {
		r, ok := fi(int64(a.i), int64(b.i))
		if !ok || !fitsInt32(r) {
			return Value{}, errors.WithData(errors.Wrap(ErrIntegerOverflow, name), "left", a, "right", b)
		}
		return Int(int32(r)), nil
	}
	return Float(ff(a.AsFloat(), b.AsFloat())), nil
}

func fitsInt32(n int64) bool {
	return n >= math.MinInt32 && n <= math.MaxInt32
}

// Add returns a + b.
func Add(a, b Value) (Value, error) {
	return binop("add", a, b, checked.AddInt64, func(x, y float64) float64 { return x + y })
}

// Sub returns a - b.
func Sub(a, b Value) (Value, error) {
	return binop("sub", a, b, checked.SubInt64, func(x, y float64) float64 { return x - y })
}

// Mul returns a * b.
func Mul(a, b Value) (Value, error) {
	return binop("mul", a, b, checked.MulInt64, func(x, y float64) float64 { return x * y })
}

// Mod returns the remainder of a / b, truncated toward zero. The result
// has the sign of a on both the Integer and Float paths.
func Mod(a, b Value) (Value, error) {
	if b.IsZero() {
		return Value{}, errors.Wrap(ErrDivisionByZero, "mod")
	}
	return binop("mod", a, b, checked.ModInt64, math.Mod)
}

// Div returns a / b as a Float, even when both operands are Integer.
func Div(a, b Value) (Value, error) {
	if b.IsZero() {
		return Value{}, errors.Wrap(ErrDivisionByZero, "div")
	}
	return Float(a.AsFloat() / b.AsFloat()), nil
}

// IDiv divides like Div and truncates the quotient toward zero, producing
// an Integer.
func IDiv(a, b Value) (Value, error) {
	q, err := Div(a, b)
	if err != nil {
		return Value{}, errors.Wrap(err, "idiv")
	}
	if q.kind == KindInt {
		return q, nil
	}
	t := math.Trunc(q.f)
	if math.IsNaN(t) || t < math.MinInt32 || t > math.MaxInt32 {
		return Value{}, errors.WithData(errors.Wrap(ErrIntegerOverflow, "idiv"), "quotient", q)
	}
	return Int(int32(t)), nil
}

// Pow returns a raised to b. With two Integer operands the exponent must be
// non-negative; 0^0 is 1.
func Pow(a, b Value) (Value, error) {
	if a.kind == KindInt && b.kind == KindInt && b.i < 0 {
		return Value{}, errors.WithData(errors.Wrap(ErrNegativeExponent, "pow"), "exponent", b)
	}
	return binop("pow", a, b, ipow, math.Pow)
}

// ipow computes base^exp for exp >= 0. For |base| >= 2 the result leaves
// the int32 range within 32 steps, so the loop stops as soon as it does.
func ipow(base, exp int64) (int64, bool) {
	switch base {
	case 0:
		if exp == 0 {
			return 1, true
		}
		return 0, true
	case 1:
		return 1, true
	case -1:
		if exp%2 == 0 {
			return 1, true
		}
		return -1, true
	}
	r := int64(1)
	for ; exp > 0; exp-- {
		var ok bool
		r, ok = checked.MulInt64(r, base)
		if !ok || !fitsInt32(r) {
			return 0, false
		}
	}
	return r, true
}
