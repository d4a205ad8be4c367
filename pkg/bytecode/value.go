package bytecode

import (
	"math"
	"strconv"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	ValNil ValueKind = iota
	ValBool
	ValNumber
)

func (k ValueKind) String() string {
	switch k {
	case ValNil:
		return "nil"
	case ValBool:
		return "bool"
	case ValNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Value is the tagged runtime value of the full language. The VM only
// executes numbers today; Value is used to present results.
type Value struct {
	Kind   ValueKind
	bool   bool
	number float64
}

// Nil returns the nil value.
func Nil() Value { return Value{Kind: ValNil} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{Kind: ValBool, bool: b} }

// Number wraps a float64.
func Number(n float64) Value { return Value{Kind: ValNumber, number: n} }

// AsBool returns the boolean and whether the value is a bool.
func (v Value) AsBool() (bool, bool) {
	return v.bool, v.Kind == ValBool
}

// AsNumber returns the number and whether the value is a number.
func (v Value) AsNumber() (float64, bool) {
	return v.number, v.Kind == ValNumber
}

func (v Value) String() string {
	switch v.Kind {
	case ValBool:
		return strconv.FormatBool(v.bool)
	case ValNumber:
		return FormatNumber(v.number)
	default:
		return "nil"
	}
}

// FormatNumber renders a number the way results are printed: integral
// values without a fraction, special values as NaN, Infinity and -Infinity.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case math.Abs(n) < 1e21:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
}
