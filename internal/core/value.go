// Package core contains the single source of truth for the engine's data
// model: SQL scalar values and their types, table schemas, rows, and the
// error kinds every other package reports. All value arithmetic, comparison,
// and ordering rules live here so the planner and executor never reimplement
// them.
package core

import (
	"fmt"
	"strconv"
)

// Type is a declared column type.
type Type int

const (
	TypeInt Type = iota
	TypeBool
	TypeText
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "INT"
	case TypeBool:
		return "BOOLEAN"
	case TypeText:
		return "TEXT"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Kind tags a Value. Null is a kind, not a type: a Null value inhabits
// every column type.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindBool
	KindText
)

// Value is a tagged SQL scalar: Null, Int64, Bool, or Text.
type Value struct {
	kind Kind
	i    int64
	s    string
}

// Null is the SQL NULL value.
var Null = Value{kind: KindNull}

func NewInt(i int64) Value   { return Value{kind: KindInt, i: i} }
func NewText(s string) Value { return Value{kind: KindText, s: s} }

func NewBool(b bool) Value {
	if b {
		return Value{kind: KindBool, i: 1}
	}
	return Value{kind: KindBool}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int returns the int64 payload. Valid for KindInt and KindBool values.
func (v Value) Int() int64 { return v.i }

// Bool returns the bool payload. Valid for KindBool values.
func (v Value) Bool() bool { return v.i != 0 }

// Text returns the string payload. Valid for KindText values.
func (v Value) Text() string { return v.s }

// String renders the value the way the REPL prints it.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindBool:
		if v.i != 0 {
			return "true"
		}
		return "false"
	case KindText:
		return v.s
	}
	return "?"
}

// TypeOf reports the column type a non-null value belongs to. Null has no
// type of its own; callers must check IsNull first.
func (v Value) TypeOf() Type {
	switch v.kind {
	case KindBool:
		return TypeBool
	case KindText:
		return TypeText
	default:
		return TypeInt
	}
}

// asInt promotes the value to an integer for arithmetic and numeric
// comparison. Bool promotes to 0/1; Null and Text do not promote.
func (v Value) asInt() (int64, bool) {
	switch v.kind {
	case KindInt, KindBool:
		return v.i, true
	default:
		return 0, false
	}
}

// Truthy reports how a filter treats the value: true keeps the row,
// false and Null drop it.
func (v Value) Truthy() bool {
	b, known := v.booleanize()
	return known && b
}

// booleanize coerces a value into three-valued boolean space. Ints follow
// the zero-is-false rule, Text is false, Null is unknown.
func (v Value) booleanize() (b, known bool) {
	switch v.kind {
	case KindNull:
		return false, false
	case KindText:
		return false, true
	default:
		return v.i != 0, true
	}
}

// BinaryArith is the shared entry for + - * /. Bool operands promote to
// ints; a Null or Text operand makes the result Null rather than an error,
// so type-confused filters select nothing instead of failing.
func BinaryArith(op string, a, b Value) (Value, error) {
	x, okx := a.asInt()
	y, oky := b.asInt()
	if !okx || !oky {
		return Null, nil
	}
	switch op {
	case "+":
		return NewInt(x + y), nil
	case "-":
		return NewInt(x - y), nil
	case "*":
		return NewInt(x * y), nil
	case "/":
		if y == 0 {
			return Null, ErrDivisionByZero
		}
		return NewInt(x / y), nil
	}
	return Null, fmt.Errorf("unsupported arithmetic operator %q", op)
}

// Neg is unary minus under the same promotion rules.
func Neg(v Value) Value {
	if x, ok := v.asInt(); ok {
		return NewInt(-x)
	}
	return Null
}

// Abs is the abs() builtin under the same promotion rules.
func Abs(v Value) Value {
	x, ok := v.asInt()
	if !ok {
		return Null
	}
	if x < 0 {
		x = -x
	}
	return NewInt(x)
}

// Compare evaluates a SQL comparison and returns a Bool or Null value.
// Null against anything is Null; Text against a non-Text is Null; bools
// promote to ints so `true > 0` holds.
func Compare(op string, a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null, nil
	}
	var cmp int
	if a.kind == KindText || b.kind == KindText {
		if a.kind != KindText || b.kind != KindText {
			return Null, nil
		}
		switch {
		case a.s < b.s:
			cmp = -1
		case a.s > b.s:
			cmp = 1
		}
	} else {
		x, _ := a.asInt()
		y, _ := b.asInt()
		switch {
		case x < y:
			cmp = -1
		case x > y:
			cmp = 1
		}
	}
	switch op {
	case "=":
		return NewBool(cmp == 0), nil
	case "<>":
		return NewBool(cmp != 0), nil
	case "<":
		return NewBool(cmp < 0), nil
	case "<=":
		return NewBool(cmp <= 0), nil
	case ">":
		return NewBool(cmp > 0), nil
	case ">=":
		return NewBool(cmp >= 0), nil
	}
	return Null, fmt.Errorf("unsupported comparison operator %q", op)
}

// And evaluates three-valued AND: false AND Null is false, true AND Null
// is Null. Non-boolean operands are coerced via booleanize.
func And(a, b Value) Value {
	x, kx := a.booleanize()
	y, ky := b.booleanize()
	if (kx && !x) || (ky && !y) {
		return NewBool(false)
	}
	if !kx || !ky {
		return Null
	}
	return NewBool(true)
}

// Or evaluates three-valued OR: true OR Null is true, false OR Null is Null.
func Or(a, b Value) Value {
	x, kx := a.booleanize()
	y, ky := b.booleanize()
	if (kx && x) || (ky && y) {
		return NewBool(true)
	}
	if !kx || !ky {
		return Null
	}
	return NewBool(false)
}

// Not evaluates three-valued NOT.
func Not(v Value) Value {
	b, known := v.booleanize()
	if !known {
		return Null
	}
	return NewBool(!b)
}

// typeRank orders kinds for cross-type sorting: Null < Bool < Int < Text.
func typeRank(k Kind) int {
	switch k {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindInt:
		return 2
	default:
		return 3
	}
}

// OrderCompare is the total order used by ORDER BY and by the key codec
// contract. Nulls sort first, bools and ints compare numerically, texts
// lexicographically; pairs that cannot be compared numerically fall back
// to the type rank, and the rank also breaks exact bool/int numeric ties
// so the order stays antisymmetric.
func OrderCompare(a, b Value) int {
	ra, rb := typeRank(a.kind), typeRank(b.kind)
	x, okx := a.asInt()
	y, oky := b.asInt()
	if okx && oky {
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return cmpInt(ra, rb)
	}
	if a.kind == KindText && b.kind == KindText {
		switch {
		case a.s < b.s:
			return -1
		case a.s > b.s:
			return 1
		}
		return 0
	}
	return cmpInt(ra, rb)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Equal reports byte-for-byte value identity, used by round-trip tests and
// duplicate detection. Unlike Compare, Null equals Null here.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.i == o.i && v.s == o.s
}
