package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryArith(t *testing.T) {
	tests := []struct {
		name string
		op   string
		a, b Value
		want Value
	}{
		{"int addition", "+", NewInt(2), NewInt(3), NewInt(5)},
		{"int subtraction", "-", NewInt(2), NewInt(3), NewInt(-1)},
		{"int multiplication", "*", NewInt(4), NewInt(5), NewInt(20)},
		{"int division", "/", NewInt(9), NewInt(2), NewInt(4)},
		{"bool promotes to int", "+", NewBool(true), NewInt(1), NewInt(2)},
		{"two bools", "+", NewBool(true), NewBool(true), NewInt(2)},
		{"null propagates left", "+", Null, NewInt(1), Null},
		{"null propagates right", "*", NewInt(1), Null, Null},
		{"text is null not error", "+", NewText("abc"), NewInt(1), Null},
		{"wrapping overflow", "+", NewInt(1<<63 - 1), NewInt(1), NewInt(-1 << 63)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BinaryArith(tt.op, tt.a, tt.b)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	_, err := BinaryArith("/", NewInt(1), NewInt(0))
	require.ErrorIs(t, err, ErrDivisionByZero)

	// Null and Text short-circuit before the division is attempted.
	_, err = BinaryArith("/", Null, NewInt(0))
	require.NoError(t, err)
	_, err = BinaryArith("/", NewText("x"), NewInt(0))
	require.NoError(t, err)
}

func TestNegAndAbs(t *testing.T) {
	assert.True(t, NewInt(-4).Equal(Neg(NewInt(4))))
	assert.True(t, NewInt(-1).Equal(Neg(NewBool(true))))
	assert.True(t, Null.Equal(Neg(Null)))
	assert.True(t, Null.Equal(Neg(NewText("4"))))

	assert.True(t, NewInt(4).Equal(Abs(NewInt(-4))))
	assert.True(t, NewInt(1).Equal(Abs(NewBool(true))))
	assert.True(t, NewInt(0).Equal(Abs(NewBool(false))))
	assert.True(t, Null.Equal(Abs(Null)))
	assert.True(t, Null.Equal(Abs(NewText("-4"))))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		op   string
		a, b Value
		want Value
	}{
		{"int equality", "=", NewInt(2), NewInt(2), NewBool(true)},
		{"int inequality", "<>", NewInt(2), NewInt(2), NewBool(false)},
		{"int less", "<", NewInt(1), NewInt(2), NewBool(true)},
		{"text order", "<", NewText("bar"), NewText("foo"), NewBool(true)},
		{"text equality", "=", NewText("baz"), NewText("baz"), NewBool(true)},
		{"bool against int", ">", NewBool(true), NewInt(0), NewBool(true)},
		{"null against int", "=", Null, NewInt(1), Null},
		{"text against int is null", ">", NewInt(5), NewText("abc"), Null},
		{"text against bool is null", "=", NewText("true"), NewBool(true), Null},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.op, tt.a, tt.b)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestThreeValuedLogic(t *testing.T) {
	assert.True(t, NewBool(true).Equal(Or(NewBool(true), Null)))
	assert.True(t, NewBool(true).Equal(Or(Null, NewBool(true))))
	assert.True(t, Null.Equal(Or(NewBool(false), Null)))
	assert.True(t, NewBool(false).Equal(And(NewBool(false), Null)))
	assert.True(t, NewBool(false).Equal(And(Null, NewBool(false))))
	assert.True(t, Null.Equal(And(NewBool(true), Null)))
	assert.True(t, Null.Equal(Not(Null)))
	assert.True(t, NewBool(false).Equal(Not(NewBool(true))))

	// Coercions: nonzero ints are true, zero false, text false.
	assert.True(t, NewBool(true).Equal(Or(NewInt(7), NewBool(false))))
	assert.True(t, NewBool(false).Equal(And(NewInt(0), NewBool(true))))
	assert.True(t, NewBool(false).Equal(And(NewText("yes"), NewBool(true))))
}

func TestTruthy(t *testing.T) {
	assert.True(t, NewBool(true).Truthy())
	assert.True(t, NewInt(-3).Truthy())
	assert.False(t, NewBool(false).Truthy())
	assert.False(t, NewInt(0).Truthy())
	assert.False(t, Null.Truthy())
	assert.False(t, NewText("true").Truthy())
}

func TestOrderCompare(t *testing.T) {
	// Null < Bool < Int < Text, bools and ints interleaved numerically.
	assert.Equal(t, -1, OrderCompare(Null, NewBool(false)))
	assert.Equal(t, -1, OrderCompare(NewBool(false), NewBool(true)))
	assert.Equal(t, -1, OrderCompare(NewInt(0), NewBool(true)))
	assert.Equal(t, -1, OrderCompare(NewBool(true), NewInt(2)))
	assert.Equal(t, -1, OrderCompare(NewInt(999), NewText("")))
	assert.Equal(t, -1, OrderCompare(NewText("bar"), NewText("foo")))
	assert.Equal(t, 0, OrderCompare(NewText("foo"), NewText("foo")))
	assert.Equal(t, 0, OrderCompare(NewInt(1), NewInt(1)))

	// The bool/int numeric tie breaks by rank so the order stays total.
	assert.Equal(t, -1, OrderCompare(NewBool(true), NewInt(1)))
	assert.Equal(t, 1, OrderCompare(NewInt(1), NewBool(true)))

	// Antisymmetry over a mixed sample.
	sample := []Value{Null, NewBool(false), NewBool(true), NewInt(-5), NewInt(0), NewInt(7), NewText(""), NewText("a")}
	for _, a := range sample {
		for _, b := range sample {
			assert.Equal(t, -OrderCompare(b, a), OrderCompare(a, b), "%s vs %s", a, b)
		}
	}
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "NULL", Null.String())
	assert.Equal(t, "-42", NewInt(-42).String())
	assert.Equal(t, "true", NewBool(true).String())
	assert.Equal(t, "false", NewBool(false).String())
	assert.Equal(t, "kek", NewText("kek").String())
}
