// Package executor drives physical plans: a pull-based (Volcano) operator
// tree produces rows one at a time, and a pure expression evaluator
// computes scalar values over each row. Errors are fatal to the statement
// and propagate up unchanged; operators release their resources in Close
// on every exit path.
package executor

import (
	"fmt"

	"kvsql/internal/core"
	"kvsql/internal/planner"
)

// eval computes a bound expression over one input row. It is a pure
// function: all state lives in the expression tree and the row.
func eval(expr planner.Expr, row core.Row) (core.Value, error) {
	switch e := expr.(type) {
	case *planner.Literal:
		return e.Value, nil
	case *planner.ColumnRef:
		if e.Index < 0 || e.Index >= len(row) {
			return core.Null, fmt.Errorf("column reference %d out of range for row of %d", e.Index, len(row))
		}
		return row[e.Index], nil
	case *planner.Unary:
		return evalUnary(e, row)
	case *planner.Binary:
		return evalBinary(e, row)
	case *planner.Abs:
		input, err := eval(e.Input, row)
		if err != nil {
			return core.Null, err
		}
		return core.Abs(input), nil
	case *planner.Case:
		return evalCase(e, row)
	case *planner.IsNull:
		input, err := eval(e.Input, row)
		if err != nil {
			return core.Null, err
		}
		return core.NewBool(input.IsNull() != e.Negate), nil
	}
	return core.Null, fmt.Errorf("unsupported expression node %T", expr)
}

func evalUnary(e *planner.Unary, row core.Row) (core.Value, error) {
	input, err := eval(e.Input, row)
	if err != nil {
		return core.Null, err
	}
	switch e.Op {
	case "-":
		return core.Neg(input), nil
	case "not":
		return core.Not(input), nil
	}
	return core.Null, fmt.Errorf("unsupported unary operator %q", e.Op)
}

func evalBinary(e *planner.Binary, row core.Row) (core.Value, error) {
	left, err := eval(e.Left, row)
	if err != nil {
		return core.Null, err
	}
	right, err := eval(e.Right, row)
	if err != nil {
		return core.Null, err
	}
	switch e.Op {
	case "+", "-", "*", "/":
		return core.BinaryArith(e.Op, left, right)
	case "=", "<>", "<", "<=", ">", ">=":
		return core.Compare(e.Op, left, right)
	case "and":
		return core.And(left, right), nil
	case "or":
		return core.Or(left, right), nil
	}
	return core.Null, fmt.Errorf("unsupported binary operator %q", e.Op)
}

// evalCase checks conditions in order; the first true one selects its
// branch. No match and no ELSE yields Null.
func evalCase(e *planner.Case, row core.Row) (core.Value, error) {
	for _, when := range e.Whens {
		cond, err := eval(when.Cond, row)
		if err != nil {
			return core.Null, err
		}
		if cond.Truthy() {
			return eval(when.Result, row)
		}
	}
	if e.Else != nil {
		return eval(e.Else, row)
	}
	return core.Null, nil
}
