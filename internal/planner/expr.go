// Package planner turns parsed statements into physical plans: it binds
// names against the catalog, compiles AST expressions into the engine's
// expression trees, and applies the (deliberately minimal) set of plan
// rewrites. Plans and expressions are tagged variants; the executor
// dispatches on the node kind with a flat type switch.
package planner

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"
	"github.com/pingcap/tidb/pkg/parser/opcode"

	"kvsql/internal/core"
)

// Expr is a bound scalar expression, evaluated per row by the executor.
type Expr interface {
	exprNode()
}

// Literal is a constant value.
type Literal struct {
	Value core.Value
}

// ColumnRef reads the input row at a bound index.
type ColumnRef struct {
	Index int
	Name  string
}

// Unary is unary minus or NOT.
type Unary struct {
	Op    string // "-" or "not"
	Input Expr
}

// Binary covers arithmetic, comparisons, and the boolean connectives.
type Binary struct {
	Op    string // "+" "-" "*" "/" "=" "<>" "<" "<=" ">" ">=" "and" "or"
	Left  Expr
	Right Expr
}

// Abs is the abs(x) builtin.
type Abs struct {
	Input Expr
}

// When is one arm of a searched CASE.
type When struct {
	Cond   Expr
	Result Expr
}

// Case is CASE WHEN ... THEN ... [ELSE ...] END. Else is nil when absent;
// a fall-through then yields Null.
type Case struct {
	Whens []When
	Else  Expr
}

// IsNull is `x IS [NOT] NULL`.
type IsNull struct {
	Input  Expr
	Negate bool
}

func (*Literal) exprNode()   {}
func (*ColumnRef) exprNode() {}
func (*Unary) exprNode()     {}
func (*Binary) exprNode()    {}
func (*Abs) exprNode()       {}
func (*Case) exprNode()      {}
func (*IsNull) exprNode()    {}

// binder compiles AST expressions against one table schema. table is nil
// for table-less selects and for VALUES rows, where only constants and
// operators over constants are legal.
type binder struct {
	table *core.Table
}

func (b *binder) bind(node ast.ExprNode) (Expr, error) {
	switch expr := node.(type) {
	case ast.ValueExpr:
		value, err := literalValue(expr)
		if err != nil {
			return nil, err
		}
		return &Literal{Value: value}, nil
	case *ast.ColumnNameExpr:
		return b.bindColumn(expr.Name)
	case *ast.ParenthesesExpr:
		return b.bind(expr.Expr)
	case *ast.UnaryOperationExpr:
		return b.bindUnary(expr)
	case *ast.BinaryOperationExpr:
		return b.bindBinary(expr)
	case *ast.FuncCallExpr:
		return b.bindFunc(expr)
	case *ast.CaseExpr:
		return b.bindCase(expr)
	case *ast.IsNullExpr:
		input, err := b.bind(expr.Expr)
		if err != nil {
			return nil, err
		}
		return &IsNull{Input: input, Negate: expr.Not}, nil
	default:
		return nil, fmt.Errorf("unsupported expression %T", node)
	}
}

func (b *binder) bindColumn(name *ast.ColumnName) (Expr, error) {
	if b.table == nil {
		return nil, fmt.Errorf("column %q: %w", name.Name.L, core.ErrUnknownColumn)
	}
	if table := name.Table.L; table != "" && table != b.table.Name {
		return nil, fmt.Errorf("column %q.%q: %w", table, name.Name.L, core.ErrUnknownColumn)
	}
	idx := b.table.ColumnIndex(name.Name.L)
	if idx < 0 {
		return nil, fmt.Errorf("column %q: %w", name.Name.L, core.ErrUnknownColumn)
	}
	return &ColumnRef{Index: idx, Name: name.Name.L}, nil
}

func (b *binder) bindUnary(expr *ast.UnaryOperationExpr) (Expr, error) {
	input, err := b.bind(expr.V)
	if err != nil {
		return nil, err
	}
	switch expr.Op {
	case opcode.Minus:
		return &Unary{Op: "-", Input: input}, nil
	case opcode.Plus:
		return input, nil
	case opcode.Not, opcode.Not2:
		return &Unary{Op: "not", Input: input}, nil
	}
	return nil, fmt.Errorf("unsupported unary operator %s", expr.Op)
}

func (b *binder) bindBinary(expr *ast.BinaryOperationExpr) (Expr, error) {
	left, err := b.bind(expr.L)
	if err != nil {
		return nil, err
	}
	right, err := b.bind(expr.R)
	if err != nil {
		return nil, err
	}
	op, ok := binaryOps[expr.Op]
	if !ok {
		return nil, fmt.Errorf("unsupported binary operator %s", expr.Op)
	}
	return &Binary{Op: op, Left: left, Right: right}, nil
}

var binaryOps = map[opcode.Op]string{
	opcode.Plus:     "+",
	opcode.Minus:    "-",
	opcode.Mul:      "*",
	opcode.Div:      "/",
	opcode.IntDiv:   "/",
	opcode.EQ:       "=",
	opcode.NE:       "<>",
	opcode.LT:       "<",
	opcode.LE:       "<=",
	opcode.GT:       ">",
	opcode.GE:       ">=",
	opcode.LogicAnd: "and",
	opcode.LogicOr:  "or",
}

func (b *binder) bindFunc(expr *ast.FuncCallExpr) (Expr, error) {
	if expr.FnName.L != "abs" {
		return nil, fmt.Errorf("unsupported function %q", expr.FnName.L)
	}
	if len(expr.Args) != 1 {
		return nil, fmt.Errorf("abs takes exactly one argument")
	}
	input, err := b.bind(expr.Args[0])
	if err != nil {
		return nil, err
	}
	return &Abs{Input: input}, nil
}

// bindCase compiles both CASE forms. The simple form
// `CASE x WHEN v THEN r` desugars into `CASE WHEN x = v THEN r`.
func (b *binder) bindCase(expr *ast.CaseExpr) (Expr, error) {
	var operand Expr
	if expr.Value != nil {
		bound, err := b.bind(expr.Value)
		if err != nil {
			return nil, err
		}
		operand = bound
	}
	out := &Case{}
	for _, when := range expr.WhenClauses {
		cond, err := b.bind(when.Expr)
		if err != nil {
			return nil, err
		}
		if operand != nil {
			cond = &Binary{Op: "=", Left: operand, Right: cond}
		}
		result, err := b.bind(when.Result)
		if err != nil {
			return nil, err
		}
		out.Whens = append(out.Whens, When{Cond: cond, Result: result})
	}
	if expr.ElseClause != nil {
		bound, err := b.bind(expr.ElseClause)
		if err != nil {
			return nil, err
		}
		out.Else = bound
	}
	return out, nil
}

// literalValue maps a parser literal onto an engine value. The parser
// folds TRUE/FALSE to the integers 1/0; with Bool→Int promotion in every
// operation that is observationally equivalent.
func literalValue(expr ast.ValueExpr) (core.Value, error) {
	switch v := expr.GetValue().(type) {
	case nil:
		return core.Null, nil
	case int64:
		return core.NewInt(v), nil
	case uint64:
		if v > 1<<63-1 {
			return core.Null, fmt.Errorf("integer literal %d overflows 64 bits", v)
		}
		return core.NewInt(int64(v)), nil
	case string:
		return core.NewText(v), nil
	default:
		return core.Null, fmt.Errorf("unsupported literal type %T", v)
	}
}

// restoreName renders an expression back to SQL text, used as the output
// name of unaliased select items.
func restoreName(node ast.ExprNode) string {
	var sb strings.Builder
	ctx := format.NewRestoreCtx(format.DefaultRestoreFlags&^format.RestoreNameBackQuotes, &sb)
	if err := node.Restore(ctx); err != nil {
		return "?"
	}
	return strings.ToLower(sb.String())
}
