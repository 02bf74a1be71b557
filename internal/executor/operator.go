package executor

import (
	"fmt"
	"sort"

	"kvsql/internal/codec"
	"kvsql/internal/core"
	"kvsql/internal/planner"
	"kvsql/internal/storage"
)

// operator is the pull iterator every physical operator implements. Open
// acquires children and storage iterators, Next returns one row at a time
// (ok=false at end of stream), Close releases resources and must run on
// every exit path.
type operator interface {
	Open() error
	Next() (core.Row, bool, error)
	Close() error
}

// build translates a plan tree into its operator tree, leaves first.
func (e *Executor) build(plan planner.Plan) (operator, error) {
	switch p := plan.(type) {
	case *planner.ValuesPlan:
		return &valuesOp{rows: p.Rows}, nil
	case *planner.ScanPlan:
		return &scanOp{store: e.store, table: p.Table}, nil
	case *planner.FilterPlan:
		child, err := e.build(p.Child)
		if err != nil {
			return nil, err
		}
		return &filterOp{child: child, pred: p.Pred}, nil
	case *planner.ProjectPlan:
		child, err := e.build(p.Child)
		if err != nil {
			return nil, err
		}
		return &projectOp{child: child, exprs: p.Exprs}, nil
	case *planner.SortPlan:
		child, err := e.build(p.Child)
		if err != nil {
			return nil, err
		}
		return &sortOp{child: child, keys: p.Keys}, nil
	default:
		return nil, fmt.Errorf("unsupported plan node %T", plan)
	}
}

// valuesOp emits a fixed sequence of literal tuples, each expression
// evaluated against the empty row.
type valuesOp struct {
	rows [][]planner.Expr
	pos  int
}

func (op *valuesOp) Open() error {
	op.pos = 0
	return nil
}

func (op *valuesOp) Next() (core.Row, bool, error) {
	if op.pos >= len(op.rows) {
		return nil, false, nil
	}
	exprs := op.rows[op.pos]
	op.pos++
	row := make(core.Row, 0, len(exprs))
	for _, expr := range exprs {
		value, err := eval(expr, nil)
		if err != nil {
			return nil, false, err
		}
		row = append(row, value)
	}
	return row, true, nil
}

func (op *valuesOp) Close() error { return nil }

// scanOp streams all rows of a table in key order: primary-key order for
// pk tables, insertion (rowid) order otherwise.
type scanOp struct {
	store storage.Store
	table *core.Table
	it    storage.Iterator
}

func (op *scanOp) Open() error {
	it, err := op.store.Scan(codec.TablePrefix(op.table.ID))
	if err != nil {
		return err
	}
	op.it = it
	return nil
}

func (op *scanOp) Next() (core.Row, bool, error) {
	if !op.it.Next() {
		return nil, false, op.it.Err()
	}
	row, err := codec.DecodeRow(op.it.Value())
	if err != nil {
		return nil, false, fmt.Errorf("table %q: %w", op.table.Name, err)
	}
	if len(row) != len(op.table.Columns) {
		return nil, false, fmt.Errorf("table %q: stored row arity %d, schema arity %d",
			op.table.Name, len(row), len(op.table.Columns))
	}
	return row, true, nil
}

func (op *scanOp) Close() error {
	if op.it == nil {
		return nil
	}
	return op.it.Close()
}

// filterOp drops rows whose predicate is not true; Null counts as false.
type filterOp struct {
	child operator
	pred  planner.Expr
}

func (op *filterOp) Open() error  { return op.child.Open() }
func (op *filterOp) Close() error { return op.child.Close() }

func (op *filterOp) Next() (core.Row, bool, error) {
	for {
		row, ok, err := op.child.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		keep, err := eval(op.pred, row)
		if err != nil {
			return nil, false, err
		}
		if keep.Truthy() {
			return row, true, nil
		}
	}
}

// projectOp evaluates one expression per output column.
type projectOp struct {
	child operator
	exprs []planner.Expr
}

func (op *projectOp) Open() error  { return op.child.Open() }
func (op *projectOp) Close() error { return op.child.Close() }

func (op *projectOp) Next() (core.Row, bool, error) {
	row, ok, err := op.child.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	out := make(core.Row, 0, len(op.exprs))
	for _, expr := range op.exprs {
		value, err := eval(expr, row)
		if err != nil {
			return nil, false, err
		}
		out = append(out, value)
	}
	return out, true, nil
}

// sortOp materializes the whole child stream in Open, evaluates each key
// once per row, and sorts stably with the engine's total value order.
// Memory bound: the whole result set.
type sortOp struct {
	child operator
	keys  []planner.SortKey

	rows []sortRow
	pos  int
}

type sortRow struct {
	row  core.Row
	keys []core.Value
}

func (op *sortOp) Open() error {
	if err := op.child.Open(); err != nil {
		return err
	}
	op.rows = nil
	op.pos = 0
	for {
		row, ok, err := op.child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		keys := make([]core.Value, len(op.keys))
		for i, key := range op.keys {
			value, err := eval(key.Expr, row)
			if err != nil {
				return err
			}
			keys[i] = value
		}
		op.rows = append(op.rows, sortRow{row: row, keys: keys})
	}
	sort.SliceStable(op.rows, func(i, j int) bool {
		for k, key := range op.keys {
			cmp := core.OrderCompare(op.rows[i].keys[k], op.rows[j].keys[k])
			if key.Desc {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
	return nil
}

func (op *sortOp) Next() (core.Row, bool, error) {
	if op.pos >= len(op.rows) {
		return nil, false, nil
	}
	row := op.rows[op.pos].row
	op.pos++
	return row, true, nil
}

func (op *sortOp) Close() error {
	op.rows = nil
	return op.child.Close()
}
