package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kvsql/internal/codec"
	"kvsql/internal/core"
	"kvsql/internal/planner"
)

// runInsert consumes the child stream and writes rows through one storage
// batch. The batch commits only after every row has passed the arity,
// type, and primary-key checks, so a failing statement persists nothing.
func (e *Executor) runInsert(ctx context.Context, plan *planner.InsertPlan) (*Result, error) {
	child, err := e.build(plan.Child)
	if err != nil {
		return nil, err
	}
	rows, err := drain(ctx, child)
	if err != nil {
		return nil, err
	}

	table := plan.Table
	prefix := codec.TablePrefix(table.ID)
	pkIdx := table.PrimaryKeyIndex()

	var nextRowID uint64
	if pkIdx < 0 {
		nextRowID, err = e.nextRowID(prefix)
		if err != nil {
			return nil, err
		}
	}

	batch := e.store.NewBatch()
	defer batch.Discard()
	pending := make(map[string]bool, len(rows))
	for _, row := range rows {
		row, err := conform(table, row, plan.ColumnOrder)
		if err != nil {
			return nil, err
		}
		var key []byte
		if pkIdx >= 0 {
			key, err = codec.PrimaryKey(prefix, row[pkIdx])
			if err != nil {
				return nil, err
			}
			if err := e.checkConflict(table, key, pending, row[pkIdx]); err != nil {
				return nil, err
			}
			pending[string(key)] = true
		} else {
			key = codec.RowIDKey(prefix, nextRowID)
			nextRowID++
		}
		batch.Put(key, codec.EncodeRow(row))
	}
	if err := batch.Commit(); err != nil {
		return nil, err
	}
	e.logger.Debug("rows inserted", zap.String("table", table.Name), zap.Int("rows", len(rows)))
	return &Result{Affected: int64(len(rows))}, nil
}

// checkConflict point-looks-up the key in the store and in the writes
// buffered so far, so duplicates inside one statement fail the same way
// duplicates against persisted rows do.
func (e *Executor) checkConflict(table *core.Table, key []byte, pending map[string]bool, pk core.Value) error {
	if pending[string(key)] {
		return fmt.Errorf("table %q pk %s: %w", table.Name, pk, core.ErrPrimaryKeyConflict)
	}
	_, found, err := e.store.Get(key)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("table %q pk %s: %w", table.Name, pk, core.ErrPrimaryKeyConflict)
	}
	return nil
}

// conform reorders a row from statement order into declaration order and
// type-checks every value against its column.
func conform(table *core.Table, row core.Row, order []int) (core.Row, error) {
	if len(row) != len(table.Columns) {
		return nil, fmt.Errorf("row of %d values into table %q of %d columns: %w",
			len(row), table.Name, len(table.Columns), core.ErrArityMismatch)
	}
	out := row
	if order != nil {
		out = make(core.Row, len(row))
		for i, dest := range order {
			out[dest] = row[i]
		}
	}
	for i, col := range table.Columns {
		value, err := coerce(col, out[i])
		if err != nil {
			return nil, fmt.Errorf("table %q column %q: %w", table.Name, col.Name, err)
		}
		out[i] = value
	}
	return out, nil
}

// coerce admits Null into any non-primary-key column, promotes Bool into
// INT columns and the integers 0/1 into BOOLEAN columns, and otherwise
// requires the declared type exactly.
func coerce(col *core.Column, v core.Value) (core.Value, error) {
	if v.IsNull() {
		if col.PrimaryKey {
			return core.Null, fmt.Errorf("%w: primary key must not be NULL", core.ErrTypeMismatch)
		}
		return v, nil
	}
	switch col.Type {
	case core.TypeInt:
		if v.Kind() == core.KindInt {
			return v, nil
		}
		if v.Kind() == core.KindBool {
			return core.NewInt(v.Int()), nil
		}
	case core.TypeBool:
		if v.Kind() == core.KindBool {
			return v, nil
		}
		// The parser folds TRUE/FALSE to the integers 1/0.
		if v.Kind() == core.KindInt && (v.Int() == 0 || v.Int() == 1) {
			return core.NewBool(v.Int() != 0), nil
		}
	case core.TypeText:
		if v.Kind() == core.KindText {
			return v, nil
		}
	}
	return core.Null, fmt.Errorf("%w: %s value into %s column", core.ErrTypeMismatch, v.TypeOf(), col.Type)
}

// nextRowID finds the highest rowid under the prefix and returns the next
// one. Rows are append-only, so walking to the last key is exact.
func (e *Executor) nextRowID(prefix []byte) (uint64, error) {
	it, err := e.store.Scan(prefix)
	if err != nil {
		return 0, err
	}
	defer it.Close()
	var last []byte
	for it.Next() {
		last = it.Key()
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	if last == nil {
		return 1, nil
	}
	id, err := codec.RowID(prefix, last)
	if err != nil {
		return 0, err
	}
	return id + 1, nil
}
