package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kvsql/internal/core"
	"kvsql/internal/planner"
	"kvsql/internal/storage"
)

// Catalog is the slice of the catalog the executor needs for DDL and
// lookups.
type Catalog interface {
	Lookup(name string) (*core.Table, error)
	Create(table *core.Table) error
	Drop(name string) error
}

// Result is what a statement returns to the caller: an ordered column
// list with an ordered row set for queries, or an affected-row count for
// DDL and DML.
type Result struct {
	Columns  []string
	Rows     []core.Row
	Affected int64
}

// Executor runs physical plans against the catalog and store. One
// statement executes at a time on the calling goroutine; operators are
// cooperative pull iterators with no off-thread I/O.
type Executor struct {
	catalog Catalog
	store   storage.Store
	logger  *zap.Logger
}

func New(catalog Catalog, store storage.Store, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{catalog: catalog, store: store, logger: logger}
}

// Run executes one plan to completion. The context is checked between
// rows so a cancelled statement stops pulling; there is no finer-grained
// cancellation.
func (e *Executor) Run(ctx context.Context, plan planner.Plan) (*Result, error) {
	switch p := plan.(type) {
	case *planner.CreateTablePlan:
		if err := e.catalog.Create(p.Table); err != nil {
			return nil, err
		}
		return &Result{}, nil
	case *planner.DropTablePlan:
		if err := e.catalog.Drop(p.Name); err != nil {
			return nil, err
		}
		return &Result{}, nil
	case *planner.InsertPlan:
		return e.runInsert(ctx, p)
	default:
		return e.runQuery(ctx, plan)
	}
}

// runQuery drives a row-producing tree and materializes its output.
func (e *Executor) runQuery(ctx context.Context, plan planner.Plan) (*Result, error) {
	root, err := e.build(plan)
	if err != nil {
		return nil, err
	}
	rows, err := drain(ctx, root)
	if err != nil {
		return nil, err
	}
	result := &Result{Columns: planner.OutputColumns(plan), Rows: rows}
	e.logger.Debug("query executed", zap.Int("rows", len(rows)))
	return result, nil
}

// drain opens the tree, pulls it dry, and closes it on every exit path.
func drain(ctx context.Context, root operator) (rows []core.Row, err error) {
	if err := root.Open(); err != nil {
		_ = root.Close()
		return nil, err
	}
	defer func() {
		if closeErr := root.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("statement cancelled: %w", err)
		}
		row, ok, err := root.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, row)
	}
}
