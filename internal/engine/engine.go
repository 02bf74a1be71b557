// Package engine ties the query pipeline together: SQL text goes through
// the parser, the planner, and the executor, over one catalog and one
// store. An Engine is a single-session database handle; statements run
// one at a time on the calling goroutine.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kvsql/internal/catalog"
	"kvsql/internal/executor"
	"kvsql/internal/parser"
	"kvsql/internal/planner"
	"kvsql/internal/storage"
)

// Result re-exports the executor result as the engine's public result
// shape.
type Result = executor.Result

// Options configures an Engine.
type Options struct {
	// DataDir is the Badger directory. Ignored when InMemory is set.
	DataDir string
	// InMemory backs the engine with the btree store instead of Badger.
	InMemory bool
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Engine is an open database.
type Engine struct {
	store    storage.Store
	catalog  *catalog.Catalog
	parser   *parser.Parser
	planner  *planner.Planner
	executor *executor.Executor
	logger   *zap.Logger
}

// Open opens the store, loads the catalog, and wires the pipeline.
func Open(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var store storage.Store
	if opts.InMemory {
		store = storage.NewMemory()
	} else {
		var err error
		store, err = storage.OpenBadger(opts.DataDir)
		if err != nil {
			return nil, err
		}
	}
	cat, err := catalog.Open(store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	e := &Engine{
		store:    store,
		catalog:  cat,
		parser:   parser.New(),
		planner:  planner.New(cat),
		executor: executor.New(cat, store, logger),
		logger:   logger,
	}
	logger.Info("engine opened", zap.String("dir", opts.DataDir), zap.Bool("inMemory", opts.InMemory))
	return e, nil
}

// Close releases the store.
func (e *Engine) Close() error {
	e.logger.Info("engine closed")
	return e.store.Close()
}

// Exec runs every statement in sql in order and returns the result of the
// last one. The first failing statement aborts the script; earlier
// statements keep their effects (there is no cross-statement transaction).
func (e *Engine) Exec(ctx context.Context, sql string) (*Result, error) {
	results, err := e.ExecAll(ctx, sql)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &Result{}, nil
	}
	return results[len(results)-1], nil
}

// ExecAll runs every statement in sql and returns one result per
// statement.
func (e *Engine) ExecAll(ctx context.Context, sql string) ([]*Result, error) {
	stmts, err := e.parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(stmts))
	for i, stmt := range stmts {
		plan, err := e.planner.Plan(stmt)
		if err != nil {
			return nil, statementError(i, len(stmts), err)
		}
		result, err := e.executor.Run(ctx, plan)
		if err != nil {
			return nil, statementError(i, len(stmts), err)
		}
		results = append(results, result)
	}
	return results, nil
}

// Tables lists the catalog for diagnostics.
func (e *Engine) Tables() []*TableInfo {
	tables := e.catalog.List()
	out := make([]*TableInfo, 0, len(tables))
	for _, t := range tables {
		info := &TableInfo{Name: t.Name, ID: t.ID}
		for _, c := range t.Columns {
			info.Columns = append(info.Columns, ColumnInfo{
				Name:       c.Name,
				Type:       c.Type.String(),
				PrimaryKey: c.PrimaryKey,
			})
		}
		out = append(out, info)
	}
	return out
}

// TableInfo and ColumnInfo are the diagnostics view of a schema.
type TableInfo struct {
	Name    string
	ID      uint64
	Columns []ColumnInfo
}

type ColumnInfo struct {
	Name       string
	Type       string
	PrimaryKey bool
}

func statementError(i, total int, err error) error {
	if total == 1 {
		return err
	}
	return fmt.Errorf("statement %d: %w", i+1, err)
}
