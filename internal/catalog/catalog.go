// Package catalog is the persisted schema registry. It is the single
// source of truth for table existence, column order, and primary-key
// position; the planner never infers columns from data. Entries live in
// the store under a reserved prefix, encoded with the row codec.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"kvsql/internal/codec"
	"kvsql/internal/core"
	"kvsql/internal/storage"
)

// Catalog resolves table names against the schema entries in the store.
// It is process-wide mutable state with an explicit lifecycle: created at
// startup, threaded through planner and executor, never ambient.
type Catalog struct {
	store  storage.Store
	logger *zap.Logger
	tables map[string]*core.Table
}

// Open loads every schema entry from the store.
func Open(store storage.Store, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{store: store, logger: logger, tables: make(map[string]*core.Table)}

	it, err := store.Scan(codec.CatalogPrefix())
	if err != nil {
		return nil, fmt.Errorf("scan catalog: %w", err)
	}
	defer it.Close()
	for it.Next() {
		name := codec.CatalogName(it.Key())
		table, err := codec.DecodeSchema(name, it.Value())
		if err != nil {
			return nil, err
		}
		c.tables[name] = table
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("scan catalog: %w", err)
	}
	logger.Info("catalog opened", zap.Int("tables", len(c.tables)))
	return c, nil
}

// Lookup returns the schema for name, or ErrNotFound.
func (c *Catalog) Lookup(name string) (*core.Table, error) {
	table, ok := c.tables[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", strings.ToLower(name), core.ErrNotFound)
	}
	return table, nil
}

// List returns every schema ordered by table name. Diagnostics only.
func (c *Catalog) List() []*core.Table {
	out := make([]*core.Table, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Create validates the schema, allocates a fresh table id, and persists
// the entry. Fails with ErrAlreadyExists when the name is taken.
func (c *Catalog) Create(table *core.Table) error {
	table.Name = strings.ToLower(table.Name)
	if err := table.Validate(); err != nil {
		return err
	}
	if _, ok := c.tables[table.Name]; ok {
		return fmt.Errorf("table %q: %w", table.Name, core.ErrAlreadyExists)
	}
	table.ID = c.nextID()
	if err := c.store.Put(codec.CatalogKey(table.Name), codec.EncodeSchema(table)); err != nil {
		return err
	}
	c.tables[table.Name] = table
	c.logger.Info("table created",
		zap.String("table", table.Name),
		zap.Uint64("id", table.ID),
		zap.Int("columns", len(table.Columns)))
	return nil
}

// Drop removes every row under the table's prefix and then the schema
// entry, in that order: a half-dropped table must never be observable
// with its schema still present.
func (c *Catalog) Drop(name string) error {
	name = strings.ToLower(name)
	table, ok := c.tables[name]
	if !ok {
		return fmt.Errorf("table %q: %w", name, core.ErrNotFound)
	}
	if err := c.store.DeleteRange(codec.TablePrefix(table.ID)); err != nil {
		return err
	}
	if err := c.store.Delete(codec.CatalogKey(name)); err != nil {
		return err
	}
	delete(c.tables, name)
	c.logger.Info("table dropped", zap.String("table", name), zap.Uint64("id", table.ID))
	return nil
}

// nextID allocates a fresh table id. Ids freed by a drop may be reused;
// that is safe because Drop clears the prefix before the schema entry.
func (c *Catalog) nextID() uint64 {
	var max uint64
	for _, t := range c.tables {
		if t.ID > max {
			max = t.ID
		}
	}
	return max + 1
}
