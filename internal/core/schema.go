package core

import (
	"fmt"
	"strings"
)

// Column describes one column of a table.
type Column struct {
	Name       string
	Type       Type
	PrimaryKey bool
}

// Table is the persisted schema of one table: its name, columns in
// declaration order, and the storage prefix id assigned by the catalog.
// Declaration order defines `*` expansion order; the catalog is the only
// component allowed to infer column order.
type Table struct {
	Name    string
	ID      uint64
	Columns []*Column
}

// Row is an ordered tuple of values whose arity equals the schema arity.
type Row []Value

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// PrimaryKeyIndex returns the index of the primary-key column, or -1 if
// the table has none.
func (t *Table) PrimaryKeyIndex() int {
	for i, c := range t.Columns {
		if c.PrimaryKey {
			return i
		}
	}
	return -1
}

// ColumnIndex resolves a (case-insensitive) column name to its index, or
// -1 when the name is unknown.
func (t *Table) ColumnIndex(name string) int {
	name = strings.ToLower(name)
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks the structural invariants of a schema before it is
// persisted: a non-empty name, at least one column, unique column names,
// and at most one primary key.
func (t *Table) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %q must have at least one column", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	pk := 0
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("table %q has a column with an empty name", t.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %q has duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = true
		if c.PrimaryKey {
			pk++
		}
	}
	if pk > 1 {
		return fmt.Errorf("table %q declares %d primary key columns, at most one is allowed", t.Name, pk)
	}
	return nil
}
