package planner

import (
	"fmt"

	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/opcode"

	"kvsql/internal/core"
	"kvsql/internal/parser"
)

// Catalog is the slice of the catalog the planner needs.
type Catalog interface {
	Lookup(name string) (*core.Table, error)
}

// Plan is a node of the physical operator tree.
type Plan interface {
	planNode()
}

// CreateTablePlan and DropTablePlan are DDL leaves executed against the
// catalog.
type CreateTablePlan struct {
	Table *core.Table
}

type DropTablePlan struct {
	Name string
}

// ValuesPlan emits a fixed sequence of literal tuples. Expressions are
// evaluated against the empty row, so constants and operators over
// constants are legal but column references are not.
type ValuesPlan struct {
	Rows [][]Expr
}

// ScanPlan emits all rows of a table in primary-key byte order (insertion
// order for tables without a primary key).
type ScanPlan struct {
	Table *core.Table
}

// FilterPlan drops rows whose predicate does not evaluate to true.
type FilterPlan struct {
	Child Plan
	Pred  Expr
}

// ProjectPlan evaluates one expression per output column.
type ProjectPlan struct {
	Child Plan
	Exprs []Expr
	Names []string
}

// SortKey orders by one expression over the child's output row.
type SortKey struct {
	Expr Expr
	Desc bool
}

// SortPlan fully materializes its child and sorts with the engine's total
// value order, stably, keys left to right.
type SortPlan struct {
	Child Plan
	Keys  []SortKey
}

// InsertPlan consumes the child stream and writes rows into Table.
// ColumnOrder maps child column positions onto destination columns when
// the statement carried an explicit column list; nil means declaration
// order.
type InsertPlan struct {
	Table       *core.Table
	Child       Plan
	ColumnOrder []int
}

func (*CreateTablePlan) planNode() {}
func (*DropTablePlan) planNode()   {}
func (*ValuesPlan) planNode()      {}
func (*ScanPlan) planNode()        {}
func (*FilterPlan) planNode()      {}
func (*ProjectPlan) planNode()     {}
func (*SortPlan) planNode()        {}
func (*InsertPlan) planNode()      {}

// OutputColumns reports the column names a plan produces; nil for plans
// that only return an affected-row count.
func OutputColumns(plan Plan) []string {
	switch p := plan.(type) {
	case *ProjectPlan:
		return p.Names
	case *SortPlan:
		return OutputColumns(p.Child)
	case *FilterPlan:
		return OutputColumns(p.Child)
	case *ScanPlan:
		return p.Table.ColumnNames()
	default:
		return nil
	}
}

// Planner binds statements against the catalog and produces plans.
type Planner struct {
	catalog Catalog
}

func New(catalog Catalog) *Planner {
	return &Planner{catalog: catalog}
}

// Plan compiles one statement.
func (p *Planner) Plan(stmt parser.Statement) (Plan, error) {
	switch s := stmt.(type) {
	case *parser.CreateTable:
		return &CreateTablePlan{Table: s.Table}, nil
	case *parser.DropTable:
		return &DropTablePlan{Name: s.Name}, nil
	case *parser.Insert:
		return p.planInsert(s)
	case *parser.Select:
		return p.planSelect(s)
	default:
		return nil, fmt.Errorf("unsupported statement %T", stmt)
	}
}

func (p *Planner) planInsert(stmt *parser.Insert) (Plan, error) {
	table, err := p.catalog.Lookup(stmt.Table)
	if err != nil {
		return nil, err
	}
	order, err := columnOrder(table, stmt.Columns)
	if err != nil {
		return nil, err
	}

	var child Plan
	switch {
	case stmt.Select != nil:
		child, err = p.planSelect(stmt.Select)
		if err != nil {
			return nil, err
		}
		if arity := len(OutputColumns(child)); arity != len(table.Columns) {
			return nil, fmt.Errorf("INSERT of %d columns into table %q of %d: %w",
				arity, table.Name, len(table.Columns), core.ErrArityMismatch)
		}
	default:
		b := &binder{}
		values := &ValuesPlan{}
		for _, list := range stmt.Rows {
			if len(list) != len(table.Columns) {
				return nil, fmt.Errorf("INSERT row of %d values into table %q of %d columns: %w",
					len(list), table.Name, len(table.Columns), core.ErrArityMismatch)
			}
			row := make([]Expr, 0, len(list))
			for _, item := range list {
				expr, err := b.bind(item)
				if err != nil {
					return nil, err
				}
				row = append(row, expr)
			}
			values.Rows = append(values.Rows, row)
		}
		child = values
	}
	return &InsertPlan{Table: table, Child: child, ColumnOrder: order}, nil
}

// columnOrder resolves an explicit INSERT column list. order[i] is the
// destination index of the i-th supplied value. Partial lists are
// rejected; every column must be named exactly once.
func columnOrder(table *core.Table, columns []string) ([]int, error) {
	if len(columns) == 0 {
		return nil, nil
	}
	if len(columns) != len(table.Columns) {
		return nil, fmt.Errorf("INSERT column list names %d of %d columns: %w",
			len(columns), len(table.Columns), core.ErrArityMismatch)
	}
	order := make([]int, len(columns))
	seen := make(map[int]bool, len(columns))
	for i, name := range columns {
		idx := table.ColumnIndex(name)
		if idx < 0 {
			return nil, fmt.Errorf("column %q: %w", name, core.ErrUnknownColumn)
		}
		if seen[idx] {
			return nil, fmt.Errorf("column %q named twice: %w", name, core.ErrArityMismatch)
		}
		seen[idx] = true
		order[i] = idx
	}
	return order, nil
}

// planSelect applies the fixed rewrite
// Sort(Project(Filter(Scan(t), where), exprs), keys), skipping absent
// stages. A select without FROM projects over a single empty tuple.
func (p *Planner) planSelect(stmt *parser.Select) (Plan, error) {
	var table *core.Table
	var plan Plan
	if stmt.From != "" {
		found, err := p.catalog.Lookup(stmt.From)
		if err != nil {
			return nil, err
		}
		table = found
		plan = &ScanPlan{Table: table}
	} else {
		plan = &ValuesPlan{Rows: [][]Expr{{}}}
	}
	b := &binder{table: table}

	if stmt.Where != nil {
		pred, err := b.bind(stmt.Where)
		if err != nil {
			return nil, err
		}
		plan = &FilterPlan{Child: plan, Pred: pred}
	}

	exprs, names, err := projection(b, table, stmt.Fields)
	if err != nil {
		return nil, err
	}
	if len(stmt.OrderBy) == 0 {
		return &ProjectPlan{Child: plan, Exprs: exprs, Names: names}, nil
	}

	keys, hidden, err := sortKeys(b, stmt.OrderBy, exprs, names)
	if err != nil {
		return nil, err
	}
	if len(hidden) == 0 {
		return &SortPlan{
			Child: &ProjectPlan{Child: plan, Exprs: exprs, Names: names},
			Keys:  keys,
		}, nil
	}

	// Expression keys that reference source columns ride along as hidden
	// trailing projection columns, sorted on, then trimmed off.
	wide := &ProjectPlan{
		Child: plan,
		Exprs: append(append([]Expr{}, exprs...), hidden...),
		Names: append(append([]string{}, names...), make([]string, len(hidden))...),
	}
	trim := make([]Expr, len(exprs))
	for i := range exprs {
		trim[i] = &ColumnRef{Index: i, Name: names[i]}
	}
	return &ProjectPlan{
		Child: &SortPlan{Child: wide, Keys: keys},
		Exprs: trim,
		Names: names,
	}, nil
}

// projection expands wildcards in place and binds each select item.
func projection(b *binder, table *core.Table, fields []*ast.SelectField) ([]Expr, []string, error) {
	var exprs []Expr
	var names []string
	for _, field := range fields {
		if field.WildCard != nil {
			if table == nil {
				return nil, nil, fmt.Errorf("SELECT * requires a FROM clause")
			}
			for i, col := range table.Columns {
				exprs = append(exprs, &ColumnRef{Index: i, Name: col.Name})
				names = append(names, col.Name)
			}
			continue
		}
		expr, err := b.bind(field.Expr)
		if err != nil {
			return nil, nil, err
		}
		exprs = append(exprs, expr)
		switch {
		case field.AsName.L != "":
			names = append(names, field.AsName.L)
		default:
			names = append(names, restoreName(field.Expr))
		}
	}
	return exprs, names, nil
}

// sortKeys compiles ORDER BY items. Ordinals and select-list names index
// the projected row; other expressions bind against the source table and
// come back in hidden, to be appended after the visible columns.
func sortKeys(b *binder, items []*ast.ByItem, exprs []Expr, names []string) ([]SortKey, []Expr, error) {
	var keys []SortKey
	var hidden []Expr
	for _, item := range items {
		if n, ok := ordinal(item.Expr); ok {
			if n < 1 || n > int64(len(exprs)) {
				return nil, nil, fmt.Errorf("ORDER BY position %d with a select list of %d: %w",
					n, len(exprs), core.ErrInvalidOrdinal)
			}
			keys = append(keys, SortKey{Expr: &ColumnRef{Index: int(n - 1)}, Desc: item.Desc})
			continue
		}
		if col, ok := item.Expr.(*ast.ColumnNameExpr); ok && col.Name.Table.L == "" {
			if idx := outputIndex(names, col.Name.Name.L); idx >= 0 {
				keys = append(keys, SortKey{Expr: &ColumnRef{Index: idx}, Desc: item.Desc})
				continue
			}
		}
		expr, err := b.bind(item.Expr)
		if err != nil {
			return nil, nil, err
		}
		hidden = append(hidden, expr)
		keys = append(keys, SortKey{
			Expr: &ColumnRef{Index: len(exprs) + len(hidden) - 1},
			Desc: item.Desc,
		})
	}
	return keys, hidden, nil
}

func outputIndex(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// ordinal recognizes positional ORDER BY references, including negative
// literals so `ORDER BY -1` fails the range check instead of sorting by
// the constant -1.
func ordinal(node ast.ExprNode) (int64, bool) {
	neg := false
	if unary, ok := node.(*ast.UnaryOperationExpr); ok && unary.Op == opcode.Minus {
		if _, isValue := unary.V.(ast.ValueExpr); isValue {
			node = unary.V
			neg = true
		}
	}
	if pos, ok := node.(*ast.PositionExpr); ok {
		return int64(pos.N), true
	}
	value, ok := node.(ast.ValueExpr)
	if !ok {
		return 0, false
	}
	switch v := value.GetValue().(type) {
	case int64:
		if neg {
			return -v, true
		}
		return v, true
	case uint64:
		n := int64(v)
		if neg {
			return -n, true
		}
		return n, true
	}
	return 0, false
}
