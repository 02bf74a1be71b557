// Package parser wraps the external SQL parser and narrows its AST down
// to the statement surface the engine supports. It uses TiDB's parser, so
// the accepted syntax is MySQL syntax; identifiers come back already
// folded to lower case. Anything the engine cannot execute is rejected
// here with a descriptive error instead of leaking into the planner.
package parser

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	"kvsql/internal/core"
)

// Statement is one parsed SQL statement in engine terms. Expression
// positions keep their AST nodes; the planner binds them.
type Statement interface {
	statementNode()
}

// CreateTable carries a validated-but-not-yet-persisted schema.
type CreateTable struct {
	Table *core.Table
}

// DropTable names the table to remove.
type DropTable struct {
	Name string
}

// Insert is INSERT ... VALUES or INSERT ... SELECT. Columns is the
// explicit column list, empty when the statement targets every column in
// declaration order.
type Insert struct {
	Table   string
	Columns []string
	Rows    [][]ast.ExprNode
	Select  *Select
}

// Select is SELECT <fields> [FROM t] [WHERE e] [ORDER BY ...]. From is
// empty for table-less selects.
type Select struct {
	From    string
	Fields  []*ast.SelectField
	Where   ast.ExprNode
	OrderBy []*ast.ByItem
}

func (*CreateTable) statementNode() {}
func (*DropTable) statementNode()   {}
func (*Insert) statementNode()      {}
func (*Select) statementNode()      {}

// Parser converts SQL text into engine statements.
type Parser struct {
	p *parser.Parser
}

func New() *Parser {
	return &Parser{p: parser.New()}
}

// Parse returns the statements of a possibly multi-statement script, in
// source order.
func (p *Parser) Parse(sql string) ([]Statement, error) {
	nodes, _, err := p.p.Parse(sql, "", "")
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	stmts := make([]Statement, 0, len(nodes))
	for _, node := range nodes {
		stmt, err := p.convert(node)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (p *Parser) convert(node ast.StmtNode) (Statement, error) {
	switch stmt := node.(type) {
	case *ast.CreateTableStmt:
		return p.convertCreateTable(stmt)
	case *ast.DropTableStmt:
		return p.convertDropTable(stmt)
	case *ast.InsertStmt:
		return p.convertInsert(stmt)
	case *ast.SelectStmt:
		return p.convertSelect(stmt)
	default:
		return nil, fmt.Errorf("unsupported statement %T", node)
	}
}

func (p *Parser) convertCreateTable(stmt *ast.CreateTableStmt) (*CreateTable, error) {
	if stmt.IfNotExists {
		return nil, fmt.Errorf("IF NOT EXISTS is not supported")
	}
	table := &core.Table{Name: stmt.Table.Name.L}
	for _, colDef := range stmt.Cols {
		col := &core.Column{Name: colDef.Name.Name.L}
		colType, err := columnType(colDef.Tp.String())
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		col.Type = colType
		for _, opt := range colDef.Options {
			switch opt.Tp {
			case ast.ColumnOptionPrimaryKey:
				col.PrimaryKey = true
			case ast.ColumnOptionNotNull, ast.ColumnOptionNull, ast.ColumnOptionNoOption:
				// Nullability is not enforced beyond the primary key.
			default:
				return nil, fmt.Errorf("column %q: unsupported column option", col.Name)
			}
		}
		table.Columns = append(table.Columns, col)
	}
	for _, constraint := range stmt.Constraints {
		if constraint.Tp != ast.ConstraintPrimaryKey {
			return nil, fmt.Errorf("table %q: unsupported constraint", table.Name)
		}
		if len(constraint.Keys) != 1 {
			return nil, fmt.Errorf("table %q: composite primary keys are not supported", table.Name)
		}
		name := constraint.Keys[0].Column.Name.L
		idx := table.ColumnIndex(name)
		if idx < 0 {
			return nil, fmt.Errorf("table %q: primary key column %q: %w", table.Name, name, core.ErrUnknownColumn)
		}
		table.Columns[idx].PrimaryKey = true
	}
	return &CreateTable{Table: table}, nil
}

func (p *Parser) convertDropTable(stmt *ast.DropTableStmt) (*DropTable, error) {
	if stmt.IfExists {
		return nil, fmt.Errorf("IF EXISTS is not supported")
	}
	if len(stmt.Tables) != 1 {
		return nil, fmt.Errorf("DROP TABLE takes exactly one table")
	}
	return &DropTable{Name: stmt.Tables[0].Name.L}, nil
}

func (p *Parser) convertInsert(stmt *ast.InsertStmt) (*Insert, error) {
	if stmt.IsReplace {
		return nil, fmt.Errorf("REPLACE is not supported")
	}
	if stmt.OnDuplicate != nil {
		return nil, fmt.Errorf("ON DUPLICATE KEY is not supported")
	}
	name, err := sourceTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	ins := &Insert{Table: name}
	for _, col := range stmt.Columns {
		ins.Columns = append(ins.Columns, col.Name.L)
	}
	if stmt.Select != nil {
		sel, ok := stmt.Select.(*ast.SelectStmt)
		if !ok {
			return nil, fmt.Errorf("unsupported INSERT source %T", stmt.Select)
		}
		converted, err := p.convertSelect(sel)
		if err != nil {
			return nil, err
		}
		ins.Select = converted
		return ins, nil
	}
	if len(stmt.Lists) == 0 {
		return nil, fmt.Errorf("INSERT requires VALUES or SELECT")
	}
	ins.Rows = stmt.Lists
	return ins, nil
}

func (p *Parser) convertSelect(stmt *ast.SelectStmt) (*Select, error) {
	switch {
	case stmt.GroupBy != nil:
		return nil, fmt.Errorf("GROUP BY is not supported")
	case stmt.Having != nil:
		return nil, fmt.Errorf("HAVING is not supported")
	case stmt.Limit != nil:
		return nil, fmt.Errorf("LIMIT is not supported")
	case stmt.Distinct:
		return nil, fmt.Errorf("DISTINCT is not supported")
	}
	sel := &Select{Where: stmt.Where}
	if stmt.From != nil {
		name, err := sourceTable(stmt.From)
		if err != nil {
			return nil, err
		}
		sel.From = name
	}
	if stmt.Fields == nil || len(stmt.Fields.Fields) == 0 {
		return nil, fmt.Errorf("SELECT requires a select list")
	}
	sel.Fields = stmt.Fields.Fields
	if stmt.OrderBy != nil {
		sel.OrderBy = stmt.OrderBy.Items
	}
	return sel, nil
}

// sourceTable unwraps a FROM clause down to a single table name. Joins
// and derived tables are outside the surface.
func sourceTable(ref *ast.TableRefsClause) (string, error) {
	if ref == nil || ref.TableRefs == nil || ref.TableRefs.Left == nil {
		return "", fmt.Errorf("missing table reference")
	}
	if ref.TableRefs.Right != nil {
		return "", fmt.Errorf("joins are not supported")
	}
	source, ok := ref.TableRefs.Left.(*ast.TableSource)
	if !ok {
		return "", fmt.Errorf("unsupported table reference %T", ref.TableRefs.Left)
	}
	table, ok := source.Source.(*ast.TableName)
	if !ok {
		return "", fmt.Errorf("unsupported table source %T", source.Source)
	}
	return table.Name.L, nil
}

// columnType maps the parser's MySQL type string onto the engine types.
// BOOLEAN arrives as tinyint(1).
func columnType(raw string) (core.Type, error) {
	base := strings.ToLower(raw)
	if i := strings.IndexByte(base, '('); i >= 0 {
		if base[:i] == "tinyint" && strings.HasPrefix(base[i:], "(1)") {
			return core.TypeBool, nil
		}
		base = base[:i]
	}
	switch base {
	case "tinyint", "bool", "boolean":
		return core.TypeBool, nil
	case "int", "integer", "bigint", "smallint", "mediumint":
		return core.TypeInt, nil
	case "text", "varchar", "char", "tinytext", "mediumtext", "longtext":
		return core.TypeText, nil
	}
	return 0, fmt.Errorf("%w: unsupported column type %q", core.ErrTypeMismatch, raw)
}
