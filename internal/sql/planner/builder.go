package planner

import (
	"fmt"
	"strings"

	"github.com/moonsql/moonsql/internal/record"
	"github.com/moonsql/moonsql/internal/sql/parser"
	"github.com/moonsql/moonsql/internal/sql/semantic"
	"github.com/moonsql/moonsql/internal/sqlerr"
)

// BuildPlan lowers an analyzed statement into a plan tree. The catalog
// is consulted for INSERT value reordering.
func BuildPlan(stmt parser.Statement, catalog semantic.SchemaProvider) (Plan, *sqlerr.Error) {
	switch s := stmt.(type) {
	case *parser.CreateTableStmt:
		return buildCreateTable(s), nil
	case *parser.InsertStmt:
		return buildInsert(s, catalog)
	case *parser.SelectStmt:
		return buildSelect(s), nil
	case *parser.DeleteStmt:
		return buildDelete(s), nil
	default:
		return nil, sqlerr.New(sqlerr.PhasePlan, sqlerr.KindTypeMismatch, 0, 0,
			"planner: unsupported statement type %T", stmt)
	}
}

func buildCreateTable(s *parser.CreateTableStmt) Plan {
	schema := record.Schema{}
	for _, c := range s.Columns {
		schema.Cols = append(schema.Cols, record.Column{
			Name:       c.Name,
			Type:       c.Type,
			Param:      c.Param,
			Nullable:   !c.NotNull,
			PrimaryKey: c.PrimaryKey,
		})
	}
	return &CreateTablePlan{TableName: s.Table, Schema: schema}
}

// buildInsert reorders each value list into schema order, filling
// omitted columns with NULL.
func buildInsert(s *parser.InsertStmt, catalog semantic.SchemaProvider) (Plan, *sqlerr.Error) {
	schema, err := catalog.GetSchema(s.Table)
	if err != nil {
		return nil, sqlerr.New(sqlerr.PhaseSem, sqlerr.KindUnknownTable, s.Line, s.Col,
			"unknown table %q", s.Table)
	}

	// Map value position -> schema ordinal.
	targets := make([]int, 0, schema.NumCols())
	if len(s.Columns) == 0 {
		for i := range schema.Cols {
			targets = append(targets, i)
		}
	} else {
		for _, name := range s.Columns {
			idx := schema.ColIndex(name)
			if idx < 0 {
				return nil, sqlerr.New(sqlerr.PhaseSem, sqlerr.KindUnknownColumn, s.Line, s.Col,
					"unknown column %q in table %q", name, s.Table)
			}
			targets = append(targets, idx)
		}
	}

	rows := make([][]any, 0, len(s.Rows))
	for _, exprRow := range s.Rows {
		row := make([]any, schema.NumCols())
		for i, e := range exprRow {
			row[targets[i]] = literalValue(e)
		}
		rows = append(rows, row)
	}
	return &InsertPlan{TableName: s.Table, Rows: rows}, nil
}

func buildSelect(s *parser.SelectStmt) Plan {
	var plan Plan = &SeqScanPlan{TableName: s.Table}
	if s.Where != nil {
		plan = &FilterPlan{Pred: s.Where, Child: plan}
	}
	if !s.Star {
		cols := make([]string, 0, len(s.Exprs))
		for _, e := range s.Exprs {
			cols = append(cols, ExprString(e))
		}
		plan = &ProjectPlan{Exprs: s.Exprs, Cols: cols, Child: plan}
	}
	return plan
}

func buildDelete(s *parser.DeleteStmt) Plan {
	pred := s.Where
	if pred == nil {
		pred = &parser.BoolLit{Value: true, Line: s.Line, Col: s.Col}
	}
	return &DeletePlan{TableName: s.Table, Pred: pred}
}

// literalValue maps a literal expression to its runtime value.
// Semantic analysis has already rejected non-literal INSERT values.
func literalValue(e parser.Expr) any {
	switch x := e.(type) {
	case *parser.IntLit:
		return x.Value
	case *parser.StringLit:
		return x.Value
	case *parser.BoolLit:
		return x.Value
	default:
		return nil
	}
}

// ExprString renders an expression for display (projection headers,
// plan dumps).
func ExprString(e parser.Expr) string {
	switch x := e.(type) {
	case *parser.ColumnRef:
		return x.Name
	case *parser.IntLit:
		return fmt.Sprintf("%d", x.Value)
	case *parser.StringLit:
		return "'" + strings.ReplaceAll(x.Value, "'", "''") + "'"
	case *parser.BoolLit:
		if x.Value {
			return "TRUE"
		}
		return "FALSE"
	case *parser.NullLit:
		return "NULL"
	case *parser.BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", ExprString(x.Left), x.Op, ExprString(x.Right))
	case *parser.UnaryExpr:
		if x.Op == "NOT" {
			return fmt.Sprintf("(NOT %s)", ExprString(x.Operand))
		}
		return fmt.Sprintf("(-%s)", ExprString(x.Operand))
	}
	return "?"
}
