// Package semantic validates ASTs against the catalog: names resolve,
// arities line up, and every expression type-checks before a plan is
// built.
package semantic

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/moonsql/moonsql/internal/record"
	"github.com/moonsql/moonsql/internal/sql/parser"
	"github.com/moonsql/moonsql/internal/sqlerr"
)

// SchemaProvider is the slice of the catalog the analyzer needs.
type SchemaProvider interface {
	GetSchema(name string) (record.Schema, error)
}

// valueType is the analyzer's view of an expression's type. Null is
// its own type: it is assignable to any nullable column and
// comparable with anything.
type valueType int

const (
	typeInt valueType = iota
	typeVarchar
	typeBool
	typeNull
)

func (t valueType) String() string {
	return [...]string{"INT", "VARCHAR", "BOOLEAN", "NULL"}[int(t)]
}

func colValueType(t record.ColumnType) valueType {
	switch t {
	case record.ColInt:
		return typeInt
	case record.ColVarchar:
		return typeVarchar
	default:
		return typeBool
	}
}

type Analyzer struct {
	catalog SchemaProvider
}

func NewAnalyzer(catalog SchemaProvider) *Analyzer {
	return &Analyzer{catalog: catalog}
}

// Analyze validates one statement. A nil return means the planner can
// lower the AST without further checks.
func (a *Analyzer) Analyze(stmt parser.Statement) *sqlerr.Error {
	switch s := stmt.(type) {
	case *parser.CreateTableStmt:
		return a.analyzeCreate(s)
	case *parser.InsertStmt:
		return a.analyzeInsert(s)
	case *parser.SelectStmt:
		return a.analyzeSelect(s)
	case *parser.DeleteStmt:
		return a.analyzeDelete(s)
	default:
		return sqlerr.New(sqlerr.PhaseSem, sqlerr.KindTypeMismatch, 0, 0,
			"unsupported statement %T", stmt)
	}
}

func (a *Analyzer) analyzeCreate(s *parser.CreateTableStmt) *sqlerr.Error {
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, col := range s.Columns {
		if !seen.Add(col.Name) {
			return sqlerr.New(sqlerr.PhaseSem, sqlerr.KindDuplicateColumn,
				col.Line, col.Col, "duplicate column %q", col.Name)
		}
	}
	return nil
}

func (a *Analyzer) analyzeInsert(s *parser.InsertStmt) *sqlerr.Error {
	schema, serr := a.schema(s.Table, s.Line, s.Col)
	if serr != nil {
		return serr
	}

	// Resolve the target list (explicit or full schema).
	targets := make([]record.Column, 0, schema.NumCols())
	if len(s.Columns) == 0 {
		targets = schema.Cols
	} else {
		seen := mapset.NewThreadUnsafeSet[string]()
		for _, name := range s.Columns {
			if !seen.Add(name) {
				return sqlerr.New(sqlerr.PhaseSem, sqlerr.KindDuplicateColumn,
					s.Line, s.Col, "column %q named twice in insert list", name)
			}
			idx := schema.ColIndex(name)
			if idx < 0 {
				return sqlerr.New(sqlerr.PhaseSem, sqlerr.KindUnknownColumn,
					s.Line, s.Col, "unknown column %q in table %q", name, s.Table)
			}
			targets = append(targets, schema.Cols[idx])
		}
	}

	for _, row := range s.Rows {
		if len(row) != len(targets) {
			return sqlerr.New(sqlerr.PhaseSem, sqlerr.KindArityMismatch, s.Line, s.Col,
				"%d values for %d target columns", len(row), len(targets))
		}
		for i, e := range row {
			if serr := a.checkAssignable(e, targets[i]); serr != nil {
				return serr
			}
		}
	}
	return nil
}

// checkAssignable verifies a literal expression fits the target
// column. INSERT values are literal-only in this dialect.
func (a *Analyzer) checkAssignable(e parser.Expr, col record.Column) *sqlerr.Error {
	line, colNo := e.Pos()
	switch v := e.(type) {
	case *parser.NullLit:
		if !col.Nullable {
			return sqlerr.New(sqlerr.PhaseSem, sqlerr.KindTypeMismatch, line, colNo,
				"NULL is not assignable to NOT NULL column %q", col.Name)
		}
		return nil
	case *parser.IntLit:
		if col.Type != record.ColInt {
			return sqlerr.New(sqlerr.PhaseSem, sqlerr.KindTypeMismatch, line, colNo,
				"INT value is not assignable to %s column %q", col.SQLType(), col.Name)
		}
		return nil
	case *parser.StringLit:
		if col.Type != record.ColVarchar {
			return sqlerr.New(sqlerr.PhaseSem, sqlerr.KindTypeMismatch, line, colNo,
				"string value is not assignable to %s column %q", col.SQLType(), col.Name)
		}
		if len(v.Value) > int(col.Param) {
			return sqlerr.New(sqlerr.PhaseSem, sqlerr.KindLengthOverflow, line, colNo,
				"string of length %d exceeds VARCHAR(%d) column %q",
				len(v.Value), col.Param, col.Name)
		}
		return nil
	case *parser.BoolLit:
		if col.Type != record.ColBool {
			return sqlerr.New(sqlerr.PhaseSem, sqlerr.KindTypeMismatch, line, colNo,
				"BOOLEAN value is not assignable to %s column %q", col.SQLType(), col.Name)
		}
		return nil
	default:
		return sqlerr.New(sqlerr.PhaseSem, sqlerr.KindTypeMismatch, line, colNo,
			"INSERT values must be literals")
	}
}

func (a *Analyzer) analyzeSelect(s *parser.SelectStmt) *sqlerr.Error {
	schema, serr := a.schema(s.Table, s.Line, s.Col)
	if serr != nil {
		return serr
	}
	for _, e := range s.Exprs {
		if _, serr := a.typeOf(e, schema); serr != nil {
			return serr
		}
	}
	return a.checkPredicate(s.Where, schema)
}

func (a *Analyzer) analyzeDelete(s *parser.DeleteStmt) *sqlerr.Error {
	schema, serr := a.schema(s.Table, s.Line, s.Col)
	if serr != nil {
		return serr
	}
	return a.checkPredicate(s.Where, schema)
}

// checkPredicate type-checks a WHERE clause; it must be BOOLEAN (or
// NULL, which filters everything out).
func (a *Analyzer) checkPredicate(e parser.Expr, schema record.Schema) *sqlerr.Error {
	if e == nil {
		return nil
	}
	t, serr := a.typeOf(e, schema)
	if serr != nil {
		return serr
	}
	if t != typeBool && t != typeNull {
		line, col := e.Pos()
		return sqlerr.New(sqlerr.PhaseSem, sqlerr.KindTypeMismatch, line, col,
			"WHERE predicate has type %s, want BOOLEAN", t)
	}
	return nil
}

// typeOf infers an expression's type against schema, reporting the
// first type error found.
func (a *Analyzer) typeOf(e parser.Expr, schema record.Schema) (valueType, *sqlerr.Error) {
	line, col := e.Pos()
	switch x := e.(type) {
	case *parser.IntLit:
		return typeInt, nil
	case *parser.StringLit:
		return typeVarchar, nil
	case *parser.BoolLit:
		return typeBool, nil
	case *parser.NullLit:
		return typeNull, nil

	case *parser.ColumnRef:
		idx := schema.ColIndex(x.Name)
		if idx < 0 {
			return typeNull, sqlerr.New(sqlerr.PhaseSem, sqlerr.KindUnknownColumn,
				line, col, "unknown column %q", x.Name)
		}
		return colValueType(schema.Cols[idx].Type), nil

	case *parser.UnaryExpr:
		ot, serr := a.typeOf(x.Operand, schema)
		if serr != nil {
			return typeNull, serr
		}
		if x.Op == "NOT" {
			if ot != typeBool && ot != typeNull {
				return typeNull, sqlerr.New(sqlerr.PhaseSem, sqlerr.KindTypeMismatch,
					line, col, "NOT requires a BOOLEAN operand, got %s", ot)
			}
			return typeBool, nil
		}
		// unary minus
		if ot != typeInt && ot != typeNull {
			return typeNull, sqlerr.New(sqlerr.PhaseSem, sqlerr.KindTypeMismatch,
				line, col, "unary '-' requires an INT operand, got %s", ot)
		}
		return typeInt, nil

	case *parser.BinaryExpr:
		lt, serr := a.typeOf(x.Left, schema)
		if serr != nil {
			return typeNull, serr
		}
		rt, serr := a.typeOf(x.Right, schema)
		if serr != nil {
			return typeNull, serr
		}

		switch x.Op {
		case "AND", "OR":
			for _, t := range []valueType{lt, rt} {
				if t != typeBool && t != typeNull {
					return typeNull, sqlerr.New(sqlerr.PhaseSem, sqlerr.KindTypeMismatch,
						line, col, "%s requires BOOLEAN operands, got %s", x.Op, t)
				}
			}
			return typeBool, nil

		case "+", "-", "*", "/":
			for _, t := range []valueType{lt, rt} {
				if t != typeInt && t != typeNull {
					return typeNull, sqlerr.New(sqlerr.PhaseSem, sqlerr.KindTypeMismatch,
						line, col, "arithmetic %q requires INT operands, got %s", x.Op, t)
				}
			}
			return typeInt, nil

		default: // comparison
			if lt != typeNull && rt != typeNull && lt != rt {
				return typeNull, sqlerr.New(sqlerr.PhaseSem, sqlerr.KindTypeMismatch,
					line, col, "cannot compare %s with %s", lt, rt)
			}
			return typeBool, nil
		}
	}
	return typeNull, sqlerr.New(sqlerr.PhaseSem, sqlerr.KindTypeMismatch, line, col,
		"unsupported expression")
}

func (a *Analyzer) schema(table string, line, col int) (record.Schema, *sqlerr.Error) {
	schema, err := a.catalog.GetSchema(table)
	if err != nil {
		return record.Schema{}, sqlerr.New(sqlerr.PhaseSem, sqlerr.KindUnknownTable,
			line, col, "unknown table %q", table)
	}
	return schema, nil
}
