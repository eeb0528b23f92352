package executor

import (
	"errors"

	"github.com/moonsql/moonsql/internal/bufferpool"
	"github.com/moonsql/moonsql/internal/record"
	"github.com/moonsql/moonsql/internal/sql/parser"
	"github.com/moonsql/moonsql/internal/sqlerr"
	"github.com/moonsql/moonsql/internal/storage"
)

// evalExpr evaluates an expression against one row under SQL
// three-valued logic: nil is NULL. Arithmetic and comparison with a
// NULL operand yield NULL; AND/OR follow Kleene's tables.
func evalExpr(e parser.Expr, schema record.Schema, row []any) (any, *sqlerr.Error) {
	switch x := e.(type) {
	case *parser.IntLit:
		return x.Value, nil
	case *parser.StringLit:
		return x.Value, nil
	case *parser.BoolLit:
		return x.Value, nil
	case *parser.NullLit:
		return nil, nil

	case *parser.ColumnRef:
		idx := schema.ColIndex(x.Name)
		if idx < 0 || idx >= len(row) {
			return nil, sqlerr.New(sqlerr.PhaseExec, sqlerr.KindTypeMismatch,
				x.Line, x.Col, "unknown column %q", x.Name)
		}
		return row[idx], nil

	case *parser.UnaryExpr:
		v, err := evalExpr(x.Operand, schema, row)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		if x.Op == "NOT" {
			b, ok := v.(bool)
			if !ok {
				return nil, typeErr(x.Line, x.Col, "NOT requires a BOOLEAN operand")
			}
			return !b, nil
		}
		n, ok := v.(int64)
		if !ok {
			return nil, typeErr(x.Line, x.Col, "unary '-' requires an INT operand")
		}
		return -n, nil

	case *parser.BinaryExpr:
		switch x.Op {
		case "AND", "OR":
			return evalLogical(x, schema, row)
		case "+", "-", "*", "/":
			return evalArith(x, schema, row)
		default:
			return evalComparison(x, schema, row)
		}
	}
	line, col := e.Pos()
	return nil, typeErr(line, col, "unsupported expression")
}

// evalLogical implements Kleene AND/OR. Both operands are evaluated;
// there is no short-circuit that could hide a runtime error.
func evalLogical(x *parser.BinaryExpr, schema record.Schema, row []any) (any, *sqlerr.Error) {
	lv, err := evalExpr(x.Left, schema, row)
	if err != nil {
		return nil, err
	}
	rv, err := evalExpr(x.Right, schema, row)
	if err != nil {
		return nil, err
	}

	lb, lok := asBool(lv)
	rb, rok := asBool(rv)
	if (lv != nil && !lok) || (rv != nil && !rok) {
		return nil, typeErr(x.Line, x.Col, "%s requires BOOLEAN operands", x.Op)
	}

	if x.Op == "AND" {
		switch {
		case lv != nil && !lb, rv != nil && !rb:
			return false, nil
		case lv == nil || rv == nil:
			return nil, nil
		default:
			return true, nil
		}
	}
	// OR
	switch {
	case lv != nil && lb, rv != nil && rb:
		return true, nil
	case lv == nil || rv == nil:
		return nil, nil
	default:
		return false, nil
	}
}

func evalArith(x *parser.BinaryExpr, schema record.Schema, row []any) (any, *sqlerr.Error) {
	lv, err := evalExpr(x.Left, schema, row)
	if err != nil {
		return nil, err
	}
	rv, err := evalExpr(x.Right, schema, row)
	if err != nil {
		return nil, err
	}
	if lv == nil || rv == nil {
		return nil, nil
	}
	l, lok := lv.(int64)
	r, rok := rv.(int64)
	if !lok || !rok {
		return nil, typeErr(x.Line, x.Col, "arithmetic %q requires INT operands", x.Op)
	}

	switch x.Op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	default:
		if r == 0 {
			return nil, sqlerr.New(sqlerr.PhaseExec, sqlerr.KindDivisionByZero,
				x.Line, x.Col, "division by zero")
		}
		return l / r, nil
	}
}

func evalComparison(x *parser.BinaryExpr, schema record.Schema, row []any) (any, *sqlerr.Error) {
	lv, err := evalExpr(x.Left, schema, row)
	if err != nil {
		return nil, err
	}
	rv, err := evalExpr(x.Right, schema, row)
	if err != nil {
		return nil, err
	}
	if lv == nil || rv == nil {
		return nil, nil
	}

	cmp, ok := compareValues(lv, rv)
	if !ok {
		return nil, typeErr(x.Line, x.Col, "cannot compare %T with %T", lv, rv)
	}

	switch x.Op {
	case "=":
		return cmp == 0, nil
	case "<>", "!=":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	}
	return nil, typeErr(x.Line, x.Col, "unknown comparison %q", x.Op)
}

// compareValues orders two non-NULL values of the same type. VARCHAR
// compares by byte order; FALSE sorts before TRUE.
func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func typeErr(line, col int, format string, args ...any) *sqlerr.Error {
	return sqlerr.New(sqlerr.PhaseExec, sqlerr.KindTypeMismatch, line, col, format, args...)
}

// storageErr classifies storage-layer failures into their boundary
// kinds; anything unrecognized surfaces as an I/O failure.
func storageErr(err error) *sqlerr.Error {
	switch {
	case errors.Is(err, bufferpool.ErrNoFreeFrame):
		return sqlerr.New(sqlerr.PhaseStorage, sqlerr.KindBufferFull, 0, 0, "%s", err.Error())
	case errors.Is(err, storage.ErrBadChecksum), errors.Is(err, storage.ErrCorruption):
		return sqlerr.New(sqlerr.PhaseStorage, sqlerr.KindPageCorrupt, 0, 0, "%s", err.Error())
	case errors.Is(err, record.ErrDecode):
		return sqlerr.New(sqlerr.PhaseStorage, sqlerr.KindDecodeError, 0, 0, "%s", err.Error())
	default:
		return sqlerr.From(err)
	}
}

// predicateMatches reports whether the predicate evaluates to TRUE for
// the row; FALSE and NULL both reject it.
func predicateMatches(pred parser.Expr, schema record.Schema, row []any) (bool, *sqlerr.Error) {
	v, err := evalExpr(pred, schema, row)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	return ok && b, nil
}
