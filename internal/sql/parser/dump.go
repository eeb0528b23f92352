package parser

import "encoding/json"

// Dump renders a statement as indented JSON for display.
func Dump(stmt Statement) string {
	b, err := json.MarshalIndent(stmtToJSON(stmt), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func stmtToJSON(stmt Statement) map[string]any {
	switch s := stmt.(type) {
	case *CreateTableStmt:
		cols := make([]map[string]any, 0, len(s.Columns))
		for _, c := range s.Columns {
			col := map[string]any{"name": c.Name, "type": c.Type.String()}
			if c.Param > 0 {
				col["param"] = c.Param
			}
			if c.NotNull {
				col["not_null"] = true
			}
			if c.PrimaryKey {
				col["primary_key"] = true
			}
			cols = append(cols, col)
		}
		return map[string]any{"stmt": "CreateTable", "table": s.Table, "columns": cols}

	case *InsertStmt:
		rows := make([][]any, 0, len(s.Rows))
		for _, row := range s.Rows {
			vals := make([]any, 0, len(row))
			for _, e := range row {
				vals = append(vals, ExprToJSON(e))
			}
			rows = append(rows, vals)
		}
		out := map[string]any{"stmt": "Insert", "table": s.Table, "rows": rows}
		if len(s.Columns) > 0 {
			out["columns"] = s.Columns
		}
		return out

	case *SelectStmt:
		out := map[string]any{"stmt": "Select", "table": s.Table}
		if s.Star {
			out["projection"] = "*"
		} else {
			exprs := make([]any, 0, len(s.Exprs))
			for _, e := range s.Exprs {
				exprs = append(exprs, ExprToJSON(e))
			}
			out["projection"] = exprs
		}
		if s.Where != nil {
			out["where"] = ExprToJSON(s.Where)
		}
		return out

	case *DeleteStmt:
		out := map[string]any{"stmt": "Delete", "table": s.Table}
		if s.Where != nil {
			out["where"] = ExprToJSON(s.Where)
		}
		return out
	}
	return map[string]any{"stmt": "Unknown"}
}

// ExprToJSON converts an expression tree into plain JSON-able values;
// the planner reuses it for plan serialization.
func ExprToJSON(e Expr) any {
	switch x := e.(type) {
	case *ColumnRef:
		return map[string]any{"column": x.Name}
	case *IntLit:
		return map[string]any{"int": x.Value}
	case *StringLit:
		return map[string]any{"string": x.Value}
	case *BoolLit:
		return map[string]any{"bool": x.Value}
	case *NullLit:
		return map[string]any{"null": true}
	case *BinaryExpr:
		return map[string]any{
			"op":    x.Op,
			"left":  ExprToJSON(x.Left),
			"right": ExprToJSON(x.Right),
		}
	case *UnaryExpr:
		return map[string]any{"op": x.Op, "operand": ExprToJSON(x.Operand)}
	}
	return nil
}
