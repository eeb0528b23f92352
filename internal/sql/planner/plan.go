// Package planner lowers validated ASTs into logical plan trees. The
// lowering is mechanical; planning is total over analyzed statements.
package planner

import (
	"encoding/json"

	"github.com/moonsql/moonsql/internal/record"
	"github.com/moonsql/moonsql/internal/sql/parser"
)

// Plan is the interface for logical plan nodes.
type Plan interface {
	planNode()
	// Op names the node kind in the serialized form.
	Op() string
}

type CreateTablePlan struct {
	TableName string
	Schema    record.Schema
}

type InsertPlan struct {
	TableName string
	// Rows hold literal values in schema order; omitted columns are
	// filled with nil.
	Rows [][]any
}

type SeqScanPlan struct {
	TableName string
}

type FilterPlan struct {
	Pred  parser.Expr
	Child Plan
}

type ProjectPlan struct {
	Exprs []parser.Expr
	// Cols are the display names, one per expression.
	Cols  []string
	Child Plan
}

type DeletePlan struct {
	TableName string
	// Pred is the constant TRUE when the statement has no WHERE.
	Pred parser.Expr
}

func (*CreateTablePlan) planNode() {}
func (*InsertPlan) planNode()      {}
func (*SeqScanPlan) planNode()     {}
func (*FilterPlan) planNode()      {}
func (*ProjectPlan) planNode()     {}
func (*DeletePlan) planNode()      {}

func (*CreateTablePlan) Op() string { return "CreateTable" }
func (*InsertPlan) Op() string      { return "Insert" }
func (*SeqScanPlan) Op() string     { return "SeqScan" }
func (*FilterPlan) Op() string      { return "Filter" }
func (*ProjectPlan) Op() string     { return "Project" }
func (*DeletePlan) Op() string      { return "Delete" }

// ToJSON renders a plan tree as indented, deterministic JSON.
func ToJSON(p Plan) string {
	b, err := json.MarshalIndent(planToJSON(p), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func planToJSON(p Plan) map[string]any {
	out := map[string]any{"op": p.Op()}
	switch n := p.(type) {
	case *CreateTablePlan:
		cols := make([]map[string]any, 0, n.Schema.NumCols())
		for _, c := range n.Schema.Cols {
			col := map[string]any{"name": c.Name, "type": c.SQLType()}
			col["nullable"] = c.Nullable
			if c.PrimaryKey {
				col["primary_key"] = true
			}
			cols = append(cols, col)
		}
		out["table"] = n.TableName
		out["schema"] = cols
	case *InsertPlan:
		out["table"] = n.TableName
		out["rows"] = n.Rows
	case *SeqScanPlan:
		out["table"] = n.TableName
	case *FilterPlan:
		out["pred"] = parser.ExprToJSON(n.Pred)
		out["child"] = planToJSON(n.Child)
	case *ProjectPlan:
		out["cols"] = n.Cols
		out["child"] = planToJSON(n.Child)
	case *DeletePlan:
		out["table"] = n.TableName
		out["pred"] = parser.ExprToJSON(n.Pred)
	}
	return out
}
