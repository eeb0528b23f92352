// Package executor interprets logical plans against the storage
// engine. Row-producing operators follow an open/next/close contract
// so memory stays bounded to one row per operator.
package executor

import (
	"errors"

	"github.com/moonsql/moonsql/internal/catalog"
	"github.com/moonsql/moonsql/internal/heap"
	"github.com/moonsql/moonsql/internal/record"
	"github.com/moonsql/moonsql/internal/sql/parser"
	"github.com/moonsql/moonsql/internal/sql/planner"
	"github.com/moonsql/moonsql/internal/sql/semantic"
	"github.com/moonsql/moonsql/internal/sqlerr"
)

// Result is the generic statement result returned to the caller.
type Result struct {
	Columns []string
	Rows    [][]any

	// AffectedRows counts inserted or deleted rows for DML.
	AffectedRows int64
}

// DB is the seam between the executor and the engine; tests can
// substitute a fake.
type DB interface {
	GetSchema(name string) (record.Schema, error)
	CreateTable(name string, schema record.Schema) error
	OpenTable(name string) (*heap.Table, error)
	// Commit flushes dirty pages and re-syncs catalog bookkeeping
	// after a successful write statement.
	Commit(table string) error
}

type Executor struct {
	db DB
}

func NewExecutor(db DB) *Executor {
	return &Executor{db: db}
}

// Analyze runs semantic analysis for one statement against the
// engine's catalog.
func (e *Executor) Analyze(stmt parser.Statement) *sqlerr.Error {
	return semantic.NewAnalyzer(e.db).Analyze(stmt)
}

// Plan lowers an analyzed statement to its logical plan.
func (e *Executor) Plan(stmt parser.Statement) (planner.Plan, *sqlerr.Error) {
	return planner.BuildPlan(stmt, e.db)
}

// ExecPlan runs one plan tree to completion.
func (e *Executor) ExecPlan(p planner.Plan) (*Result, *sqlerr.Error) {
	switch plan := p.(type) {
	case *planner.CreateTablePlan:
		return e.execCreateTable(plan)
	case *planner.InsertPlan:
		return e.execInsert(plan)
	case *planner.SeqScanPlan, *planner.FilterPlan, *planner.ProjectPlan:
		return e.execQuery(p)
	case *planner.DeletePlan:
		return e.execDelete(plan)
	default:
		return nil, sqlerr.New(sqlerr.PhaseExec, sqlerr.KindTypeMismatch, 0, 0,
			"unsupported plan type %T", p)
	}
}

func (e *Executor) execCreateTable(p *planner.CreateTablePlan) (*Result, *sqlerr.Error) {
	if err := e.db.CreateTable(p.TableName, p.Schema); err != nil {
		if errors.Is(err, catalog.ErrTableExists) {
			return nil, sqlerr.New(sqlerr.PhaseExec, sqlerr.KindTableExists, 0, 0,
				"table %q already exists", p.TableName)
		}
		return nil, storageErr(err)
	}
	if err := e.db.Commit(p.TableName); err != nil {
		return nil, storageErr(err)
	}
	return &Result{AffectedRows: 0}, nil
}

func (e *Executor) execInsert(p *planner.InsertPlan) (*Result, *sqlerr.Error) {
	tbl, err := e.db.OpenTable(p.TableName)
	if err != nil {
		return nil, storageErr(err)
	}

	var inserted int64
	for _, row := range p.Rows {
		if serr := e.validateRow(tbl, row); serr != nil {
			// No rollback: rows inserted so far stay persisted.
			return nil, serr
		}
		if _, err := tbl.Insert(row); err != nil {
			return nil, storageErr(err)
		}
		inserted++
	}

	if err := e.db.Commit(p.TableName); err != nil {
		return nil, storageErr(err)
	}
	return &Result{AffectedRows: inserted}, nil
}

// validateRow enforces the runtime constraints: NOT NULL, value
// types, VARCHAR length and primary-key uniqueness (by linear scan;
// there is no index).
func (e *Executor) validateRow(tbl *heap.Table, row []any) *sqlerr.Error {
	schema := tbl.Schema
	if len(row) != schema.NumCols() {
		return sqlerr.New(sqlerr.PhaseExec, sqlerr.KindTypeMismatch, 0, 0,
			"%d values for %d columns in table %q", len(row), schema.NumCols(), tbl.Name)
	}

	for i, col := range schema.Cols {
		v := row[i]
		if v == nil {
			if !col.Nullable {
				return sqlerr.New(sqlerr.PhaseExec, sqlerr.KindNotNullViolation, 0, 0,
					"column %q is NOT NULL", col.Name)
			}
			continue
		}
		switch col.Type {
		case record.ColInt:
			if _, ok := v.(int64); !ok {
				return sqlerr.New(sqlerr.PhaseExec, sqlerr.KindTypeMismatch, 0, 0,
					"column %q expects INT, got %T", col.Name, v)
			}
		case record.ColVarchar:
			s, ok := v.(string)
			if !ok {
				return sqlerr.New(sqlerr.PhaseExec, sqlerr.KindTypeMismatch, 0, 0,
					"column %q expects VARCHAR, got %T", col.Name, v)
			}
			if len(s) > int(col.Param) {
				return sqlerr.New(sqlerr.PhaseExec, sqlerr.KindLengthOverflow, 0, 0,
					"string of length %d exceeds VARCHAR(%d) column %q", len(s), col.Param, col.Name)
			}
		case record.ColBool:
			if _, ok := v.(bool); !ok {
				return sqlerr.New(sqlerr.PhaseExec, sqlerr.KindTypeMismatch, 0, 0,
					"column %q expects BOOLEAN, got %T", col.Name, v)
			}
		}
	}

	return e.checkPrimaryKey(tbl, row)
}

func (e *Executor) checkPrimaryKey(tbl *heap.Table, row []any) *sqlerr.Error {
	var pkCols []int
	for i, col := range tbl.Schema.Cols {
		if col.PrimaryKey {
			pkCols = append(pkCols, i)
		}
	}
	if len(pkCols) == 0 {
		return nil
	}

	var dup bool
	err := tbl.Scan(func(_ heap.RID, existing []any) error {
		same := true
		for _, i := range pkCols {
			c, ok := compareValues(existing[i], row[i])
			if !ok || c != 0 {
				same = false
				break
			}
		}
		if same {
			dup = true
		}
		return nil
	})
	if err != nil {
		return storageErr(err)
	}
	if dup {
		return sqlerr.New(sqlerr.PhaseExec, sqlerr.KindDuplicatePrimaryKey, 0, 0,
			"duplicate primary key in table %q", tbl.Name)
	}
	return nil
}

// execQuery builds the operator tree for a read-only plan and drains
// it. Read-only statements do not flush.
func (e *Executor) execQuery(p planner.Plan) (*Result, *sqlerr.Error) {
	op, cols, serr := e.buildOperator(p)
	if serr != nil {
		return nil, serr
	}
	if serr := op.open(); serr != nil {
		return nil, serr
	}
	defer op.close()

	res := &Result{Columns: cols}
	for {
		row, ok, serr := op.next()
		if serr != nil {
			return nil, serr
		}
		if !ok {
			break
		}
		cp := make([]any, len(row))
		copy(cp, row)
		res.Rows = append(res.Rows, cp)
	}
	res.AffectedRows = int64(len(res.Rows))
	return res, nil
}

func (e *Executor) execDelete(p *planner.DeletePlan) (*Result, *sqlerr.Error) {
	tbl, err := e.db.OpenTable(p.TableName)
	if err != nil {
		return nil, storageErr(err)
	}

	// Drive a sequential scan and tombstone matches as they stream by;
	// tombstoning never disturbs the slot order the iterator walks.
	var deleted int64
	scanErr := tbl.Scan(func(id heap.RID, row []any) error {
		match, serr := predicateMatches(p.Pred, tbl.Schema, row)
		if serr != nil {
			return serr
		}
		if !match {
			return nil
		}
		if err := tbl.Delete(id); err != nil {
			return err
		}
		deleted++
		return nil
	})
	if scanErr != nil {
		return nil, storageErr(scanErr)
	}

	if err := e.db.Commit(p.TableName); err != nil {
		return nil, storageErr(err)
	}
	return &Result{AffectedRows: deleted}, nil
}

// ---- operators ----

type operator interface {
	open() *sqlerr.Error
	next() ([]any, bool, *sqlerr.Error)
	close()
}

// buildOperator recursively assembles the physical tree and reports
// the output column names.
func (e *Executor) buildOperator(p planner.Plan) (operator, []string, *sqlerr.Error) {
	switch plan := p.(type) {
	case *planner.SeqScanPlan:
		tbl, err := e.db.OpenTable(plan.TableName)
		if err != nil {
			return nil, nil, storageErr(err)
		}
		return &seqScanOp{tbl: tbl}, tbl.Schema.ColNames(), nil

	case *planner.FilterPlan:
		child, cols, serr := e.buildOperator(plan.Child)
		if serr != nil {
			return nil, nil, serr
		}
		schema, serr2 := e.inputSchema(plan.Child)
		if serr2 != nil {
			return nil, nil, serr2
		}
		return &filterOp{child: child, pred: plan.Pred, schema: schema}, cols, nil

	case *planner.ProjectPlan:
		child, _, serr := e.buildOperator(plan.Child)
		if serr != nil {
			return nil, nil, serr
		}
		schema, serr2 := e.inputSchema(plan.Child)
		if serr2 != nil {
			return nil, nil, serr2
		}
		return &projectOp{child: child, exprs: plan.Exprs, schema: schema}, plan.Cols, nil
	}
	return nil, nil, sqlerr.New(sqlerr.PhaseExec, sqlerr.KindTypeMismatch, 0, 0,
		"plan node %T is not a row source", p)
}

// inputSchema finds the base-table schema feeding a plan subtree.
// Filter and Project never change the input row layout their
// expressions see.
func (e *Executor) inputSchema(p planner.Plan) (record.Schema, *sqlerr.Error) {
	for {
		switch plan := p.(type) {
		case *planner.SeqScanPlan:
			schema, err := e.db.GetSchema(plan.TableName)
			if err != nil {
				return record.Schema{}, storageErr(err)
			}
			return schema, nil
		case *planner.FilterPlan:
			p = plan.Child
		case *planner.ProjectPlan:
			p = plan.Child
		default:
			return record.Schema{}, sqlerr.New(sqlerr.PhaseExec, sqlerr.KindTypeMismatch,
				0, 0, "plan node %T has no input schema", p)
		}
	}
}

type seqScanOp struct {
	tbl *heap.Table
	it  *heap.Iterator
}

func (o *seqScanOp) open() *sqlerr.Error {
	o.it = o.tbl.NewIterator()
	return nil
}

func (o *seqScanOp) next() ([]any, bool, *sqlerr.Error) {
	_, row, ok, err := o.it.Next()
	if err != nil {
		return nil, false, storageErr(err)
	}
	return row, ok, nil
}

func (o *seqScanOp) close() {
	if o.it != nil {
		o.it.Close()
		o.it = nil
	}
}

type filterOp struct {
	child  operator
	pred   parser.Expr
	schema record.Schema
}

func (o *filterOp) open() *sqlerr.Error { return o.child.open() }

func (o *filterOp) next() ([]any, bool, *sqlerr.Error) {
	for {
		row, ok, serr := o.child.next()
		if serr != nil || !ok {
			return nil, false, serr
		}
		match, serr := predicateMatches(o.pred, o.schema, row)
		if serr != nil {
			return nil, false, serr
		}
		if match {
			return row, true, nil
		}
	}
}

func (o *filterOp) close() { o.child.close() }

type projectOp struct {
	child  operator
	exprs  []parser.Expr
	schema record.Schema
}

func (o *projectOp) open() *sqlerr.Error { return o.child.open() }

func (o *projectOp) next() ([]any, bool, *sqlerr.Error) {
	row, ok, serr := o.child.next()
	if serr != nil || !ok {
		return nil, false, serr
	}
	out := make([]any, len(o.exprs))
	for i, e := range o.exprs {
		v, serr := evalExpr(e, o.schema, row)
		if serr != nil {
			return nil, false, serr
		}
		out[i] = v
	}
	return out, true, nil
}

func (o *projectOp) close() { o.child.close() }
