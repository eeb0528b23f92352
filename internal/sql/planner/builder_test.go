package planner

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonsql/moonsql/internal/record"
	"github.com/moonsql/moonsql/internal/sql/lexer"
	"github.com/moonsql/moonsql/internal/sql/parser"
)

type fakeCatalog map[string]record.Schema

func (f fakeCatalog) GetSchema(name string) (record.Schema, error) {
	s, ok := f[name]
	if !ok {
		return record.Schema{}, fmt.Errorf("unknown table %q", name)
	}
	return s, nil
}

func testCatalog() fakeCatalog {
	return fakeCatalog{
		"s": {Cols: []record.Column{
			{Name: "id", Type: record.ColInt, PrimaryKey: true},
			{Name: "name", Type: record.ColVarchar, Param: 16, Nullable: true},
			{Name: "age", Type: record.ColInt, Nullable: true},
		}},
	}
}

func buildFor(t *testing.T, src string) Plan {
	t.Helper()
	toks, lexErrs := lexer.Lex(src)
	require.Empty(t, lexErrs)
	stmt, perr := parser.ParseStatement(toks)
	require.Nil(t, perr)
	plan, serr := BuildPlan(stmt, testCatalog())
	require.Nil(t, serr)
	return plan
}

func TestBuild_CreateTable(t *testing.T) {
	plan := buildFor(t, "CREATE TABLE t(id INT PRIMARY KEY, note VARCHAR(8));")

	ct := plan.(*CreateTablePlan)
	assert.Equal(t, "t", ct.TableName)
	require.Equal(t, 2, ct.Schema.NumCols())
	assert.True(t, ct.Schema.Cols[0].PrimaryKey)
	assert.False(t, ct.Schema.Cols[0].Nullable) // PRIMARY KEY implies NOT NULL
	assert.True(t, ct.Schema.Cols[1].Nullable)
	assert.Equal(t, uint32(8), ct.Schema.Cols[1].Param)
}

func TestBuild_InsertReordersAndFillsNulls(t *testing.T) {
	plan := buildFor(t, "INSERT INTO s(age, id) VALUES (20, 1);")

	ins := plan.(*InsertPlan)
	require.Len(t, ins.Rows, 1)
	// Schema order is (id, name, age); name was omitted.
	assert.Equal(t, []any{int64(1), nil, int64(20)}, ins.Rows[0])
}

func TestBuild_InsertFullSchemaOrder(t *testing.T) {
	plan := buildFor(t, "INSERT INTO s VALUES (1,'ann',20),(2,'bob',17);")

	ins := plan.(*InsertPlan)
	require.Len(t, ins.Rows, 2)
	assert.Equal(t, []any{int64(1), "ann", int64(20)}, ins.Rows[0])
	assert.Equal(t, []any{int64(2), "bob", int64(17)}, ins.Rows[1])
}

func TestBuild_SelectShapes(t *testing.T) {
	// SELECT * with no WHERE is a bare scan.
	plan := buildFor(t, "SELECT * FROM s;")
	_, ok := plan.(*SeqScanPlan)
	assert.True(t, ok)

	// WHERE adds a Filter below the scan consumer.
	plan = buildFor(t, "SELECT * FROM s WHERE age > 18;")
	f, ok := plan.(*FilterPlan)
	require.True(t, ok)
	_, ok = f.Child.(*SeqScanPlan)
	assert.True(t, ok)

	// A projection list wraps everything in Project.
	plan = buildFor(t, "SELECT id, name FROM s WHERE age > 18;")
	p, ok := plan.(*ProjectPlan)
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name"}, p.Cols)
	f, ok = p.Child.(*FilterPlan)
	require.True(t, ok)
	_, ok = f.Child.(*SeqScanPlan)
	assert.True(t, ok)
}

func TestBuild_DeletePredicateDefaultsToTrue(t *testing.T) {
	plan := buildFor(t, "DELETE FROM s;")
	del := plan.(*DeletePlan)
	lit, ok := del.Pred.(*parser.BoolLit)
	require.True(t, ok)
	assert.True(t, lit.Value)

	plan = buildFor(t, "DELETE FROM s WHERE id = 2;")
	del = plan.(*DeletePlan)
	_, ok = del.Pred.(*parser.BinaryExpr)
	assert.True(t, ok)
}

func TestPlan_JSONIsDeterministic(t *testing.T) {
	src := "SELECT id, name FROM s WHERE age > 18 AND name <> 'x';"
	first := ToJSON(buildFor(t, src))
	second := ToJSON(buildFor(t, src))
	assert.Equal(t, first, second)

	assert.Contains(t, first, `"op": "Project"`)
	assert.Contains(t, first, `"op": "Filter"`)
	assert.Contains(t, first, `"op": "SeqScan"`)
	assert.Contains(t, first, `"table": "s"`)
}

func TestExprString(t *testing.T) {
	plan := buildFor(t, "SELECT id + 1, name FROM s;")
	p := plan.(*ProjectPlan)
	assert.Equal(t, []string{"(id + 1)", "name"}, p.Cols)
}
