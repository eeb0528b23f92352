package executor

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonsql/moonsql/internal"
	"github.com/moonsql/moonsql/internal/catalog"
	"github.com/moonsql/moonsql/internal/engine"
	"github.com/moonsql/moonsql/internal/heap"
	"github.com/moonsql/moonsql/internal/sqlerr"
)

func newTestEngine(t *testing.T) (*engine.Database, *Executor) {
	t.Helper()
	db, err := engine.OpenInMemory(internal.DefaultConfig())
	require.NoError(t, err)
	return db, NewExecutor(db)
}

// mustExec runs one statement and fails the test on any error.
func mustExec(t *testing.T, ex *Executor, src string) *Result {
	t.Helper()
	results, serr := ex.ExecSQL(src)
	require.Nil(t, serr, "exec %q: %v", src, serr)
	require.Len(t, results, 1)
	return results[0]
}

func execErr(t *testing.T, ex *Executor, src string) *sqlerr.Error {
	t.Helper()
	_, serr := ex.ExecSQL(src)
	require.NotNil(t, serr, "expected error for %q", src)
	return serr
}

func TestExecutor_CreateInsertSelectDelete(t *testing.T) {
	db, ex := newTestEngine(t)

	// CREATE TABLE registers one sys_tables row.
	res := mustExec(t, ex, "CREATE TABLE s(id INT PRIMARY KEY, name VARCHAR(16), age INT);")
	assert.Equal(t, int64(0), res.AffectedRows)

	names, err := db.ListTables()
	require.NoError(t, err)
	assert.Contains(t, names, "s")

	res = mustExec(t, ex, "INSERT INTO s VALUES (1,'ann',20),(2,'bob',17);")
	assert.Equal(t, int64(2), res.AffectedRows)

	res = mustExec(t, ex, "SELECT id, name FROM s WHERE age > 18;")
	assert.Equal(t, []string{"id", "name"}, res.Columns)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []any{int64(1), "ann"}, res.Rows[0])

	// Duplicate primary key is a runtime error.
	serr := execErr(t, ex, "INSERT INTO s VALUES (1,'eve',30);")
	assert.Equal(t, sqlerr.PhaseExec, serr.Phase)
	assert.Equal(t, sqlerr.KindDuplicatePrimaryKey, serr.Kind)

	res = mustExec(t, ex, "DELETE FROM s WHERE id = 2;")
	assert.Equal(t, int64(1), res.AffectedRows)

	res = mustExec(t, ex, "SELECT * FROM s;")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []any{int64(1), "ann", int64(20)}, res.Rows[0])

	// Buffer discipline: nothing stays pinned between statements.
	assert.Equal(t, 0, db.BP.PinnedCount())
}

func TestExecutor_CreateExistingTableFails(t *testing.T) {
	_, ex := newTestEngine(t)
	mustExec(t, ex, "CREATE TABLE t(id INT);")

	serr := execErr(t, ex, "CREATE TABLE t(id INT);")
	assert.Equal(t, sqlerr.KindTableExists, serr.Kind)
}

func TestExecutor_InsertSpansPages(t *testing.T) {
	db, ex := newTestEngine(t)
	mustExec(t, ex, "CREATE TABLE big(id INT PRIMARY KEY, pad VARCHAR(200));")

	pad := strings.Repeat("x", 200)
	var stmts strings.Builder
	for i := 0; i < 30; i++ {
		// ~215 bytes per row; 30 rows cannot fit in one 4096-byte page.
		stmts.WriteString("INSERT INTO big VALUES (")
		stmts.WriteString(strconv.Itoa(i))
		stmts.WriteString(",'" + pad + "');")
	}
	_, serr := ex.ExecSQL(stmts.String())
	require.Nil(t, serr)

	n, err := db.FM.PageCount("big")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)

	// page_count recorded in sys_tables matches the file manager.
	tbl, err := db.OpenTable(catalog.SysTables)
	require.NoError(t, err)
	var recorded int64
	require.NoError(t, tbl.Scan(func(_ heap.RID, row []any) error {
		if row[0].(string) == "big" {
			recorded = row[2].(int64)
		}
		return nil
	}))
	assert.Equal(t, int64(2), recorded)

	// Every row is reachable by scan.
	res := mustExec(t, ex, "SELECT id FROM big;")
	assert.Len(t, res.Rows, 30)
}

func TestExecutor_NotNullViolation(t *testing.T) {
	_, ex := newTestEngine(t)
	mustExec(t, ex, "CREATE TABLE t(id INT PRIMARY KEY, v INT NOT NULL, note VARCHAR(8));")

	// The NOT NULL column is omitted, so the planner fills NULL and
	// the executor rejects it at runtime.
	serr := execErr(t, ex, "INSERT INTO t(id, note) VALUES (1, 'x');")
	assert.Equal(t, sqlerr.PhaseExec, serr.Phase)
	assert.Equal(t, sqlerr.KindNotNullViolation, serr.Kind)
}

func TestExecutor_FailedInsertKeepsEarlierRows(t *testing.T) {
	_, ex := newTestEngine(t)
	mustExec(t, ex, "CREATE TABLE t(id INT PRIMARY KEY);")

	// Third row collides; the first two stay (no rollback).
	serr := execErr(t, ex, "INSERT INTO t VALUES (1),(2),(1);")
	assert.Equal(t, sqlerr.KindDuplicatePrimaryKey, serr.Kind)

	res := mustExec(t, ex, "SELECT * FROM t;")
	assert.Len(t, res.Rows, 2)
}

func TestExecutor_ThreeValuedLogic(t *testing.T) {
	_, ex := newTestEngine(t)
	mustExec(t, ex, "CREATE TABLE t(id INT PRIMARY KEY, age INT, active BOOLEAN);")
	mustExec(t, ex, "INSERT INTO t VALUES (1, 20, TRUE),(2, NULL, FALSE),(3, 30, NULL);")

	// A NULL predicate does not emit the row.
	res := mustExec(t, ex, "SELECT id FROM t WHERE age > 18;")
	assert.Equal(t, [][]any{{int64(1)}, {int64(3)}}, res.Rows)

	// NOT NULL is NULL: row 2 stays out either way.
	res = mustExec(t, ex, "SELECT id FROM t WHERE NOT (age > 18);")
	assert.Empty(t, res.Rows)

	// Kleene OR: NULL OR TRUE is TRUE.
	res = mustExec(t, ex, "SELECT id FROM t WHERE active OR age = 30;")
	assert.Equal(t, [][]any{{int64(1)}, {int64(3)}}, res.Rows)

	// Kleene AND: FALSE AND NULL is FALSE, NULL AND TRUE is NULL.
	res = mustExec(t, ex, "SELECT id FROM t WHERE active AND age = 30;")
	assert.Empty(t, res.Rows)

	// Projection of a NULL operand yields NULL.
	res = mustExec(t, ex, "SELECT age + 1 FROM t WHERE id = 2;")
	require.Len(t, res.Rows, 1)
	assert.Nil(t, res.Rows[0][0])
}

func TestExecutor_DivisionByZero(t *testing.T) {
	_, ex := newTestEngine(t)
	mustExec(t, ex, "CREATE TABLE t(id INT PRIMARY KEY, n INT);")
	mustExec(t, ex, "INSERT INTO t VALUES (1, 0);")

	serr := execErr(t, ex, "SELECT id / n FROM t;")
	assert.Equal(t, sqlerr.KindDivisionByZero, serr.Kind)

	// NULL divisor is NULL, not an error.
	mustExec(t, ex, "INSERT INTO t VALUES (2, NULL);")
	res := mustExec(t, ex, "SELECT id / n FROM t WHERE id = 2;")
	require.Len(t, res.Rows, 1)
	assert.Nil(t, res.Rows[0][0])
}

func TestExecutor_DeleteAllAndIdempotentTombstones(t *testing.T) {
	_, ex := newTestEngine(t)
	mustExec(t, ex, "CREATE TABLE t(id INT PRIMARY KEY);")
	mustExec(t, ex, "INSERT INTO t VALUES (1),(2),(3);")

	res := mustExec(t, ex, "DELETE FROM t;")
	assert.Equal(t, int64(3), res.AffectedRows)

	res = mustExec(t, ex, "SELECT * FROM t;")
	assert.Empty(t, res.Rows)

	// Deleting again matches nothing.
	res = mustExec(t, ex, "DELETE FROM t;")
	assert.Equal(t, int64(0), res.AffectedRows)
}

func TestExecutor_ProjectionExpressions(t *testing.T) {
	_, ex := newTestEngine(t)
	mustExec(t, ex, "CREATE TABLE t(id INT PRIMARY KEY, n INT);")
	mustExec(t, ex, "INSERT INTO t VALUES (1, 10),(2, 20);")

	res := mustExec(t, ex, "SELECT n * 2 + 1, id FROM t;")
	assert.Equal(t, []string{"((n * 2) + 1)", "id"}, res.Columns)
	assert.Equal(t, [][]any{{int64(21), int64(1)}, {int64(41), int64(2)}}, res.Rows)
}

func TestExecutor_VarcharComparisonIsByteOrder(t *testing.T) {
	_, ex := newTestEngine(t)
	mustExec(t, ex, "CREATE TABLE t(id INT PRIMARY KEY, name VARCHAR(8));")
	mustExec(t, ex, "INSERT INTO t VALUES (1,'ann'),(2,'bob'),(3,'Zed');")

	// 'Z' < 'a' in byte order.
	res := mustExec(t, ex, "SELECT id FROM t WHERE name < 'ann';")
	assert.Equal(t, [][]any{{int64(3)}}, res.Rows)
}
