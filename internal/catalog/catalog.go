// Package catalog manages the system tables that describe every table
// in the database. The catalog is self-describing: sys_tables,
// sys_columns and sys_indexes are ordinary heap tables whose own
// schemas are hard-coded here to break the bootstrap cycle.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/moonsql/moonsql/internal/bufferpool"
	"github.com/moonsql/moonsql/internal/heap"
	"github.com/moonsql/moonsql/internal/record"
	"github.com/moonsql/moonsql/internal/storage"
)

const (
	SysTables  = "sys_tables"
	SysColumns = "sys_columns"
	SysIndexes = "sys_indexes"
)

var (
	ErrUnknownTable = errors.New("catalog: unknown table")
	ErrTableExists  = errors.New("catalog: table already exists")
)

func sysTablesSchema() record.Schema {
	return record.Schema{Cols: []record.Column{
		{Name: "table_name", Type: record.ColVarchar, Param: 128},
		{Name: "first_page", Type: record.ColInt},
		{Name: "page_count", Type: record.ColInt},
	}}
}

func sysColumnsSchema() record.Schema {
	return record.Schema{Cols: []record.Column{
		{Name: "table_name", Type: record.ColVarchar, Param: 128},
		{Name: "ordinal", Type: record.ColInt},
		{Name: "col_name", Type: record.ColVarchar, Param: 128},
		{Name: "type_code", Type: record.ColInt},
		{Name: "type_param", Type: record.ColInt},
		{Name: "nullable", Type: record.ColBool},
		{Name: "primary_key", Type: record.ColBool},
	}}
}

// sys_indexes is bootstrapped for forward compatibility; nothing
// writes user rows into it yet.
func sysIndexesSchema() record.Schema {
	return record.Schema{Cols: []record.Column{
		{Name: "table_name", Type: record.ColVarchar, Param: 128},
		{Name: "col_name", Type: record.ColVarchar, Param: 128},
		{Name: "kind", Type: record.ColInt},
	}}
}

// Manager resolves table names to schemas and persists DDL through the
// same heap/page machinery as user data.
type Manager struct {
	fm storage.FileManager
	bp *bufferpool.Pool

	schemas map[string]record.Schema // cache, authoritative copy on disk
}

func NewManager(fm storage.FileManager, bp *bufferpool.Pool) *Manager {
	m := &Manager{
		fm:      fm,
		bp:      bp,
		schemas: make(map[string]record.Schema),
	}
	m.schemas[SysTables] = sysTablesSchema()
	m.schemas[SysColumns] = sysColumnsSchema()
	m.schemas[SysIndexes] = sysIndexesSchema()
	return m
}

// Bootstrap creates the system tables on first open. A data directory
// where sys_tables has pages is considered initialized and left alone.
func (m *Manager) Bootstrap() error {
	n, err := m.fm.PageCount(SysTables)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Give every system table its first page before any descriptor
	// row is written, so the recorded page counts are stable.
	sysNames := []string{SysTables, SysColumns, SysIndexes}
	for _, name := range sysNames {
		if err := m.allocateFirstPage(name); err != nil {
			return err
		}
	}
	for _, name := range sysNames {
		if err := m.recordSchema(name, m.schemas[name]); err != nil {
			return err
		}
	}
	return m.bp.FlushAll()
}

func (m *Manager) allocateFirstPage(name string) error {
	_, h, err := m.bp.NewPage(name)
	if err != nil {
		return err
	}
	m.bp.Unpin(h, true)
	return nil
}

// recordSchema writes the table's descriptor rows into sys_tables and
// sys_columns.
func (m *Manager) recordSchema(name string, schema record.Schema) error {
	count, err := m.fm.PageCount(name)
	if err != nil {
		return err
	}

	tables := m.sysTable(SysTables)
	if _, err := tables.Insert([]any{name, int64(0), int64(count)}); err != nil {
		return err
	}

	columns := m.sysTable(SysColumns)
	for i, col := range schema.Cols {
		row := []any{
			name,
			int64(i),
			col.Name,
			int64(col.Type),
			int64(col.Param),
			col.Nullable,
			col.PrimaryKey,
		}
		if _, err := columns.Insert(row); err != nil {
			return err
		}
	}
	return nil
}

// sysTable opens a heap view of a system table with the current page
// count from the file manager.
func (m *Manager) sysTable(name string) *heap.Table {
	n, _ := m.fm.PageCount(name)
	return heap.NewTable(name, m.schemas[name], m.bp, n)
}

// CreateTable registers a new user table and allocates its first page.
func (m *Manager) CreateTable(name string, schema record.Schema) error {
	if _, err := m.GetSchema(name); err == nil {
		return fmt.Errorf("%w: %s", ErrTableExists, name)
	}
	if err := m.allocateFirstPage(name); err != nil {
		return err
	}
	if err := m.recordSchema(name, schema); err != nil {
		return err
	}
	m.schemas[name] = schema
	return nil
}

// DropTable removes the table's catalog rows, cached pages and heap
// file.
func (m *Manager) DropTable(name string) error {
	if _, err := m.GetSchema(name); err != nil {
		return err
	}

	if err := m.deleteRowsByTable(SysColumns, name); err != nil {
		return err
	}
	if err := m.deleteRowsByTable(SysTables, name); err != nil {
		return err
	}
	delete(m.schemas, name)

	m.bp.DropTable(name)
	return m.fm.RemoveTable(name)
}

func (m *Manager) deleteRowsByTable(sysName, table string) error {
	t := m.sysTable(sysName)
	var rids []heap.RID
	err := t.Scan(func(id heap.RID, row []any) error {
		if tn, ok := row[0].(string); ok && tn == table {
			rids = append(rids, id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range rids {
		if err := t.Delete(id); err != nil {
			return err
		}
	}
	return nil
}

// GetSchema returns the schema for name, reading sys_columns when the
// cache is cold.
func (m *Manager) GetSchema(name string) (record.Schema, error) {
	if s, ok := m.schemas[name]; ok {
		return s, nil
	}

	type ordered struct {
		ordinal int64
		col     record.Column
	}
	var cols []ordered

	columns := m.sysTable(SysColumns)
	err := columns.Scan(func(_ heap.RID, row []any) error {
		tn, ok := row[0].(string)
		if !ok || tn != name {
			return nil
		}
		cols = append(cols, ordered{
			ordinal: row[1].(int64),
			col: record.Column{
				Name:       row[2].(string),
				Type:       record.ColumnType(row[3].(int64)),
				Param:      uint32(row[4].(int64)),
				Nullable:   row[5].(bool),
				PrimaryKey: row[6].(bool),
			},
		})
		return nil
	})
	if err != nil {
		return record.Schema{}, err
	}
	if len(cols) == 0 {
		return record.Schema{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}

	sort.Slice(cols, func(i, j int) bool { return cols[i].ordinal < cols[j].ordinal })
	schema := record.Schema{}
	for _, c := range cols {
		schema.Cols = append(schema.Cols, c.col)
	}
	m.schemas[name] = schema
	return schema, nil
}

// ListTables returns every table named in sys_tables, system tables
// included, in scan order.
func (m *Manager) ListTables() ([]string, error) {
	var names []string
	tables := m.sysTable(SysTables)
	err := tables.Scan(func(_ heap.RID, row []any) error {
		if tn, ok := row[0].(string); ok {
			names = append(names, tn)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// SyncPageCount rewrites the table's sys_tables row when the heap has
// grown, keeping page_count consistent with the file manager.
func (m *Manager) SyncPageCount(table string) error {
	actual, err := m.fm.PageCount(table)
	if err != nil {
		return err
	}

	tables := m.sysTable(SysTables)
	var stale *heap.RID
	var firstPage int64
	err = tables.Scan(func(id heap.RID, row []any) error {
		if tn, ok := row[0].(string); ok && tn == table {
			if row[2].(int64) != int64(actual) {
				rid := id
				stale = &rid
				firstPage = row[1].(int64)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if stale == nil {
		return nil
	}
	if err := tables.Delete(*stale); err != nil {
		return err
	}
	_, err = tables.Insert([]any{table, firstPage, int64(actual)})
	return err
}

// PageCount reports the on-disk page count for a table.
func (m *Manager) PageCount(table string) (uint32, error) {
	return m.fm.PageCount(table)
}
