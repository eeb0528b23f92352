package record

import "fmt"

// ColumnType codes are persisted in sys_columns.type_code; keep the
// numeric values stable.
type ColumnType uint8

const (
	ColInt     ColumnType = 1 // signed 64-bit
	ColVarchar ColumnType = 2 // UTF-8, Param = declared max length
	ColBool    ColumnType = 3
)

func (t ColumnType) String() string {
	switch t {
	case ColInt:
		return "INT"
	case ColVarchar:
		return "VARCHAR"
	case ColBool:
		return "BOOLEAN"
	default:
		return fmt.Sprintf("ColumnType(%d)", uint8(t))
	}
}

const MaxVarcharLen = 65535

type Column struct {
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	Param      uint32     `json:"param,omitempty"` // VARCHAR(n)
	Nullable   bool       `json:"nullable"`
	PrimaryKey bool       `json:"primary_key,omitempty"`
}

// SQLType renders the column type the way it appears in DDL.
func (c Column) SQLType() string {
	if c.Type == ColVarchar {
		return fmt.Sprintf("VARCHAR(%d)", c.Param)
	}
	return c.Type.String()
}

type Schema struct {
	Cols []Column `json:"cols"`
}

func (s Schema) NumCols() int { return len(s.Cols) }

// ColIndex returns the ordinal of the named column, or -1.
func (s Schema) ColIndex(name string) int {
	for i := range s.Cols {
		if s.Cols[i].Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) ColNames() []string {
	names := make([]string, len(s.Cols))
	for i, c := range s.Cols {
		names[i] = c.Name
	}
	return names
}
