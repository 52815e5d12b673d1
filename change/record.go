package change

import "fmt"

// Kind identifies the operation a pending change performs
type Kind int

const (
	Insert Kind = iota
	Update
	Delete
)

// String returns the SQL verb for the kind
func (k Kind) String() string {
	switch k {
	case Insert:
		return "INSERT"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// ColumnType is the declared type of a column, used when converting
// server-generated values back into record slots
type ColumnType int

const (
	TypeInt64 ColumnType = iota
	TypeInt32
	TypeString
	TypeBytes
	TypeFloat64
	TypeBool
	TypeTime
)

// Column is one column-modification entry of a pending change record
type Column struct {
	Name string
	Type ColumnType

	// Value is the value to write; OriginalValue is the value the row had
	// when it was read, used in concurrency WHERE clauses
	Value         interface{}
	OriginalValue interface{}

	// ParameterName is non-empty when the current value is bound as a
	// statement parameter; OriginalParameterName likewise for the
	// original value
	ParameterName         string
	OriginalParameterName string

	Write bool // value is sent to the server
	Read  bool // value must be retrieved back after execution
	Key   bool // part of the row's identifying key
}

// Record describes one row's pending insert, update or delete
type Record struct {
	Schema  string
	Table   string
	Kind    Kind
	Columns []Column
}

// RequiresResultPropagation reports whether any column value must be
// read back from the server after execution
func (r *Record) RequiresResultPropagation() bool {
	for i := range r.Columns {
		if r.Columns[i].Read {
			return true
		}
	}
	return false
}

// ParameterSlots counts the statement parameters this record binds:
// one per non-empty write parameter name plus one per non-empty
// original-value parameter name
func (r *Record) ParameterSlots() int {
	n := 0
	for i := range r.Columns {
		if r.Columns[i].ParameterName != "" {
			n++
		}
		if r.Columns[i].OriginalParameterName != "" {
			n++
		}
	}
	return n
}

// WriteColumnNames returns the ordered names of write-flagged columns
func (r *Record) WriteColumnNames() []string {
	var names []string
	for i := range r.Columns {
		if r.Columns[i].Write {
			names = append(names, r.Columns[i].Name)
		}
	}
	return names
}

// ReadColumnNames returns the ordered names of read-flagged columns
func (r *Record) ReadColumnNames() []string {
	var names []string
	for i := range r.Columns {
		if r.Columns[i].Read {
			names = append(names, r.Columns[i].Name)
		}
	}
	return names
}

// KeyColumnIndexes returns the positions of key-flagged columns
func (r *Record) KeyColumnIndexes() []int {
	var idx []int
	for i := range r.Columns {
		if r.Columns[i].Key {
			idx = append(idx, i)
		}
	}
	return idx
}

// SameShape reports whether two records may share one SQL statement:
// identical table identity and identical ordered write-column and
// read-column name sequences
func (r *Record) SameShape(o *Record) bool {
	if r.Schema != o.Schema || r.Table != o.Table {
		return false
	}
	if !equalNames(r.WriteColumnNames(), o.WriteColumnNames()) {
		return false
	}
	return equalNames(r.ReadColumnNames(), o.ReadColumnNames())
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AssignGeneratedKey stores a server-generated identity into the key
// column at columnIndex, converting to the column's declared numeric
// type when it is a 32-bit integer
func (r *Record) AssignGeneratedKey(columnIndex int, value int64) error {
	if columnIndex < 0 || columnIndex >= len(r.Columns) {
		return fmt.Errorf("change: column index %d out of range for %s.%s", columnIndex, r.Schema, r.Table)
	}
	col := &r.Columns[columnIndex]
	if !col.Key {
		return fmt.Errorf("change: column %s of %s.%s is not a key column", col.Name, r.Schema, r.Table)
	}
	if col.Type == TypeInt32 {
		col.Value = int32(value)
	} else {
		col.Value = value
	}
	return nil
}

// SetValue overwrites the value slot of the column at columnIndex with
// a server-returned value
func (r *Record) SetValue(columnIndex int, value interface{}) error {
	if columnIndex < 0 || columnIndex >= len(r.Columns) {
		return fmt.Errorf("change: column index %d out of range for %s.%s", columnIndex, r.Schema, r.Table)
	}
	r.Columns[columnIndex].Value = value
	return nil
}
