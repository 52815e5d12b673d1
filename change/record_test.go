package change

import "testing"

func insertRecord(table string) *Record {
	return &Record{
		Schema: "app",
		Table:  table,
		Kind:   Insert,
		Columns: []Column{
			{Name: "id", Type: TypeInt64, Key: true, Read: true},
			{Name: "name", Type: TypeString, Write: true, ParameterName: "p0", Value: "x"},
		},
	}
}

func TestRecord_ParameterSlots(t *testing.T) {
	r := &Record{
		Kind: Update,
		Columns: []Column{
			{Name: "id", Key: true, OriginalParameterName: "p0", OriginalValue: int64(7)},
			{Name: "name", Write: true, ParameterName: "p1", Value: "x"},
			{Name: "version", Write: true, ParameterName: "p2", OriginalParameterName: "p3"},
			{Name: "computed", Read: true},
		},
	}

	if got := r.ParameterSlots(); got != 4 {
		t.Errorf("Expected 4 parameter slots, got %d", got)
	}
}

func TestRecord_RequiresResultPropagation(t *testing.T) {
	r := insertRecord("users")
	if !r.RequiresResultPropagation() {
		t.Error("Record with read column should require propagation")
	}

	r.Columns[0].Read = false
	if r.RequiresResultPropagation() {
		t.Error("Record without read columns should not require propagation")
	}
}

func TestRecord_SameShape(t *testing.T) {
	a := insertRecord("users")
	b := insertRecord("users")
	if !a.SameShape(b) {
		t.Error("Identical records should share a shape")
	}

	c := insertRecord("orders")
	if a.SameShape(c) {
		t.Error("Different tables should not share a shape")
	}

	d := insertRecord("users")
	d.Columns[1].Name = "title"
	if a.SameShape(d) {
		t.Error("Different write columns should not share a shape")
	}

	e := insertRecord("users")
	e.Columns[0].Read = false
	if a.SameShape(e) {
		t.Error("Different read columns should not share a shape")
	}

	f := insertRecord("users")
	f.Schema = "other"
	if a.SameShape(f) {
		t.Error("Different schemas should not share a shape")
	}
}

func TestRecord_AssignGeneratedKey(t *testing.T) {
	r := insertRecord("users")

	if err := r.AssignGeneratedKey(0, 42); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if v, ok := r.Columns[0].Value.(int64); !ok || v != 42 {
		t.Errorf("Expected int64 42, got %T %v", r.Columns[0].Value, r.Columns[0].Value)
	}

	// 32-bit key columns get a converted value
	r.Columns[0].Type = TypeInt32
	if err := r.AssignGeneratedKey(0, 43); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if v, ok := r.Columns[0].Value.(int32); !ok || v != 43 {
		t.Errorf("Expected int32 43, got %T %v", r.Columns[0].Value, r.Columns[0].Value)
	}

	// Non-key columns are rejected
	if err := r.AssignGeneratedKey(1, 44); err == nil {
		t.Error("Expected error assigning key to non-key column")
	}

	// Out of range
	if err := r.AssignGeneratedKey(5, 44); err == nil {
		t.Error("Expected error for out-of-range column index")
	}
}
