package sqlgen_test

import (
	"testing"
	"time"

	"github.com/mevdschee/tqormysql/batch"
	"github.com/mevdschee/tqormysql/cache"
	"github.com/mevdschee/tqormysql/change"
	"github.com/mevdschee/tqormysql/sqlgen"
)

func insertRec() *change.Record {
	return &change.Record{
		Schema: "app",
		Table:  "users",
		Kind:   change.Insert,
		Columns: []change.Column{
			{Name: "id", Type: change.TypeInt64, Key: true, Read: true},
			{Name: "name", Type: change.TypeString, Write: true, ParameterName: "p0", Value: "alice"},
			{Name: "created_at", Type: change.TypeTime, Write: true},
		},
	}
}

func updateRec() *change.Record {
	return &change.Record{
		Schema: "app",
		Table:  "users",
		Kind:   change.Update,
		Columns: []change.Column{
			{Name: "id", Type: change.TypeInt64, Key: true, OriginalParameterName: "p0", OriginalValue: int64(3)},
			{Name: "name", Type: change.TypeString, Write: true, ParameterName: "p1", Value: "bob"},
			{Name: "version", Type: change.TypeInt64, Write: true, ParameterName: "p2", OriginalParameterName: "p3", Value: int64(2), OriginalValue: int64(1)},
		},
	}
}

func TestGenerator_Insert(t *testing.T) {
	g := sqlgen.New(nil)
	stmt, mapping, err := g.AppendStatement(insertRec())
	if err != nil {
		t.Fatalf("AppendStatement failed: %v", err)
	}

	want := "INSERT INTO `app`.`users` (`name`, `created_at`) VALUES (?, DEFAULT)"
	if stmt.Exec != want {
		t.Errorf("Exec = %q, want %q", stmt.Exec, want)
	}
	if len(stmt.Args) != 1 || stmt.Args[0] != "alice" {
		t.Errorf("Args = %v", stmt.Args)
	}
	if mapping != batch.LastInResultSet {
		t.Errorf("Mapping = %d, want last-in-result-set", mapping)
	}
}

func TestGenerator_InsertWithoutReadsHasNoResultSet(t *testing.T) {
	g := sqlgen.New(nil)
	rec := insertRec()
	rec.Columns[0].Read = false
	rec.Columns[0].Write = true
	rec.Columns[0].ParameterName = "p9"
	rec.Columns[0].Value = int64(5)

	_, mapping, err := g.AppendStatement(rec)
	if err != nil {
		t.Fatalf("AppendStatement failed: %v", err)
	}
	if mapping != batch.NoResultSet {
		t.Errorf("Mapping = %d, want no-result-set", mapping)
	}
}

func TestGenerator_Update(t *testing.T) {
	g := sqlgen.New(nil)
	stmt, mapping, err := g.AppendStatement(updateRec())
	if err != nil {
		t.Fatalf("AppendStatement failed: %v", err)
	}

	want := "UPDATE `app`.`users` SET `name` = ?, `version` = ? WHERE `id` = ? AND `version` = ?"
	if stmt.Exec != want {
		t.Errorf("Exec = %q, want %q", stmt.Exec, want)
	}
	wantArgs := []interface{}{"bob", int64(2), int64(3), int64(1)}
	if len(stmt.Args) != len(wantArgs) {
		t.Fatalf("Args = %v, want %v", stmt.Args, wantArgs)
	}
	for i := range wantArgs {
		if stmt.Args[i] != wantArgs[i] {
			t.Errorf("Args[%d] = %v, want %v", i, stmt.Args[i], wantArgs[i])
		}
	}
	if mapping != batch.LastInResultSet {
		t.Errorf("Mapping = %d, want last-in-result-set", mapping)
	}
	if stmt.Query != "" {
		t.Errorf("Update without reads should have no echo query, got %q", stmt.Query)
	}
}

func TestGenerator_UpdateWithEcho(t *testing.T) {
	g := sqlgen.New(nil)
	rec := updateRec()
	rec.Columns = append(rec.Columns, change.Column{Name: "updated_at", Type: change.TypeTime, Read: true})

	stmt, mapping, err := g.AppendStatement(rec)
	if err != nil {
		t.Fatalf("AppendStatement failed: %v", err)
	}
	wantQuery := "SELECT `updated_at` FROM `app`.`users` WHERE `id` = ? AND `version` = ?"
	if stmt.Query != wantQuery {
		t.Errorf("Query = %q, want %q", stmt.Query, wantQuery)
	}
	if len(stmt.QueryArgs) != 2 {
		t.Errorf("QueryArgs = %v", stmt.QueryArgs)
	}
	if mapping != batch.LastInResultSet {
		t.Errorf("Mapping = %d, want last-in-result-set", mapping)
	}
}

func TestGenerator_Delete(t *testing.T) {
	g := sqlgen.New(nil)
	rec := &change.Record{
		Schema: "app",
		Table:  "users",
		Kind:   change.Delete,
		Columns: []change.Column{
			{Name: "id", Type: change.TypeInt64, Key: true, OriginalParameterName: "p0", OriginalValue: int64(3)},
		},
	}

	stmt, mapping, err := g.AppendStatement(rec)
	if err != nil {
		t.Fatalf("AppendStatement failed: %v", err)
	}
	want := "DELETE FROM `app`.`users` WHERE `id` = ?"
	if stmt.Exec != want {
		t.Errorf("Exec = %q, want %q", stmt.Exec, want)
	}
	if mapping != batch.LastInResultSet {
		t.Errorf("Mapping = %d, want last-in-result-set", mapping)
	}
}

func TestGenerator_UpdateWithoutWhereBindingsFails(t *testing.T) {
	g := sqlgen.New(nil)
	rec := updateRec()
	for i := range rec.Columns {
		rec.Columns[i].OriginalParameterName = ""
	}

	if _, _, err := g.AppendStatement(rec); err == nil {
		t.Fatal("Update without bound original values must not render")
	}
}

func TestGenerator_DeleteWithoutWhereBindingsFails(t *testing.T) {
	g := sqlgen.New(nil)
	rec := &change.Record{
		Schema:  "app",
		Table:   "users",
		Kind:    change.Delete,
		Columns: []change.Column{{Name: "id", Type: change.TypeInt64, Key: true}},
	}

	if _, _, err := g.AppendStatement(rec); err == nil {
		t.Fatal("Delete without bound original values must not render")
	}
}

func TestGenerator_GroupedInsert(t *testing.T) {
	g := sqlgen.New(nil)
	recs := []*change.Record{insertRec(), insertRec(), insertRec()}
	recs[1].Columns[1].Value = "bob"
	recs[2].Columns[1].Value = "carol"

	stmt, mapping, err := g.AppendGroupedInsert(recs)
	if err != nil {
		t.Fatalf("AppendGroupedInsert failed: %v", err)
	}
	want := "INSERT INTO `app`.`users` (`name`, `created_at`) VALUES (?, DEFAULT), (?, DEFAULT), (?, DEFAULT)"
	if stmt.Exec != want {
		t.Errorf("Exec = %q, want %q", stmt.Exec, want)
	}
	wantArgs := []interface{}{"alice", "bob", "carol"}
	for i := range wantArgs {
		if stmt.Args[i] != wantArgs[i] {
			t.Errorf("Args[%d] = %v, want %v", i, stmt.Args[i], wantArgs[i])
		}
	}
	if mapping != batch.NotLastInResultSet {
		t.Errorf("Mapping = %d, want not-last-in-result-set", mapping)
	}
}

func TestGenerator_QuotesAwkwardIdentifiers(t *testing.T) {
	g := sqlgen.New(nil)
	rec := &change.Record{
		Table: "odd`table",
		Kind:  change.Delete,
		Columns: []change.Column{
			{Name: "id", Key: true, OriginalParameterName: "p0", OriginalValue: int64(1)},
		},
	}

	stmt, _, err := g.AppendStatement(rec)
	if err != nil {
		t.Fatalf("AppendStatement failed: %v", err)
	}
	want := "DELETE FROM `odd``table` WHERE `id` = ?"
	if stmt.Exec != want {
		t.Errorf("Exec = %q, want %q", stmt.Exec, want)
	}
}

func TestGenerator_CachedRenderingMatches(t *testing.T) {
	c, err := cache.New(64)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer c.Close()
	g := sqlgen.New(c)

	first, _, _ := g.AppendStatement(updateRec())
	time.Sleep(10 * time.Millisecond) // allow async cache set
	second, _, _ := g.AppendStatement(updateRec())

	if first.Exec != second.Exec {
		t.Errorf("Cached rendering diverged:\n%q\n%q", first.Exec, second.Exec)
	}

	// a different shape must not reuse the cached text
	rec := updateRec()
	rec.Table = "orders"
	other, _, _ := g.AppendStatement(rec)
	if other.Exec == first.Exec {
		t.Error("Different table rendered identical statement text")
	}
}

func TestFunction_Translations(t *testing.T) {
	cases := map[string]string{
		"ToUpper":   "UPPER",
		"tolower":   "LOWER",
		"Length":    "CHAR_LENGTH",
		"Substring": "SUBSTRING",
		"UtcNow":    "UTC_TIMESTAMP",
	}
	for name, want := range cases {
		got, ok := sqlgen.Function(name)
		if !ok || got != want {
			t.Errorf("Function(%q) = %q, %v; want %q", name, got, ok, want)
		}
	}

	if _, ok := sqlgen.Function("noSuchCall"); ok {
		t.Error("Unknown call should not translate")
	}
}
