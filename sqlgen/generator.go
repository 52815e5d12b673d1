package sqlgen

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/mevdschee/tqormysql/batch"
	"github.com/mevdschee/tqormysql/cache"
	"github.com/mevdschee/tqormysql/change"
)

// Generator renders MySQL statements for pending change records.
// Statement skeletons depend only on a record's shape, so rendered
// text is cached by shape hash when a cache is supplied
type Generator struct {
	cache *cache.Cache
}

// New creates a generator. A nil cache disables skeleton caching
func New(c *cache.Cache) *Generator {
	return &Generator{cache: c}
}

// AppendStatement renders one non-grouped record. Updates and deletes
// need at least one column binding its original value, otherwise there
// is no WHERE clause to render
func (g *Generator) AppendStatement(rec *change.Record) (batch.Statement, batch.Mapping, error) {
	switch rec.Kind {
	case change.Insert:
		return g.insert(rec)
	case change.Update:
		return g.update(rec)
	default:
		return g.del(rec)
	}
}

// AppendGroupedInsert renders a run of same-shaped insert records as
// one multi-row INSERT. The returned mapping applies uniformly to
// every member of the group
func (g *Generator) AppendGroupedInsert(recs []*change.Record) (batch.Statement, batch.Mapping, error) {
	first := recs[0]
	text, ok := g.lookup(first, len(recs))
	if !ok {
		var sb strings.Builder
		sb.WriteString("INSERT INTO ")
		sb.WriteString(qualifiedTable(first.Schema, first.Table))
		sb.WriteString(" (")
		writeColumnList(&sb, first.WriteColumnNames())
		sb.WriteString(") VALUES ")
		tuple := valueTuple(first)
		for i := range recs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(tuple)
		}
		text = sb.String()
		g.store(first, len(recs), text)
	}

	var args []interface{}
	for _, rec := range recs {
		args = append(args, writeArgs(rec)...)
	}

	mapping := batch.NoResultSet
	if first.RequiresResultPropagation() {
		mapping = batch.NotLastInResultSet
	}
	return batch.Statement{Exec: text, Args: args}, mapping, nil
}

func (g *Generator) insert(rec *change.Record) (batch.Statement, batch.Mapping, error) {
	text, ok := g.lookup(rec, 1)
	if !ok {
		var sb strings.Builder
		sb.WriteString("INSERT INTO ")
		sb.WriteString(qualifiedTable(rec.Schema, rec.Table))
		sb.WriteString(" (")
		writeColumnList(&sb, rec.WriteColumnNames())
		sb.WriteString(") VALUES ")
		sb.WriteString(valueTuple(rec))
		text = sb.String()
		g.store(rec, 1, text)
	}

	mapping := batch.NoResultSet
	if rec.RequiresResultPropagation() {
		mapping = batch.LastInResultSet
	}
	return batch.Statement{Exec: text, Args: writeArgs(rec)}, mapping, nil
}

func (g *Generator) update(rec *change.Record) (batch.Statement, batch.Mapping, error) {
	if !hasOriginalBindings(rec) {
		return batch.Statement{}, batch.NoResultSet,
			fmt.Errorf("sqlgen: update on %s binds no original values for its WHERE clause", qualifiedTable(rec.Schema, rec.Table))
	}
	text, ok := g.lookup(rec, 1)
	if !ok {
		var sb strings.Builder
		sb.WriteString("UPDATE ")
		sb.WriteString(qualifiedTable(rec.Schema, rec.Table))
		sb.WriteString(" SET ")
		n := 0
		for i := range rec.Columns {
			col := &rec.Columns[i]
			if !col.Write {
				continue
			}
			if n > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(quoteIdent(col.Name))
			if col.ParameterName != "" {
				sb.WriteString(" = ?")
			} else {
				sb.WriteString(" = DEFAULT")
			}
			n++
		}
		writeWhere(&sb, rec)
		text = sb.String()
		g.store(rec, 1, text)
	}

	stmt := batch.Statement{Exec: text, Args: append(writeArgs(rec), whereArgs(rec)...)}
	if !rec.RequiresResultPropagation() {
		return stmt, batch.LastInResultSet, nil
	}

	// echo server-computed values for the updated row
	var sb strings.Builder
	sb.WriteString("SELECT ")
	writeColumnList(&sb, rec.ReadColumnNames())
	sb.WriteString(" FROM ")
	sb.WriteString(qualifiedTable(rec.Schema, rec.Table))
	writeWhere(&sb, rec)
	stmt.Query = sb.String()
	stmt.QueryArgs = whereArgs(rec)
	return stmt, batch.LastInResultSet, nil
}

func (g *Generator) del(rec *change.Record) (batch.Statement, batch.Mapping, error) {
	if !hasOriginalBindings(rec) {
		return batch.Statement{}, batch.NoResultSet,
			fmt.Errorf("sqlgen: delete on %s binds no original values for its WHERE clause", qualifiedTable(rec.Schema, rec.Table))
	}
	text, ok := g.lookup(rec, 1)
	if !ok {
		var sb strings.Builder
		sb.WriteString("DELETE FROM ")
		sb.WriteString(qualifiedTable(rec.Schema, rec.Table))
		writeWhere(&sb, rec)
		text = sb.String()
		g.store(rec, 1, text)
	}
	return batch.Statement{Exec: text, Args: whereArgs(rec)}, batch.LastInResultSet, nil
}

// hasOriginalBindings reports whether any column binds its original
// value, i.e. whether a WHERE clause can be rendered at all
func hasOriginalBindings(rec *change.Record) bool {
	for i := range rec.Columns {
		if rec.Columns[i].OriginalParameterName != "" {
			return true
		}
	}
	return false
}

// quoteIdent backtick-quotes a MySQL identifier
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func qualifiedTable(schema, table string) string {
	if schema == "" {
		return quoteIdent(table)
	}
	return quoteIdent(schema) + "." + quoteIdent(table)
}

func writeColumnList(sb *strings.Builder, names []string) {
	for i, name := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quoteIdent(name))
	}
}

// valueTuple renders one parenthesized VALUES tuple: a placeholder per
// parameter-bound write column, DEFAULT for the rest
func valueTuple(rec *change.Record) string {
	var sb strings.Builder
	sb.WriteString("(")
	n := 0
	for i := range rec.Columns {
		col := &rec.Columns[i]
		if !col.Write {
			continue
		}
		if n > 0 {
			sb.WriteString(", ")
		}
		if col.ParameterName != "" {
			sb.WriteString("?")
		} else {
			sb.WriteString("DEFAULT")
		}
		n++
	}
	sb.WriteString(")")
	return sb.String()
}

// writeWhere renders the condition over columns whose original value
// is bound, i.e. keys and concurrency tokens
func writeWhere(sb *strings.Builder, rec *change.Record) {
	sb.WriteString(" WHERE ")
	n := 0
	for i := range rec.Columns {
		col := &rec.Columns[i]
		if col.OriginalParameterName == "" {
			continue
		}
		if n > 0 {
			sb.WriteString(" AND ")
		}
		sb.WriteString(quoteIdent(col.Name))
		sb.WriteString(" = ?")
		n++
	}
}

func writeArgs(rec *change.Record) []interface{} {
	var args []interface{}
	for i := range rec.Columns {
		col := &rec.Columns[i]
		if col.Write && col.ParameterName != "" {
			args = append(args, col.Value)
		}
	}
	return args
}

func whereArgs(rec *change.Record) []interface{} {
	var args []interface{}
	for i := range rec.Columns {
		col := &rec.Columns[i]
		if col.OriginalParameterName != "" {
			args = append(args, col.OriginalValue)
		}
	}
	return args
}

// lookup fetches a cached skeleton for the record's statement shape
func (g *Generator) lookup(rec *change.Record, groupSize int) (string, bool) {
	if g.cache == nil {
		return "", false
	}
	return g.cache.Get(shapeKey(rec, groupSize))
}

func (g *Generator) store(rec *change.Record, groupSize int, text string) {
	if g.cache == nil {
		return
	}
	g.cache.Set(shapeKey(rec, groupSize), text)
}

// shapeKey hashes the parts of a record that determine its rendered
// statement text
func shapeKey(rec *change.Record, groupSize int) uint64 {
	h := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(rec.Kind))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(groupSize))
	h.Write(buf[:])
	h.WriteString(rec.Schema)
	h.Write([]byte{0})
	h.WriteString(rec.Table)
	h.Write([]byte{0})
	for i := range rec.Columns {
		col := &rec.Columns[i]
		h.WriteString(col.Name)
		var flags byte
		if col.Write {
			flags |= 1
		}
		if col.Read {
			flags |= 2
		}
		if col.Key {
			flags |= 4
		}
		if col.ParameterName != "" {
			flags |= 8
		}
		if col.OriginalParameterName != "" {
			flags |= 16
		}
		h.Write([]byte{0, flags})
	}
	return h.Sum64()
}
