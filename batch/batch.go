package batch

import (
	"strings"

	"github.com/mevdschee/tqormysql/change"
	"github.com/mevdschee/tqormysql/metrics"
)

// Factory creates one fresh Batch per flush cycle, with limits derived
// from configuration once at construction time
type Factory struct {
	limits Limits
	gen    Generator
	exec   Executor
}

// NewFactory validates the configured limits and returns a batch
// factory. A non-positive MaxBatchSize is a configuration error
func NewFactory(limits Limits, gen Generator, exec Executor) (*Factory, error) {
	if limits.MaxBatchSize <= 0 {
		return nil, &ConfigError{Setting: "max_batch_size", Value: limits.MaxBatchSize}
	}
	if limits.MaxBatchSize > MaxRowCeiling {
		limits.MaxBatchSize = MaxRowCeiling
	}
	return &Factory{limits: limits, gen: gen, exec: exec}, nil
}

// NewBatch returns an empty batch. Batches are single-use: one
// admission phase, one flush, then discarded
func (f *Factory) NewBatch() *Batch {
	return &Batch{
		limits:        f.limits,
		gen:           f.gen,
		exec:          f.exec,
		maxScriptLen:  f.limits.MaxScriptLength(),
		lengthCheckIn: initialLengthCheckInterval,
		// slot 0 is reserved for the command text container itself
		paramCount: 1,
	}
}

// Batch accumulates pending change records, assembles their SQL text
// incrementally and executes them as one script. Not safe for
// concurrent use; each flush cycle owns its batch exclusively
type Batch struct {
	limits Limits
	gen    Generator
	exec   Executor

	commands []*change.Record
	mappings []Mapping
	stmts    []Statement
	text     strings.Builder

	// suffix of commands batched into an un-flushed bulk insert,
	// with its memoized rendering
	group        []*change.Record
	groupStmt    Statement
	groupMapping Mapping
	groupDirty   bool

	paramCount    int
	maxScriptLen  int
	lengthCheckIn int
	full          bool

	// first rendering failure, surfaced at flush time instead of
	// executing a script with missing statements
	renderErr error
}

// Len returns the number of accepted commands
func (b *Batch) Len() int {
	return len(b.commands)
}

// ParameterCount returns the running bound-parameter count, including
// the implicit leading slot
func (b *Batch) ParameterCount() int {
	return b.paramCount
}

// IsFull reports whether the generated script has reached its byte
// ceiling and the batch accepts no further commands
func (b *Batch) IsFull() bool {
	return b.full
}

// TryAdd admits one pending change record into the batch. Rejection
// has no side effects; the caller should flush this batch and start a
// new one with the rejected record
func (b *Batch) TryAdd(rec *change.Record) bool {
	if b.full {
		metrics.AdmissionRejections.WithLabelValues("length").Inc()
		return false
	}
	if len(b.commands) >= b.limits.MaxBatchSize {
		metrics.AdmissionRejections.WithLabelValues("rows").Inc()
		return false
	}
	add := rec.ParameterSlots()
	if b.paramCount+add >= MaxParameterCount {
		metrics.AdmissionRejections.WithLabelValues("parameters").Inc()
		return false
	}
	b.paramCount += add
	b.commands = append(b.commands, rec)
	b.appendCommandText(rec)
	b.checkScriptLength()
	return true
}

// appendCommandText extends the cached script with the newly admitted
// record, routing consecutive same-shaped inserts into a bulk group
func (b *Batch) appendCommandText(rec *change.Record) {
	if rec.Kind == change.Insert {
		if len(b.group) > 0 && !b.group[0].SameShape(rec) {
			b.closeGroup()
		}
		b.group = append(b.group, rec)
		b.groupDirty = true
		return
	}
	b.closeGroup()
	stmt, mapping, err := b.gen.AppendStatement(rec)
	if err != nil {
		if b.renderErr == nil {
			b.renderErr = &ExecError{Record: rec, Err: err}
		}
		// keep the mapping aligned with the accepted commands
		b.mappings = append(b.mappings, NoResultSet)
		return
	}
	stmt.Suppressed = mapping == NoResultSet
	b.stmts = append(b.stmts, stmt)
	b.mappings = append(b.mappings, mapping)
	b.appendStatementText(stmt)
}

// renderGroup synthesizes the pending bulk-insert group's statement
// once per batch of admissions
func (b *Batch) renderGroup() {
	if !b.groupDirty {
		return
	}
	stmt, mapping, err := b.gen.AppendGroupedInsert(b.group)
	if err != nil && b.renderErr == nil {
		b.renderErr = &ExecError{Record: b.group[0], Err: err}
	}
	b.groupStmt, b.groupMapping = stmt, mapping
	b.groupDirty = false
}

// closeGroup flushes the pending bulk-insert group into the cached
// script and fills its mapping entries. The final member is forced to
// last-in-result-set whenever the group produces a result set at all
func (b *Batch) closeGroup() {
	if len(b.group) == 0 {
		return
	}
	b.renderGroup()
	stmt := b.groupStmt
	stmt.Suppressed = b.groupMapping == NoResultSet
	b.stmts = append(b.stmts, stmt)
	for i := range b.group {
		m := b.groupMapping
		if m != NoResultSet {
			if i == len(b.group)-1 {
				m = LastInResultSet
			} else {
				m = NotLastInResultSet
			}
		}
		b.mappings = append(b.mappings, m)
	}
	b.appendStatementText(stmt)
	metrics.GroupedInsertSize.Observe(float64(len(b.group)))
	b.group = nil
	b.groupDirty = false
}

func (b *Batch) appendStatementText(stmt Statement) {
	b.text.WriteString(stmt.Exec)
	b.text.WriteString(";\n")
	if stmt.Query != "" {
		b.text.WriteString(stmt.Query)
		b.text.WriteString(";\n")
	}
}

// CommandText returns the script assembled so far: the cached text
// plus the rendering of any still-open bulk-insert group. Calling it
// repeatedly without new admissions returns the same text
func (b *Batch) CommandText() string {
	if len(b.group) == 0 {
		return b.text.String()
	}
	b.renderGroup()
	var sb strings.Builder
	sb.WriteString(b.text.String())
	sb.WriteString(b.groupStmt.Exec)
	sb.WriteString(";\n")
	return sb.String()
}

// ResultSetMappings finalizes any open insert group and returns one
// mapping entry per accepted command, in admission order
func (b *Batch) ResultSetMappings() []Mapping {
	b.closeGroup()
	out := make([]Mapping, len(b.mappings))
	copy(out, b.mappings)
	return out
}

// Reset discards the assembled script, including any un-flushed
// bulk-insert group, without emitting partial SQL for it
func (b *Batch) Reset() {
	b.commands = nil
	b.mappings = nil
	b.stmts = nil
	b.text.Reset()
	b.group = nil
	b.groupDirty = false
	b.paramCount = 1
	b.lengthCheckIn = initialLengthCheckInterval
	b.full = false
	b.renderErr = nil
}

// checkScriptLength enforces the byte ceiling without measuring the
// script on every admission. A countdown decides when to re-measure;
// after each measurement it is reset to a conservative quarter of the
// estimated headroom in commands, with a floor of one
func (b *Batch) checkScriptLength() {
	b.lengthCheckIn--
	if b.lengthCheckIn >= 0 {
		return
	}
	length := len(b.CommandText())
	if length >= b.maxScriptLen {
		b.full = true
		return
	}
	avg := length / len(b.commands)
	if avg < 1 {
		avg = 1
	}
	left := ((b.maxScriptLen - length) / avg) / 4
	if left < 1 {
		left = 1
	}
	b.lengthCheckIn = left
}
