package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mevdschee/tqormysql/change"
	"github.com/mevdschee/tqormysql/metrics"
)

// Flush executes the batch and reconciles its results, blocking until
// the database has replied
func (b *Batch) Flush() error {
	return b.FlushContext(context.Background())
}

// FlushContext executes the batch and walks the returned result sets
// in lockstep with the accepted commands, propagating server-generated
// values into records that need them and validating affected-row
// counts for records that do not
func (b *Batch) FlushContext(ctx context.Context) error {
	b.closeGroup()
	if b.renderErr != nil {
		return b.renderErr
	}
	if len(b.mappings) != len(b.commands) {
		return &ExecError{Err: fmt.Errorf("result-set mapping out of step: %d entries for %d commands",
			len(b.mappings), len(b.commands))}
	}

	start := time.Now()
	err := b.execute(ctx)
	metrics.FlushLatency.Observe(time.Since(start).Seconds())
	metrics.BatchSize.Observe(float64(len(b.commands)))

	switch {
	case err == nil:
		metrics.FlushTotal.WithLabelValues("ok").Inc()
	case IsConflictError(err):
		metrics.FlushTotal.WithLabelValues("conflict").Inc()
	default:
		metrics.FlushTotal.WithLabelValues("error").Inc()
	}
	return err
}

func (b *Batch) execute(ctx context.Context) error {
	stream, err := b.exec.ExecScript(ctx, b.stmts)
	if err != nil {
		return b.wrapError(err, 0)
	}
	defer stream.Close()
	return b.consume(ctx, stream)
}

// consume walks the logical result sets in lockstep with the accepted
// commands and their mapping entries
func (b *Batch) consume(ctx context.Context, stream ResultStream) error {
	commandIndex := 0
	for {
		// commands merged into a preceding bulk statement with no
		// echo produced no result set at all
		for commandIndex < len(b.commands) && b.mappings[commandIndex] == NoResultSet {
			commandIndex++
		}
		if commandIndex >= len(b.commands) {
			return b.drainStream(ctx, stream)
		}

		more, err := stream.NextResultSet(ctx)
		if err != nil {
			return b.wrapError(err, commandIndex)
		}
		if !more {
			return nil
		}

		if b.commands[commandIndex].RequiresResultPropagation() {
			commandIndex, err = b.consumePropagating(ctx, stream, commandIndex)
		} else {
			commandIndex, err = b.consumeValidating(stream, commandIndex)
		}
		if err != nil {
			return err
		}
	}
}

// drainStream advances the stream to exhaustion. Executors run
// statements lazily as the stream moves, so stopping at the last
// mapped result set would leave trailing suppressed statements,
// typically inserts with nothing to read back, unexecuted
func (b *Batch) drainStream(ctx context.Context, stream ResultStream) error {
	for {
		more, err := stream.NextResultSet(ctx)
		if err != nil {
			return b.wrapError(err, len(b.commands)-1)
		}
		if !more {
			return nil
		}
	}
}

// consumePropagating writes returned values into each record the
// current result set covers. Newly inserted rows with no individually
// returned row take the result set's reported identity instead
func (b *Batch) consumePropagating(ctx context.Context, stream ResultStream, commandIndex int) (int, error) {
	insertOrdinal := int64(0)
	for commandIndex < len(b.commands) {
		rec := b.commands[commandIndex]
		last := b.mappings[commandIndex] == LastInResultSet

		if rec.Kind == change.Insert {
			id := stream.LastInsertID()
			if b.limits.ContiguousInsertIDs {
				// MySQL allocates a contiguous identity block for a
				// multi-row insert and reports the first value
				id += insertOrdinal
			}
			for _, ki := range rec.KeyColumnIndexes() {
				if err := rec.AssignGeneratedKey(ki, id); err != nil {
					return commandIndex, b.wrapError(err, commandIndex)
				}
				metrics.PropagatedKeys.Inc()
			}
			insertOrdinal++
		} else {
			row, err := stream.ReadRow(ctx)
			if err != nil {
				return commandIndex, b.wrapError(err, commandIndex)
			}
			if row == nil {
				// the row the echo query was keyed on no longer
				// matched: treat as a concurrency conflict
				return commandIndex, &ConflictError{
					CommandIndex: commandIndex,
					ExpectedRows: 1,
					ActualRows:   0,
					Records:      []*change.Record{rec},
				}
			}
			if err := propagateRow(rec, row); err != nil {
				return commandIndex, b.wrapError(err, commandIndex)
			}
		}

		commandIndex++
		if last {
			return commandIndex, nil
		}
	}
	return commandIndex, nil
}

// consumeValidating compares the current result set's affected-row
// count against the number of consecutive records it covers
func (b *Batch) consumeValidating(stream ResultStream, commandIndex int) (int, error) {
	start := commandIndex
	for commandIndex < len(b.commands) && b.mappings[commandIndex] == NotLastInResultSet {
		commandIndex++
	}
	if commandIndex < len(b.commands) {
		// consume the last-in-result-set entry
		commandIndex++
	}
	expected := int64(commandIndex - start)
	actual := stream.AffectedRows()
	if actual != expected {
		return commandIndex, &ConflictError{
			CommandIndex: start,
			ExpectedRows: expected,
			ActualRows:   actual,
			Records:      b.commands[start:commandIndex],
		}
	}
	return commandIndex, nil
}

// propagateRow copies returned values into the record's read-flagged
// columns, in read-column order
func propagateRow(rec *change.Record, row []interface{}) error {
	next := 0
	for i := range rec.Columns {
		if !rec.Columns[i].Read {
			continue
		}
		if next >= len(row) {
			return fmt.Errorf("result row has %d values, record %s.%s reads more",
				len(row), rec.Schema, rec.Table)
		}
		if err := rec.SetValue(i, row[next]); err != nil {
			return err
		}
		next++
	}
	return nil
}

// wrapError applies the propagation policy: structured failures pass
// through unchanged, cancellation propagates as-is, anything else is
// wrapped with the record active at commandIndex
func (b *Batch) wrapError(err error, commandIndex int) error {
	if IsConflictError(err) {
		return err
	}
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var rec *change.Record
	if commandIndex >= 0 && commandIndex < len(b.commands) {
		rec = b.commands[commandIndex]
	}
	return &ExecError{Record: rec, Err: err}
}
