package batch

import (
	"context"

	"github.com/mevdschee/tqormysql/change"
)

// Mapping classifies how one accepted command relates to the result-set
// stream the server sends back
type Mapping int

const (
	// NoResultSet means the command produces no result set of its own,
	// e.g. it was merged into a preceding bulk statement with no echo
	NoResultSet Mapping = iota
	// NotLastInResultSet means the command shares a result set with
	// commands that follow it
	NotLastInResultSet
	// LastInResultSet means the command is the final (or only) command
	// covered by its result set
	LastInResultSet
)

// Statement is one executable unit of a batch script: a modification
// statement plus an optional row-returning follow-up query that echoes
// server-computed values for the same row
type Statement struct {
	Exec string
	Args []interface{}

	// Query, when non-empty, is run on the same connection right after
	// Exec and supplies the rows of this statement's logical result set
	Query     string
	QueryArgs []interface{}

	// Suppressed statements execute but surface no logical result set
	Suppressed bool
}

// Generator renders SQL for pending change records. Implementations own
// dialect concerns: identifier quoting, parameter naming, bulk syntax.
// A rendering error marks the record as unexecutable; the batch
// surfaces it at flush time
type Generator interface {
	// AppendStatement renders one non-grouped record
	AppendStatement(rec *change.Record) (Statement, Mapping, error)
	// AppendGroupedInsert renders a run of same-shaped insert records
	// as one multi-row statement; the returned mapping applies
	// uniformly to every member of the group
	AppendGroupedInsert(recs []*change.Record) (Statement, Mapping, error)
}

// ResultStream is a forward-only view of the logical result sets a
// batch execution produced. It starts positioned before the first
// result set. Implementations may execute statements as the stream
// advances, so the consumer must keep calling NextResultSet until it
// reports false even after every mapped result set has been handled
type ResultStream interface {
	// NextResultSet advances to the next logical result set, reporting
	// false when the stream is exhausted
	NextResultSet(ctx context.Context) (bool, error)
	// AffectedRows reports the current result set's affected-row count
	AffectedRows() int64
	// LastInsertID reports the first auto-generated identity the
	// current result set's statement allocated
	LastInsertID() int64
	// ReadRow reads one row of the current result set, returning nil
	// when no row remains
	ReadRow(ctx context.Context) ([]interface{}, error)
	Close() error
}

// Executor submits an assembled batch script to the database
type Executor interface {
	ExecScript(ctx context.Context, stmts []Statement) (ResultStream, error)
}

const (
	// MaxRowCeiling is the hard cap on rows per batch
	MaxRowCeiling = 1000
	// MaxParameterCount is a conservative margin under the wire
	// protocol's own parameter limit
	MaxParameterCount = 2100
	// DefaultNetworkPacketSize is the assumed server packet size used
	// to derive the script byte ceiling
	DefaultNetworkPacketSize = 4096

	// initial admissions between script-length measurements
	initialLengthCheckInterval = 50
)

// Limits holds the per-instance ceilings and policies of a batch
type Limits struct {
	// MaxBatchSize is the configured row ceiling, capped at
	// MaxRowCeiling. Must be positive
	MaxBatchSize int
	// NetworkPacketSize derives the script byte ceiling as
	// 65536 * NetworkPacketSize / 2. Zero selects the default
	NetworkPacketSize int
	// ContiguousInsertIDs assigns value, value+1, value+2, ... to the
	// rows of a grouped insert, matching MySQL's documented
	// auto_increment block allocation. When false the first allocated
	// value is copied into every row, the legacy behavior
	ContiguousInsertIDs bool
}

// DefaultLimits returns the default batch limits
func DefaultLimits() Limits {
	return Limits{
		MaxBatchSize:        MaxRowCeiling,
		NetworkPacketSize:   DefaultNetworkPacketSize,
		ContiguousInsertIDs: true,
	}
}

// MaxScriptLength returns the byte ceiling for generated script text
func (l Limits) MaxScriptLength() int {
	pkt := l.NetworkPacketSize
	if pkt <= 0 {
		pkt = DefaultNetworkPacketSize
	}
	return 65536 * pkt / 2
}
