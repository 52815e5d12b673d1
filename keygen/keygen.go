package keygen

import (
	"github.com/google/uuid"

	"github.com/mevdschee/tqormysql/change"
)

// Strategy selects how client-side surrogate GUID keys are produced
type Strategy int

const (
	// Sequential produces time-ordered GUIDs, which keep clustered
	// index inserts append-only on MySQL
	Sequential Strategy = iota
	// Random produces version-4 GUIDs
	Random
)

// Generator produces surrogate key values before a database round trip
type Generator struct {
	strategy Strategy
}

// New creates a generator with the given strategy
func New(strategy Strategy) *Generator {
	return &Generator{strategy: strategy}
}

// NewGUID returns the next surrogate key value
func (g *Generator) NewGUID() uuid.UUID {
	if g.strategy == Sequential {
		if id, err := uuid.NewV7(); err == nil {
			return id
		}
	}
	return uuid.New()
}

// Apply fills every empty, client-generated key column of the record
// with a fresh GUID. Server-generated (read-flagged) keys are left for
// result propagation
func (g *Generator) Apply(rec *change.Record) {
	for i := range rec.Columns {
		col := &rec.Columns[i]
		if !col.Key || col.Read || col.Value != nil {
			continue
		}
		switch col.Type {
		case change.TypeString:
			col.Value = g.NewGUID().String()
		case change.TypeBytes:
			id := g.NewGUID()
			col.Value = id[:]
		}
	}
}
