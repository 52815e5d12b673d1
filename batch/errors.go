package batch

import (
	"errors"
	"fmt"

	"github.com/mevdschee/tqormysql/change"
)

// ConfigError reports an invalid batch configuration detected at
// factory construction time
type ConfigError struct {
	Setting string
	Value   interface{}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("batch: invalid configuration %s=%v", e.Setting, e.Value)
}

// ConflictError reports that a result set's affected-row count did not
// match the number of records it was expected to cover. The caller can
// use Records to pinpoint which logical rows were not applied
type ConflictError struct {
	CommandIndex int
	ExpectedRows int64
	ActualRows   int64
	Records      []*change.Record
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("batch: concurrency conflict at command %d: expected %d affected rows, got %d",
		e.CommandIndex, e.ExpectedRows, e.ActualRows)
}

// IsConflictError reports whether err is, or wraps, a ConflictError
func IsConflictError(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// ExecError wraps an unexpected database error raised mid-batch,
// carrying the pending change record active when it occurred
type ExecError struct {
	Record *change.Record
	Err    error
}

func (e *ExecError) Error() string {
	if e.Record != nil {
		return fmt.Sprintf("batch: execution failed on %s %s.%s: %v",
			e.Record.Kind, e.Record.Schema, e.Record.Table, e.Err)
	}
	return fmt.Sprintf("batch: execution failed: %v", e.Err)
}

// Unwrap exposes the underlying cause
func (e *ExecError) Unwrap() error {
	return e.Err
}
