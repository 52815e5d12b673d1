package sqlexec

import (
	"context"
	"database/sql"

	"github.com/go-sql-driver/mysql"

	"github.com/mevdschee/tqormysql/batch"
)

// Querier is the slice of database/sql a batch execution needs. It is
// satisfied by *sql.DB, *sql.Conn and *sql.Tx, so transaction scoping
// stays with the caller
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// DB implements batch.Executor on top of a database/sql handle
type DB struct {
	q Querier
}

// New wraps an existing handle. Pass a *sql.Tx to run each flush
// inside a caller-owned transaction
func New(q Querier) *DB {
	return &DB{q: q}
}

// Open validates a MySQL DSN and opens a database handle for it
func Open(dsn string) (*DB, *sql.DB, error) {
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return nil, nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, err
	}
	return New(db), db, nil
}

// ExecScript runs the batch's statements in order, surfacing one
// logical result set per non-suppressed statement. Statements execute
// lazily as the stream advances, so the stream must be driven until
// NextResultSet reports false for every statement to run
func (e *DB) ExecScript(ctx context.Context, stmts []batch.Statement) (batch.ResultStream, error) {
	return &stream{q: e.q, stmts: stmts}, nil
}

type stream struct {
	q     Querier
	stmts []batch.Statement
	next  int

	affected int64
	lastID   int64
	rows     *sql.Rows
}

func (s *stream) NextResultSet(ctx context.Context) (bool, error) {
	if err := s.closeRows(); err != nil {
		return false, err
	}
	for s.next < len(s.stmts) {
		st := s.stmts[s.next]
		s.next++

		res, err := s.q.ExecContext(ctx, st.Exec, st.Args...)
		if err != nil {
			return false, err
		}
		if st.Suppressed {
			continue
		}
		s.affected, _ = res.RowsAffected()
		s.lastID, _ = res.LastInsertId()
		if st.Query != "" {
			rows, err := s.q.QueryContext(ctx, st.Query, st.QueryArgs...)
			if err != nil {
				return false, err
			}
			s.rows = rows
		}
		return true, nil
	}
	return false, nil
}

func (s *stream) AffectedRows() int64 {
	return s.affected
}

func (s *stream) LastInsertID() int64 {
	return s.lastID
}

func (s *stream) ReadRow(ctx context.Context) ([]interface{}, error) {
	if s.rows == nil {
		return nil, nil
	}
	if !s.rows.Next() {
		return nil, s.rows.Err()
	}
	cols, err := s.rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *stream) Close() error {
	return s.closeRows()
}

func (s *stream) closeRows() error {
	if s.rows == nil {
		return nil
	}
	err := s.rows.Close()
	s.rows = nil
	return err
}
