package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// SQLSession is a Repository over database/sql that pins exactly one
// connection. The pool is capped at one so the driver never opens a second
// connection behind the session's back.
type SQLSession struct {
	kind    string
	dialect Dialect
	db      *sql.DB
	conn    *sql.Conn

	closeOnce sync.Once
	closeErr  error
}

// NewSQLSession takes ownership of db, pins one connection from it and pings
// the server through that connection. On failure db is closed.
func NewSQLSession(ctx context.Context, kind string, db *sql.DB, d Dialect) (*SQLSession, error) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, err
	}
	return &SQLSession{kind: kind, dialect: d, db: db, conn: conn}, nil
}

// Kind implements Repository.
func (s *SQLSession) Kind() string { return s.kind }

// InsertRows implements Repository.
func (s *SQLSession) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	stmts, err := BuildInsert(s.dialect, table, columns, rows)
	if err != nil {
		return 0, err
	}
	if len(stmts) == 0 {
		return 0, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var total int64
	for _, st := range stmts {
		res, err := tx.ExecContext(ctx, st.SQL, st.Args...)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", table, err)
		}
		total += rowsAffected(res, st.Rows)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return total, nil
}

// rowsAffected reports the driver's count, or the statement's row count when
// the driver cannot provide one.
func rowsAffected(res sql.Result, rows int) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return int64(rows)
	}
	return n
}

// Close implements Repository.
func (s *SQLSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = errors.Join(s.conn.Close(), s.db.Close())
	})
	return s.closeErr
}
