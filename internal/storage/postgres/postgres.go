// Package postgres registers the "postgres" storage backend on a single
// github.com/jackc/pgx/v5 connection.
package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"tripload/internal/storage"
)

// Kind is the registry key of this backend.
const Kind = "postgres"

// Dialect is the Postgres insert dialect (65535 bind parameters per statement).
var Dialect = storage.Dialect{
	Placeholder: sq.Dollar,
	QuoteIdent:  storage.DoubleQuote,
	MaxParams:   65535,
}

// Repo implements storage.Repository over one *pgx.Conn.
type Repo struct {
	conn *pgx.Conn

	closeOnce sync.Once
	closeErr  error
}

func init() {
	storage.Register(Kind, Open)
}

// Open connects with cfg.DSN (URL or key=value form) and pings the server.
func Open(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	conn, err := pgx.Connect(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	return &Repo{conn: conn}, nil
}

// Kind implements storage.Repository.
func (r *Repo) Kind() string { return Kind }

// InsertRows implements storage.Repository.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	stmts, err := storage.BuildInsert(Dialect, table, columns, rows)
	if err != nil {
		return 0, err
	}
	if len(stmts) == 0 {
		return 0, nil
	}

	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	var total int64
	for _, st := range stmts {
		tag, err := tx.Exec(ctx, st.SQL, st.Args...)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", table, err)
		}
		total += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

// Close implements storage.Repository.
func (r *Repo) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.conn.Close(context.Background())
	})
	return r.closeErr
}

// DSN renders connection parameters as a postgres:// URL.
func DSN(host, port, user, password, database string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
