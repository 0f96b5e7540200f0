// Package mssql registers the "mssql" storage backend using
// github.com/microsoft/go-mssqldb.
package mssql

import (
	"context"
	"database/sql"
	"net"
	"net/url"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/microsoft/go-mssqldb"

	"tripload/internal/storage"
)

// Kind is the registry key of this backend.
const Kind = "mssql"

// Dialect is the SQL Server insert dialect.
//
// SQL Server has a hard limit of 2100 parameters per request. We stay
// comfortably below that; a batch is split into several statements that
// share one transaction.
var Dialect = storage.Dialect{
	Placeholder: sq.AtP,
	QuoteIdent:  storage.Bracket,
	MaxParams:   2000,
}

func init() {
	storage.Register(Kind, Open)
}

// Open opens one connection through the "sqlserver" driver and pings it.
func Open(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	return storage.NewSQLSession(ctx, Kind, db, Dialect)
}

// DSN renders connection parameters as a sqlserver:// URL.
func DSN(host, port, user, password, database string) string {
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, port),
		RawQuery: url.Values{"database": {database}}.Encode(),
	}
	return u.String()
}
