// Package mysql registers the "mysql" storage backend using
// github.com/go-sql-driver/mysql. It is the default target.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	driver "github.com/go-sql-driver/mysql"

	"tripload/internal/storage"
)

// Kind is the registry key of this backend.
const Kind = "mysql"

// Dialect is the MySQL insert dialect (65535 placeholders per statement).
var Dialect = storage.Dialect{
	Placeholder: sq.Question,
	QuoteIdent:  storage.Backtick,
	MaxParams:   65535,
}

func init() {
	storage.Register(Kind, Open)
}

// Open parses cfg.DSN, opens one connection and pings it.
//
// Edge cases:
//   - Timestamps are sent as "YYYY-MM-DD HH:MM:SS" strings, so ParseTime and
//     Loc are left at their defaults.
//   - Local infile stays disabled: bulk-load commands are emitted for an
//     operator to run, never executed by this process.
func Open(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	dc, err := driver.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	conn, err := driver.NewConnector(dc)
	if err != nil {
		return nil, err
	}
	return storage.NewSQLSession(ctx, Kind, sql.OpenDB(conn), Dialect)
}

// DSN renders connection parameters in the driver's DSN format.
func DSN(host, port, user, password, database string) string {
	c := driver.NewConfig()
	c.User = user
	c.Passwd = password
	c.Net = "tcp"
	c.Addr = host + ":" + port
	c.DBName = database
	return c.FormatDSN()
}
