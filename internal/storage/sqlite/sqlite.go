// Package sqlite registers the "sqlite" storage backend (modernc.org/sqlite,
// no cgo). It is meant for local runs and tests; it has no bulk-load command.
package sqlite

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"tripload/internal/storage"
)

// Kind is the registry key of this backend.
const Kind = "sqlite"

// Dialect is the SQLite insert dialect. SQLite caps bind parameters at
// SQLITE_MAX_VARIABLE_NUMBER (32766 in modernc builds).
var Dialect = storage.Dialect{
	Placeholder: sq.Question,
	QuoteIdent:  storage.DoubleQuote,
	MaxParams:   32766,
}

func init() {
	storage.Register(Kind, Open)
}

// Open opens the database file named by cfg.DSN on a single connection.
func Open(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	return storage.NewSQLSession(ctx, Kind, db, Dialect)
}
