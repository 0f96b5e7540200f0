package storage

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/samber/lo"
)

// Dialect captures what differs between SQL engines when building INSERTs.
type Dialect struct {
	// Placeholder renders bind parameters (?, $1, @p1).
	Placeholder sq.PlaceholderFormat
	// QuoteIdent quotes one identifier part.
	QuoteIdent func(string) string
	// MaxParams is the engine's bind-parameter limit per statement; 0 means unlimited.
	MaxParams int
}

// QuoteTable quotes a possibly schema-qualified table name part by part.
//
// Example:
//
//	"dbo.trips" -> [dbo].[trips] for SQL Server
func (d Dialect) QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = d.QuoteIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// DoubleQuote quotes ANSI-style ("ident"), escaping embedded quotes.
func DoubleQuote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// Backtick quotes MySQL-style (`ident`).
func Backtick(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

// Bracket quotes SQL Server-style ([ident]), escaping ']' as ']]'.
func Bracket(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

// Statement is one parameterized SQL statement.
type Statement struct {
	SQL  string
	Args []any
	// Rows is the number of rows the statement inserts.
	Rows int
}

// BuildInsert renders rows as one or more multi-row INSERT statements.
//
// Rows are split so no statement exceeds d.MaxParams bind parameters. All
// statements are meant to run inside the same transaction.
//
// Constraints:
//   - columns must be non-empty.
//   - every row must have exactly len(columns) values.
func BuildInsert(d Dialect, table string, columns []string, rows [][]any) ([]Statement, error) {
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("insert: empty table name")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("insert %s: no columns", table)
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("insert %s: row %d has %d values, want %d", table, i, len(r), len(columns))
		}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	perStmt := len(rows)
	if d.MaxParams > 0 {
		perStmt = max(1, d.MaxParams/len(columns))
	}

	quoted := lo.Map(columns, func(c string, _ int) string { return d.QuoteIdent(c) })
	tbl := d.QuoteTable(table)

	out := make([]Statement, 0, (len(rows)+perStmt-1)/perStmt)
	for _, part := range lo.Chunk(rows, perStmt) {
		b := sq.Insert(tbl).Columns(quoted...).PlaceholderFormat(d.Placeholder)
		for _, r := range part {
			b = b.Values(r...)
		}
		q, args, err := b.ToSql()
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
		out = append(out, Statement{SQL: q, Args: args, Rows: len(part)})
	}
	return out, nil
}
