package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/samber/lo"
)

// ErrBulkUnsupported is returned when a backend has no server-side file load.
var ErrBulkUnsupported = errors.New("storage: bulk load not supported")

// BulkLoad describes a server-side load of a CSV artifact into a table.
// Statement is the only place it is turned into SQL text.
type BulkLoad struct {
	Table          string
	Path           string
	Columns        []string
	Delimiter      rune
	Quote          rune
	LineTerminator string
	IgnoreLines    int
}

// NewBulkLoad returns a load of the artifact at path with the artifact
// conventions used by the cache writer: comma separated, double-quote
// enclosed, newline terminated, one header line. The path is made absolute.
func NewBulkLoad(table, path string, columns []string) (BulkLoad, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return BulkLoad{}, fmt.Errorf("bulk load path %s: %w", path, err)
	}
	return BulkLoad{
		Table:          table,
		Path:           abs,
		Columns:        append([]string(nil), columns...),
		Delimiter:      ',',
		Quote:          '"',
		LineTerminator: "\n",
		IgnoreLines:    1,
	}, nil
}

// Validate rejects values that cannot be rendered safely.
func (b BulkLoad) Validate() error {
	switch {
	case strings.TrimSpace(b.Table) == "":
		return fmt.Errorf("bulk load: empty table")
	case !filepath.IsAbs(b.Path):
		return fmt.Errorf("bulk load: path %q is not absolute", b.Path)
	case strings.ContainsFunc(b.Path, unicode.IsControl):
		return fmt.Errorf("bulk load: path %q contains control characters", b.Path)
	case b.Delimiter == 0 || (unicode.IsControl(b.Delimiter) && b.Delimiter != '\t'):
		return fmt.Errorf("bulk load: invalid delimiter %q", b.Delimiter)
	case b.Quote == 0 || unicode.IsControl(b.Quote) || b.Quote == b.Delimiter:
		return fmt.Errorf("bulk load: invalid quote %q", b.Quote)
	case b.LineTerminator == "":
		return fmt.Errorf("bulk load: empty line terminator")
	case b.IgnoreLines < 0:
		return fmt.Errorf("bulk load: negative ignore lines %d", b.IgnoreLines)
	}
	return nil
}

// Statement serializes the load for a backend kind.
//
// Output per kind:
//   - mysql:    LOAD DATA LOCAL INFILE ... IGNORE n ROWS (@c1, ...) SET col = NULLIF(@c1, '')
//   - postgres: COPY table (cols) FROM 'path' WITH (FORMAT csv, HEADER ...)
//   - mssql:    BULK INSERT table FROM 'path' WITH (FORMAT = 'CSV', ...)
//
// Errors:
//   - ErrBulkUnsupported for other kinds (sqlite has no server-side load).
//   - Validate errors.
func (b BulkLoad) Statement(kind string) (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}

	switch kind {
	case "mysql":
		return b.mysql(), nil
	case "postgres":
		if b.IgnoreLines > 1 {
			return "", fmt.Errorf("bulk load: postgres COPY skips at most one header line, got %d", b.IgnoreLines)
		}
		return b.postgres(), nil
	case "mssql":
		return b.mssql(), nil
	default:
		return "", fmt.Errorf("%w: kind=%s", ErrBulkUnsupported, kind)
	}
}

func (b BulkLoad) mysql() string {
	var s strings.Builder
	s.WriteString("LOAD DATA LOCAL INFILE ")
	s.WriteString(mysqlString(b.Path))
	s.WriteString("\nINTO TABLE ")
	s.WriteString(Dialect{QuoteIdent: Backtick}.QuoteTable(b.Table))
	s.WriteString("\nFIELDS TERMINATED BY ")
	s.WriteString(mysqlString(string(b.Delimiter)))
	s.WriteString(" ENCLOSED BY ")
	s.WriteString(mysqlString(string(b.Quote)))
	s.WriteString("\nLINES TERMINATED BY ")
	s.WriteString(mysqlString(b.LineTerminator))
	s.WriteString("\nIGNORE ")
	s.WriteString(strconv.Itoa(b.IgnoreLines))
	s.WriteString(" ROWS")
	if len(b.Columns) > 0 {
		// Artifacts write NULL as an empty field; LOAD DATA alone stores 0.
		s.WriteString("\n(")
		s.WriteString(strings.Join(lo.Map(b.Columns, func(_ string, i int) string { return mysqlVar(i) }), ", "))
		s.WriteString(")\nSET ")
		s.WriteString(strings.Join(lo.Map(b.Columns, func(c string, i int) string {
			return Backtick(c) + " = NULLIF(" + mysqlVar(i) + ", '')"
		}), ",\n    "))
	}
	s.WriteString(";")
	return s.String()
}

func mysqlVar(i int) string { return "@c" + strconv.Itoa(i+1) }

func (b BulkLoad) postgres() string {
	var s strings.Builder
	s.WriteString("COPY ")
	s.WriteString(Dialect{QuoteIdent: DoubleQuote}.QuoteTable(b.Table))
	if len(b.Columns) > 0 {
		s.WriteString(" (")
		s.WriteString(strings.Join(lo.Map(b.Columns, func(c string, _ int) string { return DoubleQuote(c) }), ", "))
		s.WriteString(")")
	}
	s.WriteString(" FROM ")
	s.WriteString(sqlString(b.Path))
	s.WriteString(" WITH (FORMAT csv, DELIMITER ")
	s.WriteString(sqlString(string(b.Delimiter)))
	s.WriteString(", QUOTE ")
	s.WriteString(sqlString(string(b.Quote)))
	s.WriteString(", HEADER ")
	s.WriteString(strconv.FormatBool(b.IgnoreLines == 1))
	s.WriteString(");")
	return s.String()
}

func (b BulkLoad) mssql() string {
	var s strings.Builder
	s.WriteString("BULK INSERT ")
	s.WriteString(Dialect{QuoteIdent: Bracket}.QuoteTable(b.Table))
	s.WriteString(" FROM ")
	s.WriteString(sqlString(b.Path))
	s.WriteString(" WITH (FORMAT = 'CSV', FIELDTERMINATOR = ")
	s.WriteString(sqlString(string(b.Delimiter)))
	s.WriteString(", FIELDQUOTE = ")
	s.WriteString(sqlString(string(b.Quote)))
	s.WriteString(", ROWTERMINATOR = ")
	s.WriteString(sqlString(mssqlTerminator(b.LineTerminator)))
	s.WriteString(", FIRSTROW = ")
	s.WriteString(strconv.Itoa(b.IgnoreLines + 1))
	s.WriteString(");")
	return s.String()
}

// sqlString renders a standard SQL string literal.
func sqlString(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// mysqlString renders a MySQL string literal. Backslash is an escape
// character in MySQL literals, so control characters are written as escapes.
func mysqlString(v string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
		"\x00", `\0`,
	)
	return "'" + r.Replace(v) + "'"
}

// mssqlTerminator spells line terminators the way BULK INSERT expects them.
func mssqlTerminator(t string) string {
	switch t {
	case "\n":
		return "0x0a"
	case "\r\n":
		return "0x0d0a"
	}
	return t
}
