package trip

import "fmt"

// Table is the raw in-memory form of one source file, as produced by the
// parquet and CSV readers. Rows hold nil for missing values, and otherwise one
// of int64, float64, string, bool or time.Time.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// FromRecords renders normalized records back into a raw table. Timestamps
// become canonical strings and nulls become nil, so the result can be fed to
// the normalizer again.
func FromRecords(columns []string, recs []Record) (*Table, error) {
	out := &Table{
		Columns: append([]string(nil), columns...),
		Rows:    make([][]any, 0, len(recs)),
	}
	for i := range recs {
		row := make([]any, len(columns))
		for j, c := range columns {
			f, ok := recs[i].Field(c)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, c)
			}
			v, err := f.Value()
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, c, err)
			}
			row[j] = v
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}
