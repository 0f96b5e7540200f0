// Package probe summarizes trip source files without loading them: which
// columns they carry, which required ones are missing, how many rows they
// hold and how those rows spread over pickup months.
//
// A probe is read-only. It is meant for choosing pipeline filters (a month, a
// set of years) and for diagnosing files a load run skipped.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/samber/lo"

	"tripload/internal/normalize"
	"tripload/internal/parser"
	"tripload/internal/trip"
)

// NoPickup is the Months key for rows without a usable pickup timestamp.
const NoPickup = "none"

// Report describes one source file.
type Report struct {
	Path string
	// Columns are the header names as found in the file.
	Columns []string
	// Missing lists required columns (folded) the file lacks. When non-empty
	// the file would fail a load and the row statistics below stay empty.
	Missing []string
	// Extra lists folded columns the loader ignores.
	Extra []string

	Rows          int
	BadTimestamps int
	// Months counts rows per pickup month, keyed "YYYY-MM" (or NoPickup).
	Months map[string]int
	// Nulls counts null values per required column.
	Nulls map[string]int
}

// Loadable reports whether a load run would accept the file.
func (r Report) Loadable() bool { return len(r.Missing) == 0 }

// File reads path and builds its report.
func File(ctx context.Context, path string) (Report, error) {
	rep := Report{Path: path}

	tbl, err := parser.ReadFile(ctx, path, nil)
	if err != nil {
		return rep, fmt.Errorf("probe %s: %w", path, err)
	}
	rep.Columns = tbl.Columns
	rep.Rows = tbl.Len()

	folded := normalize.FoldColumns(tbl.Columns)
	rep.Missing, _ = lo.Difference(trip.SourceColumns, folded)
	rep.Extra = lo.Uniq(lo.Without(folded, trip.SourceColumns...))

	res, err := normalize.Normalize(tbl, normalize.Options{})
	if errors.Is(err, normalize.ErrMissingColumn) {
		return rep, nil
	}
	if err != nil {
		return rep, fmt.Errorf("probe %s: %w", path, err)
	}

	rep.BadTimestamps = res.BadTimestamps
	rep.Months = make(map[string]int)
	rep.Nulls = make(map[string]int)
	for i := range res.Records {
		rec := &res.Records[i]
		key := NoPickup
		if rec.Pickup.Valid {
			key = rec.Pickup.Time.Format("2006-01")
		}
		rep.Months[key]++

		for _, c := range trip.SourceColumns {
			f, _ := rec.Field(c)
			if v, _ := f.Value(); v == nil {
				rep.Nulls[c]++
			}
		}
	}
	return rep, nil
}

// Write renders the report as indented key=value lines.
func (r Report) Write(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "file=%s rows=%d loadable=%t\n", r.Path, r.Rows, r.Loadable())
	fmt.Fprintf(&b, "  columns=%s\n", strings.Join(r.Columns, ","))
	if len(r.Missing) > 0 {
		fmt.Fprintf(&b, "  missing=%s\n", strings.Join(r.Missing, ","))
	}
	if len(r.Extra) > 0 {
		fmt.Fprintf(&b, "  ignored=%s\n", strings.Join(r.Extra, ","))
	}
	if r.Months != nil {
		fmt.Fprintf(&b, "  bad_timestamps=%d\n", r.BadTimestamps)
		months := lo.Keys(r.Months)
		slices.Sort(months)
		for _, m := range months {
			fmt.Fprintf(&b, "  month=%s rows=%d\n", m, r.Months[m])
		}
	}
	for _, c := range trip.SourceColumns {
		if n := r.Nulls[c]; n > 0 {
			fmt.Fprintf(&b, "  nulls column=%s count=%d\n", c, n)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
