// Package csv reads header-ed CSV trip files into a trip.Table.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"tripload/internal/trip"
)

// Options tunes the CSV reader. The zero value reads comma-separated input
// with trimmed fields.
type Options struct {
	Comma      rune
	LazyQuotes bool
	// KeepSpace disables trimming of leading and trailing spaces in fields.
	KeepSpace bool
	// OnError is called for rows that cannot be read; such rows are skipped.
	OnError func(line int, err error)
}

// ReadTable reads src into a table. The first record is the header.
//
// Empty fields become nil; all other values stay strings and are typed by the
// normalizer. A missing or unreadable header is returned as an error; a
// malformed data row is reported through OnError and skipped; any other
// read error ends the read.
func ReadTable(ctx context.Context, src io.Reader, opt Options) (*trip.Table, error) {
	var line int

	cr := csv.NewReader(src)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1

	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	hdr, err := readRec()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	out := &trip.Table{Columns: make([]string, len(hdr))}
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		out.Columns[i] = strings.TrimSpace(h)
	}

	for {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		rec, err := readRec()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			// Only parse errors leave the reader positioned at the next record.
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("csv read line %d: %w", line, err)
			}
			if opt.OnError != nil {
				opt.OnError(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}

		row := make([]any, len(out.Columns))
		for i := range out.Columns {
			if i >= len(rec) {
				continue
			}
			v := rec[i]
			if !opt.KeepSpace {
				v = strings.TrimSpace(v)
			}
			if v != "" {
				row[i] = v
			}
		}
		out.Rows = append(out.Rows, row)
	}
}
