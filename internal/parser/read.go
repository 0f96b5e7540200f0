// Package parser picks a source reader by file extension.
package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	csvparser "tripload/internal/parser/csv"
	"tripload/internal/parser/parquet"
	"tripload/internal/trip"
)

// ReadFile loads a whole .parquet or .csv source file. onError, when non-nil, receives CSV rows
// that were skipped as unreadable.
func ReadFile(ctx context.Context, path string, onError func(line int, err error)) (*trip.Table, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".parquet":
		return parquet.ReadTable(ctx, path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return csvparser.ReadTable(ctx, f, csvparser.Options{OnError: onError})
	default:
		return nil, fmt.Errorf("unsupported source format %q", ext)
	}
}
