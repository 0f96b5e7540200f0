// Package cache writes normalized tables to CSV artifacts. An artifact's
// presence doubles as the "already processed" marker for skip-if-exists runs.
package cache

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tripload/internal/trip"
)

// Policy selects how a pipeline uses cache artifacts.
type Policy string

const (
	// Always writes the artifact for every processed file, overwriting.
	Always Policy = "always"
	// SkipExisting skips a source file entirely when its artifact exists.
	SkipExisting Policy = "skip_existing"
	// None never writes artifacts.
	None Policy = "none"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	switch p {
	case Always, SkipExisting, None:
		return true
	}
	return false
}

// Writer places artifacts under Dir as <base><Suffix>.csv.
type Writer struct {
	Dir    string
	Suffix string
}

// Path returns the deterministic artifact path for a source file: the source
// base name without its extension, plus Suffix and ".csv".
func (w Writer) Path(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(w.Dir, base+w.Suffix+".csv")
}

// Exists reports whether the artifact for source is already present.
func (w Writer) Exists(source string) (bool, error) {
	_, err := os.Stat(w.Path(source))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Write renders recs with a header row of columns to the artifact for source,
// creating Dir if needed and replacing any previous artifact. It returns the
// artifact path.
//
// The file is written to a temporary name and renamed into place, so a crash
// never leaves a partial artifact that a later run would mistake for a
// finished one.
func (w Writer) Write(source string, columns []string, recs []trip.Record) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("cache dir %s: %w", w.Dir, err)
	}

	dst := w.Path(source)
	tmp, err := os.CreateTemp(w.Dir, ".tmp-*.csv")
	if err != nil {
		return "", fmt.Errorf("cache temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeCSV(tmp, columns, recs); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", dst, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("rename %s: %w", dst, err)
	}
	return dst, nil
}

func writeCSV(f *os.File, columns []string, recs []trip.Record) error {
	bw := bufio.NewWriterSize(f, 1<<20)
	cw := csv.NewWriter(bw)

	if err := cw.Write(columns); err != nil {
		return err
	}

	fields := make([]string, len(columns))
	for i := range recs {
		for j, c := range columns {
			v, ok := recs[i].Field(c)
			if !ok {
				return fmt.Errorf("%w: %q", trip.ErrUnknownColumn, c)
			}
			b, err := v.MarshalText()
			if err != nil {
				return err
			}
			fields[j] = string(b)
		}
		if err := cw.Write(fields); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}
