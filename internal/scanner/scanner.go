// Package scanner discovers source files for a load run.
package scanner

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Options selects the files of one run.
//
// Pattern is a glob relative to Dir and may name a subdirectory
// (e.g. "september_comparison/yellow_tripdata_*.parquet"). Filter is an
// optional regular expression matched against each file's base name; it
// narrows a run to a single month or a set of years.
type Options struct {
	Dir     string
	Pattern string
	Filter  string
}

// Scan yields matching regular files in directory enumeration order.
//
// The sequence is finite and single-pass. An invalid pattern or filter, or a
// filesystem access failure, is yielded once as an error and ends the
// sequence. A directory with no matches yields nothing.
func Scan(opts Options) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var filter *regexp.Regexp
		if strings.TrimSpace(opts.Filter) != "" {
			re, err := regexp.Compile(opts.Filter)
			if err != nil {
				yield("", fmt.Errorf("scan: filter %q: %w", opts.Filter, err))
				return
			}
			filter = re
		}

		full := filepath.Join(opts.Dir, opts.Pattern)
		if _, err := filepath.Match(full, ""); err != nil {
			yield("", fmt.Errorf("scan: pattern %q: %w", full, err))
			return
		}

		dir, base := filepath.Split(full)
		if dir == "" {
			dir = "."
		}

		// Only the last element may carry wildcards when streaming a directory.
		if hasMeta(dir) {
			matches, err := filepath.Glob(full)
			if err != nil {
				yield("", fmt.Errorf("scan: %w", err))
				return
			}
			for _, m := range matches {
				if !keep(m, filter) {
					continue
				}
				if !yield(m, nil) {
					return
				}
			}
			return
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return
			}
			yield("", fmt.Errorf("scan: read dir %s: %w", dir, err))
			return
		}

		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ok, err := filepath.Match(base, e.Name())
			if err != nil {
				yield("", fmt.Errorf("scan: %w", err))
				return
			}
			if !ok {
				continue
			}
			p := filepath.Join(dir, e.Name())
			if !keep(p, filter) {
				continue
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}

// Collect drains Scan into a slice, stopping at the first error.
func Collect(opts Options) ([]string, error) {
	var out []string
	for p, err := range Scan(opts) {
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}

func keep(path string, filter *regexp.Regexp) bool {
	if filter == nil {
		return true
	}
	return filter.MatchString(filepath.Base(path))
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, "*?[")
}
