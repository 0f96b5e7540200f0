package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"tripload/internal/cache"
	"tripload/internal/trip"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is a dotted field path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline checks p (with defaults applied) and returns every issue
// found rather than stopping at the first.
func ValidatePipeline(p Pipeline) []Issue {
	var out []Issue
	errf := func(path, format string, a ...any) {
		out = append(out, Issue{SeverityError, path, fmt.Sprintf(format, a...)})
	}
	warnf := func(path, format string, a ...any) {
		out = append(out, Issue{SeverityWarning, path, fmt.Sprintf(format, a...)})
	}

	if strings.TrimSpace(p.Name) == "" {
		errf("name", "must not be empty")
	}

	if strings.TrimSpace(p.Source.Dir) == "" {
		errf("source.dir", "must not be empty")
	}
	if strings.TrimSpace(p.Source.Pattern) == "" {
		errf("source.pattern", "must not be empty")
	} else if _, err := filepath.Match(p.Source.Pattern, ""); err != nil {
		errf("source.pattern", "invalid glob %q: %v", p.Source.Pattern, err)
	}
	if p.Source.Filter != "" {
		if _, err := regexp.Compile(p.Source.Filter); err != nil {
			errf("source.filter", "invalid regular expression: %v", err)
		}
	}

	if strings.TrimSpace(p.Table) == "" {
		errf("table", "must not be empty")
	}

	m, err := p.ResolvedMapping()
	if err != nil {
		errf("mapping", "%v", err)
	} else if err := m.Validate(); err != nil {
		errf("columns", "%v", err)
	}

	if p.BatchSize < 1 {
		errf("batch_size", "must be >= 1, got %d", p.BatchSize)
	} else if p.BatchSize > 50000 {
		warnf("batch_size", "%d rows per transaction is unusually large", p.BatchSize)
	}

	if p.Month < 0 || p.Month > 12 {
		errf("month", "must be 0 (all) or 1-12, got %d", p.Month)
	}
	if p.DeriveSourceYear && err == nil && !slices.Contains(m.Source, trip.ColSourceYear) {
		warnf("derive_source_year", "source_year is derived but not mapped to any target column")
	}

	if !p.Cache.Policy.Valid() {
		errf("cache.policy", "unknown policy %q (always|skip_existing|none)", p.Cache.Policy)
	}
	if p.Cache.Policy != cache.None && strings.TrimSpace(p.Cache.Dir) == "" {
		errf("cache.dir", "must not be empty when policy is %s", p.Cache.Policy)
	}

	switch p.InsertMethod {
	case InsertExecutemany:
	case InsertInfile:
		if p.Cache.Policy == cache.None {
			errf("insert_method", "infile requires a cache artifact; cache.policy is none")
		}
		if p.SingleRow {
			errf("single_row", "single-row mode applies to executemany only")
		}
	default:
		errf("insert_method", "must be executemany or infile, got %q", p.InsertMethod)
	}

	return out
}
