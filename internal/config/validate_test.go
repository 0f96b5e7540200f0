package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tripload/internal/cache"
	"tripload/internal/trip"
)

func validPipeline() Pipeline {
	return Pipeline{
		Name:   "t",
		Source: Source{Dir: "data", Pattern: "*.parquet"},
		Table:  "trips",
		Cache:  Cache{Dir: "out", Policy: cache.Always},
	}.WithDefaults()
}

func issuePaths(issues []Issue, sev Severity) []string {
	var out []string
	for _, i := range issues {
		if i.Severity == sev {
			out = append(out, i.Path)
		}
	}
	return out
}

func TestValidatePipeline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*Pipeline)
		wantError []string
		wantWarn  []string
	}{
		{name: "valid", mutate: func(*Pipeline) {}},
		{
			name:      "arity_mismatch",
			mutate:    func(p *Pipeline) { p.Columns = &trip.Mapping{Source: []string{"vendorid"}, Target: []string{"a", "b"}} },
			wantError: []string{"columns"},
		},
		{
			name:      "unknown_source_column",
			mutate:    func(p *Pipeline) { p.Columns = &trip.Mapping{Source: []string{"nope"}, Target: []string{"a"}} },
			wantError: []string{"columns"},
		},
		{
			name:      "unknown_mapping_preset",
			mutate:    func(p *Pipeline) { p.Mapping = "weird" },
			wantError: []string{"mapping"},
		},
		{
			name:      "bad_glob_and_regex",
			mutate:    func(p *Pipeline) { p.Source.Pattern = "[a-"; p.Source.Filter = "(" },
			wantError: []string{"source.pattern", "source.filter"},
		},
		{
			name:      "infile_without_cache",
			mutate:    func(p *Pipeline) { p.InsertMethod = InsertInfile; p.Cache.Policy = cache.None },
			wantError: []string{"insert_method"},
		},
		{
			name:      "infile_single_row",
			mutate:    func(p *Pipeline) { p.InsertMethod = InsertInfile; p.SingleRow = true },
			wantError: []string{"single_row"},
		},
		{
			name:      "bad_method_month_batch",
			mutate:    func(p *Pipeline) { p.InsertMethod = "copy"; p.Month = 13; p.BatchSize = -1 },
			wantError: []string{"batch_size", "month", "insert_method"},
		},
		{
			name:      "empty_cache_dir",
			mutate:    func(p *Pipeline) { p.Cache.Dir = "" },
			wantError: []string{"cache.dir"},
		},
		{
			name:     "huge_batch_and_unmapped_year",
			mutate:   func(p *Pipeline) { p.BatchSize = 100000; p.DeriveSourceYear = true },
			wantWarn: []string{"batch_size", "derive_source_year"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := validPipeline()
			tc.mutate(&p)
			issues := ValidatePipeline(p)
			assert.Equal(t, tc.wantError, issuePaths(issues, SeverityError))
			assert.Equal(t, tc.wantWarn, issuePaths(issues, SeverityWarning))
			assert.Equal(t, len(tc.wantError) > 0, HasErrors(issues))
		})
	}
}
