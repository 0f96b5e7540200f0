package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"tripload/internal/cache"
	"tripload/internal/trip"
)

// ErrUnknownPipeline is returned when a pipeline name matches no definition.
var ErrUnknownPipeline = errors.New("config: unknown pipeline")

// Insert methods.
const (
	InsertExecutemany = "executemany"
	InsertInfile      = "infile"
)

// DefaultBatchSize is used when a pipeline leaves batch_size unset.
const DefaultBatchSize = 1000

// Source selects the files a pipeline processes.
type Source struct {
	// Dir is the root directory scanned.
	Dir string `yaml:"dir"`
	// Pattern is a glob relative to Dir; it may include a subdirectory.
	Pattern string `yaml:"pattern"`
	// Filter is an optional regular expression matched against base names.
	Filter string `yaml:"filter,omitempty"`
}

// Cache configures artifact output.
type Cache struct {
	Dir    string       `yaml:"dir"`
	Suffix string       `yaml:"suffix,omitempty"`
	Policy cache.Policy `yaml:"policy"`
}

// Pipeline is one configurable load: which files, how rows are filtered and
// derived, where artifacts go, and how rows reach the table.
type Pipeline struct {
	Name   string `yaml:"name"`
	Source Source `yaml:"source"`
	Table  string `yaml:"table"`

	// Mapping names a preset ("primary", "comparison") unless Columns is set.
	Mapping string        `yaml:"mapping,omitempty"`
	Columns *trip.Mapping `yaml:"columns,omitempty"`

	BatchSize int `yaml:"batch_size,omitempty"`

	// Month keeps only rows whose pickup falls in this month (1-12); 0 keeps all.
	Month int `yaml:"month,omitempty"`
	// DeriveSourceYear fills source_year from the pickup year.
	DeriveSourceYear bool `yaml:"derive_source_year,omitempty"`

	Cache        Cache  `yaml:"cache"`
	InsertMethod string `yaml:"insert_method,omitempty"`
	SingleRow    bool   `yaml:"single_row,omitempty"`
}

// ResolvedMapping returns the explicit column mapping or the named preset.
func (p Pipeline) ResolvedMapping() (trip.Mapping, error) {
	if p.Columns != nil {
		return *p.Columns, nil
	}
	switch p.Mapping {
	case "", "primary":
		return trip.PrimaryMapping(), nil
	case "comparison":
		return trip.ComparisonMapping(), nil
	}
	return trip.Mapping{}, fmt.Errorf("unknown mapping preset %q", p.Mapping)
}

// WithDefaults fills unset optional fields.
func (p Pipeline) WithDefaults() Pipeline {
	if p.BatchSize == 0 {
		p.BatchSize = DefaultBatchSize
	}
	if p.InsertMethod == "" {
		p.InsertMethod = InsertExecutemany
	}
	if p.Cache.Policy == "" {
		p.Cache.Policy = cache.Always
	}
	return p
}

// Presets returns the built-in pipelines: the primary load of every file in
// ./data, a single-month test subset, and the September comparison load.
func Presets() []Pipeline {
	return []Pipeline{
		{
			Name:    "primary",
			Source:  Source{Dir: "data", Pattern: "*.parquet"},
			Table:   trip.PrimaryTable,
			Mapping: "primary",
			Cache:   Cache{Dir: "converted_csv", Policy: cache.Always},
		},
		{
			Name:    "subset",
			Source:  Source{Dir: "data", Pattern: "*.parquet", Filter: `^yellow_tripdata_2024-01\.parquet$`},
			Table:   trip.PrimaryTable,
			Mapping: "primary",
			Cache:   Cache{Dir: "converted_csv_subset", Policy: cache.Always},
		},
		{
			Name:             "september",
			Source:           Source{Dir: "data", Pattern: "september_comparison/yellow_tripdata_*.parquet"},
			Table:            trip.ComparisonTable,
			Mapping:          "comparison",
			Month:            9,
			DeriveSourceYear: true,
			Cache:            Cache{Dir: "converted_csv_september", Suffix: "_september", Policy: cache.SkipExisting},
		},
	}
}

type pipelinesFile struct {
	Pipelines []Pipeline `yaml:"pipelines"`
}

// DecodePipelines parses a YAML document of the form
//
//	pipelines:
//	  - name: ...
func DecodePipelines(data []byte) ([]Pipeline, error) {
	var f pipelinesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode pipelines: %w", err)
	}
	return f.Pipelines, nil
}

// LoadPipelines returns the presets, overridden and extended by the
// definitions in path when path is non-empty.
func LoadPipelines(path string) ([]Pipeline, error) {
	out := Presets()
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipelines %s: %w", path, err)
	}
	defs, err := DecodePipelines(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	for _, d := range defs {
		if i := slices.IndexFunc(out, func(p Pipeline) bool { return p.Name == d.Name }); i >= 0 {
			out[i] = d
		} else {
			out = append(out, d)
		}
	}
	return out, nil
}

// Find returns the pipeline named name with defaults applied.
func Find(pipelines []Pipeline, name string) (Pipeline, error) {
	for _, p := range pipelines {
		if p.Name == name {
			return p.WithDefaults(), nil
		}
	}
	names := make([]string, 0, len(pipelines))
	for _, p := range pipelines {
		names = append(names, p.Name)
	}
	return Pipeline{}, fmt.Errorf("%w %q (have %v)", ErrUnknownPipeline, name, names)
}
