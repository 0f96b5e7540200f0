package trip

import (
	"errors"
	"fmt"
)

// Target tables of the two load variants.
const (
	PrimaryTable    = "yellow_taxi_trips"
	ComparisonTable = "yellow_taxi_trips_september_comparison"
)

// ErrMappingArity is returned when a mapping pairs a different number of
// source and target columns. It is a configuration error and aborts the run.
var ErrMappingArity = errors.New("column mapping arity mismatch")

// Mapping is an ordered pairing of normalized column names onto target table
// column names: Source[i] is inserted into Target[i].
type Mapping struct {
	Source []string `yaml:"source"`
	Target []string `yaml:"target"`
}

// Validate checks arity and that every source column exists on Record.
func (m Mapping) Validate() error {
	if len(m.Source) != len(m.Target) {
		return fmt.Errorf("%w: %d source columns, %d target columns", ErrMappingArity, len(m.Source), len(m.Target))
	}
	if len(m.Source) == 0 {
		return fmt.Errorf("%w: mapping is empty", ErrMappingArity)
	}
	for _, c := range m.Source {
		if !KnownColumn(c) {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, c)
		}
	}
	return nil
}

// Len returns the number of mapped columns.
func (m Mapping) Len() int { return len(m.Target) }

var primaryTargets = []string{
	"vendor_id", "tpep_pickup_datetime", "tpep_dropoff_datetime", "passenger_count",
	"trip_distance", "rate_code_id", "store_and_fwd_flag", "pu_location_id", "do_location_id",
	"payment_type", "fare_amount", "extra", "mta_tax", "tip_amount", "tolls_amount",
	"improvement_surcharge", "total_amount", "congestion_surcharge",
}

// PrimaryMapping maps the 18 source columns onto yellow_taxi_trips.
func PrimaryMapping() Mapping {
	return Mapping{
		Source: append([]string(nil), SourceColumns...),
		Target: append([]string(nil), primaryTargets...),
	}
}

// ComparisonMapping is PrimaryMapping plus the derived source_year column.
func ComparisonMapping() Mapping {
	m := PrimaryMapping()
	m.Source = append(m.Source, ColSourceYear)
	m.Target = append(m.Target, ColSourceYear)
	return m
}
