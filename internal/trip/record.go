// Package trip defines the taxi trip record as it flows from source files into
// the relational store: the canonical column names, the normalized record, the
// raw in-memory table produced by source readers, and column mappings onto the
// target tables.
package trip

import (
	"database/sql/driver"
	"encoding"
	"errors"
	"fmt"
	"strings"
)

// Canonical (case-folded) source column names.
const (
	ColVendorID             = "vendorid"
	ColPickup               = "tpep_pickup_datetime"
	ColDropoff              = "tpep_dropoff_datetime"
	ColPassengerCount       = "passenger_count"
	ColTripDistance         = "trip_distance"
	ColRateCodeID           = "ratecodeid"
	ColStoreAndFwdFlag      = "store_and_fwd_flag"
	ColPULocationID         = "pulocationid"
	ColDOLocationID         = "dolocationid"
	ColPaymentType          = "payment_type"
	ColFareAmount           = "fare_amount"
	ColExtra                = "extra"
	ColMTATax               = "mta_tax"
	ColTipAmount            = "tip_amount"
	ColTollsAmount          = "tolls_amount"
	ColImprovementSurcharge = "improvement_surcharge"
	ColTotalAmount          = "total_amount"
	ColCongestionSurcharge  = "congestion_surcharge"

	// ColSourceYear is derived from the pickup timestamp; it never comes from a source file.
	ColSourceYear = "source_year"
)

// SourceColumns lists the columns every source file must provide, in canonical order.
var SourceColumns = []string{
	ColVendorID, ColPickup, ColDropoff, ColPassengerCount,
	ColTripDistance, ColRateCodeID, ColStoreAndFwdFlag, ColPULocationID, ColDOLocationID,
	ColPaymentType, ColFareAmount, ColExtra, ColMTATax, ColTipAmount, ColTollsAmount,
	ColImprovementSurcharge, ColTotalAmount, ColCongestionSurcharge,
}

// DefaultStoreAndFwdFlag replaces a missing store-and-forward flag.
const DefaultStoreAndFwdFlag = "N"

// ErrUnknownColumn is returned when a column name is not part of the normalized record.
var ErrUnknownColumn = errors.New("unknown column")

// Field is a single normalized value: it can be bound as a SQL parameter and
// rendered as a CSV field.
type Field interface {
	driver.Valuer
	encoding.TextMarshaler
	fmt.Stringer
}

// Record is one normalized trip. Every field is explicitly optional.
type Record struct {
	VendorID             Null[int64]
	Pickup               Timestamp
	Dropoff              Timestamp
	PassengerCount       Null[int64]
	TripDistance         Null[float64]
	RateCodeID           Null[int64]
	StoreAndFwdFlag      Null[string]
	PULocationID         Null[int64]
	DOLocationID         Null[int64]
	PaymentType          Null[int64]
	FareAmount           Null[float64]
	Extra                Null[float64]
	MTATax               Null[float64]
	TipAmount            Null[float64]
	TollsAmount          Null[float64]
	ImprovementSurcharge Null[float64]
	TotalAmount          Null[float64]
	CongestionSurcharge  Null[float64]

	SourceYear Null[int64]
}

// Field returns the named normalized column.
func (r *Record) Field(name string) (Field, bool) {
	switch name {
	case ColVendorID:
		return r.VendorID, true
	case ColPickup:
		return r.Pickup, true
	case ColDropoff:
		return r.Dropoff, true
	case ColPassengerCount:
		return r.PassengerCount, true
	case ColTripDistance:
		return r.TripDistance, true
	case ColRateCodeID:
		return r.RateCodeID, true
	case ColStoreAndFwdFlag:
		return r.StoreAndFwdFlag, true
	case ColPULocationID:
		return r.PULocationID, true
	case ColDOLocationID:
		return r.DOLocationID, true
	case ColPaymentType:
		return r.PaymentType, true
	case ColFareAmount:
		return r.FareAmount, true
	case ColExtra:
		return r.Extra, true
	case ColMTATax:
		return r.MTATax, true
	case ColTipAmount:
		return r.TipAmount, true
	case ColTollsAmount:
		return r.TollsAmount, true
	case ColImprovementSurcharge:
		return r.ImprovementSurcharge, true
	case ColTotalAmount:
		return r.TotalAmount, true
	case ColCongestionSurcharge:
		return r.CongestionSurcharge, true
	case ColSourceYear:
		return r.SourceYear, true
	}
	return nil, false
}

// Args returns the record's values for columns, in order, ready to be bound
// as statement parameters.
func (r *Record) Args(columns []string) ([]any, error) {
	out := make([]any, len(columns))
	for i, c := range columns {
		f, ok := r.Field(c)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, c)
		}
		out[i] = f
	}
	return out, nil
}

// Format renders the record for log output, e.g. "vendorid=1 tip_amount=NULL".
func (r *Record) Format(columns []string) string {
	var b strings.Builder
	for i, c := range columns {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c)
		b.WriteByte('=')
		if f, ok := r.Field(c); ok {
			b.WriteString(f.String())
		} else {
			b.WriteString("?")
		}
	}
	return b.String()
}

// KnownColumn reports whether name is a normalized record column.
func KnownColumn(name string) bool {
	var r Record
	_, ok := r.Field(name)
	return ok
}
