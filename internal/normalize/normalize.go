// Package normalize turns a raw source table into normalized trip records:
// case-folded column names, canonical timestamps, explicit nulls, the default
// store-and-forward flag, and optional row filtering and derived columns.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"tripload/internal/trip"
)

// ErrMissingColumn is returned when a source file lacks an expected column.
// The error is scoped to that file; the run continues with the next one.
var ErrMissingColumn = errors.New("missing expected column")

// RowFilter reports whether a normalized record is kept.
type RowFilter func(*trip.Record) bool

// Deriver sets derived columns on a kept record.
type Deriver func(*trip.Record)

// InMonth keeps records whose pickup falls in month m. Records with a null
// pickup never match.
func InMonth(m time.Month) RowFilter {
	return func(r *trip.Record) bool {
		return r.Pickup.Valid && r.Pickup.Month() == m
	}
}

// SourceYear stamps the pickup year into SourceYear.
func SourceYear(r *trip.Record) {
	if !r.Pickup.Valid {
		r.SourceYear = trip.Null[int64]{}
		return
	}
	r.SourceYear = trip.Some(int64(r.Pickup.Year()))
}

// Options configures one normalization pass. The zero value keeps every row
// and derives nothing.
type Options struct {
	Filter RowFilter
	Derive []Deriver
}

// Result is the normalized table of one source file.
type Result struct {
	Records []trip.Record
	// Read is the number of source rows seen.
	Read int
	// Dropped counts rows removed by the filter.
	Dropped int
	// BadTimestamps counts pickup/drop-off values that could not be parsed and
	// were stored as null.
	BadTimestamps int
}

// Empty reports whether no records survived.
func (r Result) Empty() bool { return len(r.Records) == 0 }

// FoldColumns returns case-folded, trimmed column names. Folding an already
// folded name is a no-op.
func FoldColumns(cols []string) []string {
	c := cases.Fold()
	out := make([]string, len(cols))
	for i, name := range cols {
		out[i] = c.String(strings.TrimSpace(name))
	}
	return out
}

// Normalize converts tbl into normalized records. tbl's column names may use
// any casing. Extra columns are ignored.
func Normalize(tbl *trip.Table, opts Options) (Result, error) {
	folded := FoldColumns(tbl.Columns)
	idx := make(map[string]int, len(folded))
	for i, name := range folded {
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}

	var missing []string
	for _, c := range trip.SourceColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	res := Result{Read: len(tbl.Rows), Records: make([]trip.Record, 0, len(tbl.Rows))}

	for _, row := range tbl.Rows {
		at := func(col string) any {
			i := idx[col]
			if i >= len(row) {
				return nil
			}
			return row[i]
		}

		var rec trip.Record
		var bad bool

		rec.Pickup, bad = toTimestamp(at(trip.ColPickup))
		if bad {
			res.BadTimestamps++
		}
		rec.Dropoff, bad = toTimestamp(at(trip.ColDropoff))
		if bad {
			res.BadTimestamps++
		}

		rec.VendorID = toInt(at(trip.ColVendorID))
		rec.PassengerCount = toInt(at(trip.ColPassengerCount))
		rec.TripDistance = toFloat(at(trip.ColTripDistance))
		rec.RateCodeID = toInt(at(trip.ColRateCodeID))
		rec.StoreAndFwdFlag = toString(at(trip.ColStoreAndFwdFlag))
		if !rec.StoreAndFwdFlag.Valid {
			rec.StoreAndFwdFlag = trip.Some(trip.DefaultStoreAndFwdFlag)
		}
		rec.PULocationID = toInt(at(trip.ColPULocationID))
		rec.DOLocationID = toInt(at(trip.ColDOLocationID))
		rec.PaymentType = toInt(at(trip.ColPaymentType))
		rec.FareAmount = toFloat(at(trip.ColFareAmount))
		rec.Extra = toFloat(at(trip.ColExtra))
		rec.MTATax = toFloat(at(trip.ColMTATax))
		rec.TipAmount = toFloat(at(trip.ColTipAmount))
		rec.TollsAmount = toFloat(at(trip.ColTollsAmount))
		rec.ImprovementSurcharge = toFloat(at(trip.ColImprovementSurcharge))
		rec.TotalAmount = toFloat(at(trip.ColTotalAmount))
		rec.CongestionSurcharge = toFloat(at(trip.ColCongestionSurcharge))

		if opts.Filter != nil && !opts.Filter(&rec) {
			res.Dropped++
			continue
		}
		for _, d := range opts.Derive {
			d(&rec)
		}
		res.Records = append(res.Records, rec)
	}

	return res, nil
}

// timestampLayouts are tried in order for string timestamps.
var timestampLayouts = []string{
	trip.TimestampLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"01/02/2006 03:04:05 PM",
	"2006-01-02",
}

// toTimestamp coerces v; bad is true when a non-null value could not be parsed.
func toTimestamp(v any) (ts trip.Timestamp, bad bool) {
	switch t := v.(type) {
	case nil:
		return trip.Timestamp{}, false
	case time.Time:
		if t.IsZero() {
			return trip.Timestamp{}, true
		}
		return trip.At(t.UTC()), false
	case string:
		s := strings.TrimSpace(t)
		if isNullText(s) {
			return trip.Timestamp{}, false
		}
		for _, layout := range timestampLayouts {
			if p, err := time.Parse(layout, s); err == nil {
				return trip.At(wallClock(p)), false
			}
		}
	}
	return trip.Timestamp{}, true
}

// wallClock drops a parsed offset and keeps the local reading, so
// "2024-09-30T23:30:00-04:00" stays in September.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func toInt(v any) trip.Null[int64] {
	switch t := v.(type) {
	case int64:
		return trip.Some(t)
	case int:
		return trip.Some(int64(t))
	case int32:
		return trip.Some(int64(t))
	case float64:
		return intFromFloat(t)
	case string:
		s := strings.TrimSpace(t)
		if isNullText(s) {
			return trip.Null[int64]{}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return trip.Some(n)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return intFromFloat(f)
		}
	}
	return trip.Null[int64]{}
}

// intFromFloat accepts integral floats such as 1.0, which is how several
// source years store passenger counts and rate codes.
func intFromFloat(f float64) trip.Null[int64] {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return trip.Null[int64]{}
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return trip.Null[int64]{}
	}
	return trip.Some(int64(f))
}

func toFloat(v any) trip.Null[float64] {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return trip.Null[float64]{}
		}
		return trip.Some(t)
	case int64:
		return trip.Some(float64(t))
	case int:
		return trip.Some(float64(t))
	case string:
		s := strings.TrimSpace(t)
		if isNullText(s) {
			return trip.Null[float64]{}
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return trip.Null[float64]{}
		}
		return trip.Some(f)
	}
	return trip.Null[float64]{}
}

func toString(v any) trip.Null[string] {
	switch t := v.(type) {
	case nil:
		return trip.Null[string]{}
	case string:
		s := strings.TrimSpace(t)
		if isNullText(s) {
			return trip.Null[string]{}
		}
		return trip.Some(s)
	case bool:
		if t {
			return trip.Some("Y")
		}
		return trip.Some("N")
	}
	return trip.Some(fmt.Sprint(v))
}

// isNullText matches the textual null markers found in exported trip files.
func isNullText(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "nat", "none", "null", "<na>":
		return true
	}
	return false
}
