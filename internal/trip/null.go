package trip

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"
)

// TimestampLayout is the canonical string form of pickup and drop-off times,
// used for both database parameters and cache artifacts.
const TimestampLayout = "2006-01-02 15:04:05"

// Null is an optional column value. The zero value is null.
//
// A null is never the same thing as the zero of T: a Null[float64] holding a
// valid 0 is "tip of zero", an invalid one is "no tip recorded".
type Null[T int64 | float64 | string] struct {
	V     T
	Valid bool
}

// Some returns a valid Null holding v.
func Some[T int64 | float64 | string](v T) Null[T] {
	return Null[T]{V: v, Valid: true}
}

// Value implements driver.Valuer. Invalid values are sent as SQL NULL.
func (n Null[T]) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return any(n.V), nil
}

// MarshalText renders the value for CSV output; null renders as an empty field.
func (n Null[T]) MarshalText() ([]byte, error) {
	if !n.Valid {
		return nil, nil
	}
	switch v := any(n.V).(type) {
	case int64:
		return strconv.AppendInt(nil, v, 10), nil
	case float64:
		return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
	case string:
		return []byte(v), nil
	}
	return []byte(fmt.Sprint(n.V)), nil
}

func (n Null[T]) String() string {
	if !n.Valid {
		return "NULL"
	}
	b, _ := n.MarshalText()
	return string(b)
}

// Timestamp is an optional point in time rendered in TimestampLayout.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// At returns a valid Timestamp truncated to whole seconds.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t.Truncate(time.Second), Valid: true}
}

// Value implements driver.Valuer using the canonical string form.
func (t Timestamp) Value() (driver.Value, error) {
	if !t.Valid {
		return nil, nil
	}
	return t.Time.Format(TimestampLayout), nil
}

func (t Timestamp) MarshalText() ([]byte, error) {
	if !t.Valid {
		return nil, nil
	}
	return []byte(t.Time.Format(TimestampLayout)), nil
}

func (t Timestamp) String() string {
	if !t.Valid {
		return "NULL"
	}
	return t.Time.Format(TimestampLayout)
}

// Month returns the calendar month, or 0 when the timestamp is null.
func (t Timestamp) Month() time.Month {
	if !t.Valid {
		return 0
	}
	return t.Time.Month()
}

// Year returns the calendar year, or 0 when the timestamp is null.
func (t Timestamp) Year() int {
	if !t.Valid {
		return 0
	}
	return t.Time.Year()
}
