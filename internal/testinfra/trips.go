// Package testinfra holds fixtures shared by package tests: a SQLite target
// database shaped like the production trip tables and synthetic trip records.
package testinfra

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"tripload/internal/trip"
)

// TripsDDL returns CREATE TABLE for a trip table on SQLite. pu_location_id is
// constrained to the real zone id range (1-265) so tests can provoke
// constraint failures with an out-of-range id.
func TripsDDL(table string, withSourceYear bool) string {
	cols := []string{
		"vendor_id INTEGER",
		"tpep_pickup_datetime TEXT",
		"tpep_dropoff_datetime TEXT",
		"passenger_count INTEGER",
		"trip_distance REAL",
		"rate_code_id INTEGER",
		"store_and_fwd_flag TEXT NOT NULL",
		"pu_location_id INTEGER CHECK (pu_location_id BETWEEN 1 AND 265)",
		"do_location_id INTEGER",
		"payment_type INTEGER",
		"fare_amount REAL",
		"extra REAL",
		"mta_tax REAL",
		"tip_amount REAL",
		"tolls_amount REAL",
		"improvement_surcharge REAL",
		"total_amount REAL",
		"congestion_surcharge REAL",
	}
	if withSourceYear {
		cols = append(cols, "source_year INTEGER")
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", table, strings.Join(cols, ",\n  "))
}

// TripsDB creates a SQLite file with the given trip tables and returns its
// path plus a separate handle for assertions. The handle is closed at cleanup.
func TripsDB(t testing.TB, ddl ...string) (string, *sql.DB) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "trips.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("ddl: %v", err)
		}
	}
	return path, db
}

// Count returns SELECT COUNT(*) for table with an optional WHERE clause.
func Count(t testing.TB, db *sql.DB, table, where string) int {
	t.Helper()

	q := "SELECT COUNT(*) FROM " + table
	if where != "" {
		q += " WHERE " + where
	}
	var n int
	if err := db.QueryRow(q).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// Record returns a fully populated trip picked up at pickup. i seeds the
// numeric fields so records are distinguishable.
func Record(i int, pickup time.Time) trip.Record {
	return trip.Record{
		VendorID:             trip.Some(int64(1 + i%2)),
		Pickup:               trip.At(pickup),
		Dropoff:              trip.At(pickup.Add(12 * time.Minute)),
		PassengerCount:       trip.Some(int64(1)),
		TripDistance:         trip.Some(1.5 + float64(i%10)/10),
		RateCodeID:           trip.Some(int64(1)),
		StoreAndFwdFlag:      trip.Some(trip.DefaultStoreAndFwdFlag),
		PULocationID:         trip.Some(int64(1 + i%265)),
		DOLocationID:         trip.Some(int64(1 + (i+7)%265)),
		PaymentType:          trip.Some(int64(1)),
		FareAmount:           trip.Some(10.0),
		Extra:                trip.Some(0.5),
		MTATax:               trip.Some(0.5),
		TipAmount:            trip.Some(2.0),
		TollsAmount:          trip.Some(0.0),
		ImprovementSurcharge: trip.Some(1.0),
		TotalAmount:          trip.Some(14.0),
		CongestionSurcharge:  trip.Some(2.5),
	}
}

// Records returns n records with pickups one minute apart from start.
func Records(n int, start time.Time) []trip.Record {
	out := make([]trip.Record, n)
	for i := range out {
		out[i] = Record(i, start.Add(time.Duration(i)*time.Minute))
	}
	return out
}
