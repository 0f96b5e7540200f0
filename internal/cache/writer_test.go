package cache

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripload/internal/trip"
)

func TestWriter_Path(t *testing.T) {
	t.Parallel()

	w := Writer{Dir: "converted_csv_september", Suffix: "_september"}
	assert.Equal(t,
		filepath.Join("converted_csv_september", "yellow_tripdata_2024-09_september.csv"),
		w.Path("data/september_comparison/yellow_tripdata_2024-09.parquet"))

	assert.Equal(t, filepath.Join("out", "a.csv"), Writer{Dir: "out"}.Path("/x/y/a.parquet"))
}

func TestWriter_WriteCreatesDirAndOverwrites(t *testing.T) {
	t.Parallel()

	w := Writer{Dir: filepath.Join(t.TempDir(), "nested", "cache"), Suffix: "_september"}
	src := "yellow_tripdata_2024-09.parquet"

	ok, err := w.Exists(src)
	require.NoError(t, err)
	assert.False(t, ok)

	recs := []trip.Record{
		{
			VendorID:        trip.Some[int64](2),
			Pickup:          trip.At(time.Date(2024, 9, 1, 1, 2, 3, 0, time.UTC)),
			StoreAndFwdFlag: trip.Some("N"),
			TipAmount:       trip.Some(0.0),
			SourceYear:      trip.Some[int64](2024),
		},
		{VendorID: trip.Some[int64](1), StoreAndFwdFlag: trip.Some("Y")},
	}
	cols := []string{trip.ColVendorID, trip.ColPickup, trip.ColStoreAndFwdFlag, trip.ColTipAmount, trip.ColSourceYear}

	path, err := w.Write(src, cols, recs)
	require.NoError(t, err)
	assert.Equal(t, w.Path(src), path)

	ok, err = w.Exists(src)
	require.NoError(t, err)
	assert.True(t, ok)

	got := readCSV(t, path)
	assert.Equal(t, [][]string{
		cols,
		{"2", "2024-09-01 01:02:03", "N", "0", "2024"},
		{"1", "", "Y", "", ""},
	}, got)

	// A second write replaces the artifact.
	_, err = w.Write(src, cols, recs[:1])
	require.NoError(t, err)
	assert.Len(t, readCSV(t, path), 2)

	entries, err := os.ReadDir(w.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestWriter_UnknownColumn(t *testing.T) {
	t.Parallel()

	w := Writer{Dir: t.TempDir()}
	_, err := w.Write("a.parquet", []string{"bogus"}, []trip.Record{{}})
	assert.ErrorIs(t, err, trip.ErrUnknownColumn)

	ok, err := w.Exists("a.parquet")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPolicy_Valid(t *testing.T) {
	t.Parallel()

	for _, p := range []Policy{Always, SkipExisting, None} {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, Policy("sometimes").Valid())
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}
