package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

func TestScan_PatternAndFilter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "yellow_tripdata_2023-09.parquet"))
	touch(t, filepath.Join(dir, "yellow_tripdata_2024-09.parquet"))
	touch(t, filepath.Join(dir, "yellow_tripdata_2024-10.parquet"))
	touch(t, filepath.Join(dir, "notes.txt"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.parquet"), 0o755))

	all, err := Collect(Options{Dir: dir, Pattern: "*.parquet"})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	sept, err := Collect(Options{Dir: dir, Pattern: "*.parquet", Filter: `-09\.parquet$`})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "yellow_tripdata_2023-09.parquet"),
		filepath.Join(dir, "yellow_tripdata_2024-09.parquet"),
	}, sept)
}

func TestScan_Subdirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "september_comparison", "yellow_tripdata_2022-09.parquet"))
	touch(t, filepath.Join(dir, "yellow_tripdata_2022-09.parquet"))

	got, err := Collect(Options{Dir: dir, Pattern: "september_comparison/yellow_tripdata_*.parquet"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "september_comparison", "yellow_tripdata_2022-09.parquet")}, got)
}

func TestScan_EmptyIsNotAnError(t *testing.T) {
	t.Parallel()

	got, err := Collect(Options{Dir: t.TempDir(), Pattern: "*.parquet"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScan_BadInputs(t *testing.T) {
	t.Parallel()

	_, err := Collect(Options{Dir: t.TempDir(), Pattern: "[", Filter: ""})
	assert.Error(t, err)

	_, err = Collect(Options{Dir: t.TempDir(), Pattern: "*", Filter: "("})
	assert.Error(t, err)
}

func TestScan_StopsWhenConsumerStops(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.csv"))
	touch(t, filepath.Join(dir, "b.csv"))

	n := 0
	for _, err := range Scan(Options{Dir: dir, Pattern: "*.csv"}) {
		require.NoError(t, err)
		n++
		break
	}
	assert.Equal(t, 1, n)
}
