package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripload/internal/cache"
	"tripload/internal/trip"
)

func TestPresets_AreValid(t *testing.T) {
	t.Parallel()

	for _, p := range Presets() {
		issues := ValidatePipeline(p.WithDefaults())
		assert.Empty(t, issues, "preset %s", p.Name)
	}
}

func TestPresets_September(t *testing.T) {
	t.Parallel()

	p, err := Find(Presets(), "september")
	require.NoError(t, err)

	assert.Equal(t, trip.ComparisonTable, p.Table)
	assert.Equal(t, 9, p.Month)
	assert.True(t, p.DeriveSourceYear)
	assert.Equal(t, cache.SkipExisting, p.Cache.Policy)
	assert.Equal(t, "_september", p.Cache.Suffix)
	assert.Equal(t, DefaultBatchSize, p.BatchSize)
	assert.Equal(t, InsertExecutemany, p.InsertMethod)

	m, err := p.ResolvedMapping()
	require.NoError(t, err)
	assert.Equal(t, 19, m.Len())
}

func TestFind_Unknown(t *testing.T) {
	t.Parallel()

	_, err := Find(Presets(), "october")
	assert.True(t, errors.Is(err, ErrUnknownPipeline))
	assert.Contains(t, err.Error(), "september")
}

func TestLoadPipelines_OverridesAndExtends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pipelines.yaml")
	doc := `
pipelines:
  - name: primary
    source: {dir: /srv/trips, pattern: "*.parquet"}
    table: yellow_taxi_trips
    batch_size: 250
    cache: {dir: /srv/csv, policy: always}
  - name: q1
    source: {dir: data, pattern: "*.parquet", filter: "2024-0[1-3]"}
    table: trips_q1
    columns:
      source: [vendorid, tpep_pickup_datetime]
      target: [vendor_id, pickup_at]
    cache: {policy: none}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	ps, err := LoadPipelines(path)
	require.NoError(t, err)
	assert.Len(t, ps, len(Presets())+1)

	primary, err := Find(ps, "primary")
	require.NoError(t, err)
	assert.Equal(t, "/srv/trips", primary.Source.Dir)
	assert.Equal(t, 250, primary.BatchSize)

	q1, err := Find(ps, "q1")
	require.NoError(t, err)
	m, err := q1.ResolvedMapping()
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor_id", "pickup_at"}, m.Target)
	assert.Empty(t, ValidatePipeline(q1))
}

func TestLoadPipelines_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadPipelines(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("pipelines: [\n"), 0o644))
	_, err = LoadPipelines(bad)
	assert.Error(t, err)
}
