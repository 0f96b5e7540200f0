//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"tripload/internal/storage"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("nyc_taxi"),
		tcpostgres.WithUsername("loader"),
		tcpostgres.WithPassword("loader"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestIntegration_InsertRowsTransactional(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	check, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	defer check.Close(ctx)

	_, err = check.Exec(ctx, `CREATE TABLE yellow_taxi_trips (
		vendor_id BIGINT,
		tpep_pickup_datetime TIMESTAMP,
		store_and_fwd_flag CHAR(1) NOT NULL,
		tip_amount DOUBLE PRECISION
	)`)
	require.NoError(t, err)

	repo, err := storage.Open(ctx, storage.Config{Kind: Kind, DSN: dsn})
	require.NoError(t, err)
	defer repo.Close()

	cols := []string{"vendor_id", "tpep_pickup_datetime", "store_and_fwd_flag", "tip_amount"}

	n, err := repo.InsertRows(ctx, "yellow_taxi_trips", cols, [][]any{
		{int64(2), "2024-09-01 00:05:00", "N", 1.5},
		{nil, nil, "N", nil},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// NOT NULL violation in the second row rolls back the first.
	_, err = repo.InsertRows(ctx, "yellow_taxi_trips", cols, [][]any{
		{int64(1), "2024-09-02 00:00:00", "Y", 0.0},
		{int64(1), "2024-09-02 00:00:00", nil, 0.0},
	})
	require.Error(t, err)

	var total, nullTips int
	require.NoError(t, check.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE tip_amount IS NULL) FROM yellow_taxi_trips`).Scan(&total, &nullTips))
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, nullTips)
}
