package postgres

import (
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestDSN_ParsesWithPgx(t *testing.T) {
	t.Parallel()

	dsn := DSN("pg.local", "5432", "loader", "s3cr@t/", "nyc_taxi")
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("ParseConfig(%q): %v", dsn, err)
	}
	if cfg.Host != "pg.local" || cfg.Port != 5432 {
		t.Fatalf("host/port: %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.User != "loader" || cfg.Password != "s3cr@t/" || cfg.Database != "nyc_taxi" {
		t.Fatalf("unexpected config: user=%s db=%s", cfg.User, cfg.Database)
	}
}
