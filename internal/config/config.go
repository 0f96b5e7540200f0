// Package config builds the run's immutable configuration: database
// connection parameters from the environment and pipeline definitions from
// built-in presets or a YAML file.
package config

import (
	"fmt"
	"os"
	"strings"

	"tripload/internal/metrics/datadog"
	"tripload/internal/storage"
	"tripload/internal/storage/mssql"
	"tripload/internal/storage/mysql"
	"tripload/internal/storage/postgres"
)

// Database holds connection parameters for the target store.
type Database struct {
	Kind     string
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// Config is built once at startup and passed explicitly to the components
// that need it.
type Config struct {
	Database Database
	Metrics  Metrics
}

// Metrics holds the settings of the optional metrics backend.
type Metrics struct {
	// Env becomes the "env:" tag; empty means unknown.
	Env  string
	Tags []string
}

var defaultPorts = map[string]string{
	mysql.Kind:    "3306",
	postgres.Kind: "5432",
	mssql.Kind:    "1433",
}

// FromEnv reads database settings through lookup (os.LookupEnv in
// production). DB_* variables win; MYSQL_* are accepted as fallbacks.
// Metrics settings come from ENV (else DD_ENV) and METRICS_TAGS.
func FromEnv(lookup func(string) (string, bool)) Config {
	get := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	db := Database{
		Kind:     strings.ToLower(get("DB_KIND")),
		DSN:      get("DB_DSN"),
		Host:     get("DB_HOST", "MYSQL_HOST"),
		Port:     get("DB_PORT", "MYSQL_PORT"),
		User:     get("DB_USER", "MYSQL_USER"),
		Password: get("DB_PASSWORD", "MYSQL_PASSWORD"),
		Name:     get("DB_NAME", "MYSQL_DATABASE"),
	}
	if db.Kind == "" {
		db.Kind = mysql.Kind
	}
	if db.DSN != "" {
		db.DSN = os.Expand(db.DSN, func(k string) string {
			v, _ := lookup(k)
			return v
		})
	}
	return Config{
		Database: db,
		Metrics: Metrics{
			Env:  get("ENV", "DD_ENV"),
			Tags: datadog.ParseTagsCSV(get("METRICS_TAGS")),
		},
	}
}

// Storage resolves the storage configuration. An explicit DSN is used as is;
// otherwise one is assembled from the components for the selected kind.
func (d Database) Storage() (storage.Config, error) {
	if d.DSN != "" {
		return storage.Config{Kind: d.Kind, DSN: d.DSN}, nil
	}

	if d.Kind == "sqlite" {
		if d.Name == "" {
			return storage.Config{}, fmt.Errorf("database: sqlite requires DB_NAME (file path) or DB_DSN")
		}
		return storage.Config{Kind: d.Kind, DSN: d.Name}, nil
	}

	var missing []string
	if d.Host == "" {
		missing = append(missing, "host")
	}
	if d.User == "" {
		missing = append(missing, "user")
	}
	if d.Name == "" {
		missing = append(missing, "database")
	}
	if len(missing) > 0 {
		return storage.Config{}, fmt.Errorf("database: missing %s for kind=%s", strings.Join(missing, ", "), d.Kind)
	}

	port := d.Port
	if port == "" {
		port = defaultPorts[d.Kind]
	}

	var dsn string
	switch d.Kind {
	case mysql.Kind:
		dsn = mysql.DSN(d.Host, port, d.User, d.Password, d.Name)
	case postgres.Kind:
		dsn = postgres.DSN(d.Host, port, d.User, d.Password, d.Name)
	case mssql.Kind:
		dsn = mssql.DSN(d.Host, port, d.User, d.Password, d.Name)
	default:
		return storage.Config{}, fmt.Errorf("database: unsupported kind=%s", d.Kind)
	}
	return storage.Config{Kind: d.Kind, DSN: dsn}, nil
}

// String describes the target without the password.
func (d Database) String() string {
	if d.DSN != "" {
		return fmt.Sprintf("kind=%s dsn=<set>", d.Kind)
	}
	return fmt.Sprintf("kind=%s host=%s port=%s user=%s database=%s", d.Kind, d.Host, d.Port, d.User, d.Name)
}
