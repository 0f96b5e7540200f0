package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrConnect marks a failure to establish the run's database connection.
// It is always fatal: nothing has been scanned or loaded when it is returned.
var ErrConnect = errors.New("storage: connect")

// Config is the minimal configuration needed to open a Repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Repository owns exactly one database connection for the lifetime of a run.
//
// Each backend implements these semantics in its own idiomatic way (a pinned
// *sql.Conn for database/sql drivers, a single *pgx.Conn for Postgres).
type Repository interface {
	// Kind returns the backend kind the repository was opened with.
	Kind() string

	// InsertRows inserts rows into table inside one transaction.
	//
	// Semantics:
	//   - begin, insert every row, commit; on any failure the transaction is
	//     rolled back and nothing from this call is visible in the table.
	//   - Backends with a bind-parameter limit split rows across several
	//     statements inside the same transaction.
	//   - Every row must have len(columns) values.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Factory opens a backend connection for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "mysql", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The kind string becomes the lookup key used by Open.
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// Kinds returns the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Open constructs a Repository using the registered backend factory.
//
// Errors:
//   - Every failure (unknown kind, unreachable server, bad credentials) wraps
//     ErrConnect so callers can treat it as fatal with errors.Is.
func Open(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("%w: missing kind", ErrConnect)
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("%w: unsupported storage kind=%s", ErrConnect, cfg.Kind)
	}

	repo, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: kind=%s: %w", ErrConnect, cfg.Kind, err)
	}
	return repo, nil
}
