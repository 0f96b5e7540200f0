// Command tripload loads taxi trip files into a relational table.
//
//	tripload load --pipeline september [--config pipelines.yaml] [--insert-method infile]
//	tripload validate [--config pipelines.yaml] [--pipeline NAME]
//	tripload pipelines [--config pipelines.yaml]
//	tripload probe FILE...
//
// Database credentials come from the environment (a .env file is loaded
// first): DB_KIND, DB_DSN or DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME, with
// the MYSQL_* names accepted as fallbacks. With --metrics-backend datadog,
// ENV (else DD_ENV) and METRICS_TAGS add tags to every metric.
//
// Exit codes: 0 the run completed (failed files and batches are reported, not
// fatal), 1 fatal error (configuration, connection, mapping), 2 usage error.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"tripload/internal/config"
	"tripload/internal/storage"

	// Every backend is compiled in; DB_KIND picks one at runtime.
	_ "tripload/internal/storage/all"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

// appDeps holds the side-effecting collaborators of runMain so tests can
// replace them.
type appDeps struct {
	loadDotenv  func() error
	lookupEnv   func(string) (string, bool)
	openRepo    func(context.Context, storage.Config) (storage.Repository, error)
	initMetrics func(ctx context.Context, job, backend string, mc config.Metrics) (func(), error)
	newRunID    func() string
}

func defaultDeps() appDeps {
	return appDeps{
		loadDotenv:  func() error { return godotenv.Load() },
		lookupEnv:   os.LookupEnv,
		openRepo:    storage.Open,
		initMetrics: initMetrics,
		newRunID:    uuid.NewString,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// usageError marks errors caused by how the command was invoked.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// runMain executes one CLI invocation and returns the process exit code.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	root := newRootCmd(stdout, stderr, deps)
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "tripload: %v\n", err)
	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(stderr, "run 'tripload --help' for usage")
		return exitUsage
	}
	return exitFatal
}
