// Package loader moves normalized records into the target table.
//
// Three modes exist:
//   - batched (default): rows are split into fixed-size batches, each its own
//     transaction. A failed batch is rolled back and logged and the next batch
//     is attempted.
//   - single-row: every row is its own transaction and the loop stops at the
//     first failing row. Meant for debugging bad data.
//   - bulk command: nothing is executed; a server-side load statement for the
//     cache artifact is returned instead.
package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"tripload/internal/metrics"
	"tripload/internal/storage"
	"tripload/internal/trip"
)

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// DefaultBatchSize is the number of rows committed per transaction.
const DefaultBatchSize = 1000

// Config is fixed for the lifetime of a Loader.
type Config struct {
	Table     string
	Mapping   trip.Mapping
	BatchSize int
	SingleRow bool
	Logger    Logger
}

// Loader inserts records through one Repository.
type Loader struct {
	repo storage.Repository
	cfg  Config
	log  Logger
}

// Outcome summarizes one Load call.
type Outcome struct {
	Rows          int
	Inserted      int64
	BatchesOK     int
	BatchesFailed int

	// FailedRow is the index of the row that stopped a single-row load, or -1.
	FailedRow int
}

// New validates cfg and returns a Loader.
//
// Errors:
//   - trip.ErrMappingArity or trip.ErrUnknownColumn when the mapping is
//     unusable. Both are fatal: no row is ever sent with a bad mapping.
func New(repo storage.Repository, cfg Config) (*Loader, error) {
	if repo == nil {
		return nil, fmt.Errorf("loader: nil repository")
	}
	if err := cfg.Mapping.Validate(); err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("loader: empty table")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("loader: batch size %d", cfg.BatchSize)
	}
	log := cfg.Logger
	if log == nil {
		log = nopLogger{}
	}
	return &Loader{repo: repo, cfg: cfg, log: log}, nil
}

// Load inserts recs, labelled file in log lines. Per-batch and per-row
// failures are reported in the Outcome and the log, never as an error; the
// returned error is reserved for cancellation and record conversion.
func (l *Loader) Load(ctx context.Context, file string, recs []trip.Record) (Outcome, error) {
	out := Outcome{Rows: len(recs), FailedRow: -1}
	if len(recs) == 0 {
		return out, nil
	}

	tbl, err := trip.FromRecords(l.cfg.Mapping.Source, recs)
	if err != nil {
		return out, fmt.Errorf("loader: %w", err)
	}

	if l.cfg.SingleRow {
		return l.loadRows(ctx, file, recs, tbl.Rows, out)
	}
	return l.loadBatches(ctx, file, tbl.Rows, out)
}

func (l *Loader) loadBatches(ctx context.Context, file string, rows [][]any, out Outcome) (Outcome, error) {
	start := 0
	for _, batch := range lo.Chunk(rows, l.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		end := start + len(batch) - 1

		t0 := time.Now()
		n, err := l.repo.InsertRows(ctx, l.cfg.Table, l.cfg.Mapping.Target, batch)
		metrics.RecordStep("insert_batch", metrics.Status(err), time.Since(t0))

		if err != nil {
			out.BatchesFailed++
			metrics.RecordBatch("failed")
			metrics.RecordRecords("failed", len(batch))
			l.log.Printf("stage=load file=%s rows=%d-%d status=failed err=%v", file, start, end, err)
		} else {
			out.BatchesOK++
			out.Inserted += n
			metrics.RecordBatch("ok")
			metrics.RecordRecords("inserted", int(n))
			l.log.Printf("stage=load file=%s rows=%d-%d status=ok", file, start, end)
		}
		start += len(batch)
	}
	return out, nil
}

func (l *Loader) loadRows(ctx context.Context, file string, recs []trip.Record, rows [][]any, out Outcome) (Outcome, error) {
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		n, err := l.repo.InsertRows(ctx, l.cfg.Table, l.cfg.Mapping.Target, [][]any{row})
		if err != nil {
			out.FailedRow = i
			metrics.RecordRecords("failed", 1)
			l.log.Printf("stage=load file=%s row=%d status=failed err=%v record={%s}",
				file, i, err, recs[i].Format(l.cfg.Mapping.Source))
			l.log.Printf("stage=load file=%s status=halted inserted=%d skipped=%d", file, out.Inserted, len(rows)-i-1)
			return out, nil
		}
		out.Inserted += n
		metrics.RecordRecords("inserted", int(n))
	}
	l.log.Printf("stage=load file=%s mode=single_row status=ok inserted=%d", file, out.Inserted)
	return out, nil
}

// BulkCommand returns the server-side load statement for a cache artifact
// whose header and column order follow the mapping's source side.
func (l *Loader) BulkCommand(artifact string) (string, error) {
	b, err := storage.NewBulkLoad(l.cfg.Table, artifact, l.cfg.Mapping.Target)
	if err != nil {
		return "", err
	}
	return b.Statement(l.repo.Kind())
}

// ArtifactColumns is the column order a cache artifact must use for
// BulkCommand to line up with the table.
func (l *Loader) ArtifactColumns() []string {
	return l.cfg.Mapping.Source
}
