// Package pipeline runs one configured load: scan, normalize, cache, load.
//
// Files are processed strictly one at a time. Errors are scoped: a bad file is
// logged and skipped, a failed batch is rolled back inside the loader, and only
// a scan failure or cancellation ends the run early.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tripload/internal/cache"
	"tripload/internal/config"
	"tripload/internal/loader"
	"tripload/internal/metrics"
	"tripload/internal/normalize"
	"tripload/internal/scanner"
	"tripload/internal/storage"
)

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Config wires the stages of one pipeline.
type Config struct {
	Name      string
	Scan      scanner.Options
	Normalize normalize.Options
	Cache     cache.Writer
	Policy    cache.Policy
	// Bulk emits bulk-load commands for artifacts instead of inserting rows.
	Bulk   bool
	Logger Logger
}

// Summary reports what a run did.
type Summary struct {
	FilesFound     int
	FilesProcessed int
	FilesSkipped   int
	FilesEmpty     int
	FilesFailed    int

	RecordsRead    int
	RecordsDropped int
	RowsInserted   int64
	BatchesOK      int
	BatchesFailed  int
	// RowFailures counts files whose single-row load stopped at a failing row.
	RowFailures int

	// BulkCommands holds one statement per artifact, in file order.
	BulkCommands []string
}

// Runner executes a pipeline.
type Runner struct {
	cfg    Config
	loader *loader.Loader
	log    Logger
}

// New returns a Runner that loads through ld.
func New(cfg Config, ld *loader.Loader) (*Runner, error) {
	if ld == nil {
		return nil, fmt.Errorf("pipeline: nil loader")
	}
	if !cfg.Policy.Valid() {
		return nil, fmt.Errorf("pipeline: unknown cache policy %q", cfg.Policy)
	}
	if cfg.Bulk && cfg.Policy == cache.None {
		return nil, fmt.Errorf("pipeline: bulk load needs a cache artifact, policy is %s", cfg.Policy)
	}
	log := cfg.Logger
	if log == nil {
		log = nopLogger{}
	}
	return &Runner{cfg: cfg, loader: ld, log: log}, nil
}

// Build turns a validated pipeline definition into a Runner over repo.
//
// Errors:
//   - trip.ErrMappingArity / trip.ErrUnknownColumn for an unusable mapping.
func Build(p config.Pipeline, repo storage.Repository, log Logger) (*Runner, error) {
	m, err := p.ResolvedMapping()
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", p.Name, err)
	}

	ld, err := loader.New(repo, loader.Config{
		Table:     p.Table,
		Mapping:   m,
		BatchSize: p.BatchSize,
		SingleRow: p.SingleRow,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", p.Name, err)
	}

	var norm normalize.Options
	if p.Month != 0 {
		norm.Filter = normalize.InMonth(time.Month(p.Month))
	}
	if p.DeriveSourceYear {
		norm.Derive = append(norm.Derive, normalize.SourceYear)
	}

	return New(Config{
		Name:      p.Name,
		Scan:      scanner.Options{Dir: p.Source.Dir, Pattern: p.Source.Pattern, Filter: p.Source.Filter},
		Normalize: norm,
		Cache:     cache.Writer{Dir: p.Cache.Dir, Suffix: p.Cache.Suffix},
		Policy:    p.Cache.Policy,
		Bulk:      p.InsertMethod == config.InsertInfile,
		Logger:    log,
	}, ld)
}

// Run processes every matching file and returns the summary. The error is
// non-nil only for a scan failure or cancellation; the summary then covers
// the files handled so far.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	files, err := scanner.Collect(r.cfg.Scan)
	if err != nil {
		return sum, err
	}
	sum.FilesFound = len(files)
	r.log.Printf("stage=scan pipeline=%s dir=%s pattern=%s files=%d", r.cfg.Name, r.cfg.Scan.Dir, r.cfg.Scan.Pattern, len(files))

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		status, err := r.processFile(ctx, path, &sum)
		metrics.RecordFile(status)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return sum, err
			}
			sum.FilesFailed++
			r.log.Printf("stage=file file=%s status=failed err=%v", path, err)
		}
	}

	r.log.Printf("stage=done pipeline=%s found=%d processed=%d skipped=%d empty=%d failed=%d inserted=%d batches_ok=%d batches_failed=%d",
		r.cfg.Name, sum.FilesFound, sum.FilesProcessed, sum.FilesSkipped, sum.FilesEmpty, sum.FilesFailed,
		sum.RowsInserted, sum.BatchesOK, sum.BatchesFailed)
	return sum, nil
}

// processFile runs one file through the stages and returns its status label.
func (r *Runner) processFile(ctx context.Context, path string, sum *Summary) (string, error) {
	// The existence check comes before any read so a finished file is never
	// re-read or re-normalized.
	if r.cfg.Policy == cache.SkipExisting {
		exists, err := r.cfg.Cache.Exists(path)
		if err != nil {
			return "failed", fmt.Errorf("cache check: %w", err)
		}
		if exists {
			sum.FilesSkipped++
			r.log.Printf("stage=file file=%s status=skipped artifact=%s", path, r.cfg.Cache.Path(path))
			return "skipped", nil
		}
	}

	r.log.Printf("stage=file file=%s status=processing", path)

	t0 := time.Now()
	tbl, err := readSource(ctx, path, r.log)
	metrics.RecordStep("read", metrics.Status(err), time.Since(t0))
	if err != nil {
		return "failed", fmt.Errorf("read: %w", err)
	}

	t0 = time.Now()
	res, err := normalize.Normalize(tbl, r.cfg.Normalize)
	metrics.RecordStep("normalize", metrics.Status(err), time.Since(t0))
	if err != nil {
		return "failed", err
	}
	sum.RecordsRead += res.Read
	sum.RecordsDropped += res.Dropped
	metrics.RecordRecords("read", res.Read)
	metrics.RecordRecords("dropped", res.Dropped)
	r.log.Printf("stage=normalize file=%s read=%d dropped=%d bad_timestamps=%d records=%d",
		path, res.Read, res.Dropped, res.BadTimestamps, len(res.Records))

	if res.Empty() {
		sum.FilesEmpty++
		r.log.Printf("stage=file file=%s status=empty msg=%q", path, "no records found")
		return "empty", nil
	}

	var artifact string
	if r.cfg.Policy != cache.None {
		t0 = time.Now()
		artifact, err = r.cfg.Cache.Write(path, r.loader.ArtifactColumns(), res.Records)
		metrics.RecordStep("cache_write", metrics.Status(err), time.Since(t0))
		if err != nil {
			return "failed", fmt.Errorf("cache: %w", err)
		}
		r.log.Printf("stage=cache file=%s artifact=%s rows=%d", path, artifact, len(res.Records))
	}

	if r.cfg.Bulk {
		cmd, err := r.loader.BulkCommand(artifact)
		if err != nil {
			return "failed", fmt.Errorf("bulk command: %w", err)
		}
		sum.BulkCommands = append(sum.BulkCommands, cmd)
		sum.FilesProcessed++
		r.log.Printf("stage=load file=%s mode=infile status=deferred", path)
		return "processed", nil
	}

	t0 = time.Now()
	out, err := r.loader.Load(ctx, path, res.Records)
	metrics.RecordStep("load", metrics.Status(err), time.Since(t0))
	sum.RowsInserted += out.Inserted
	sum.BatchesOK += out.BatchesOK
	sum.BatchesFailed += out.BatchesFailed
	if out.FailedRow >= 0 {
		sum.RowFailures++
	}
	if err != nil {
		return "failed", err
	}

	sum.FilesProcessed++
	return "processed", nil
}
