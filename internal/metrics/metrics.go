// Package metrics is a small backend-agnostic façade for loader metrics.
//
// Core packages record through the package-level helpers; cmd/tripload picks a
// backend (Datadog or none) at startup with SetBackend. Until then every call
// is a no-op.
package metrics

import (
	"sync"
	"time"
)

// Metric names. Backends ignore names they do not know.
const (
	FilesTotal          = "etl_files_total"
	RecordsTotal        = "etl_records_total"
	BatchesTotal        = "etl_batches_total"
	StepDurationSeconds = "etl_step_duration_seconds"
)

// Labels is a set of metric dimensions.
type Labels map[string]string

// Backend receives metric updates.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer metrics.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the no-op.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush flushes the current backend if it buffers.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// RecordFile counts one source file by outcome
// (processed, skipped, empty, failed).
func RecordFile(status string) {
	IncCounter(FilesTotal, 1, Labels{"status": status})
}

// RecordRecords counts records by kind (read, dropped, inserted, failed).
func RecordRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RecordsTotal, float64(n), Labels{"kind": kind})
}

// RecordBatch counts one committed or rolled-back batch.
func RecordBatch(status string) {
	IncCounter(BatchesTotal, 1, Labels{"status": status})
}

// RecordStep observes how long a pipeline step took.
func RecordStep(step, status string, d time.Duration) {
	ObserveHistogram(StepDurationSeconds, d.Seconds(), Labels{"step": step, "status": status})
}

// Status maps an error to the "ok"/"error" label value.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
