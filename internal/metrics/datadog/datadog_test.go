package datadog

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"runtime"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"tripload/internal/metrics"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

func quietOptions(fs *fakeSubmitter) Options {
	return Options{
		JobName:    "job1",
		FlushEvery: 24 * time.Hour,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(1000, 0) },
		newTicker:  func(time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	}
}

// hasSeries returns the value of the first series named metric carrying tag.
func hasSeries(p datadogV2.MetricPayload, metric, tag string) (float64, bool) {
	for _, s := range p.Series {
		if s.Metric == metric && slices.Contains(s.Tags, tag) {
			return *s.Points[0].Value, true
		}
	}
	return 0, false
}

func TestEnvTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env  string
		want string
	}{
		{env: "prod", want: "env:prod"},
		{env: " stage\n", want: "env:stage"},
		{env: "   ", want: "env:unknown"},
		{env: "", want: "env:unknown"},
	}
	for _, tc := range tests {
		if got := envTag(tc.env); got != tc.want {
			t.Fatalf("envTag(%q)=%q, want %q", tc.env, got, tc.want)
		}
	}
}

func TestStepStatusKeyRoundTrip(t *testing.T) {
	for _, tc := range [][2]string{{"load", "ok"}, {"", "ok"}, {"read", ""}, {"", ""}} {
		step, status := splitStepStatusKey(stepStatusKey(tc[0], tc[1]))
		if step != tc[0] || status != tc[1] {
			t.Fatalf("roundtrip got=(%q,%q), want=(%q,%q)", step, status, tc[0], tc[1])
		}
	}

	step, status := splitStepStatusKey("no-sep")
	if step != "no-sep" || status != "unknown" {
		t.Fatalf("splitStepStatusKey()=(%q,%q), want=(no-sep,unknown)", step, status)
	}
}

func TestWithTags_DoesNotAliasBase(t *testing.T) {
	base := []string{"env:test", "job:tripload"}
	got := withTags(base, "status:ok")
	if !reflect.DeepEqual(got, []string{"env:test", "job:tripload", "status:ok"}) {
		t.Fatalf("withTags()=%v", got)
	}
	got[0] = "env:mutated"
	if base[0] == "env:mutated" {
		t.Fatalf("withTags output aliases base slice")
	}
}

func TestPercentileNearestRank(t *testing.T) {
	tests := []struct {
		name string
		s    []float64
		p    float64
		want float64
	}{
		{name: "empty", s: nil, p: 0.50, want: 0},
		{name: "single", s: []float64{7}, p: 0.95, want: 7},
		{name: "p_le_0", s: []float64{1, 2, 3}, p: -1, want: 1},
		{name: "p_ge_1", s: []float64{1, 2, 3}, p: 2, want: 3},
		{name: "median", s: []float64{1, 2, 3, 4, 5}, p: 0.50, want: 3},
		{name: "p90_small_n", s: []float64{1, 2, 3, 4, 5}, p: 0.90, want: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentileNearestRank(tc.s, tc.p); got != tc.want {
				t.Fatalf("percentileNearestRank(%v,%v)=%v, want %v", tc.s, tc.p, got, tc.want)
			}
		})
	}
}

func TestAddPercentiles_DoesNotMutateSamples(t *testing.T) {
	orig := []float64{5, 1, 3, 2, 4}
	in := append([]float64(nil), orig...)

	var series []datadogV2.MetricSeries
	addPercentiles(&series, []string{"env:test"}, "etl.step.duration_seconds", stepStatusKey("load", "ok"), in, 999)

	if len(series) != 6 {
		t.Fatalf("series.len=%d, want 6", len(series))
	}
	if !reflect.DeepEqual(in, orig) {
		t.Fatalf("samples mutated: got %v, want %v", in, orig)
	}
	last := series[len(series)-1]
	if last.Metric != "etl.step.duration_seconds.samples" || *last.Points[0].Value != 5 {
		t.Fatalf("unexpected samples gauge: %s=%v", last.Metric, *last.Points[0].Value)
	}
	if *last.Type != datadogV2.METRICINTAKETYPE_GAUGE || *last.Points[0].Timestamp != 999 {
		t.Fatalf("unexpected gauge type/timestamp")
	}
}

func TestNewBackend_Defaults(t *testing.T) {
	opts := quietOptions(&fakeSubmitter{})
	opts.JobName = ""
	opts.FlushEvery = 0
	opts.Tags = []string{"run:abc"}

	b, err := NewBackend(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewBackend() err=%v, want nil", err)
	}
	defer func() { _ = b.Close() }()

	if !slices.Contains(b.baseTags, "job:tripload") || !slices.Contains(b.baseTags, "run:abc") {
		t.Fatalf("baseTags=%v", b.baseTags)
	}
	if !slices.Contains(b.baseTags, "env:unknown") {
		t.Fatalf("baseTags=%v, want env:unknown without opts.Env", b.baseTags)
	}
	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery=%s, want 60s", b.flushEvery)
	}
}

func TestFlush_SubmitsLoaderMetricsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.FilesTotal, 1, metrics.Labels{"status": "processed"})
	b.IncCounter(metrics.FilesTotal, 1, metrics.Labels{"status": "skipped"})
	b.IncCounter(metrics.RecordsTotal, 1500, metrics.Labels{"kind": "inserted"})
	b.IncCounter(metrics.BatchesTotal, 2, metrics.Labels{"status": "ok"})
	b.IncCounter(metrics.BatchesTotal, 1, metrics.Labels{"status": "failed"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.5, metrics.Labels{"step": "load", "status": "ok"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
	if !b.buf.isEmpty() {
		t.Fatalf("buffers not reset after Flush")
	}

	payload, _ := fs.last()
	checks := []struct {
		metric, tag string
		want        float64
	}{
		{"etl.files.total", "status:processed", 1},
		{"etl.files.total", "status:skipped", 1},
		{"etl.records.total", "kind:inserted", 1500},
		{"etl.batches.total", "status:ok", 2},
		{"etl.batches.total", "status:failed", 1},
		{"etl.step.duration_seconds.p50", "step:load", 0.5},
	}
	for _, c := range checks {
		got, ok := hasSeries(payload, c.metric, c.tag)
		if !ok || got != c.want {
			t.Fatalf("%s{%s}=%v (found=%v), want %v", c.metric, c.tag, got, ok, c.want)
		}
	}
}

func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 0 {
		t.Fatalf("unexpected submission count=%d, want 0", fs.count())
	}
}

func TestFlush_SubmitErrorStillResets(t *testing.T) {
	fs := &fakeSubmitter{err: errors.New("403 forbidden")}
	b, err := NewBackend(context.Background(), quietOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.BatchesTotal, 1, metrics.Labels{"status": "ok"})
	if err := b.Flush(); err == nil {
		t.Fatalf("Flush() err=nil, want submit error")
	}
	if !b.buf.isEmpty() {
		t.Fatalf("buffers must be reset even when submission fails")
	}
}

func TestLoopAndClose(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		JobName:    "job1",
		FlushEvery: 5 * time.Millisecond,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(2000, 0) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	b.IncCounter(metrics.BatchesTotal, 1, metrics.Labels{"status": "ok"})

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) && fs.count() < 1 {
		time.Sleep(2 * time.Millisecond)
	}
	if fs.count() < 1 {
		_ = b.Close()
		t.Fatalf("expected at least one background Flush submission; got %d", fs.count())
	}

	b.IncCounter(metrics.BatchesTotal, 1, metrics.Labels{"status": "ok"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v, want nil", err)
	}
	if fs.count() < 2 {
		t.Fatalf("expected at least 2 submissions after Close; got %d", fs.count())
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close() err=%v, want nil", err)
	}
}

func TestBackend_ConcurrentAccess(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	workers := runtime.GOMAXPROCS(0) * 4
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 2000; j++ {
				b.IncCounter(metrics.BatchesTotal, 1, metrics.Labels{"status": "ok"})
				b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{"kind": "inserted"})
				b.ObserveHistogram(metrics.StepDurationSeconds, 0.01, metrics.Labels{"step": "load", "status": "ok"})
			}
		}()
	}
	wg.Wait()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	payload, _ := fs.last()
	if got, _ := hasSeries(payload, "etl.batches.total", "status:ok"); got != float64(workers*2000) {
		t.Fatalf("batches=%v, want %d", got, workers*2000)
	}
}

func TestIncCounterAndObserveHistogram_EdgeCases(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.BatchesTotal, 0, nil)
	b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{})
	b.IncCounter("unknown_total", 1, metrics.Labels{"x": "y"})
	b.ObserveHistogram(metrics.StepDurationSeconds, -1, metrics.Labels{"step": "load"})
	b.ObserveHistogram("unknown_seconds", 1, nil)
	// Missing status defaults to "unknown".
	b.IncCounter(metrics.FilesTotal, 1, metrics.Labels{})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	payload, ok := fs.last()
	if !ok {
		t.Fatalf("missing payload")
	}
	if len(payload.Series) != 1 {
		t.Fatalf("series=%d, want only the files counter", len(payload.Series))
	}
	if _, ok := hasSeries(payload, "etl.files.total", "status:unknown"); !ok {
		t.Fatalf("expected etl.files.total for status:unknown")
	}
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty_returns_nil", in: "", want: nil},
		{name: "trims_and_skips_empty_segments", in: " env:prod , ,service:tripload,  ,team:data ", want: []string{"env:prod", "service:tripload", "team:data"}},
		{name: "single_tag", in: "service:tripload", want: []string{"service:tripload"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseTagsCSV(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
