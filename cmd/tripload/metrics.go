package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"tripload/internal/config"
	"tripload/internal/metrics"
	"tripload/internal/metrics/datadog"
)

// metricsBackend is the part of a backend the CLI owns: shutdown.
type metricsBackend interface {
	Close() error
}

// Seams for tests. Production wiring never changes them.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	setMetricsBackend = func(b any) {
		if mb, ok := b.(metrics.Backend); ok {
			metrics.SetBackend(mb)
		}
	}
	logPrintf = log.Printf
)

// initMetrics selects and installs the metrics backend for one run. mc comes
// from config.FromEnv; the run's own tags are already appended to mc.Tags.
//
// The returned cleanup is never nil and is safe to call once, even when err
// is non-nil. For Datadog it stops the flush loop and submits what is still
// buffered; a failure there is logged, not returned.
func initMetrics(ctx context.Context, job, backend string, mc config.Metrics) (func(), error) {
	nop := func() {}

	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "none", "noop":
		return nop, nil

	case "datadog", "dd":
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    job,
			Env:        mc.Env,
			Tags:       mc.Tags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			return nop, fmt.Errorf("datadog backend: %w", err)
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
		}, nil

	default:
		return nop, fmt.Errorf("unknown metrics backend %q (want none|datadog)", backend)
	}
}
