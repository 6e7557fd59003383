// Package pipeline runs the sequential per-gauge export loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gaugetools/subbasins/internal/adapter/atlas"
	"github.com/gaugetools/subbasins/internal/domain"
	"github.com/gaugetools/subbasins/internal/observability"
)

// Exporter produces one artifact for a gauge's query.
type Exporter interface {
	Export(ctx context.Context, g domain.Gauge, q atlas.Query) (domain.Artifact, error)
}

// Options are the loop controls for one run.
type Options struct {
	Dataset  string
	RadiusKm float64
	Limit    int           // process only the first N gauges; 0 means all
	Throttle time.Duration // blocking delay between gauges; 0 means none
}

// GaugeFailure records one gauge the run could not export.
type GaugeFailure struct {
	GaugeID string
	Err     error
}

// Result summarizes a completed (or cancelled) run.
type Result struct {
	Processed int
	Artifacts []domain.Artifact
	Skipped   int // gauges whose buffer matched no sub-basins
	Failures  []GaugeFailure
	Cancelled bool
}

// RunStatus is a point-in-time snapshot of the loop's progress, served by
// the status endpoint while a long batch is running.
type RunStatus struct {
	Active    bool  `json:"active"`
	Processed int64 `json:"processed"`
	Exported  int64 `json:"exported"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
}

// ArchivePaths returns the local archive paths among the run's artifacts,
// in processing order. Empty in drive mode.
func (r Result) ArchivePaths() []string {
	var paths []string
	for _, a := range r.Artifacts {
		if a.Kind == domain.ArtifactArchive {
			paths = append(paths, a.Path)
		}
	}
	return paths
}

// Retry policy for transient per-gauge errors: first retry after 200ms,
// doubling to a 5s cap.
const (
	maxAttempts    = 3
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Pipeline processes gauges one at a time, in input order, continuing past
// per-gauge failures.
type Pipeline struct {
	exporter Exporter
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
	ready    atomic.Bool

	// Progress counters, readable concurrently via Status.
	active    atomic.Bool
	processed atomic.Int64
	exported  atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

// New creates a Pipeline. The clock drives the inter-gauge throttle and
// retry backoff; pass a fake in tests.
func New(exporter Exporter, opts Options, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Pipeline {
	return &Pipeline{
		exporter: exporter,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
		clock:    clock,
	}
}

// CheckReadiness returns nil once at least one gauge has been processed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no gauges processed yet")
	}
	return nil
}

// Status snapshots the run's progress. Safe to call from other goroutines
// while Run is executing.
func (p *Pipeline) Status() RunStatus {
	return RunStatus{
		Active:    p.active.Load(),
		Processed: p.processed.Load(),
		Exported:  p.exported.Load(),
		Skipped:   p.skipped.Load(),
		Failed:    p.failed.Load(),
	}
}

// Run walks the gauges in order and exports each one. Per-gauge errors are
// logged and recorded in the Result; they never abort the run. Cancelling
// the context stops the run and marks the Result cancelled; a gauge caught
// mid-export by the cancellation is not counted as a failure.
func (p *Pipeline) Run(ctx context.Context, gauges []domain.Gauge) Result {
	total := len(gauges)
	if p.opts.Limit > 0 && p.opts.Limit < total {
		gauges = gauges[:p.opts.Limit]
	}
	p.logger.Info("run started",
		"gauges", len(gauges),
		"total_rows", total,
		"dataset", p.opts.Dataset,
		"buffer_km", p.opts.RadiusKm,
	)

	p.metrics.RunActive.Set(1)
	p.active.Store(true)
	defer func() {
		p.metrics.RunActive.Set(0)
		p.active.Store(false)
	}()

	var result Result
	for i, g := range gauges {
		if ctx.Err() != nil {
			p.logger.Info("run cancelled", "reason", ctx.Err(), "processed", result.Processed)
			result.Cancelled = true
			break
		}
		if i > 0 && p.opts.Throttle > 0 {
			if !p.sleep(ctx, p.opts.Throttle) {
				result.Cancelled = true
				break
			}
		}

		p.processGauge(ctx, g, &result)
		result.Processed++
		p.processed.Add(1)
		p.metrics.GaugesProcessed.Inc()
		p.ready.Store(true)
	}

	p.logSummary(result)
	return result
}

func (p *Pipeline) processGauge(ctx context.Context, g domain.Gauge, result *Result) {
	p.logger.Info("processing gauge", "gauge", g.ID, "lat", g.Lat, "lon", g.Lon)

	q, err := atlas.NewQuery(p.opts.Dataset, g, p.opts.RadiusKm)
	if err != nil {
		p.recordFailure(result, g, fmt.Errorf("build query: %w", err))
		return
	}

	artifact, err := p.exportWithRetry(ctx, g, q)
	switch {
	case errors.Is(err, domain.ErrNoSubbasins):
		p.logger.Info("no sub-basins found, skipping gauge", "gauge", g.ID)
		p.metrics.GaugesSkipped.Inc()
		result.Skipped++
		p.skipped.Add(1)
	case err != nil && ctx.Err() != nil:
		// Interrupted mid-export. The gauge did not fail, the run stopped.
		p.logger.Info("export interrupted", "gauge", g.ID, "reason", ctx.Err())
		result.Cancelled = true
	case err != nil:
		p.recordFailure(result, g, err)
	default:
		result.Artifacts = append(result.Artifacts, artifact)
		p.exported.Add(1)
	}
}

// exportWithRetry retries transient export errors with exponential backoff.
// Empty results and context cancellation are terminal on the first pass.
func (p *Pipeline) exportWithRetry(ctx context.Context, g domain.Gauge, q atlas.Query) (domain.Artifact, error) {
	backoff := initialBackoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		artifact, err := p.exporter.Export(ctx, g, q)
		if err == nil || errors.Is(err, domain.ErrNoSubbasins) {
			return artifact, err
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt == maxAttempts {
			break
		}
		p.logger.Warn("export attempt failed, retrying",
			"gauge", g.ID, "attempt", attempt, "backoff", backoff, "error", err)
		p.metrics.QueryRetries.Inc()
		if !p.sleep(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff)
	}
	return domain.Artifact{}, lastErr
}

func (p *Pipeline) recordFailure(result *Result, g domain.Gauge, err error) {
	p.logger.Error("gauge failed", "gauge", g.ID, "error", err)
	p.metrics.GaugeFailures.Inc()
	p.failed.Add(1)
	result.Failures = append(result.Failures, GaugeFailure{GaugeID: g.ID, Err: err})
}

func (p *Pipeline) logSummary(result Result) {
	p.logger.Info("run finished",
		"processed", result.Processed,
		"exported", len(result.Artifacts),
		"skipped", result.Skipped,
		"failed", len(result.Failures),
		"cancelled", result.Cancelled,
	)
	for _, f := range result.Failures {
		p.logger.Warn("failed gauge", "gauge", f.GaugeID, "error", f.Err)
	}
}

// sleep blocks for d or until the context is cancelled. Returns false on
// cancellation.
func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-p.clock.After(d):
		return true
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
