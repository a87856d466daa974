// Package observe provides observability primitives for voxnorm:
// OpenTelemetry metrics with a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to
// avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxnorm metrics.
const meterName = "github.com/centomomd/voxnorm"

// Metrics holds all OpenTelemetry metric instruments for the pipeline.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks per-stage processing latency. Use with attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// PipelineRuns counts complete pipeline invocations. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	PipelineRuns metric.Int64Counter

	// TurnsIngested counts turns produced by the ingest stage.
	TurnsIngested metric.Int64Counter

	// TokensDropped counts tokens removed by the normalizer's confidence
	// floor.
	TokensDropped metric.Int64Counter

	// LabelsFolded counts diarized labels folded into a primary bucket by
	// the normalizer's >2-speaker collapse path.
	LabelsFolded metric.Int64Counter
}

// durationBuckets defines histogram bucket boundaries (in seconds) for the
// stage-latency histogram. The pipeline is pure in-memory work, so the
// buckets skew small.
var durationBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1,
}

// NewMetrics creates all metric instruments using the given provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)
	m := &Metrics{}
	var err error

	m.StageDuration, err = meter.Float64Histogram(
		"voxnorm_stage_duration_seconds",
		metric.WithDescription("Per-stage pipeline processing latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, err
	}

	m.PipelineRuns, err = meter.Int64Counter(
		"voxnorm_pipeline_runs_total",
		metric.WithDescription("Completed pipeline invocations by status"),
	)
	if err != nil {
		return nil, err
	}

	m.TurnsIngested, err = meter.Int64Counter(
		"voxnorm_turns_ingested_total",
		metric.WithDescription("Turns produced by the ingest stage"),
	)
	if err != nil {
		return nil, err
	}

	m.TokensDropped, err = meter.Int64Counter(
		"voxnorm_tokens_dropped_total",
		metric.WithDescription("Tokens dropped by the normalizer confidence floor"),
	)
	if err != nil {
		return nil, err
	}

	m.LabelsFolded, err = meter.Int64Counter(
		"voxnorm_labels_folded_total",
		metric.WithDescription("Diarized labels folded into a primary bucket"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide [Metrics] instance built from the
// global OTel meter provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			m = &Metrics{}
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// RecordStage records one stage execution on the duration histogram.
// Nil-safe: a nil Metrics (or an instrument that failed to build) records
// nothing, so callers never need to guard.
func (m *Metrics) RecordStage(ctx context.Context, stage string, seconds float64) {
	if m == nil || m.StageDuration == nil {
		return
	}
	m.StageDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordRun counts one pipeline invocation with the given status.
func (m *Metrics) RecordRun(ctx context.Context, status string) {
	if m == nil || m.PipelineRuns == nil {
		return
	}
	m.PipelineRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// AddTurns counts turns produced by ingest.
func (m *Metrics) AddTurns(ctx context.Context, n int) {
	if m == nil || m.TurnsIngested == nil {
		return
	}
	m.TurnsIngested.Add(ctx, int64(n))
}

// AddDroppedTokens counts normalizer-dropped tokens.
func (m *Metrics) AddDroppedTokens(ctx context.Context, n int) {
	if m == nil || m.TokensDropped == nil {
		return
	}
	m.TokensDropped.Add(ctx, int64(n))
}

// AddFoldedLabels counts labels folded during bucket collapse.
func (m *Metrics) AddFoldedLabels(ctx context.Context, n int) {
	if m == nil || m.LabelsFolded == nil {
		return
	}
	m.LabelsFolded.Add(ctx, int64(n))
}
