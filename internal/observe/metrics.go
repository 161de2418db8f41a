// Package observe provides the observability primitives shared by the render
// service: OpenTelemetry instruments and spans, trace-aware logging and the HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// bridges them to Prometheus so they can be scraped from /metrics (see
// [Providers.MetricsHandler]). Components take a [*Metrics] built by [NewMetrics] and
// skip recording when it is nil.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all emotivox metrics.
const meterName = "github.com/MrWong99/emotivox"

// Render outcomes used as the "status" attribute of [Metrics.RenderTotal].
const (
	StatusSuccess = "success"
	StatusEmpty   = "empty_input"
	StatusFailed  = "failed"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// RenderDuration tracks end-to-end render latency, from synthesis to
	// export.
	RenderDuration metric.Float64Histogram

	// RenderTotal counts finished renders. Use with attribute:
	//   attribute.String("status", ...)
	RenderTotal metric.Int64Counter

	// StageFailures counts pipeline stages that failed and were skipped.
	// Use with attribute:
	//   attribute.String("stage", ...)
	StageFailures metric.Int64Counter

	// SynthesisDuration tracks baseline synthesis latency per provider.
	SynthesisDuration metric.Float64Histogram

	// SynthesisErrors counts failed synthesis calls per provider.
	SynthesisErrors metric.Int64Counter

	// CacheLookups counts baseline cache lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	CacheLookups metric.Int64Counter

	// BreakerTransitions counts synthesis backend circuit breaker state
	// changes. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("state", ...)
	BreakerTransitions metric.Int64Counter

	// ActiveRenders tracks the number of renders currently in flight.
	ActiveRenders metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time, labelled by
	// method, route pattern and status class.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Remote
// synthesis of a long paragraph can take tens of seconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RenderDuration, err = m.Float64Histogram("emotivox.render.duration",
		metric.WithDescription("Latency of a complete render."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("emotivox.synthesis.duration",
		metric.WithDescription("Latency of baseline speech synthesis by provider."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.RenderTotal, err = m.Int64Counter("emotivox.render.total",
		metric.WithDescription("Total renders by status."),
	); err != nil {
		return nil, err
	}
	if met.StageFailures, err = m.Int64Counter("emotivox.stage.failures",
		metric.WithDescription("Total failed pipeline stages by stage name."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisErrors, err = m.Int64Counter("emotivox.synthesis.errors",
		metric.WithDescription("Total synthesis errors by provider."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("emotivox.cache.lookups",
		metric.WithDescription("Total baseline cache lookups by result."),
	); err != nil {
		return nil, err
	}

	if met.BreakerTransitions, err = m.Int64Counter("emotivox.provider.breaker.transitions",
		metric.WithDescription("Total circuit breaker state changes by provider and new state."),
	); err != nil {
		return nil, err
	}

	if met.ActiveRenders, err = m.Int64UpDownCounter("emotivox.active_renders",
		metric.WithDescription("Number of renders currently in flight."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("emotivox.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordRender records the duration and outcome of one render.
func (m *Metrics) RecordRender(ctx context.Context, status string, d time.Duration) {
	m.RenderDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("status", status)))
	m.RenderTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordStageFailure increments the failure counter of stage.
func (m *Metrics) RecordStageFailure(ctx context.Context, stage string) {
	m.StageFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordSynthesis records one synthesis call. A non-nil err also increments
// [Metrics.SynthesisErrors].
func (m *Metrics) RecordSynthesis(ctx context.Context, provider string, d time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("provider", provider))
	m.SynthesisDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.SynthesisErrors.Add(ctx, 1, attrs)
	}
}

// RecordCacheLookup records a baseline cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordBreakerTransition counts a breaker of provider moving to state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, state string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("state", state),
	))
}
