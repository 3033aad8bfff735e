// Package observe provides application-wide observability primitives for
// Pageglot: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Pageglot metrics.
const meterName = "github.com/pageglot/pageglot"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// PhaseDuration tracks wall-clock time per annotation phase. Use with
	// attribute: attribute.String("phase", ...)
	PhaseDuration metric.Float64Histogram

	// TranslationDuration tracks per-chunk translation latency. Use with
	// attribute: attribute.String("path", "literal"|"contextual")
	TranslationDuration metric.Float64Histogram

	// SessionDuration tracks end-to-end annotation session latency.
	SessionDuration metric.Float64Histogram

	// --- Counters ---

	// OracleRequests counts oracle/backend API calls. Use with attributes:
	//   attribute.String("oracle", ...), attribute.String("status", ...)
	OracleRequests metric.Int64Counter

	// ChunksProcessed counts chunks emitted by the segmenter. Use with
	// attribute: attribute.String("origin", "oracle"|"fallback")
	ChunksProcessed metric.Int64Counter

	// FallbacksTaken counts deterministic-fallback activations. Use with
	// attribute: attribute.String("component", "detect"|"segment"|"translate")
	FallbacksTaken metric.Int64Counter

	// --- Error counters ---

	// OracleErrors counts oracle errors. Use with attribute:
	//   attribute.String("oracle", ...)
	OracleErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live annotation sessions.
	ActiveSessions metric.Int64UpDownCounter

	// EventSubscribers tracks the number of connected event-stream clients.
	EventSubscribers metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for oracle round-trip latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.PhaseDuration, err = m.Float64Histogram("pageglot.phase.duration",
		metric.WithDescription("Wall-clock time per annotation phase."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslationDuration, err = m.Float64Histogram("pageglot.translation.duration",
		metric.WithDescription("Per-chunk translation latency by path."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("pageglot.session.duration",
		metric.WithDescription("End-to-end annotation session latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.OracleRequests, err = m.Int64Counter("pageglot.oracle.requests",
		metric.WithDescription("Total oracle API requests by oracle and status."),
	); err != nil {
		return nil, err
	}
	if met.ChunksProcessed, err = m.Int64Counter("pageglot.chunks.processed",
		metric.WithDescription("Total chunks emitted by the segmenter, by origin."),
	); err != nil {
		return nil, err
	}
	if met.FallbacksTaken, err = m.Int64Counter("pageglot.fallbacks.taken",
		metric.WithDescription("Deterministic fallback activations by component."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.OracleErrors, err = m.Int64Counter("pageglot.oracle.errors",
		metric.WithDescription("Total oracle errors by oracle."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("pageglot.active_sessions",
		metric.WithDescription("Number of live annotation sessions."),
	); err != nil {
		return nil, err
	}
	if met.EventSubscribers, err = m.Int64UpDownCounter("pageglot.event_subscribers",
		metric.WithDescription("Number of connected event-stream clients."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("pageglot.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordPhase records one completed annotation phase.
func (m *Metrics) RecordPhase(ctx context.Context, phase string, seconds float64) {
	m.PhaseDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("phase", phase)),
	)
}

// RecordOracleRequest records an oracle request counter increment with the
// standard attribute set.
func (m *Metrics) RecordOracleRequest(ctx context.Context, oracle, status string) {
	m.OracleRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("oracle", oracle),
			attribute.String("status", status),
		),
	)
}

// RecordOracleError records an oracle error counter increment.
func (m *Metrics) RecordOracleError(ctx context.Context, oracle string) {
	m.OracleErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("oracle", oracle)),
	)
}

// RecordFallback records a deterministic-fallback activation.
func (m *Metrics) RecordFallback(ctx context.Context, component string) {
	m.FallbacksTaken.Add(ctx, 1,
		metric.WithAttributes(attribute.String("component", component)),
	)
}

// RecordTranslation records one translation backend call's latency.
func (m *Metrics) RecordTranslation(ctx context.Context, path string, seconds float64) {
	m.TranslationDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("path", path)),
	)
}

// RecordChunks counts chunks emitted by the segmenter.
func (m *Metrics) RecordChunks(ctx context.Context, origin string, n int) {
	m.ChunksProcessed.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("origin", origin)),
	)
}
