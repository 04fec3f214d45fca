// Package observe provides application-wide observability primitives for
// podium: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all podium metrics.
const meterName = "github.com/MrWong99/podium"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// AnalysisDuration tracks how long a full recording analysis
	// (aggregation plus pacing histogram) takes.
	AnalysisDuration metric.Float64Histogram

	// TranscriptionDuration tracks batch transcription latency per part.
	TranscriptionDuration metric.Float64Histogram

	// --- Result distributions ---

	// AverageWPM records the average words-per-minute of every analysed
	// recording.
	AverageWPM metric.Float64Histogram

	// --- Counters ---

	// RecordingsAnalyzed counts analysed recordings. Use with attribute:
	//   attribute.String("source", ...)  ("api", "audio", "live", "cli")
	RecordingsAnalyzed metric.Int64Counter

	// TranscriptionRequests counts provider calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	TranscriptionRequests metric.Int64Counter

	// --- Gauges ---

	// LiveConnections tracks the number of open live-analysis websockets.
	LiveConnections metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Analysis
// runs in microseconds to milliseconds; transcription in seconds.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60,
}

// wpmBuckets covers the usual range of presentation speaking rates.
var wpmBuckets = []float64{
	60, 90, 110, 130, 150, 170, 190, 220, 260,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AnalysisDuration, err = m.Float64Histogram("podium.analysis.duration",
		metric.WithDescription("Latency of recording analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("podium.transcription.duration",
		metric.WithDescription("Latency of batch transcription per part."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AverageWPM, err = m.Float64Histogram("podium.analysis.average_wpm",
		metric.WithDescription("Average words per minute of analysed recordings."),
		metric.WithUnit("{word}/min"),
		metric.WithExplicitBucketBoundaries(wpmBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.RecordingsAnalyzed, err = m.Int64Counter("podium.recordings.analyzed",
		metric.WithDescription("Total analysed recordings by source."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionRequests, err = m.Int64Counter("podium.transcription.requests",
		metric.WithDescription("Total transcription provider requests by provider and status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.LiveConnections, err = m.Int64UpDownCounter("podium.live.connections",
		metric.WithDescription("Number of open live-analysis connections."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("podium.http.request.duration",
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

// RecordAnalysis records one analysed recording: the analysis latency in
// seconds, the resulting average words per minute and the source counter.
func (m *Metrics) RecordAnalysis(ctx context.Context, source string, seconds float64, averageWPM int64) {
	m.AnalysisDuration.Record(ctx, seconds)
	m.AverageWPM.Record(ctx, float64(averageWPM))
	m.RecordingsAnalyzed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordTranscription records a transcription provider call with the
// standard attribute set.
func (m *Metrics) RecordTranscription(ctx context.Context, provider, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	)
	m.TranscriptionRequests.Add(ctx, 1, attrs)
	m.TranscriptionDuration.Record(ctx, seconds, attrs)
}
