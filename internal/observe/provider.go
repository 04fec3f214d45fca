package observe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultServiceName is reported as service.name when none is configured.
const DefaultServiceName = "podium"

// Exporter selects the destination of recorded spans.
type Exporter string

const (
	// ExporterNone records spans for correlation IDs and log enrichment
	// without exporting them.
	ExporterNone Exporter = "none"

	// ExporterStdout writes spans as JSON to [ProviderConfig.Output].
	ExporterStdout Exporter = "stdout"

	// ExporterOTLP sends spans to an OTLP/HTTP collector.
	ExporterOTLP Exporter = "otlp"
)

// IsValid reports whether e is a known exporter. The empty string counts as
// [ExporterNone].
func (e Exporter) IsValid() bool {
	switch e {
	case "", ExporterNone, ExporterStdout, ExporterOTLP:
		return true
	}
	return false
}

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	ServiceName    string
	ServiceVersion string

	// Environment is reported as deployment.environment when set.
	Environment string

	Exporter Exporter

	// Endpoint is the collector host:port for [ExporterOTLP].
	Endpoint string

	// Insecure disables TLS towards the collector.
	Insecure bool

	// Headers are sent with every OTLP export request (e.g. auth tokens).
	Headers map[string]string

	// SampleRatio is the fraction of root traces that are sampled. Child
	// spans follow their parent. Zero samples everything.
	SampleRatio float64

	// Output receives stdout spans. Default: os.Stdout.
	Output io.Writer

	// Registerer receives the Prometheus collector bridging OTel metrics.
	// Default: prometheus.DefaultRegisterer, which /metrics serves.
	Registerer prometheus.Registerer
}

// NewSpanExporter builds the span exporter selected by cfg.Exporter. It
// returns a nil exporter for [ExporterNone].
func NewSpanExporter(ctx context.Context, cfg ProviderConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", ExporterNone:
		return nil, nil
	case ExporterStdout:
		w := cfg.Output
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(w))
	case ExporterOTLP:
		if cfg.Endpoint == "" {
			return nil, errors.New("observe: otlp exporter requires an endpoint")
		}
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("observe: unknown trace exporter %q", cfg.Exporter)
	}
}

// InitProvider registers global meter and tracer providers built from cfg:
// metrics are bridged to Prometheus, spans go to the exporter returned by
// [NewSpanExporter]. It also installs the W3C trace context propagator.
//
// The returned shutdown flushes pending spans and must be called before the
// process exits.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, fmt.Errorf("observe: sample ratio %v outside [0, 1]", cfg.SampleRatio)
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	// Schemaless so the merge never conflicts with the SDK's schema version.
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("observe: build resource: %w", err)
	}

	exp, err := NewSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var promOpts []promexporter.Option
	if cfg.Registerer != nil {
		promOpts = append(promOpts, promexporter.WithRegisterer(cfg.Registerer))
	}
	reader, err := promexporter.New(promOpts...)
	if err != nil {
		if exp != nil {
			err = errors.Join(err, exp.Shutdown(ctx))
		}
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	ratio := cfg.SampleRatio
	if ratio == 0 {
		ratio = 1
	}
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}
	if exp != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
