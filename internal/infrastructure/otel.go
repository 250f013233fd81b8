package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/M1229012/Stock-V116-sub000/internal/config"
)

// MeterName scopes every instrument the service registers.
const MeterName = "github.com/M1229012/Stock-V116-sub000"

// ServiceVersion is set at link time by build.go.
var ServiceVersion = "1.16.0"

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Meter          metric.Meter
	// PrometheusHTTP serves the metrics registry; nil when metrics are off.
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel installs global tracer and meter providers. Spans are
// written to traceOut (stdout when nil); metrics are exposed through a
// dedicated Prometheus registry.
func InitializeOTel(cfg config.TelemetryConfig, traceOut io.Writer, logger *slog.Logger) (*OTelProviders, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx := context.Background()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", instanceID()),
	)

	providers := &OTelProviders{Logger: logger}

	if cfg.TracingEnabled {
		if traceOut == nil {
			traceOut = os.Stdout
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler(cfg.TraceSampleRatio)),
		)
		providers.TracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	if cfg.MetricsEnabled {
		registry := promclient.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion))
		providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		otel.SetMeterProvider(mp)
	} else {
		providers.Meter = otel.Meter(MeterName)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.TracingEnabled),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled),
		slog.Float64("trace_sample_ratio", cfg.TraceSampleRatio))
	return providers, nil
}

// Shutdown flushes and stops the providers.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func instanceID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown"
	}
	return hostname + "-" + uuid.NewString()[:8]
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// RecordError marks the span in ctx as failed with err.
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}
