package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"canary-speech-client/internal/common/logger"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	runCounter     otelmetric.Int64Counter
	runDuration    otelmetric.Float64Histogram
}

// New wires an OTel meter provider whose prometheus exporter registers into
// reg, and a tracer provider that writes ended spans to the debug log. Extra
// tracer options (e.g. a tracetest.SpanRecorder) are appended.
func New(serviceName string, reg prometheus.Registerer, log logger.Logger, opts ...sdktrace.TracerProviderOption) (*Observability, error) {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	exporter, err := otelprom.New(
		otelprom.WithRegisterer(reg),
		otelprom.WithoutTargetInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	meterProvider := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(res),
	)
	meter := meterProvider.Meter(serviceName)

	runCounter, err := meter.Int64Counter(
		"workflow.runs",
		otelmetric.WithDescription("Number of assessment workflow runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run counter: %w", err)
	}
	runDuration, err := meter.Float64Histogram(
		"workflow.duration",
		otelmetric.WithDescription("Assessment workflow duration"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run histogram: %w", err)
	}

	tpOpts := append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSyncer(NewLogExporter(log)),
	}, opts...)
	tracerProvider := sdktrace.NewTracerProvider(tpOpts...)

	return &Observability{
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(serviceName),
		runCounter:     runCounter,
		runDuration:    runDuration,
	}, nil
}

// RecordRun counts one finished workflow run.
func (o *Observability) RecordRun(ctx context.Context, outcome string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	o.runCounter.Add(ctx, 1, attrs)
	o.runDuration.Record(ctx, duration.Seconds(), attrs)
}

// Shutdown flushes spans and stops both providers.
func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var firstErr error
	if err := o.tracerProvider.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := o.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
