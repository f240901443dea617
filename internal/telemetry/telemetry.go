// Package telemetry wires OpenTelemetry tracing/metrics for the coordinator.
// Provider offers StartSpan and RecordDuration for coordinator operations;
// traces are exported to stdout, matching the teacher's "batteries included
// but swappable" telemetry posture. The route, spawn and analyze paths do
// not call these helpers; the service only builds the Provider and shuts it
// down.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// Provider bundles a tracer and a meter for coordinator components.
type Provider struct {
	tracer trace.Tracer
	meter  metric.Meter
	tp     *sdktrace.TracerProvider
}

// New builds a Provider that exports traces to stdout. Passing "" for
// serviceName defaults to "ohms-coordinator".
func New(serviceName string) (*Provider, error) {
	if serviceName == "" {
		serviceName = "ohms-coordinator"
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{
		tracer: tp.Tracer(serviceName),
		meter:  otel.GetMeterProvider().Meter(serviceName),
		tp:     tp,
	}, nil
}

// Shutdown flushes and stops the trace provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// StartSpan opens a span for a named coordinator operation.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if p == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordDuration records how long an operation took against a named
// histogram-like gauge via the meter's Float64Counter fallback (kept simple:
// the coordinator cares about structured logs and traces more than raw
// metric cardinality, so only a handful of counters are registered here).
func (p *Provider) RecordDuration(ctx context.Context, name string, d time.Duration, attrs ...attribute.KeyValue) {
	if p == nil {
		return
	}
	counter, err := p.meter.Float64Counter(name + ".ms")
	if err != nil {
		return
	}
	counter.Add(ctx, float64(d.Milliseconds()), metric.WithAttributes(attrs...))
}
