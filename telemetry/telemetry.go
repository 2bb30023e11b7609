// Package telemetry builds the OpenTelemetry providers the engine reports
// through. Providers are constructed here and injected; no package talks
// to the otel globals.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ServiceName identifies the engine in exported telemetry.
const ServiceName = "surfaceguard-engine"

// NewResource describes the service for exported telemetry.
func NewResource(ctx context.Context) (*resource.Resource, error) {
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry resource: %w", err)
	}
	return res, nil
}

// NewTracerProvider creates a TracerProvider over the given exporter. A
// nil exporter yields a provider whose spans are never exported, which is
// still useful: span context propagates into logs and queue jobs.
func NewTracerProvider(ctx context.Context, exporter sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	res, err := NewResource(ctx)
	if err != nil {
		return nil, err
	}
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

// NewMeterProvider creates a MeterProvider over the given reader.
func NewMeterProvider(ctx context.Context, reader sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	res, err := NewResource(ctx)
	if err != nil {
		return nil, err
	}
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if reader != nil {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

// NoopTracer returns a tracer that records nothing, for callers that were
// not handed a real provider.
func NoopTracer() trace.Tracer {
	return tracenoop.NewTracerProvider().Tracer(ServiceName)
}

// NoopMeter returns a meter that records nothing.
func NoopMeter() metric.Meter {
	return metricnoop.NewMeterProvider().Meter(ServiceName)
}
