// Package otel sets up opt-in OpenTelemetry tracing for storyboard runs.
package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Settings selects the exporter. Tracing is off unless Enabled is true and
// Endpoint is set.
type Settings struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// Setup initialises tracing and returns the provider to hand to the
// orchestrator plus a shutdown function that flushes pending spans.
//
// When tracing is off, Setup returns a no-op provider, a no-op shutdown and
// registers nothing globally.
func Setup(ctx context.Context, s Settings) (oteltrace.TracerProvider, func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }
	if !s.Enabled || s.Endpoint == "" {
		return noop.NewTracerProvider(), noopShutdown, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(s.Endpoint),
	)
	if err != nil {
		return nil, noopShutdown, err
	}

	name := s.ServiceName
	if name == "" {
		name = "storyviz"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(name),
		),
	)
	if err != nil {
		return nil, noopShutdown, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, tp.Shutdown, nil
}
