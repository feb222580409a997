// Package otel configures the process-global OpenTelemetry tracer.
package otel

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Namespace groups every command binary under one service namespace.
const Namespace = "critterledger"

const (
	envEnabled  = "CRITTER_OTEL_ENABLED"
	envEndpoint = "CRITTER_OTEL_ENDPOINT"
)

// Setup installs a global tracer provider exporting OTLP over HTTP.
//
// Tracing is opt-in: without CRITTER_OTEL_ENDPOINT, or with
// CRITTER_OTEL_ENABLED set to "false", no provider is registered and the
// returned shutdown is a no-op. Callers defer the shutdown to flush
// pending spans.
func Setup(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	endpoint, ok := exporterEndpoint()
	if !ok {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNamespace(Namespace),
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return noop, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return provider.Shutdown, nil
}

// exporterEndpoint reports the OTLP endpoint when tracing is switched on.
func exporterEndpoint() (string, bool) {
	if strings.EqualFold(os.Getenv(envEnabled), "false") {
		return "", false
	}
	endpoint := os.Getenv(envEndpoint)
	return endpoint, endpoint != ""
}
