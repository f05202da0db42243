package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys recorded by the search path.
const (
	AttrSearchRadiusKm   = attribute.Key("search.radius_km")
	AttrSearchBagCount   = attribute.Key("search.bag_count")
	AttrSearchCandidates = attribute.Key("search.candidates")
	AttrSearchResults    = attribute.Key("search.results")
	AttrCapacityMode     = attribute.Key("search.capacity_mode")
	AttrCacheHit         = attribute.Key("cache.hit")
)

// InitTracer installs a global tracer provider exporting spans over OTLP/gRPC
// to endpoint. The returned function flushes and stops the exporter.
func InitTracer(ctx context.Context, serviceName, endpoint string) (func(), error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}, nil
}

// Tracer returns the named tracer from the global provider. Without
// InitTracer the global provider is a no-op.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
