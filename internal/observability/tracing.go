// Package observability wires the OpenTelemetry SDK that internal/oracle's
// package-level tracer reports spans to. Without a registered SDK provider,
// otel.Tracer returns a no-op tracer; this package is what makes those
// spans real.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewTracerProvider builds and registers a TracerProvider for serviceName.
// In verbose mode spans are written to stdout via stdouttrace (pretty
// printed); otherwise the provider is registered with a never-sample
// sampler, so internal/oracle's span calls stay cheap no-ops without a
// separate verbose/quiet branch in that package itself.
func NewTracerProvider(serviceName string, verbose bool) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if verbose {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithSyncer(exporter))
	} else {
		opts = append(opts, sdktrace.WithSampler(sdktrace.NeverSample()))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Shutdown flushes and releases tp's resources, tolerating a nil tp so
// callers can defer it unconditionally after a failed NewTracerProvider.
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}
