// README: OpenTelemetry tracer provider setup.
package infra

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type ShutdownFunc func(ctx context.Context) error

// SetupTracing installs a sampling tracer provider so spans carry ids into
// the logs. Exporters can be attached through opts.
func SetupTracing(opts ...sdktrace.TracerProviderOption) ShutdownFunc {
	opts = append([]sdktrace.TracerProviderOption{sdktrace.WithSampler(sdktrace.AlwaysSample())}, opts...)
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
