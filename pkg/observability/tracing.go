// Package observability wires up distributed tracing for the stream engine.
package observability

import (
	"context"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/daqstream/daqstream/pkg/errors"
)

var (
	tracer trace.Tracer = noop.NewTracerProvider().Tracer("daqstream")

	provider *sdktrace.TracerProvider
	initOnce sync.Once
)

// Init sets up the global tracer provider with a stderr span exporter.
// Spans go to stderr so they never interleave with data written to stdout.
func Init(serviceName string) error {
	var err error
	initOnce.Do(func() {
		var exporter *stdouttrace.Exporter
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			err = errors.Wrap(err, errors.ErrorTypeInternal, "creating span exporter")
			return
		}

		provider = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(provider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		tracer = provider.Tracer(serviceName)
	})
	return err
}

// Tracer returns the global tracer. Before Init it is a no-op tracer, so
// callers can hold it unconditionally.
func Tracer() trace.Tracer {
	return tracer
}

// Shutdown flushes pending spans. Safe to call when Init was never called.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}
