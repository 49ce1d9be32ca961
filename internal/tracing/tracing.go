package tracing

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/pmo-suite/change-request-service/internal/config"
)

type ShutdownFunc func(context.Context) error

func noop(context.Context) error { return nil }

// Setup installs the global tracer provider exporting over OTLP/HTTP. When tracing is
// disabled the global no-op provider stays in place.
func Setup(ctx context.Context, opts config.TracingOptions) (ShutdownFunc, error) {
	if !opts.Enabled {
		return noop, nil
	}
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(opts.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return noop, errors.Wrap(err, "create otlp exporter")
	}
	tp, err := NewProvider(ctx, opts.ServiceName, sdktrace.NewBatchSpanProcessor(exporter))
	if err != nil {
		return noop, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// NewProvider builds a provider tagged with the service name around processor.
func NewProvider(ctx context.Context, serviceName string, processor sdktrace.SpanProcessor) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "build trace resource")
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithResource(res),
	), nil
}
