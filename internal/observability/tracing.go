package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/leebs0521/wayline-core/internal/config"
	"github.com/leebs0521/wayline-core/internal/types"
	"github.com/leebs0521/wayline-core/pkg/version"
)

const defaultBatchTimeout = 5 * time.Second

// InitTracing initializes OTLP trace export and installs the global
// tracer provider. With tracing disabled it returns a no-op provider
// with zero overhead.
//
// The returned shutdown function flushes pending spans and must be
// called before process exit.
func InitTracing(ctx context.Context, cfg config.TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp.Shutdown, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, types.WrapError(types.CONFIG_VALIDATION_FAILED,
			"creating OTLP trace exporter", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "wayline-core"
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version.Version),
	))
	if err != nil {
		return nil, types.WrapError(types.CONFIG_VALIDATION_FAILED,
			"building trace resource", err)
	}

	batchTimeout := cfg.FlushTimeout
	if batchTimeout <= 0 {
		batchTimeout = defaultBatchTimeout
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
