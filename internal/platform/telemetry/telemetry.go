// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package telemetry installs the process-wide OpenTelemetry tracer provider.

Spans are exported over OTLP/HTTP when an endpoint is configured. Without one
the provider still samples, so trace IDs propagate and log correlation keeps
working in development.
*/
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.25.0"
)

const exportTimeout = 5 * time.Second

// Settings selects the exporter and sampling ratio.
type Settings struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Insecure       bool
	SampleRatio    float64
}

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

/*
Init configures the global tracer provider and W3C propagation.

Parameters:
  - ctx: context.Context
  - settings: Settings
  - logger: *slog.Logger

Returns:
  - ShutdownFunc: Flushes and stops the provider
  - error: Exporter construction failures
*/
func Init(ctx context.Context, settings Settings, logger *slog.Logger) (ShutdownFunc, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(settings.ServiceName),
		semconv.ServiceVersion(settings.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	options := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(settings.SampleRatio)),
	}

	if endpoint := strings.TrimSpace(settings.Endpoint); endpoint != "" {
		exporterOptions := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithTimeout(exportTimeout),
		}
		if settings.Insecure {
			exporterOptions = append(exporterOptions, otlptracehttp.WithInsecure())
		}

		exporter, err := otlptracehttp.New(ctx, exporterOptions...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: otlp exporter: %w", err)
		}
		options = append(options, sdktrace.WithBatcher(exporter))
		logger.Info("telemetry_exporter_enabled", slog.String("endpoint", endpoint))
	}

	provider := sdktrace.NewTracerProvider(options...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Shutdown, nil
}

// sampler honours the parent decision and samples new roots at ratio.
func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// HTTPMiddleware starts a server span per request, named after the method.
func HTTPMiddleware(serviceName string) func(http.Handler) http.Handler {
	return otelhttp.NewMiddleware(serviceName,
		otelhttp.WithSpanNameFormatter(func(_ string, request *http.Request) string {
			return request.Method + " " + request.URL.Path
		}),
	)
}
