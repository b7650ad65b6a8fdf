// Package telemetry sets up tracing and run metrics for a single
// invocation.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Standard OTLP variables. The exporter reads these (and the rest of the
// OTEL_EXPORTER_OTLP_* family) itself; they are only consulted here to decide
// whether a run exports at all.
const (
	envSDKDisabled    = "OTEL_SDK_DISABLED"
	envEndpoint       = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envTracesEndpoint = "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"
)

// TracingConfig names the service the run reports as. Getenv is the lookup
// used to decide whether tracing is configured.
type TracingConfig struct {
	Getenv         func(string) string
	ServiceName    string
	ServiceVersion string
}

// exportConfigured reports whether an OTLP endpoint is set and the SDK is
// not switched off.
func (c TracingConfig) exportConfigured() bool {
	if c.Getenv == nil {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(c.Getenv(envSDKDisabled)), "true") {
		return false
	}
	return c.Getenv(envEndpoint) != "" || c.Getenv(envTracesEndpoint) != ""
}

// Tracing owns the global TracerProvider for the run.
type Tracing struct {
	tp *sdktrace.TracerProvider
}

// StartTracing installs a batching OTLP/HTTP exporter as the global provider
// when an endpoint is configured in the environment. Otherwise the global
// no-op provider stays in place.
func StartTracing(ctx context.Context, cfg TracingConfig) (*Tracing, error) {
	if !cfg.exportConfigured() {
		return &Tracing{}, nil
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	// OTEL_SERVICE_NAME and OTEL_RESOURCE_ATTRIBUTES override the defaults.
	defaults := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		defaults = append(defaults, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(defaults...),
		resource.WithFromEnv(),
	)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return &Tracing{tp: tp}, nil
}

// Enabled reports whether spans are exported.
func (t *Tracing) Enabled() bool { return t.tp != nil }

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t.tp == nil {
		return nil
	}
	if err := t.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}
