// Package telemetry wires OpenTelemetry tracing and metrics for the
// caller-facing run operations (ACORun, GARun, IslandRun): one span per
// call, plus a small bundle of counters and gauges describing generation
// progress. When no OTLP collector is reachable, initialization falls back
// to otel's built-in no-op providers rather than failing the caller.
package telemetry

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Instruments bundles the metrics every run operation reports into.
type Instruments struct {
	GenerationDuration   metric.Float64Histogram
	StagnationEvents     metric.Int64Counter
	PheromoneClampEvents metric.Int64Counter
	IncumbentMakespan    metric.Float64Gauge
}

// Shutdown tears down whatever providers Init configured. Safe to call
// even when initialization fell back to no-ops.
type Shutdown func(context.Context) error

// Init configures global tracer and meter providers from
// OTEL_EXPORTER_OTLP_ENDPOINT (or the metrics/trace-specific override env
// vars), returning the Instruments run operations record into and a
// Shutdown to flush on exit. Any dial or exporter-construction failure
// logs a warning and proceeds with otel's default no-op providers so a
// caller running without a collector still works.
func Init(ctx context.Context, component string) (Instruments, Shutdown) {
	traceShutdown := initTracer(ctx, component)
	metricShutdown, instruments := initMetrics(ctx, component)

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		_ = traceShutdown(ctx)
		return metricShutdown(ctx)
	}
	return instruments, shutdown
}

func initTracer(ctx context.Context, component string) Shutdown {
	endpoint := resolveEndpoint("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		slog.Warn("telemetry: trace exporter init failed, using no-op tracer", "error", err)
		return func(context.Context) error { return nil }
	}
	res, _ := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(component),
	))
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	slog.Info("telemetry: tracer initialized", "endpoint", endpoint)
	return tp.Shutdown
}

func initMetrics(ctx context.Context, component string) (Shutdown, Instruments) {
	endpoint := resolveEndpoint("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	ctxInit, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exp, err := otlpmetricgrpc.New(ctxInit,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		slog.Warn("telemetry: metrics exporter init failed, using no-op meter", "error", err)
		return func(context.Context) error { return nil }, buildInstruments()
	}
	res, _ := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(component),
	))
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)
	slog.Info("telemetry: meter initialized", "endpoint", endpoint)
	return mp.Shutdown, buildInstruments()
}

// DefaultInstruments returns the metric instruments bound to whatever meter
// provider is currently registered globally — the real one if the caller
// already invoked Init, otherwise otel's built-in no-op meter. Engines use
// this so they can always record samples without requiring Init to have
// been called first.
func DefaultInstruments() Instruments {
	return buildInstruments()
}

func buildInstruments() Instruments {
	meter := otel.Meter("dagsched")
	genDuration, _ := meter.Float64Histogram("dagsched_generation_duration_seconds")
	stagnation, _ := meter.Int64Counter("dagsched_stagnation_events_total")
	clamp, _ := meter.Int64Counter("dagsched_pheromone_clamp_events_total")
	incumbent, _ := meter.Float64Gauge("dagsched_incumbent_makespan")
	return Instruments{
		GenerationDuration:   genDuration,
		StagnationEvents:     stagnation,
		PheromoneClampEvents: clamp,
		IncumbentMakespan:    incumbent,
	}
}

func resolveEndpoint(specific string) string {
	if v := os.Getenv(specific); v != "" {
		return v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		return v
	}
	return "localhost:4317"
}

// WithSpan starts a span named name under the dagsched tracer, returning a
// context carrying it and a function to end it.
func WithSpan(ctx context.Context, name string) (context.Context, func()) {
	tracer := otel.Tracer("dagsched")
	ctx, span := tracer.Start(ctx, name)
	return ctx, func() { span.End() }
}
