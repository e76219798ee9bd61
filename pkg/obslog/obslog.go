// Package obslog wires up the controller's structured logger and trace
// provider: a slog.Logger for all request/lifecycle logging, and an
// OpenTelemetry tracer that exports spans over OTLP/gRPC when configured.
package obslog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures both the logger and the tracer.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	JSON           bool          // emit JSON logs instead of text
	Level          slog.Level
	TracingEnabled bool
	OTLPEndpoint   string // e.g. "localhost:4317"
	Insecure       bool
	BatchTimeout   time.Duration
}

// DefaultConfig returns sane defaults for local development.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "lambda-controller",
		ServiceVersion: "dev",
		Environment:    "development",
		JSON:           true,
		Level:          slog.LevelInfo,
		TracingEnabled: false,
		OTLPEndpoint:   "localhost:4317",
		Insecure:       true,
		BatchTimeout:   5 * time.Second,
	}
}

// Provider bundles the logger and the tracer's shutdown hook.
type Provider struct {
	Logger *slog.Logger
	Tracer trace.Tracer

	tracerProvider *sdktrace.TracerProvider
}

// New builds the logger immediately and, if tracing is enabled, starts an
// OTLP/gRPC trace exporter. Call Shutdown on the returned Provider to flush
// pending spans before process exit.
func New(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.Level}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	}
	logger := slog.New(handler).With(
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	p := &Provider{Logger: logger}

	if !cfg.TracingEnabled {
		p.Tracer = otel.Tracer(cfg.ServiceName)
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("obslog: build resource: %w", err)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("obslog: build trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(cfg.BatchTimeout)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.tracerProvider = tp
	p.Tracer = otel.Tracer(cfg.ServiceName, trace.WithInstrumentationVersion(cfg.ServiceVersion))

	logger.InfoContext(ctx, "tracing initialized", "endpoint", cfg.OTLPEndpoint, "insecure", cfg.Insecure)

	return p, nil
}

// Shutdown flushes any pending spans. Safe to call even if tracing was
// never enabled.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider == nil {
		return nil
	}
	return p.tracerProvider.Shutdown(ctx)
}
