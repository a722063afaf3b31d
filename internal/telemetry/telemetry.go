// Package telemetry builds the process logger and, when an OTLP endpoint is
// configured, the OpenTelemetry log and trace pipelines.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Config struct {
	Level        string // debug, info, warn or error
	Format       string // json or text
	Output       io.Writer
	ServiceName  string
	OTLPEndpoint string // host:port of an OTLP/gRPC collector; empty disables export
	Insecure     bool
}

// ShutdownFunc flushes and stops whatever Setup started.
type ShutdownFunc func(context.Context) error

// NewLogger returns a logger writing to cfg.Output only.
func NewLogger(cfg Config) (*slog.Logger, error) {
	h, err := newLocalHandler(cfg)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

func newLocalHandler(cfg Config) (slog.Handler, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("telemetry: invalid log level %q: %w", cfg.Level, err)
		}
	}
	if cfg.Output == nil {
		return nil, errors.New("telemetry: no log output")
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		return slog.NewJSONHandler(cfg.Output, opts), nil
	case "text":
		return slog.NewTextHandler(cfg.Output, opts), nil
	default:
		return nil, fmt.Errorf("telemetry: invalid log format %q", cfg.Format)
	}
}

// Setup returns the process logger. With an OTLP endpoint, records are also
// exported through the otelslog bridge and a global tracer provider is
// installed for otelhttp.
func Setup(ctx context.Context, cfg Config) (*slog.Logger, ShutdownFunc, error) {
	local, err := newLocalHandler(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.OTLPEndpoint == "" {
		return slog.New(local), func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: failed to build resource: %w", err)
	}

	var shutdowns []ShutdownFunc
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			errs = append(errs, shutdowns[i](ctx))
		}
		return errors.Join(errs...)
	}

	logOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.OTLPEndpoint)}
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		logOpts = append(logOpts, otlploggrpc.WithInsecure())
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	shutdowns = append(shutdowns, tp.Shutdown)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logExporter, err := otlploggrpc.New(ctx, logOpts...)
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("telemetry: failed to create log exporter: %w", err), shutdown(ctx))
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	shutdowns = append(shutdowns, lp.Shutdown)
	global.SetLoggerProvider(lp)

	bridge := otelslog.NewHandler(cfg.ServiceName, otelslog.WithLoggerProvider(lp))
	return slog.New(fanout{local, bridge}), shutdown, nil
}
