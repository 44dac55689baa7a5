// Package observability wires the planner's tracing and metrics through
// OpenTelemetry. A planning run is traced as one span tree: the RPC
// interceptor opens the root span, the driver and ephemeris engine hang
// child spans off it, and the log package mirrors structured log records
// into whichever span is active on the context.
package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Re-exports so callers outside this package don't need to import the
// otel modules directly for the common cases.
var (
	SpanFromContext  = trace.SpanFromContext
	WithAttributes   = trace.WithAttributes
	NewServerHandler = otelgrpc.NewServerHandler
)

const serviceName = "qplan-core"

// Config selects where spans and metrics go. A zero Config exports
// pretty-printed spans to stdout, which is what the CLI and the tests
// want; a server deployment sets OTLPEndpoint.
type Config struct {
	// OTLPEndpoint is the host:port of an OTLP/gRPC collector. Empty
	// means export spans to stdout and skip metrics entirely.
	OTLPEndpoint string
}

// Provider owns the configured tracer and meter providers and their
// exporter pipelines.
type Provider struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

var (
	defaultMu       sync.Mutex
	defaultProvider *Provider
)

// Setup builds a Provider per cfg, installs it as both the otel global
// and this package's default, and returns it. Call Shutdown on the
// returned Provider before process exit so batched spans flush.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	res := buildResource(ctx)

	var exporter sdktrace.SpanExporter
	var mp *sdkmetric.MeterProvider
	var err error
	if cfg.OTLPEndpoint == "" {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
	} else {
		conn, dialErr := grpc.NewClient(cfg.OTLPEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		if dialErr != nil {
			return nil, fmt.Errorf("dial otlp collector: %w", dialErr)
		}
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		metricExporter, metricErr := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
		if metricErr != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", metricErr)
		}
		mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	p := &Provider{tp: tp, mp: mp}
	defaultMu.Lock()
	defaultProvider = p
	defaultMu.Unlock()
	return p, nil
}

// Default returns the Provider installed by the last Setup call,
// lazily running a stdout Setup if none has happened yet or the last
// installed one has been shut down. The fallback
// keeps library callers (and tests) from having to bootstrap tracing
// before touching anything that emits a span.
func Default() *Provider {
	defaultMu.Lock()
	p := defaultProvider
	defaultMu.Unlock()
	if p != nil {
		return p
	}
	p, err := Setup(context.Background(), Config{})
	if err != nil {
		// stdouttrace.New does not fail in practice; a no-op provider
		// keeps the caller running if it ever does.
		return &Provider{tp: sdktrace.NewTracerProvider()}
	}
	return p
}

// Tracer returns a named tracer from the default Provider.
func Tracer(name string) trace.Tracer {
	return Default().tp.Tracer(name)
}

// Tracer returns a named tracer from this Provider.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// Shutdown flushes and stops the trace and metric pipelines. If p is the
// package default it is uninstalled, so the next Default call sets up a
// fresh one.
func (p *Provider) Shutdown(ctx context.Context) error {
	defaultMu.Lock()
	if defaultProvider == p {
		defaultProvider = nil
	}
	defaultMu.Unlock()

	var firstErr error
	if p.tp != nil {
		firstErr = p.tp.Shutdown(ctx)
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StartSpan opens a child span of whatever span ctx carries, on the
// default Provider's tracer for the planner service.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := Tracer(serviceName).Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func buildResource(ctx context.Context) *sdkresource.Resource {
	extra, _ := sdkresource.New(ctx,
		sdkresource.WithOS(),
		sdkresource.WithProcess(),
		sdkresource.WithHost(),
		sdkresource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.namespace", "qplan"),
		),
	)
	res, _ := sdkresource.Merge(sdkresource.Default(), extra)
	return res
}
