package tracing

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"

	"github.com/soldey/graph-api/internal/config"
	"github.com/soldey/graph-api/pkg/logger"
)

// Module installs the global TracerProvider and the echo middleware.
var Module = fx.Module("tracing",
	fx.Provide(NewTracerProvider),
	fx.Invoke(RegisterTracingLifecycle),
	fx.Invoke(RegisterEchoMiddleware),
)

type providerResult struct {
	fx.Out

	// nil when tracing is disabled
	SDKProvider *sdktrace.TracerProvider `name:"otelSDKProvider" optional:"true"`
}

// NewTracerProvider registers an OTLP provider, or the no-op one when no
// exporter endpoint is configured.
func NewTracerProvider(cfg *config.Config, log *slog.Logger) (providerResult, error) {
	log = log.With(logger.Scope("tracing"))
	oc := cfg.Otel

	if !oc.Enabled() {
		log.Info("tracing disabled")
		otel.SetTracerProvider(noop.NewTracerProvider())
		return providerResult{}, nil
	}

	exp, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpointURL(oc.ExporterEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return providerResult{}, err
	}

	res, err := resource.New(context.Background(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(semconv.ServiceName(oc.ServiceName)),
		resource.WithFromEnv(),
		resource.WithProcess(),
	)
	if err != nil {
		log.Warn("otel resource detection failed", logger.Error(err))
		res = resource.Empty()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(oc.SamplingRate)),
	)
	otel.SetTracerProvider(tp)

	log.Info("tracing enabled",
		slog.String("endpoint", oc.ExporterEndpoint),
		slog.String("service", oc.ServiceName),
		slog.Float64("sampling_rate", oc.SamplingRate),
	)
	return providerResult{SDKProvider: tp}, nil
}

// Sampler maps a ratio to a sampler; 1 or more samples everything.
func Sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

type sdkProviderParam struct {
	fx.In
	SDKProvider *sdktrace.TracerProvider `name:"otelSDKProvider" optional:"true"`
}

// RegisterTracingLifecycle flushes spans on shutdown.
func RegisterTracingLifecycle(lc fx.Lifecycle, p sdkProviderParam, log *slog.Logger) {
	if p.SDKProvider == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down tracer provider", logger.Scope("tracing"))
			return p.SDKProvider.Shutdown(ctx)
		},
	})
}

// RegisterEchoMiddleware traces every request except probes and scrapes.
func RegisterEchoMiddleware(e *echo.Echo, cfg *config.Config) {
	if !cfg.Otel.Enabled() {
		return
	}
	e.Use(otelecho.Middleware(
		cfg.Otel.ServiceName,
		otelecho.WithSkipper(func(c echo.Context) bool {
			switch c.Request().URL.Path {
			case "/health", "/ready", "/metrics":
				return true
			}
			return false
		}),
	))
}
