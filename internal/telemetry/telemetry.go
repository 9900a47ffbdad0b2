// Package telemetry configures OpenTelemetry tracing for the service.
package telemetry

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"presence-service/internal/config"
)

var (
	initOnce sync.Once
	shutdown = func(context.Context) error { return nil }
)

// Init installs the global tracer provider and W3C propagators. Spans are only
// exported when an OTLP endpoint is configured; otherwise they are sampled and
// dropped so trace context still propagates to downstream services.
// The returned function flushes pending spans.
func Init(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) func(context.Context) error {
	initOnce.Do(func() {
		serviceName := strings.TrimSpace(cfg.ServiceName)
		if serviceName == "" {
			serviceName = "presence-service"
		}

		res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
		if err != nil {
			logger.Warn("otel resource init failed (continuing)", zap.Error(err))
		}

		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(SampleRatio(cfg.SampleRatio)))),
			sdktrace.WithResource(res),
		}

		if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
			exporter, err := otlptracehttp.New(ctx, exporterOptions(endpoint)...)
			if err != nil {
				logger.Warn("otel exporter init failed (continuing)", zap.Error(err))
			} else {
				opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
			}
		}

		tp := sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		shutdown = tp.Shutdown

		logger.Info("otel tracing initialized",
			zap.String("service", serviceName),
			zap.String("endpoint", cfg.OTLPEndpoint),
		)
	})
	return shutdown
}

func exporterOptions(endpoint string) []otlptracehttp.Option {
	if strings.Contains(endpoint, "://") {
		return []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
	}
	return []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure()}
}

// SampleRatio clamps r to [0, 1].
func SampleRatio(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
