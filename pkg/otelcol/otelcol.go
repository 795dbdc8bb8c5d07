package otelcol

import (
	"context"

	"fanfan-translator/pkg/config"
	"fanfan-translator/pkg/otelcol/exporters"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("otelcol",
	fx.Provide(exporters.ProvideHttp, ProvideTrace),
	fx.Invoke(register),
)

func defaultTraceProviderOption(cfg *config.Config) []trace.TracerProviderOption {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.AppName),
		semconv.ServiceVersion(cfg.AppVersion),
	))
	if err != nil {
		res = resource.Default()
	}

	return []trace.TracerProviderOption{
		trace.WithResource(res),
	}
}

// ProvideTrace builds the SDK tracer provider. Without an exporter spans are
// still created but never shipped.
func ProvideTrace(cfg *config.Config, exporter *otlptrace.Exporter) *trace.TracerProvider {
	opts := defaultTraceProviderOption(cfg)
	if exporter != nil {
		opts = append(opts, trace.WithBatcher(exporter))
	}

	return trace.NewTracerProvider(opts...)
}

func register(lc fx.Lifecycle, cfg *config.Config, tp *trace.TracerProvider) {
	otel.SetTracerProvider(tp)
	if cfg.Otel.Addr != "" {
		zap.L().Info("[Otel] Exporting traces", zap.String("addr", cfg.Otel.Addr))
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
}
