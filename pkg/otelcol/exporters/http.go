package exporters

import (
	"context"
	"time"

	"fanfan-translator/pkg/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
)

// ProvideHttp returns an OTLP/HTTP span exporter, or nil when OTEL.ADDR is
// empty.
func ProvideHttp(cfg *config.Config) (*otlptrace.Exporter, error) {
	if cfg.Otel.Addr == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := otlptracehttp.NewClient(
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
		otlptracehttp.WithEndpoint(cfg.Otel.Addr),
	)

	return otlptrace.New(ctx, client)
}
