package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/purchasing/internal/config"
)

const otlpDialTimeout = 10 * time.Second

// errMissingEndpoint is returned when the otlp exporter has nowhere to send.
var errMissingEndpoint = errors.New("OBS_OTLP_ENDPOINT must be set for otlp exporter")

// newTracerProvider returns nil, nil for an unknown exporter so the service
// runs untraced instead of failing to boot.
func newTracerProvider(ctx context.Context, obs config.Observability, res *sdkresource.Resource, logger *zap.Logger) (*sdktrace.TracerProvider, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch strings.ToLower(obs.TraceExporter) {
	case "", "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		exporter, err = newOTLPExporter(ctx, obs)
	default:
		logger.Warn("unsupported trace exporter; tracing disabled", zap.String("exporter", obs.TraceExporter))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

func newOTLPExporter(ctx context.Context, obs config.Observability) (sdktrace.SpanExporter, error) {
	if obs.TraceEndpoint == "" {
		return nil, errMissingEndpoint
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(obs.TraceEndpoint)}
	if obs.TraceInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	ctx, cancel := context.WithTimeout(ctx, otlpDialTimeout)
	defer cancel()
	return otlptracegrpc.New(ctx, opts...)
}
