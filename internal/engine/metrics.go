package engine

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records schema tracking metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEventType records an event type registered with the engine.
	RecordEventType(ctx context.Context, target, level string)

	// RecordFormatted records rows formatted for one event type and how
	// many of them carried coercion errors.
	RecordFormatted(ctx context.Context, target string, rows, failed int)
}

type otelMetrics struct {
	eventTypes   metric.Int64Counter
	formatted    metric.Int64Counter
	formatErrors metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("typekeeper")

	eventTypes, err := meter.Int64Counter("typekeeper.event_types.registered",
		metric.WithDescription("Number of event types registered with the engine"),
	)
	if err != nil {
		return nil, err
	}

	formatted, err := meter.Int64Counter("typekeeper.records.formatted",
		metric.WithDescription("Number of records formatted into rows"),
	)
	if err != nil {
		return nil, err
	}

	formatErrors, err := meter.Int64Counter("typekeeper.records.format_errors",
		metric.WithDescription("Number of records with field coercion errors"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		eventTypes:   eventTypes,
		formatted:    formatted,
		formatErrors: formatErrors,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider, or a no-op recorder if instrument creation fails.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordEventType(ctx context.Context, target, level string) {
	m.eventTypes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target", target),
		attribute.String("level", level),
	))
}

func (m *otelMetrics) RecordFormatted(ctx context.Context, target string, rows, failed int) {
	attrs := metric.WithAttributes(attribute.String("target", target))
	m.formatted.Add(ctx, int64(rows), attrs)
	if failed > 0 {
		m.formatErrors.Add(ctx, int64(failed), attrs)
	}
}

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

func (NoopMetrics) RecordEventType(_ context.Context, _, _ string) {}

func (NoopMetrics) RecordFormatted(_ context.Context, _ string, _, _ int) {}
