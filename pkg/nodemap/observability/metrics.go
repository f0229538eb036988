package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// MetricsRecorder records nodemap metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordOperation records one remote operation with its latency and
	// error status.
	RecordOperation(ctx context.Context, op string, duration time.Duration, err error)

	// RecordStaleDiscard records a remote result dropped because the
	// selection changed while it was in flight.
	RecordStaleDiscard(ctx context.Context, op string)

	// RecordSaveCoalesced records a scheduled save replaced by a newer one.
	RecordSaveCoalesced(ctx context.Context)
}

type otelMetrics struct {
	opCount        metric.Int64Counter
	opErrors       metric.Int64Counter
	opLatency      metric.Float64Histogram
	saveCoalesced  metric.Int64Counter
	staleDiscarded metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics(otel.GetMeterProvider())
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics(provider metric.MeterProvider) (*otelMetrics, error) {
	meter := provider.Meter("nodemap")

	opCount, err := meter.Int64Counter("nodemap.op.count",
		metric.WithDescription("Number of remote operations"),
	)
	if err != nil {
		return nil, err
	}

	opErrors, err := meter.Int64Counter("nodemap.op.errors",
		metric.WithDescription("Number of failed remote operations"),
	)
	if err != nil {
		return nil, err
	}

	opLatency, err := meter.Float64Histogram("nodemap.op.latency_ms",
		metric.WithDescription("Remote operation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	saveCoalesced, err := meter.Int64Counter("nodemap.save.coalesced",
		metric.WithDescription("Scheduled saves replaced by a newer schedule"),
	)
	if err != nil {
		return nil, err
	}

	staleDiscarded, err := meter.Int64Counter("nodemap.fetch.stale_discarded",
		metric.WithDescription("Remote results discarded after the selection changed"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		opCount:        opCount,
		opErrors:       opErrors,
		opLatency:      opLatency,
		saveCoalesced:  saveCoalesced,
		staleDiscarded: staleDiscarded,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses the global OTel
// meter provider. If initialization fails it returns a no-op recorder.
//
//	otel.SetMeterProvider(yourProvider)
//	recorder := observability.NewMetricsRecorder()
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		zap.L().Warn("metrics initialization failed, using no-op recorder", zap.Error(err))
		return NoopMetrics{}
	}
	return m
}

// NewMetricsRecorderWithProvider returns a MetricsRecorder bound to
// provider instead of the global one.
func NewMetricsRecorderWithProvider(provider metric.MeterProvider) (MetricsRecorder, error) {
	m, err := newOtelMetrics(provider)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordOperation implements MetricsRecorder.
func (m *otelMetrics) RecordOperation(ctx context.Context, op string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("op", op))
	m.opCount.Add(ctx, 1, attrs)
	m.opLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.opErrors.Add(ctx, 1, attrs)
	}
}

// RecordStaleDiscard implements MetricsRecorder.
func (m *otelMetrics) RecordStaleDiscard(ctx context.Context, op string) {
	m.staleDiscarded.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordSaveCoalesced implements MetricsRecorder.
func (m *otelMetrics) RecordSaveCoalesced(ctx context.Context) {
	m.saveCoalesced.Add(ctx, 1)
}
