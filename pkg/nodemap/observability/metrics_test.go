package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest installs a manual-reader meter provider for the test.
func setupMetricsTest(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown meter provider: %v", err)
		}
	})
	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the counter value for the datapoint whose op attribute is op.
func sumFor(t *testing.T, m *metricdata.Metrics, op string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)
	for _, dp := range sum.DataPoints {
		v, ok := dp.Attributes.Value("op")
		if op == "" && !ok {
			return dp.Value
		}
		if ok && v.AsString() == op {
			return dp.Value
		}
	}
	return 0
}

func TestNewMetricsRecorder(t *testing.T) {
	setupMetricsTest(t)

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop)
}

func TestRecordOperation(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics(otel.GetMeterProvider())
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordOperation(ctx, "save", 40*time.Millisecond, nil)
	m.RecordOperation(ctx, "save", 60*time.Millisecond, errors.New("Status: 500"))
	m.RecordOperation(ctx, "fetch_one", 5*time.Millisecond, nil)

	rm := collectMetrics(t, reader)

	count := findMetric(rm, "nodemap.op.count")
	require.NotNil(t, count)
	assert.Equal(t, int64(2), sumFor(t, count, "save"))
	assert.Equal(t, int64(1), sumFor(t, count, "fetch_one"))

	errs := findMetric(rm, "nodemap.op.errors")
	require.NotNil(t, errs)
	assert.Equal(t, int64(1), sumFor(t, errs, "save"))
	assert.Equal(t, int64(0), sumFor(t, errs, "fetch_one"))

	latency := findMetric(rm, "nodemap.op.latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.NotEmpty(t, hist.DataPoints)
}

func TestRecordStaleDiscardAndCoalesced(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics(otel.GetMeterProvider())
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordStaleDiscard(ctx, "fetch_one")
	m.RecordStaleDiscard(ctx, "fetch_one")
	m.RecordSaveCoalesced(ctx)

	rm := collectMetrics(t, reader)

	stale := findMetric(rm, "nodemap.fetch.stale_discarded")
	require.NotNil(t, stale)
	assert.Equal(t, int64(2), sumFor(t, stale, "fetch_one"))

	coalesced := findMetric(rm, "nodemap.save.coalesced")
	require.NotNil(t, coalesced)
	assert.Equal(t, int64(1), sumFor(t, coalesced, ""))
}
