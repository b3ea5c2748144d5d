package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/reseller/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumValue(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	var total int64
	for _, dp := range sum.DataPoints {
		if len(attrs) == 0 || dp.Attributes.Equals(&want) {
			total += dp.Value
		}
	}
	return total
}

func TestEngineMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	timeouts := int64(3)
	m, err := telemetry.NewEngineMetrics(provider.Meter("test"), func() int64 { return timeouts })
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	ctx := context.Background()
	m.RecordLedgerEvent(ctx, "ShipmentOut", "applied", 2*time.Millisecond)
	m.RecordLedgerEvent(ctx, "ShipmentOut", "applied", time.Millisecond)
	m.RecordLedgerEvent(ctx, "ShipmentOut", "INSUFFICIENT_STOCK", time.Millisecond)
	m.RecordLedgerRetry(ctx, "ShipmentOut")
	m.RecordDrift(ctx, "FBA-DE")
	m.RecordPricing(ctx, "DE", "priced", time.Millisecond)
	m.RecordPricing(ctx, "UK", "MISSING_EXCHANGE_RATE", time.Millisecond)
	m.RecordSweep(ctx, 10, 2, time.Second)

	got := collect(t, reader)
	applied := []attribute.KeyValue{telemetry.AttrEventKind.String("ShipmentOut"), telemetry.AttrOutcome.String("applied")}
	assert.Equal(t, int64(2), sumValue(t, got["ledger_events_total"], applied...))
	assert.Equal(t, int64(3), sumValue(t, got["ledger_events_total"]))
	assert.Equal(t, int64(1), sumValue(t, got["ledger_retries_total"]))
	assert.Equal(t, int64(1), sumValue(t, got["ledger_drift_total"], telemetry.AttrWarehouse.String("FBA-DE")))
	assert.Equal(t, int64(1), sumValue(t, got["pricing_computations_total"],
		telemetry.AttrCountry.String("UK"), telemetry.AttrOutcome.String("MISSING_EXCHANGE_RATE")))
	assert.Equal(t, int64(3), sumValue(t, got["ledger_lock_timeouts_total"]))

	hist, ok := got["ledger_apply_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(3), hist.DataPoints[0].Count)

	gauge, ok := got["pricing_sweep_priced"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(10), gauge.DataPoints[0].Value)

	timeouts = 5
	got = collect(t, reader)
	assert.Equal(t, int64(5), sumValue(t, got["ledger_lock_timeouts_total"]))
}

func TestEngineMetricsNoop(t *testing.T) {
	_, err := telemetry.NewEngineMetrics(nil, nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)

	m, err := telemetry.NewEngineMetrics(noop.NewMeterProvider().Meter("test"), nil)
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.RecordLedgerEvent(context.Background(), "StockReceipt", "applied", time.Millisecond)
		m.RecordSweep(context.Background(), 1, 0, time.Millisecond)
	})
	assert.NoError(t, m.Close())
}

func TestProvidersDisabled(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{ServiceName: "pricing"}, logger)
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{ServiceName: "pricing"}, logger)
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}
