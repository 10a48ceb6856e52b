package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type staticReceivables struct {
	data map[uuid.UUID]telemetry.ReceivableSnapshot
	err  error
}

func (s staticReceivables) Receivables(context.Context) (map[uuid.UUID]telemetry.ReceivableSnapshot, error) {
	return s.data, s.err
}

func newTestMetrics(t *testing.T, provider telemetry.ReceivablesProvider) (*telemetry.BusinessMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:       mp.Meter("test"),
		Receivables: provider,
	})
	require.NoError(t, err)
	return bm, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	s, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "not an int64 sum: %T", agg)
	var total int64
	for _, dp := range s.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewBusinessMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{})

	assert.Nil(t, bm)
	assert.EqualError(t, err, "NewBusinessMetrics: meter cannot be nil")
}

func TestBusinessMetrics_Counters(t *testing.T) {
	bm, reader := newTestMetrics(t, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	bm.PaymentRecorded(ctx, tenantID, "PIX", decimal.RequireFromString("150.25"), true)
	bm.PaymentRecorded(ctx, tenantID, "CASH", decimal.NewFromInt(10), false)
	bm.PaymentReverted(ctx, tenantID, decimal.NewFromInt(10), false)
	bm.LedgerLinkMissing(ctx, tenantID, "add_payment", "title_missing")
	bm.StatusChanged(ctx, tenantID, "SCHEDULED", "ACTIVE")
	bm.RentalCreated(ctx, tenantID, decimal.NewFromInt(100))
	bm.OverdueRefreshed(ctx, 4)
	bm.OverdueRefreshed(ctx, 0)

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, data["rental_payments_total"]))
	assert.Equal(t, int64(16025), sumOf(t, data["rental_payment_amount_cents_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["rental_payments_reverted_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["rental_ledger_link_missing_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["rental_status_changes_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["rental_created_total"]))
	assert.Equal(t, int64(4), sumOf(t, data["rental_overdue_refreshed_total"]))
}

func TestBusinessMetrics_CollectReceivables(t *testing.T) {
	tenantID := uuid.New()
	bm, reader := newTestMetrics(t, staticReceivables{data: map[uuid.UUID]telemetry.ReceivableSnapshot{
		tenantID: {Outstanding: decimal.NewFromInt(700), OverdueCount: 2},
	}})

	bm.CollectReceivables(context.Background())

	data := collect(t, reader)
	outstanding, ok := data["rental_receivables_outstanding"].(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, outstanding.DataPoints, 1)
	assert.Equal(t, 700.0, outstanding.DataPoints[0].Value)
	overdue, ok := data["rental_overdue_rentals"].(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(2), overdue.DataPoints[0].Value)
}

func TestBusinessMetrics_CollectReceivablesError(t *testing.T) {
	bm, reader := newTestMetrics(t, staticReceivables{err: errors.New("db down")})

	bm.CollectReceivables(context.Background())

	_, found := collect(t, reader)["rental_receivables_outstanding"]
	assert.False(t, found)
}
