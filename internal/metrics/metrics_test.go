package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestRecorder(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	r, err := New(provider.Meter(MeterName))
	require.NoError(t, err)

	ctx := context.Background()
	r.TimelineCreated(ctx)
	r.TimelineCreated(ctx)
	r.OracleCall(ctx, "pro", nil)
	r.OracleCall(ctx, "flash", errors.New("boom"))
	r.PhaseDegraded(ctx, "investigate")
	r.EventProcessed(ctx)
	r.RunFinished(ctx, "completed", 2*time.Second)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, got["timelines_created_total"]))
	assert.Equal(t, int64(1), sumFor(t, got["oracle_calls_total"],
		attribute.String("outcome", "ok"), attribute.String("tier", "pro")))
	assert.Equal(t, int64(1), sumFor(t, got["oracle_calls_total"],
		attribute.String("outcome", "error"), attribute.String("tier", "flash")))
	assert.Equal(t, int64(1), sumFor(t, got["phase_degradations_total"], attribute.String("phase", "investigate")))
	assert.Equal(t, int64(1), sumFor(t, got["anchor_events_processed_total"]))
	assert.Equal(t, int64(1), sumFor(t, got["timeline_runs_finished_total"], attribute.String("status", "completed")))

	hist, ok := got["timeline_run_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	ctx := context.Background()
	assert.NotPanics(t, func() {
		r.TimelineCreated(ctx)
		r.OracleCall(ctx, "pro", nil)
		r.PhaseDegraded(ctx, "skeleton")
		r.EventProcessed(ctx)
		r.RunFinished(ctx, "failed", time.Second)
	})
}
