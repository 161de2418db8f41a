package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

// sumValue returns the value of the int64 sum data point carrying
// attribute key=value.
func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	t.Fatalf("metric %q has no data point with %s=%s", name, key, value)
	return 0
}

func TestRecordRender(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRender(ctx, StatusSuccess, 800*time.Millisecond)
	m.RecordRender(ctx, StatusSuccess, 1200*time.Millisecond)
	m.RecordRender(ctx, StatusEmpty, time.Millisecond)

	rm := collect(t, reader)
	if got := sumValue(t, rm, "emotivox.render.total", "status", StatusSuccess); got != 2 {
		t.Errorf("success renders = %d, want 2", got)
	}
	if got := sumValue(t, rm, "emotivox.render.total", "status", StatusEmpty); got != 1 {
		t.Errorf("empty renders = %d, want 1", got)
	}

	met := findMetric(rm, "emotivox.render.duration")
	if met == nil {
		t.Fatal("render duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("render duration is not a histogram")
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 3 {
		t.Errorf("render duration samples = %d, want 3", count)
	}
}

func TestRecordStageFailure(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStageFailure(ctx, "eq_profile")
	m.RecordStageFailure(ctx, "eq_profile")
	m.RecordStageFailure(ctx, "pitch")

	rm := collect(t, reader)
	if got := sumValue(t, rm, "emotivox.stage.failures", "stage", "eq_profile"); got != 2 {
		t.Errorf("eq_profile failures = %d, want 2", got)
	}
	if got := sumValue(t, rm, "emotivox.stage.failures", "stage", "pitch"); got != 1 {
		t.Errorf("pitch failures = %d, want 1", got)
	}
}

func TestRecordSynthesis(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSynthesis(ctx, "coqui", 300*time.Millisecond, nil)
	m.RecordSynthesis(ctx, "coqui", 2*time.Second, errors.New("timeout"))
	m.RecordSynthesis(ctx, "gtranslate", 100*time.Millisecond, nil)

	rm := collect(t, reader)
	if got := sumValue(t, rm, "emotivox.synthesis.errors", "provider", "coqui"); got != 1 {
		t.Errorf("coqui errors = %d, want 1", got)
	}

	met := findMetric(rm, "emotivox.synthesis.duration")
	if met == nil {
		t.Fatal("synthesis duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("synthesis duration is not a histogram")
	}
	if len(hist.DataPoints) != 2 {
		t.Errorf("synthesis duration data points = %d, want 2 (one per provider)", len(hist.DataPoints))
	}
}

func TestRecordBreakerTransition(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordBreakerTransition(ctx, "coqui", "open")
	m.RecordBreakerTransition(ctx, "coqui", "half-open")
	m.RecordBreakerTransition(ctx, "coqui", "open")

	rm := collect(t, reader)
	if got := sumValue(t, rm, "emotivox.provider.breaker.transitions", "state", "open"); got != 2 {
		t.Errorf("open transitions = %d, want 2", got)
	}
	if got := sumValue(t, rm, "emotivox.provider.breaker.transitions", "state", "half-open"); got != 1 {
		t.Errorf("half-open transitions = %d, want 1", got)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCacheLookup(ctx, true)
	m.RecordCacheLookup(ctx, false)
	m.RecordCacheLookup(ctx, false)

	rm := collect(t, reader)
	if got := sumValue(t, rm, "emotivox.cache.lookups", "result", "hit"); got != 1 {
		t.Errorf("hits = %d, want 1", got)
	}
	if got := sumValue(t, rm, "emotivox.cache.lookups", "result", "miss"); got != 2 {
		t.Errorf("misses = %d, want 2", got)
	}
}

func TestActiveRenders(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveRenders.Add(ctx, 1)
	m.ActiveRenders.Add(ctx, 1)
	m.ActiveRenders.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "emotivox.active_renders")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("active renders = %d, want 1", got)
	}
}
