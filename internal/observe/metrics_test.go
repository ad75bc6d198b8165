package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

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

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordDrainCountsByResult(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordDrain(ctx, "ok", 0.002)
	m.RecordDrain(ctx, "ok", 0.003)
	m.RecordDrain(ctx, "skipped", 0)

	got := findMetric(t, reader, "recorder.drain.cycles")
	if got == nil {
		t.Fatal("recorder.drain.cycles not found")
	}
	sum, ok := got.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", got.Data)
	}

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("result"))
		counts[v.AsString()] = dp.Value
	}
	if counts["ok"] != 2 || counts["skipped"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}

	hist := findMetric(t, reader, "recorder.drain.duration")
	if hist == nil {
		t.Fatal("recorder.drain.duration not found")
	}
	h := hist.Data.(metricdata.Histogram[float64])
	if len(h.DataPoints) != 1 || h.DataPoints[0].Count != 2 {
		t.Fatalf("expected 2 duration observations, got %+v", h.DataPoints)
	}
}

func TestRecordBytesPerChannel(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordBytes(ctx, "left", 100)
	m.RecordBytes(ctx, "right", 100)
	m.RecordBytes(ctx, "left", 50)

	got := findMetric(t, reader, "recorder.bytes_written")
	if got == nil {
		t.Fatal("recorder.bytes_written not found")
	}
	sum := got.Data.(metricdata.Sum[int64])
	total := int64(0)
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 250 {
		t.Fatalf("expected 250 bytes, got %d", total)
	}
}

func TestNopRecordsNothing(t *testing.T) {
	m := Nop()
	m.RecordDrain(context.Background(), "ok", 1)
	m.Recordings.Add(context.Background(), 1)
}
