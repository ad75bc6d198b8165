// Package observe holds the OpenTelemetry instruments recorded by the capture
// pipeline and the Prometheus exporter that publishes them.
//
// Components take a [*Metrics]; tests build one with [NewMetrics] over a
// ManualReader, production code uses [NewMetrics] over the provider installed
// by [InitProvider]. [Nop] returns instruments that record nothing.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope for every recorder metric.
const meterName = "github.com/petems/stereo-recorder"

// Metrics holds the capture pipeline instruments. Safe for concurrent use.
type Metrics struct {
	// DrainCycles counts periodic drain notifications. Use with attribute
	//   attribute.String("result", "ok"|"skipped"|"read_error"|"write_error")
	DrainCycles metric.Int64Counter

	// DrainDuration tracks how long one read+append cycle takes.
	DrainDuration metric.Float64Histogram

	// BytesWritten counts PCM payload bytes appended. Use with attribute
	//   attribute.String("channel", "joined"|"left"|"right")
	BytesWritten metric.Int64Counter

	ReadErrors  metric.Int64Counter
	WriteErrors metric.Int64Counter

	// Overruns counts input bytes the device dropped because the buffer was full.
	Overruns metric.Int64Counter

	// Recordings counts finalized recordings.
	Recordings metric.Int64Counter

	// ActiveRecordings is 1 while a session is recording.
	ActiveRecordings metric.Int64UpDownCounter
}

// drainBuckets are histogram boundaries in seconds. A drain has a whole
// interval (500ms by default) before the next notification arrives.
var drainBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DrainCycles, err = m.Int64Counter("recorder.drain.cycles",
		metric.WithDescription("Periodic drain notifications handled."),
	); err != nil {
		return nil, err
	}
	if met.DrainDuration, err = m.Float64Histogram("recorder.drain.duration",
		metric.WithDescription("Time to read one drain buffer and append it."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(drainBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BytesWritten, err = m.Int64Counter("recorder.bytes_written",
		metric.WithDescription("PCM payload bytes appended to WAV files."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.ReadErrors, err = m.Int64Counter("recorder.read_errors",
		metric.WithDescription("Device reads that failed; the drain cycle was skipped."),
	); err != nil {
		return nil, err
	}
	if met.WriteErrors, err = m.Int64Counter("recorder.write_errors",
		metric.WithDescription("WAV appends or finalizations that failed."),
	); err != nil {
		return nil, err
	}
	if met.Overruns, err = m.Int64Counter("recorder.overruns",
		metric.WithDescription("Captured bytes dropped because the device buffer was full."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.Recordings, err = m.Int64Counter("recorder.recordings",
		metric.WithDescription("Recordings finalized."),
	); err != nil {
		return nil, err
	}
	if met.ActiveRecordings, err = m.Int64UpDownCounter("recorder.active",
		metric.WithDescription("Sessions currently recording."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Nop returns instruments backed by a no-op provider.
func Nop() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider())
	return m
}

// RecordDrain records one drain cycle outcome and its duration in seconds.
func (m *Metrics) RecordDrain(ctx context.Context, result string, seconds float64) {
	m.DrainCycles.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	if result != "skipped" {
		m.DrainDuration.Record(ctx, seconds)
	}
}

// RecordBytes adds n payload bytes for the given output channel.
func (m *Metrics) RecordBytes(ctx context.Context, channel string, n int) {
	m.BytesWritten.Add(ctx, int64(n), metric.WithAttributes(attribute.String("channel", channel)))
}
