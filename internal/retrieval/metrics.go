package retrieval

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const retrievalInstrumentationName = "github.com/fyrsmithlabs/ragd/internal/retrieval"

// Metrics holds retrieval query metrics.
type Metrics struct {
	duration metric.Float64Histogram
	results  metric.Int64Histogram
	errors   metric.Int64Counter
}

// NewMetrics creates retrieval metrics on the global meter provider.
func NewMetrics() *Metrics {
	meter := otel.Meter(retrievalInstrumentationName)
	m := &Metrics{}

	m.duration, _ = meter.Float64Histogram(
		"ragd.retrieval.query_duration_seconds",
		metric.WithDescription("End-to-end retrieval latency including query embedding and vector search"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	m.results, _ = meter.Int64Histogram(
		"ragd.retrieval.results_returned",
		metric.WithDescription("Number of chunks returned per query after visibility filtering"),
		metric.WithUnit("{chunk}"),
	)
	m.errors, _ = meter.Int64Counter(
		"ragd.retrieval.errors_total",
		metric.WithDescription("Total failed retrieval queries"),
		metric.WithUnit("{error}"),
	)
	return m
}

// RecordQuery records one retrieval call.
func (m *Metrics) RecordQuery(ctx context.Context, duration time.Duration, returned int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(attribute.String("status", status))

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if err != nil {
		if m.errors != nil {
			m.errors.Add(ctx, 1)
		}
		return
	}
	if m.results != nil {
		m.results.Record(ctx, int64(returned), attrs)
	}
}
