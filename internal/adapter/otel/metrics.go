package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "chatrelay"

// Metrics holds all chat relay metric instruments. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	TurnsTotal         metric.Int64Counter
	GenerationFailures metric.Int64Counter
	StorageFailures    metric.Int64Counter
	FeedbackTotal      metric.Int64Counter
	GenerationDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TurnsTotal, err = meter.Int64Counter("chatrelay.turns",
		metric.WithDescription("Number of chat turns handled"))
	if err != nil {
		return nil, err
	}

	m.GenerationFailures, err = meter.Int64Counter("chatrelay.generation.failures",
		metric.WithDescription("Number of failed generation calls"))
	if err != nil {
		return nil, err
	}

	m.StorageFailures, err = meter.Int64Counter("chatrelay.storage.failures",
		metric.WithDescription("Number of failed object store writes"))
	if err != nil {
		return nil, err
	}

	m.FeedbackTotal, err = meter.Int64Counter("chatrelay.feedback",
		metric.WithDescription("Number of feedback submissions recorded"))
	if err != nil {
		return nil, err
	}

	m.GenerationDuration, err = meter.Float64Histogram("chatrelay.generation.duration_seconds",
		metric.WithDescription("Generation call duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordGeneration records the duration and outcome of one generation call.
func (m *Metrics) RecordGeneration(ctx context.Context, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.GenerationDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.Bool("failed", failed)))
	if failed {
		m.GenerationFailures.Add(ctx, 1)
	}
}

// RecordTurn counts a handled turn by outcome ("logged" or "storage_error").
func (m *Metrics) RecordTurn(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.TurnsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordStorageFailure counts a failed object store operation.
func (m *Metrics) RecordStorageFailure(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.StorageFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordFeedback counts a recorded feedback submission by kind.
func (m *Metrics) RecordFeedback(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.FeedbackTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
