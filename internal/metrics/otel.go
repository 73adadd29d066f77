package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/raphaelgruber/wallharvest/internal/models"
)

const namespace = "wallharvest"

// OTelSink exports task outcomes and operation timings as OpenTelemetry
// instruments on the given meter provider.
type OTelSink struct {
	taskOutcomes metric.Int64Counter
	opDuration   metric.Float64Histogram
}

// NewOTelSink registers the instruments.
func NewOTelSink(mp metric.MeterProvider) (*OTelSink, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	s := new(OTelSink)
	var err error

	if s.taskOutcomes, err = meter.Int64Counter(
		"task_outcomes_total",
		metric.WithDescription("Total number of tasks reaching a terminal status"),
	); err != nil {
		return nil, err
	}

	if s.opDuration, err = meter.Float64Histogram(
		"operation_duration_seconds",
		metric.WithDescription("Duration of pipeline operations in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return s, nil
}

// RecordTaskOutcome implements Sink.
func (s *OTelSink) RecordTaskOutcome(ctx context.Context, status models.TaskStatus) {
	s.taskOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}

// RecordTiming implements Sink.
func (s *OTelSink) RecordTiming(op string, duration time.Duration) {
	s.opDuration.Record(context.Background(), duration.Seconds(),
		metric.WithAttributes(attribute.String("operation", op)))
}
