package crew

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// crewMetrics records run counters and per-task timings through the
// global meter provider. With telemetry disabled the provider is noop
// and every record is free.
type crewMetrics struct {
	runTotal     metric.Int64Counter
	taskDuration metric.Float64Histogram
	tokenTotal   metric.Int64Counter
}

func newCrewMetrics() (*crewMetrics, error) {
	meter := otel.Meter("perfcrew/crew")

	m := &crewMetrics{}
	var err error

	m.runTotal, err = meter.Int64Counter("crew.run.total",
		metric.WithDescription("Total number of crew runs"),
		metric.WithUnit("{run}"))
	if err != nil {
		return nil, err
	}

	m.taskDuration, err = meter.Float64Histogram("crew.task.duration",
		metric.WithDescription("Task duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120))
	if err != nil {
		return nil, err
	}

	m.tokenTotal, err = meter.Int64Counter("crew.token.total",
		metric.WithDescription("Total tokens consumed by tasks"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *crewMetrics) recordRun(ctx context.Context, process ProcessType, status string) {
	if m == nil {
		return
	}
	m.runTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("process", string(process)),
		attribute.String("status", status)))
}

func (m *crewMetrics) recordTask(ctx context.Context, taskID, agentID string, duration time.Duration, tokens int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("task", taskID),
		attribute.String("agent", agentID))
	m.taskDuration.Record(ctx, duration.Seconds(), attrs)
	if tokens > 0 {
		m.tokenTotal.Add(ctx, int64(tokens), attrs)
	}
}
