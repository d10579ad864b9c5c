package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "buildtail"

// Metrics holds the metric instruments for the tailing engine.
// All methods are nil-safe so the engine can record unconditionally.
type Metrics struct {
	// Polls counts batched poll requests, partitioned by status (ok, error).
	Polls metric.Int64Counter
	// TicksSkipped counts ticks dropped because a request was in flight.
	TicksSkipped metric.Int64Counter
	// BytesDelivered counts bytes routed to subscription sinks.
	BytesDelivered metric.Int64Counter
	// Subscriptions tracks the number of registered subscriptions.
	Subscriptions metric.Int64UpDownCounter
}

// NewMetrics creates all metric instruments. The instruments are no-ops
// when no MeterProvider is registered, so this is safe to call
// unconditionally.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Polls, err = meter.Int64Counter("tail.polls",
		metric.WithDescription("Batched poll requests, partitioned by status (ok, error)"))
	if err != nil {
		return nil, err
	}

	m.TicksSkipped, err = meter.Int64Counter("tail.ticks_skipped",
		metric.WithDescription("Ticks skipped because a poll request was already in flight"))
	if err != nil {
		return nil, err
	}

	m.BytesDelivered, err = meter.Int64Counter("tail.bytes_delivered",
		metric.WithDescription("Bytes delivered to subscription sinks"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	m.Subscriptions, err = meter.Int64UpDownCounter("tail.subscriptions",
		metric.WithDescription("Currently registered tail subscriptions"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordPoll records one completed batched poll with the given status.
func (m *Metrics) RecordPoll(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.Polls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("poll.status", status),
	))
}

// RecordTickSkipped records a tick dropped by the single-flight guard.
func (m *Metrics) RecordTickSkipped(ctx context.Context) {
	if m == nil {
		return
	}
	m.TicksSkipped.Add(ctx, 1)
}

// RecordBytes records bytes delivered to sinks.
func (m *Metrics) RecordBytes(ctx context.Context, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.BytesDelivered.Add(ctx, n)
}

// AddSubscriptions adjusts the active subscription count.
func (m *Metrics) AddSubscriptions(ctx context.Context, delta int64) {
	if m == nil || delta == 0 {
		return
	}
	m.Subscriptions.Add(ctx, delta)
}
