package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	submissionMetrics     *SubmissionMetrics
	submissionMetricsOnce sync.Once
)

// SubmissionMetrics counts the outcome of addOrders calls.
type SubmissionMetrics struct {
	acceptedTotal  metric.Int64Counter
	rejectedTotal  metric.Int64Counter
	publishedTotal metric.Int64Counter
}

// NewSubmissionMetrics creates the submission instruments on meter.
func NewSubmissionMetrics(meter metric.Meter) (*SubmissionMetrics, error) {
	acceptedTotal, err := meter.Int64Counter(
		"orders.accepted.total",
		metric.WithDescription("Total number of submitted orders accepted"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	rejectedTotal, err := meter.Int64Counter(
		"orders.rejected.total",
		metric.WithDescription("Total number of submitted orders rejected, by code"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	publishedTotal, err := meter.Int64Counter(
		"orders.events.published.total",
		metric.WithDescription("Total number of order events published"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &SubmissionMetrics{
		acceptedTotal:  acceptedTotal,
		rejectedTotal:  rejectedTotal,
		publishedTotal: publishedTotal,
	}, nil
}

// GetSubmissionMetrics returns the SubmissionMetrics singleton.
func GetSubmissionMetrics() *SubmissionMetrics {
	submissionMetricsOnce.Do(func() {
		m, err := NewSubmissionMetrics(GetMeterProvider().Meter(instrumentationName))
		if err != nil {
			m = &SubmissionMetrics{}
		}
		submissionMetrics = m
	})
	return submissionMetrics
}

// RecordAccepted adds accepted orders, split by whether they were new.
func (m *SubmissionMetrics) RecordAccepted(ctx context.Context, isNew bool, count int64) {
	if m == nil || m.acceptedTotal == nil || count == 0 {
		return
	}
	m.acceptedTotal.Add(ctx, count, metric.WithAttributes(attribute.Bool(AttributeOrderIsNew, isNew)))
}

// RecordRejected adds one rejection with its code.
func (m *SubmissionMetrics) RecordRejected(ctx context.Context, code string) {
	if m == nil || m.rejectedTotal == nil {
		return
	}
	m.rejectedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(AttributeRejectCode, code)))
}

// RecordPublished adds published events.
func (m *SubmissionMetrics) RecordPublished(ctx context.Context, count int64) {
	if m == nil || m.publishedTotal == nil || count == 0 {
		return
	}
	m.publishedTotal.Add(ctx, count)
}
