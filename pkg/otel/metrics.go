package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	queryMetrics     *QueryMetrics
	queryMetricsOnce sync.Once
)

// QueryMetrics holds the instruments recorded for read operations.
type QueryMetrics struct {
	// Latency
	duration metric.Float64Histogram

	// Traffic
	requestsTotal metric.Int64Counter
	resultSize    metric.Int64Histogram

	// Errors
	errorsTotal metric.Int64Counter
}

// NewQueryMetrics creates the query instruments on meter.
func NewQueryMetrics(meter metric.Meter) (*QueryMetrics, error) {
	duration, err := meter.Float64Histogram(
		"orders.query.duration",
		metric.WithDescription("Latency (seconds) of order queries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestsTotal, err := meter.Int64Counter(
		"orders.query.requests.total",
		metric.WithDescription("Total number of order queries"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	resultSize, err := meter.Int64Histogram(
		"orders.query.result_size",
		metric.WithDescription("Number of orders returned by a query"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	errorsTotal, err := meter.Int64Counter(
		"orders.query.errors.total",
		metric.WithDescription("Total number of failed order queries"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &QueryMetrics{
		duration:      duration,
		requestsTotal: requestsTotal,
		resultSize:    resultSize,
		errorsTotal:   errorsTotal,
	}, nil
}

// GetQueryMetrics returns the QueryMetrics singleton built on the current
// meter provider. It falls back to inert instruments if creation fails.
func GetQueryMetrics() *QueryMetrics {
	queryMetricsOnce.Do(func() {
		m, err := NewQueryMetrics(GetMeterProvider().Meter(instrumentationName))
		if err != nil {
			m = &QueryMetrics{}
		}
		queryMetrics = m
	})
	return queryMetrics
}

// Record records one finished query. errKind is empty on success.
func (m *QueryMetrics) Record(ctx context.Context, operation string, elapsed time.Duration, results int, errKind string) {
	if m == nil || m.requestsTotal == nil {
		return
	}
	op := attribute.String(AttributeOperation, operation)

	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(op))
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(op))
	if errKind != "" {
		m.errorsTotal.Add(ctx, 1, metric.WithAttributes(op, attribute.String(AttributeErrorKind, errKind)))
		return
	}
	m.resultSize.Record(ctx, int64(results), metric.WithAttributes(op))
}
