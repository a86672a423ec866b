package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Span names
	SpanGetOrder      = "get_order"
	SpanListOrders    = "list_orders"
	SpanGetStats      = "get_stats"
	SpanAddOrders     = "add_orders"
	SpanPublishEvents = "publish_events"

	// Attribute keys
	AttributeOperation      = "query.operation"
	AttributeErrorKind      = "error.kind"
	AttributeOrderHash      = "order.hash"
	AttributeOrderFound     = "order.found"
	AttributeOrderIsNew     = "order.is_new"
	AttributeFilterCount    = "query.filter_count"
	AttributeSortCount      = "query.sort_count"
	AttributeLimit          = "query.limit"
	AttributeResultCount    = "query.result_count"
	AttributeSubmittedCount = "orders.submitted"
	AttributeAcceptedCount  = "orders.accepted"
	AttributeRejectedCount  = "orders.rejected"
	AttributeRejectCode     = "order.reject_code"
	AttributeEventCount     = "events.count"
)

// StartOrderSpan starts a span on the tracer that owns name.
func StartOrderSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := GetQueryTracer()
	switch name {
	case SpanAddOrders, SpanPublishEvents:
		tracer = GetSubmitTracer()
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
