// Package tracing provides OpenTelemetry distributed tracing setup and utilities.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation scope names.
const (
	tracerDB        = "storepulse/source"
	tracerDashboard = "storepulse/dashboard"
	tracerDefault   = "storepulse"
)

// DBOperation represents the type of database operation being traced.
type DBOperation string

const (
	// DBOperationQuery represents a SELECT query.
	DBOperationQuery DBOperation = "query"
	// DBOperationUpdate represents an UPDATE operation.
	DBOperationUpdate DBOperation = "update"
)

// AttrAggregate names the dashboard aggregate a span belongs to.
const AttrAggregate = attribute.Key("dashboard.aggregate")

// StartDBSpan creates a new span for a database operation.
// Returns the new context and a function to end the span.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartDBSpan(ctx, "customer_visit", tracing.DBOperationQuery)
//	defer endSpan(err)
func StartDBSpan(ctx context.Context, table string, operation DBOperation) (context.Context, func(error)) {
	spanName := string(operation)
	if table != "" {
		spanName = spanName + " " + table
	}

	ctx, span := otel.Tracer(tracerDB).Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", string(operation)),
		),
	)
	if table != "" {
		span.SetAttributes(attribute.String("db.sql.table", table))
	}
	return ctx, endFunc(span)
}

// StartAggregateSpan opens a span around the computation of one dashboard aggregate.
// Fallback activations are recorded on it with RecordFallback.
func StartAggregateSpan(ctx context.Context, aggregate string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(tracerDashboard).Start(ctx, "aggregate "+aggregate,
		trace.WithAttributes(AttrAggregate.String(aggregate)),
	)
	return ctx, endFunc(span)
}

// StartSpan creates a new span for a general operation.
// Returns the new context and a function to end the span.
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(tracerDefault).Start(ctx, name)
	return ctx, endFunc(span)
}

// RecordFallback marks the current span as having served a fallback value.
// The span status is left untouched: a fallback is a degraded success.
func RecordFallback(ctx context.Context, aggregate string, cause error) {
	attrs := []attribute.KeyValue{AttrAggregate.String(aggregate)}
	if cause != nil {
		attrs = append(attrs, attribute.String("error.message", cause.Error()))
	}
	AddEvent(ctx, "fallback", attrs...)
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attrs...)
}

func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
