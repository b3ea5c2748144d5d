// Package telemetry wires OpenTelemetry tracing and metrics for the pricing
// engine. This file holds the span helpers the ledger, the repricing service,
// the ingest consumer and the event bus call.
package telemetry

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the tracer every engine span is started on
	TracerName = "reseller-pricing"
)

// Span attribute keys. Ledger spans carry the event keys, offer spans the
// SKU and country, sweep and ingest spans their counters.
const (
	SpanAttrSku       = "pricing.sku"
	SpanAttrCountry   = "pricing.country"
	SpanAttrEan       = "inventory.ean"
	SpanAttrWarehouse = "inventory.warehouse"
	SpanAttrQuantity  = "inventory.quantity"

	SpanAttrEventID       = "ledger.event_id"
	SpanAttrEventKind     = "ledger.event_kind"
	SpanAttrLedgerOutcome = "ledger.outcome"

	SpanAttrOfferPrice        = "offer.minimum_gross_price"
	SpanAttrOfferBelowMinimum = "offer.below_minimum"

	SpanAttrSweepPriced    = "sweep.priced"
	SpanAttrSweepFailed    = "sweep.failed"
	SpanAttrSweepCancelled = "sweep.cancelled"

	SpanAttrBatchID       = "ingest.batch_id"
	SpanAttrBatchSize     = "ingest.batch_size"
	SpanAttrBatchRejected = "ingest.rejected"
	SpanAttrBatchRequeued = "ingest.requeued"
)

// SpanOption configures a span at start
type SpanOption func(*spanOptions)

type spanOptions struct {
	attributes []attribute.KeyValue
	kind       trace.SpanKind
}

// WithAttribute adds an attribute to the span
func WithAttribute(key string, value interface{}) SpanOption {
	return func(opts *spanOptions) {
		opts.attributes = append(opts.attributes, toAttribute(key, value))
	}
}

// WithOffer tags the span with the SKU and marketplace country being priced
func WithOffer(sku, country string) SpanOption {
	return func(opts *spanOptions) {
		opts.attributes = append(opts.attributes,
			attribute.String(SpanAttrSku, sku),
			attribute.String(SpanAttrCountry, country),
		)
	}
}

// WithLedgerEvent tags the span with an inventory event. An empty event ID
// (events without deduplication) is left off.
func WithLedgerEvent(kind, eventID string) SpanOption {
	return func(opts *spanOptions) {
		opts.attributes = append(opts.attributes, attribute.String(SpanAttrEventKind, kind))
		if eventID != "" {
			opts.attributes = append(opts.attributes, attribute.String(SpanAttrEventID, eventID))
		}
	}
}

// WithSpanKind sets the span kind. Spans default to internal; the ingest
// consumer uses consumer and the Redis forwarder producer.
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(opts *spanOptions) {
		opts.kind = kind
	}
}

// StartSpan starts a span on the engine tracer. The caller ends it.
//
//	ctx, span := telemetry.StartSpan(ctx, "ingest.process",
//	    telemetry.WithSpanKind(trace.SpanKindConsumer))
//	defer span.End()
func StartSpan(ctx context.Context, spanName string, opts ...SpanOption) (context.Context, trace.Span) {
	options := &spanOptions{
		kind: trace.SpanKindInternal,
	}
	for _, opt := range opts {
		opt(options)
	}

	startOpts := []trace.SpanStartOption{
		trace.WithSpanKind(options.kind),
	}
	if len(options.attributes) > 0 {
		startOpts = append(startOpts, trace.WithAttributes(options.attributes...))
	}

	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, spanName, startOpts...)
}

// StartServiceSpan starts a span named {service}.{method}, e.g.
// "ledger.apply" or "repricing.sweep".
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, method), opts...)
}

// SetAttributes adds key/value pairs to a span. Non-string keys and a
// trailing key without value are ignored.
func SetAttributes(span trace.Span, keyValues ...interface{}) {
	if span == nil {
		return
	}
	span.SetAttributes(toAttributes(keyValues)...)
}

// SetAttribute adds a single attribute to the span
func SetAttribute(span trace.Span, key string, value interface{}) {
	if span == nil {
		return
	}
	span.SetAttributes(toAttribute(key, value))
}

// RecordError records err on the span and marks the span failed
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span successful. Applied events, stored offers and clean
// dispatches set it so dashboards can tell them from unset spans.
func SetOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds a time-stamped event to the span
func AddEvent(span trace.Span, name string, keyValues ...interface{}) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(toAttributes(keyValues)...))
}

// SpanFromContext returns the current span from the context
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// GetTraceID returns the trace ID of the span in ctx, or "" without one.
// Dead-lettered ingest messages carry it.
func GetTraceID(ctx context.Context) string {
	traceID := trace.SpanFromContext(ctx).SpanContext().TraceID()
	if !traceID.IsValid() {
		return ""
	}
	return traceID.String()
}

func toAttributes(keyValues []interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, toAttribute(key, keyValues[i+1]))
	}
	return attrs
}

// toAttribute maps the value types engine code records. Money amounts are
// kept as exact decimal strings.
func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case decimal.Decimal:
		return attribute.String(key, v.String())
	case error:
		return attribute.String(key, v.Error())
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
