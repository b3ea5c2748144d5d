package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/domain/pricing"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultForwardChannel is the Redis channel alerts are published on
const DefaultForwardChannel = "pricing:events"

// Envelope is the wire form of a forwarded event
type Envelope struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// redisPublisher is the subset of *redis.Client the forwarder needs
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisEventForwarder is an event handler that republishes selected events
// on a Redis channel for consumers outside the process. By default only
// drift and below-minimum alerts are forwarded.
type RedisEventForwarder struct {
	client     redisPublisher
	serializer *EventSerializer
	channel    string
	eventTypes []string
	logger     *zap.Logger
}

// ForwarderOption configures a RedisEventForwarder
type ForwarderOption func(*RedisEventForwarder)

// WithForwardChannel sets the channel events are published on
func WithForwardChannel(channel string) ForwarderOption {
	return func(f *RedisEventForwarder) {
		f.channel = channel
	}
}

// WithForwardedTypes replaces the forwarded event types
func WithForwardedTypes(types ...string) ForwarderOption {
	return func(f *RedisEventForwarder) {
		f.eventTypes = types
	}
}

// WithForwarderLogger sets the logger
func WithForwarderLogger(logger *zap.Logger) ForwarderOption {
	return func(f *RedisEventForwarder) {
		f.logger = logger
	}
}

// NewRedisEventForwarder creates a forwarder publishing through client
func NewRedisEventForwarder(client *redis.Client, serializer *EventSerializer, opts ...ForwarderOption) *RedisEventForwarder {
	return newForwarder(client, serializer, opts...)
}

func newForwarder(client redisPublisher, serializer *EventSerializer, opts ...ForwarderOption) *RedisEventForwarder {
	f := &RedisEventForwarder{
		client:     client,
		serializer: serializer,
		channel:    DefaultForwardChannel,
		eventTypes: []string{inventory.EventTypeDriftDetected, pricing.EventTypeOfferBelowMinimum},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// EventTypes implements shared.EventHandler
func (f *RedisEventForwarder) EventTypes() []string {
	return f.eventTypes
}

// Handle implements shared.EventHandler
func (f *RedisEventForwarder) Handle(ctx context.Context, event shared.DomainEvent) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "event.forward",
		telemetry.WithSpanKind(trace.SpanKindProducer),
		telemetry.WithAttribute(telemetry.SpanAttrEventKind, event.EventType()),
		telemetry.WithAttribute("messaging.destination", f.channel),
	)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetOK(span)
		}
		span.End()
	}()

	payload, err := f.serializer.Serialize(event)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(Envelope{
		Type:       event.EventType(),
		ID:         event.EventID().String(),
		OccurredAt: event.OccurredAt(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, msg).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.EventType(), f.channel, err)
	}
	f.logger.Debug("event forwarded",
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_id", event.AggregateID()),
		zap.String("channel", f.channel),
	)
	return nil
}

// DecodeEnvelope decodes a forwarded message back into its domain event
func DecodeEnvelope(serializer *EventSerializer, data []byte) (shared.DomainEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return serializer.Deserialize(env.Type, env.Payload)
}

var _ shared.EventHandler = (*RedisEventForwarder)(nil)
