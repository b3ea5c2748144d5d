package event

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/domain/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type fakePublisher struct {
	channel  string
	messages [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	p.channel = channel
	if p.err != nil {
		return redis.NewIntResult(0, p.err)
	}
	p.messages = append(p.messages, message.([]byte))
	return redis.NewIntResult(1, nil)
}

func TestRedisEventForwarder_Defaults(t *testing.T) {
	f := newForwarder(&fakePublisher{}, NewEngineSerializer())

	assert.Equal(t, []string{inventory.EventTypeDriftDetected, pricing.EventTypeOfferBelowMinimum}, f.EventTypes())
	assert.Equal(t, DefaultForwardChannel, f.channel)
}

func TestRedisEventForwarder_Handle(t *testing.T) {
	pub := &fakePublisher{}
	serializer := NewEngineSerializer()
	f := newForwarder(pub, serializer, WithForwardChannel("alerts"), WithForwarderLogger(zap.NewNop()))
	event := pricing.NewOfferBelowMinimumEvent(belowMinimumOffer())

	require.NoError(t, f.Handle(context.Background(), event))

	assert.Equal(t, "alerts", pub.channel)
	require.Len(t, pub.messages, 1)
	decoded, err := DecodeEnvelope(serializer, pub.messages[0])
	require.NoError(t, err)
	assert.Equal(t, event.EventID(), decoded.EventID())
	assert.Equal(t, pricing.EventTypeOfferBelowMinimum, decoded.EventType())
}

func TestRedisEventForwarder_ThroughBus(t *testing.T) {
	pub := &fakePublisher{}
	bus := NewInMemoryEventBus(nil)
	bus.Subscribe(newForwarder(pub, NewEngineSerializer()))

	offer := belowMinimumOffer()
	require.NoError(t, bus.Publish(context.Background(),
		pricing.NewOfferPricedEvent(offer),
		pricing.NewOfferBelowMinimumEvent(offer),
	))

	assert.Len(t, pub.messages, 1)
}

func TestRedisEventForwarder_Errors(t *testing.T) {
	t.Run("publish failure", func(t *testing.T) {
		f := newForwarder(&fakePublisher{err: errors.New("connection refused")}, NewEngineSerializer())
		err := f.Handle(context.Background(), pricing.NewOfferBelowMinimumEvent(belowMinimumOffer()))
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("unregistered event", func(t *testing.T) {
		f := newForwarder(&fakePublisher{}, NewEventSerializer(), WithForwardedTypes("TestEvent"))
		err := f.Handle(context.Background(), newTestEvent("TestEvent"))
		assert.ErrorContains(t, err, "unknown event type")
	})

	t.Run("bad envelope", func(t *testing.T) {
		_, err := DecodeEnvelope(NewEngineSerializer(), []byte("nope"))
		assert.ErrorContains(t, err, "decode envelope")
	})
}

func TestRedisEventForwarder_ProducerSpan(t *testing.T) {
	sr := recordSpans(t)
	ok := newForwarder(&fakePublisher{}, NewEngineSerializer())
	down := newForwarder(&fakePublisher{err: errors.New("connection refused")}, NewEngineSerializer())
	event := pricing.NewOfferBelowMinimumEvent(belowMinimumOffer())

	require.NoError(t, ok.Handle(context.Background(), event))
	require.Error(t, down.Handle(context.Background(), event))

	spans := sr.Ended()
	require.Len(t, spans, 2)
	for _, span := range spans {
		assert.Equal(t, "event.forward", span.Name())
		assert.Equal(t, trace.SpanKindProducer, span.SpanKind())
	}
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
