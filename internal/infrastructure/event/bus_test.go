package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/reseller/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", "SKU-1"),
		Data:            "test data",
	}
}

type testHandler struct {
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panicWith  any
	mu         sync.Mutex
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) getHandled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("StockChanged")
	bus.Subscribe(handler)

	first, second := newTestEvent("StockChanged"), newTestEvent("StockChanged")
	require.NoError(t, bus.Publish(context.Background(), first, second))

	handled := handler.getHandled()
	require.Len(t, handled, 2)
	assert.Equal(t, first, handled[0])
	assert.Equal(t, second, handled[1])
}

func TestInMemoryEventBus_Routing(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	stock := newTestHandler("StockChanged")
	offers := newTestHandler("OfferPriced")
	all := newTestHandler()
	bus.Subscribe(stock)
	bus.Subscribe(offers)
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("StockChanged"),
		newTestEvent("OfferPriced"),
		newTestEvent("DriftDetected"),
	))

	assert.Len(t, stock.getHandled(), 1)
	assert.Len(t, offers.getHandled(), 1)
	assert.Len(t, all.getHandled(), 3)
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandler(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	handler := newTestHandler("StockChanged")
	bus.Subscribe(handler, "DriftDetected")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("StockChanged"), newTestEvent("DriftDetected")))

	handled := handler.getHandled()
	require.Len(t, handled, 1)
	assert.Equal(t, "DriftDetected", handled[0].EventType())
}

func TestInMemoryEventBus_HandlerFailuresAreIsolated(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	failing := newTestHandler("StockChanged")
	failing.err = errors.New("handler error")
	panicking := newTestHandler("StockChanged")
	panicking.panicWith = "boom"
	healthy := newTestHandler("StockChanged")
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newTestEvent("StockChanged"))

	require.NoError(t, err)
	assert.Len(t, failing.getHandled(), 1)
	assert.Len(t, panicking.getHandled(), 1)
	assert.Len(t, healthy.getHandled(), 1)
	assert.Equal(t, int64(2), bus.Failures())
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestInMemoryEventBus_DispatchSpanStatus(t *testing.T) {
	sr := recordSpans(t)
	bus := NewInMemoryEventBus(nil)
	failing := newTestHandler("DriftDetected")
	failing.err = errors.New("notifier down")
	bus.Subscribe(newTestHandler("StockChanged"))
	bus.Subscribe(failing)

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("StockChanged"),
		newTestEvent("DriftDetected"),
	))

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "event.dispatch", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, int64(1), bus.Failures())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	handler := newTestHandler("StockChanged")
	bus.Subscribe(handler)

	_ = bus.Publish(context.Background(), newTestEvent("StockChanged"))
	bus.Unsubscribe(handler)
	_ = bus.Publish(context.Background(), newTestEvent("StockChanged"))

	assert.Len(t, handler.getHandled(), 1)
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	ctx := context.Background()

	assert.False(t, bus.Running())
	require.NoError(t, bus.Start(ctx))
	assert.True(t, bus.Running())
	require.NoError(t, bus.Stop(ctx))
	assert.False(t, bus.Running())
}
