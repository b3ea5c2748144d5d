package shared

import "context"

// EventHandler reacts to engine events. The ledger emits StockChanged and
// DriftDetected, the repricing service OfferPriced and OfferBelowMinimum.
// Handlers run on the publisher's goroutine, so a slow handler slows the
// ledger write or sweep that published the event.
type EventHandler interface {
	// Handle processes one event. An error is logged by the bus and never
	// reaches the publisher: the ledger change or stored offer behind the
	// event is already committed.
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the event types wanted; empty means all of them
	EventTypes() []string
}

// EventPublisher is what the ledger and repricing services publish to
type EventPublisher interface {
	// Publish delivers events in order, each to every matching handler
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber registers handlers such as the dirty-SKU tracker, the
// drift notifier and the Redis forwarder
type EventSubscriber interface {
	// Subscribe registers handler for eventTypes, or for the handler's own
	// EventTypes when none are given
	Subscribe(handler EventHandler, eventTypes ...string)
	// Unsubscribe removes handler from every event type
	Unsubscribe(handler EventHandler)
}

// EventBus is the in-process bus the engine wires at startup
type EventBus interface {
	EventPublisher
	EventSubscriber
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Running reports whether Start was called without a later Stop
	Running() bool
}
