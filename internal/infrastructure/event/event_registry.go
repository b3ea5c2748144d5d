package event

import (
	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/domain/pricing"
)

// RegisterEngineEvents registers every event the ledger and the repricing
// service raise
func RegisterEngineEvents(serializer *EventSerializer) {
	serializer.Register(inventory.EventTypeStockChanged, &inventory.StockChangedEvent{})
	serializer.Register(inventory.EventTypeDriftDetected, &inventory.DriftDetectedEvent{})

	serializer.Register(pricing.EventTypeOfferPriced, &pricing.OfferPricedEvent{})
	serializer.Register(pricing.EventTypeOfferBelowMinimum, &pricing.OfferBelowMinimumEvent{})
}

// NewEngineSerializer returns a serializer with the engine events registered
func NewEngineSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterEngineEvents(s)
	return s
}
