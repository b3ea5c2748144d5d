package pricing

import (
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeOffer is the aggregate type of pricing events
const AggregateTypeOffer = "PricedOffer"

// Event type constants
const (
	EventTypeOfferPriced       = "OfferPriced"
	EventTypeOfferBelowMinimum = "OfferBelowMinimum"
)

// OfferPricedEvent is raised when a minimum price was computed for a SKU
type OfferPricedEvent struct {
	shared.BaseDomainEvent
	Offer PricedOffer `json:"offer"`
}

// NewOfferPricedEvent creates a new OfferPricedEvent
func NewOfferPricedEvent(offer PricedOffer) *OfferPricedEvent {
	return &OfferPricedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOfferPriced, AggregateTypeOffer, offer.Sku),
		Offer:           offer,
	}
}

// OfferBelowMinimumEvent is raised when a SKU's listed price is below its
// computed minimum; consumers typically flag it for manual review
type OfferBelowMinimumEvent struct {
	shared.BaseDomainEvent
	Sku               string          `json:"sku"`
	Country           string          `json:"country"`
	ListedPrice       decimal.Decimal `json:"listed_price"`
	MinimumGrossPrice decimal.Decimal `json:"minimum_gross_price"`
}

// NewOfferBelowMinimumEvent creates a new OfferBelowMinimumEvent
func NewOfferBelowMinimumEvent(offer PricedOffer) *OfferBelowMinimumEvent {
	listed := decimal.Zero
	if offer.ListedPrice != nil {
		listed = *offer.ListedPrice
	}
	return &OfferBelowMinimumEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeOfferBelowMinimum, AggregateTypeOffer, offer.Sku),
		Sku:               offer.Sku,
		Country:           offer.Country,
		ListedPrice:       listed,
		MinimumGrossPrice: offer.MinimumGrossPrice,
	}
}
