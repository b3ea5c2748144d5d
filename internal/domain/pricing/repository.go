package pricing

import (
	"context"
)

// OfferRepository stores computed offers
type OfferRepository interface {
	// Save stores an offer; the latest offer per (sku, country) wins
	Save(ctx context.Context, offer *PricedOffer) error

	// FindLatest returns the most recent offer for a SKU in a country
	FindLatest(ctx context.Context, sku, country string) (*PricedOffer, error)

	// FindBelowMinimum returns the latest offers whose listed price is below their minimum
	FindBelowMinimum(ctx context.Context, limit int) ([]PricedOffer, error)
}
