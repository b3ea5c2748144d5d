// Package pricing computes the minimum VAT-inclusive selling price of a SKU
// that still meets a pricing rule's margin and ROI floors after referral fees.
package pricing

import (
	"fmt"
	"time"

	"github.com/reseller/backend/internal/domain/catalog"
	"github.com/reseller/backend/internal/domain/fx"
	"github.com/reseller/backend/internal/domain/reference"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Inputs are the immutable snapshots one computation reads. Stock may be nil,
// in which case availability is reported as zero and no listed price is known.
type Inputs struct {
	Reference *reference.Snapshot
	Graph     *catalog.Graph
	Rates     *fx.Resolver
	Stock     StockView
}

// Calculator is a pure function of its Inputs; it holds no mutable state and
// is safe for concurrent use.
type Calculator struct {
	opts Options
	now  func() time.Time
}

// NewCalculator creates a Calculator with the given options
func NewCalculator(opts Options) *Calculator {
	if opts.FeeBasis == "" {
		opts.FeeBasis = FeeBasisGross
	}
	if opts.Rounding == "" {
		opts.Rounding = RoundingHalfUp
	}
	return &Calculator{opts: opts, now: time.Now}
}

// Options returns the calculator configuration
func (c *Calculator) Options() Options {
	return c.opts
}

type costLine struct {
	cost     catalog.EanCost
	quantity int
}

// ComputeMinimumPrice derives the minimum gross price for req.Sku in
// req.Country. Lookup failures are returned as their typed error kinds. In
// strict mode a listed price below the minimum returns the offer together
// with ErrBelowMinimumThreshold.
func (c *Calculator) ComputeMinimumPrice(in Inputs, req PriceRequest) (*PricedOffer, error) {
	asOf := reference.Day(req.AsOfDate)

	country, err := in.Reference.Country(req.Country)
	if err != nil {
		return nil, err
	}
	rule, err := in.Reference.PricingRule(req.PricingRuleID)
	if err != nil {
		return nil, err
	}

	sku, err := in.Graph.Sku(req.Sku)
	if err != nil {
		return nil, err
	}
	if sku.Country != "" && sku.Country != country.Code {
		return nil, fmt.Errorf("%w: sku %s is offered in %s, not %s",
			shared.ErrInvalidReferenceData, sku.Code, sku.Country, country.Code)
	}
	asinCode, components, err := in.Graph.ResolveSkuBundle(req.Sku)
	if err != nil {
		return nil, err
	}
	asin, err := in.Graph.Asin(asinCode)
	if err != nil {
		return nil, err
	}

	// 1. most recent cost of every component
	lines := make([]costLine, 0, len(components))
	eans := make([]catalog.Ean, 0, len(components))
	for _, comp := range components {
		ean, err := in.Graph.Ean(comp.Ean)
		if err != nil {
			return nil, err
		}
		cost, err := in.Graph.LatestCost(comp.Ean, asOf)
		if err != nil {
			return nil, err
		}
		eans = append(eans, ean)
		lines = append(lines, costLine{cost: cost, quantity: comp.QuantityPerAsin})
	}

	// 2. one VAT rate for the whole bundle
	vatRate, err := c.bundleVatRate(in.Reference, country.Code, eans)
	if err != nil {
		return nil, err
	}

	// 3. referral fee schedule of the listing
	schedule, err := in.Reference.ReferralFee(country.Code, asin.ReferralFeeCategory)
	if err != nil {
		return nil, err
	}

	// 4. everything in settlement currency
	landed := decimal.Zero
	for _, line := range lines {
		unit, err := in.Rates.Convert(line.cost.UnitCost, line.cost.Currency, country.Currency, asOf)
		if err != nil {
			return nil, err
		}
		landed = landed.Add(unit.Mul(decimal.NewFromInt(int64(line.quantity))))
	}
	if !landed.IsPositive() {
		return nil, fmt.Errorf("%w: landed cost of sku %s is %s", shared.ErrInvalidReferenceData, sku.Code, landed)
	}
	minMargin, err := in.Rates.Convert(rule.MinimumMarginAmount, rule.Currency, country.Currency, asOf)
	if err != nil {
		return nil, err
	}

	// 5. solve for the exact minimum, 6. round without going below it
	required := decimal.Max(minMargin, rule.MinimumRoiPercentage.Div(hundred).Mul(landed))
	exact, err := solveMinimumGross(landed.Add(required), vatRate, schedule, c.opts.FeeBasis)
	if err != nil {
		return nil, err
	}
	places := country.Currency.MinorUnits()
	price := valueobject.RoundHalfUpNotBelow(exact, places)

	// 7. report the offer at the rounded price
	net := price.Div(one.Add(vatRate))
	fee := ReferralFeeAt(schedule, price, vatRate, c.opts.FeeBasis)
	margin := net.Sub(fee).Sub(landed)
	netRounded := net.Round(places)

	offer := &PricedOffer{
		Sku:               sku.Code,
		Asin:              asinCode,
		Country:           country.Code,
		Currency:          country.Currency,
		MinimumGrossPrice: price,
		NetPrice:          netRounded,
		VatRate:           vatRate,
		VatAmount:         price.Sub(netRounded),
		ReferralFee:       fee.Round(places),
		LandedCost:        landed.Round(places),
		MarginAmount:      margin.Round(places),
		RoiPercentage:     margin.Div(landed).Mul(hundred).Round(2),
		PricingRuleID:     rule.ID,
		FeeBasis:          c.opts.FeeBasis,
		AsOfDate:          asOf,
		ComputedAt:        c.now(),
	}

	if in.Stock != nil {
		offer.AvailableQuantity = in.Stock.BundleAvailable(components)
		if listed, ok := in.Stock.ListedPrice(sku.Code); ok {
			offer.ListedPrice = &listed
			offer.BelowMinimum = listed.LessThan(price)
		}
	}
	if offer.BelowMinimum && c.opts.Strict {
		return offer, fmt.Errorf("%w: sku %s listed at %s, minimum is %s",
			shared.ErrBelowMinimumThreshold, sku.Code, offer.ListedPrice, price)
	}
	return offer, nil
}

func (c *Calculator) bundleVatRate(ref *reference.Snapshot, country string, eans []catalog.Ean) (decimal.Decimal, error) {
	var rate decimal.Decimal
	for i, ean := range eans {
		r, err := ref.VatRateFor(country, ean.TaxCategory)
		if err != nil {
			return decimal.Zero, err
		}
		if i > 0 && !r.Equal(rate) {
			return decimal.Zero, fmt.Errorf("%w: bundle mixes VAT rates %s and %s in %s",
				shared.ErrInvalidReferenceData, rate, r, country)
		}
		rate = r
	}
	return rate, nil
}
