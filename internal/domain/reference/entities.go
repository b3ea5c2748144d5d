// Package reference holds the read-mostly lookup tables the pricing engine
// consumes: countries, VAT categories and rates, product tax categories,
// referral fee schedules, pricing rules and daily exchange rates.
package reference

import (
	"time"

	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Country is a marketplace country. Currency is the settlement currency
// prices are quoted in for that marketplace.
type Country struct {
	Code              string
	Name              string
	MarketplaceDomain string
	Currency          valueobject.Currency
}

// VatCategory is a two-character VAT classification code
type VatCategory struct {
	ID         string
	Definition string
}

// VatRate maps (country, category) to a rate. An invalid Rate means the rate
// is unknown or not applicable, which is distinct from a zero rate.
type VatRate struct {
	Country  string
	Category string
	Rate     decimal.NullDecimal
}

// ProductTaxCategory maps a product tax classification to a VAT category
// within a country.
type ProductTaxCategory struct {
	Country     string
	Name        string
	VatCategory string
	Description string
}

// FeeTier is one marginal band of a referral fee schedule. UpTo is the
// inclusive upper bound of the fee base for this band; nil means unbounded.
type FeeTier struct {
	UpTo *decimal.Decimal
	Rate decimal.Decimal
}

// ReferralFeeCategory is a per-country referral fee schedule. A flat
// percentage fee is a single unbounded tier. MinimumFee is a per-item floor
// in the country's settlement currency.
type ReferralFeeCategory struct {
	Country    string
	Name       string
	Tiers      []FeeTier
	MinimumFee decimal.Decimal
}

// FlatReferralFee builds a single-tier schedule charging rate on the whole fee base
func FlatReferralFee(country, name string, rate decimal.Decimal) ReferralFeeCategory {
	return ReferralFeeCategory{
		Country: country,
		Name:    name,
		Tiers:   []FeeTier{{Rate: rate}},
	}
}

// PricingRule is a named margin/ROI constraint set. MinimumRoiPercentage is
// expressed in percent (10 means 10%). MinimumMarginAmount is denominated in
// Currency.
type PricingRule struct {
	ID                   string
	Name                 string
	MinimumRoiPercentage decimal.Decimal
	MinimumMarginAmount  decimal.Decimal
	Currency             valueobject.Currency
}

// ExchangeRate is the daily average value in EUR of one unit of Currency
type ExchangeRate struct {
	Currency  valueobject.Currency
	Date      time.Time
	RateToEUR decimal.Decimal
}

// Day truncates t to its calendar date, expressed in UTC
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
