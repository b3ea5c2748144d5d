package pricing

import (
	"time"

	"github.com/reseller/backend/internal/domain/catalog"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PriceRequest identifies one minimum-price computation
type PriceRequest struct {
	Sku           string
	Country       string
	AsOfDate      time.Time
	PricingRuleID string
}

// PricedOffer is the result of a minimum-price computation. All amounts are
// in Currency, the country's settlement currency, rounded half-up to minor
// units; MinimumGrossPrice is never rounded down.
type PricedOffer struct {
	Sku               string               `json:"sku"`
	Asin              string               `json:"asin"`
	Country           string               `json:"country"`
	Currency          valueobject.Currency `json:"currency"`
	MinimumGrossPrice decimal.Decimal      `json:"minimum_gross_price"`
	NetPrice          decimal.Decimal      `json:"net_price"`
	VatRate           decimal.Decimal      `json:"vat_rate"`
	VatAmount         decimal.Decimal      `json:"vat_amount"`
	ReferralFee       decimal.Decimal      `json:"referral_fee"`
	LandedCost        decimal.Decimal      `json:"landed_cost"`
	MarginAmount      decimal.Decimal      `json:"margin_amount"`
	RoiPercentage     decimal.Decimal      `json:"roi_percentage"`
	PricingRuleID     string               `json:"pricing_rule_id"`
	FeeBasis          FeeBasis             `json:"fee_basis"`
	AvailableQuantity int                  `json:"available_quantity"`
	ListedPrice       *decimal.Decimal     `json:"listed_price,omitempty"`
	BelowMinimum      bool                 `json:"below_minimum"`
	AsOfDate          time.Time            `json:"as_of_date"`
	ComputedAt        time.Time            `json:"computed_at"`
}

// StockView is the read-only stock state the calculator reads. It must be a
// consistent value snapshot, not a live view of the ledger.
type StockView interface {
	// BundleAvailable returns how many complete bundles can be assembled
	BundleAvailable(components []catalog.BundleComponent) int
	// ListedPrice returns the latest externally reported listed price of a SKU
	ListedPrice(sku string) (decimal.Decimal, bool)
}
