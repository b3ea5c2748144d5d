// Package catalog models product identity: physical products (EAN), the
// marketplace listings that bundle them (ASIN) and the country-specific
// offers (SKU) that sell a listing.
package catalog

import (
	"time"

	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Brand is a product brand
type Brand struct {
	ID   string
	Name string
}

// Ean is a physical product. TaxCategory is the product tax classification
// name resolved per country through reference.ProductTaxCategory.
type Ean struct {
	Code        valueobject.EAN
	ProductName string
	BrandID     *string
	TaxCategory string
}

// Asin is a marketplace listing. ReferralFeeCategory names the fee schedule
// charged when the listing sells.
type Asin struct {
	Code                string
	Title               string
	ReferralFeeCategory string
}

// Sku is a country-specific sellable offer
type Sku struct {
	Code    string
	Country string
}

// EanInAsin states that one unit of Asin contains QuantityPerAsin units of Ean
type EanInAsin struct {
	Ean             valueobject.EAN
	Asin            string
	QuantityPerAsin int
}

// AsinSku links a SKU to the listing it sells
type AsinSku struct {
	Asin string
	Sku  string
}

// EanCost is one entry of an EAN's purchase cost history
type EanCost struct {
	Ean           valueobject.EAN
	EffectiveDate time.Time
	UnitCost      decimal.Decimal
	Currency      valueobject.Currency
}

// BundleComponent is one EAN of a resolved ASIN bundle
type BundleComponent struct {
	Ean             valueobject.EAN
	QuantityPerAsin int
}
