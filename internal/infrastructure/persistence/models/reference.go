package models

import (
	"time"

	"github.com/reseller/backend/internal/domain/reference"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// CountryModel is the persistence model for reference.Country
type CountryModel struct {
	Code              string `gorm:"type:varchar(2);primaryKey"`
	Name              string `gorm:"type:varchar(100);not null"`
	MarketplaceDomain string `gorm:"type:varchar(100)"`
	Currency          string `gorm:"type:varchar(3);not null;default:'EUR'"`
	AuditModel
}

// TableName returns the table name for GORM
func (CountryModel) TableName() string {
	return "countries"
}

// ToDomain converts the persistence model to a domain Country
func (m *CountryModel) ToDomain() reference.Country {
	return reference.Country{
		Code:              m.Code,
		Name:              m.Name,
		MarketplaceDomain: m.MarketplaceDomain,
		Currency:          valueobject.Currency(m.Currency),
	}
}

// CountryModelFromDomain creates a persistence model from a domain Country
func CountryModelFromDomain(c reference.Country) *CountryModel {
	return &CountryModel{
		Code:              c.Code,
		Name:              c.Name,
		MarketplaceDomain: c.MarketplaceDomain,
		Currency:          string(c.Currency),
	}
}

// VatCategoryModel is the persistence model for reference.VatCategory
type VatCategoryModel struct {
	ID         string `gorm:"type:varchar(2);primaryKey"`
	Definition string `gorm:"type:varchar(255)"`
	AuditModel
}

// TableName returns the table name for GORM
func (VatCategoryModel) TableName() string {
	return "vat_categories"
}

// ToDomain converts the persistence model to a domain VatCategory
func (m *VatCategoryModel) ToDomain() reference.VatCategory {
	return reference.VatCategory{ID: m.ID, Definition: m.Definition}
}

// VatCategoryModelFromDomain creates a persistence model from a domain VatCategory
func VatCategoryModelFromDomain(c reference.VatCategory) *VatCategoryModel {
	return &VatCategoryModel{ID: c.ID, Definition: c.Definition}
}

// VatRateModel is the persistence model for reference.VatRate. A NULL rate
// means unknown or not applicable.
type VatRateModel struct {
	Country  string              `gorm:"type:varchar(2);primaryKey"`
	Category string              `gorm:"type:varchar(2);primaryKey"`
	Rate     decimal.NullDecimal `gorm:"type:decimal(10,6)"`
	AuditModel
}

// TableName returns the table name for GORM
func (VatRateModel) TableName() string {
	return "vat_rates"
}

// ToDomain converts the persistence model to a domain VatRate
func (m *VatRateModel) ToDomain() reference.VatRate {
	return reference.VatRate{Country: m.Country, Category: m.Category, Rate: m.Rate}
}

// VatRateModelFromDomain creates a persistence model from a domain VatRate
func VatRateModelFromDomain(r reference.VatRate) *VatRateModel {
	return &VatRateModel{Country: r.Country, Category: r.Category, Rate: r.Rate}
}

// ProductTaxCategoryModel is the persistence model for reference.ProductTaxCategory
type ProductTaxCategoryModel struct {
	Country     string `gorm:"type:varchar(2);primaryKey"`
	Name        string `gorm:"type:varchar(100);primaryKey"`
	VatCategory string `gorm:"type:varchar(2);not null"`
	Description string `gorm:"type:text"`
	AuditModel
}

// TableName returns the table name for GORM
func (ProductTaxCategoryModel) TableName() string {
	return "product_tax_categories"
}

// ToDomain converts the persistence model to a domain ProductTaxCategory
func (m *ProductTaxCategoryModel) ToDomain() reference.ProductTaxCategory {
	return reference.ProductTaxCategory{
		Country:     m.Country,
		Name:        m.Name,
		VatCategory: m.VatCategory,
		Description: m.Description,
	}
}

// ProductTaxCategoryModelFromDomain creates a persistence model from a domain ProductTaxCategory
func ProductTaxCategoryModelFromDomain(c reference.ProductTaxCategory) *ProductTaxCategoryModel {
	return &ProductTaxCategoryModel{
		Country:     c.Country,
		Name:        c.Name,
		VatCategory: c.VatCategory,
		Description: c.Description,
	}
}

// ReferralFeeCategoryModel is the persistence model for the header of a
// reference.ReferralFeeCategory; its bands live in referral_fee_tiers.
type ReferralFeeCategoryModel struct {
	Country    string          `gorm:"type:varchar(2);primaryKey"`
	Name       string          `gorm:"type:varchar(100);primaryKey"`
	MinimumFee decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	AuditModel
}

// TableName returns the table name for GORM
func (ReferralFeeCategoryModel) TableName() string {
	return "referral_fee_categories"
}

// ReferralFeeTierModel is one band of a referral fee schedule. Position
// orders the bands; UpTo is NULL for the unbounded last band.
type ReferralFeeTierModel struct {
	Country  string           `gorm:"type:varchar(2);primaryKey"`
	Category string           `gorm:"type:varchar(100);primaryKey"`
	Position int              `gorm:"primaryKey;autoIncrement:false"`
	UpTo     *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Rate     decimal.Decimal  `gorm:"type:decimal(10,6);not null"`
}

// TableName returns the table name for GORM
func (ReferralFeeTierModel) TableName() string {
	return "referral_fee_tiers"
}

// ReferralFeeModelsFromDomain splits a fee schedule into its header and bands
func ReferralFeeModelsFromDomain(f reference.ReferralFeeCategory) (*ReferralFeeCategoryModel, []ReferralFeeTierModel) {
	tiers := make([]ReferralFeeTierModel, len(f.Tiers))
	for i, t := range f.Tiers {
		tiers[i] = ReferralFeeTierModel{
			Country:  f.Country,
			Category: f.Name,
			Position: i,
			UpTo:     t.UpTo,
			Rate:     t.Rate,
		}
	}
	return &ReferralFeeCategoryModel{Country: f.Country, Name: f.Name, MinimumFee: f.MinimumFee}, tiers
}

// ToDomain joins the header with its bands, which must be sorted by Position
func (m *ReferralFeeCategoryModel) ToDomain(tiers []ReferralFeeTierModel) reference.ReferralFeeCategory {
	f := reference.ReferralFeeCategory{
		Country:    m.Country,
		Name:       m.Name,
		MinimumFee: m.MinimumFee,
		Tiers:      make([]reference.FeeTier, len(tiers)),
	}
	for i, t := range tiers {
		f.Tiers[i] = reference.FeeTier{UpTo: t.UpTo, Rate: t.Rate}
	}
	return f
}

// PricingRuleModel is the persistence model for reference.PricingRule
type PricingRuleModel struct {
	ID                   string          `gorm:"type:varchar(50);primaryKey"`
	Name                 string          `gorm:"type:varchar(100);not null"`
	MinimumRoiPercentage decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0"`
	MinimumMarginAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency             string          `gorm:"type:varchar(3);not null;default:'EUR'"`
	AuditModel
}

// TableName returns the table name for GORM
func (PricingRuleModel) TableName() string {
	return "pricing_rules"
}

// ToDomain converts the persistence model to a domain PricingRule
func (m *PricingRuleModel) ToDomain() reference.PricingRule {
	return reference.PricingRule{
		ID:                   m.ID,
		Name:                 m.Name,
		MinimumRoiPercentage: m.MinimumRoiPercentage,
		MinimumMarginAmount:  m.MinimumMarginAmount,
		Currency:             valueobject.Currency(m.Currency),
	}
}

// PricingRuleModelFromDomain creates a persistence model from a domain PricingRule
func PricingRuleModelFromDomain(r reference.PricingRule) *PricingRuleModel {
	return &PricingRuleModel{
		ID:                   r.ID,
		Name:                 r.Name,
		MinimumRoiPercentage: r.MinimumRoiPercentage,
		MinimumMarginAmount:  r.MinimumMarginAmount,
		Currency:             string(r.Currency),
	}
}

// ExchangeRateModel is the persistence model for reference.ExchangeRate
type ExchangeRateModel struct {
	Currency  string          `gorm:"type:varchar(3);primaryKey"`
	Date      time.Time       `gorm:"type:date;primaryKey"`
	RateToEUR decimal.Decimal `gorm:"column:rate_to_eur;type:decimal(18,8);not null"`
	CreatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ExchangeRateModel) TableName() string {
	return "exchange_rates"
}

// ToDomain converts the persistence model to a domain ExchangeRate
func (m *ExchangeRateModel) ToDomain() reference.ExchangeRate {
	return reference.ExchangeRate{
		Currency:  valueobject.Currency(m.Currency),
		Date:      reference.Day(m.Date),
		RateToEUR: m.RateToEUR,
	}
}

// ExchangeRateModelFromDomain creates a persistence model from a domain ExchangeRate
func ExchangeRateModelFromDomain(r reference.ExchangeRate) *ExchangeRateModel {
	return &ExchangeRateModel{
		Currency:  string(r.Currency),
		Date:      reference.Day(r.Date),
		RateToEUR: r.RateToEUR,
	}
}
