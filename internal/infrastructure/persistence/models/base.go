package models

import (
	"time"
)

// AuditModel provides the bookkeeping timestamps every mutable table carries
type AuditModel struct {
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// All returns every model in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&CountryModel{},
		&VatCategoryModel{},
		&VatRateModel{},
		&ProductTaxCategoryModel{},
		&ReferralFeeCategoryModel{},
		&ReferralFeeTierModel{},
		&PricingRuleModel{},
		&ExchangeRateModel{},
		&BrandModel{},
		&EanModel{},
		&AsinModel{},
		&SkuModel{},
		&EanInAsinModel{},
		&AsinSkuModel{},
		&EanCostModel{},
		&LedgerEntryModel{},
		&AfnSnapshotModel{},
		&PricedOfferModel{},
	}
}
