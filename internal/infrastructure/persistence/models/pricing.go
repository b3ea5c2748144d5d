package models

import (
	"time"

	"github.com/reseller/backend/internal/domain/pricing"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PricedOfferModel holds the latest computed offer per SKU and country
type PricedOfferModel struct {
	Sku               string              `gorm:"type:varchar(50);primaryKey"`
	Country           string              `gorm:"type:varchar(2);primaryKey"`
	Asin              string              `gorm:"type:varchar(20);not null"`
	Currency          string              `gorm:"type:varchar(3);not null"`
	MinimumGrossPrice decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	NetPrice          decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	VatRate           decimal.Decimal     `gorm:"type:decimal(10,6);not null"`
	VatAmount         decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	ReferralFee       decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	LandedCost        decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	MarginAmount      decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	RoiPercentage     decimal.Decimal     `gorm:"type:decimal(10,4);not null"`
	PricingRuleID     string              `gorm:"type:varchar(50);not null"`
	FeeBasis          string              `gorm:"type:varchar(10);not null"`
	AvailableQuantity int                 `gorm:"not null;default:0"`
	ListedPrice       decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	BelowMinimum      bool                `gorm:"not null;default:false;index"`
	AsOfDate          time.Time           `gorm:"type:date;not null"`
	ComputedAt        time.Time           `gorm:"not null;index"`
	AuditModel
}

// TableName returns the table name for GORM
func (PricedOfferModel) TableName() string {
	return "priced_offers"
}

// ToDomain converts the persistence model to a domain PricedOffer
func (m *PricedOfferModel) ToDomain() *pricing.PricedOffer {
	o := &pricing.PricedOffer{
		Sku:               m.Sku,
		Asin:              m.Asin,
		Country:           m.Country,
		Currency:          valueobject.Currency(m.Currency),
		MinimumGrossPrice: m.MinimumGrossPrice,
		NetPrice:          m.NetPrice,
		VatRate:           m.VatRate,
		VatAmount:         m.VatAmount,
		ReferralFee:       m.ReferralFee,
		LandedCost:        m.LandedCost,
		MarginAmount:      m.MarginAmount,
		RoiPercentage:     m.RoiPercentage,
		PricingRuleID:     m.PricingRuleID,
		FeeBasis:          pricing.FeeBasis(m.FeeBasis),
		AvailableQuantity: m.AvailableQuantity,
		BelowMinimum:      m.BelowMinimum,
		AsOfDate:          m.AsOfDate.UTC(),
		ComputedAt:        m.ComputedAt,
	}
	if m.ListedPrice.Valid {
		listed := m.ListedPrice.Decimal
		o.ListedPrice = &listed
	}
	return o
}

// PricedOfferModelFromDomain creates a persistence model from a domain PricedOffer
func PricedOfferModelFromDomain(o *pricing.PricedOffer) *PricedOfferModel {
	m := &PricedOfferModel{
		Sku:               o.Sku,
		Country:           o.Country,
		Asin:              o.Asin,
		Currency:          string(o.Currency),
		MinimumGrossPrice: o.MinimumGrossPrice,
		NetPrice:          o.NetPrice,
		VatRate:           o.VatRate,
		VatAmount:         o.VatAmount,
		ReferralFee:       o.ReferralFee,
		LandedCost:        o.LandedCost,
		MarginAmount:      o.MarginAmount,
		RoiPercentage:     o.RoiPercentage,
		PricingRuleID:     o.PricingRuleID,
		FeeBasis:          string(o.FeeBasis),
		AvailableQuantity: o.AvailableQuantity,
		BelowMinimum:      o.BelowMinimum,
		AsOfDate:          o.AsOfDate,
		ComputedAt:        o.ComputedAt.UTC(),
	}
	if o.ListedPrice != nil {
		m.ListedPrice = decimal.NewNullDecimal(*o.ListedPrice)
	}
	return m
}
