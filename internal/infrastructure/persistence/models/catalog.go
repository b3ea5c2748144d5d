package models

import (
	"time"

	"github.com/reseller/backend/internal/domain/catalog"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// BrandModel is the persistence model for catalog.Brand
type BrandModel struct {
	ID   string `gorm:"type:varchar(50);primaryKey"`
	Name string `gorm:"type:varchar(200);not null"`
	AuditModel
}

// TableName returns the table name for GORM
func (BrandModel) TableName() string {
	return "brands"
}

// ToDomain converts the persistence model to a domain Brand
func (m *BrandModel) ToDomain() catalog.Brand {
	return catalog.Brand{ID: m.ID, Name: m.Name}
}

// BrandModelFromDomain creates a persistence model from a domain Brand
func BrandModelFromDomain(b catalog.Brand) *BrandModel {
	return &BrandModel{ID: b.ID, Name: b.Name}
}

// EanModel is the persistence model for catalog.Ean
type EanModel struct {
	Code        string  `gorm:"type:varchar(13);primaryKey"`
	ProductName string  `gorm:"type:varchar(255);not null"`
	BrandID     *string `gorm:"type:varchar(50);index"`
	TaxCategory string  `gorm:"type:varchar(100);not null"`
	AuditModel
}

// TableName returns the table name for GORM
func (EanModel) TableName() string {
	return "eans"
}

// ToDomain converts the persistence model to a domain Ean
func (m *EanModel) ToDomain() catalog.Ean {
	return catalog.Ean{
		Code:        valueobject.EAN(m.Code),
		ProductName: m.ProductName,
		BrandID:     m.BrandID,
		TaxCategory: m.TaxCategory,
	}
}

// EanModelFromDomain creates a persistence model from a domain Ean
func EanModelFromDomain(e catalog.Ean) *EanModel {
	return &EanModel{
		Code:        e.Code.String(),
		ProductName: e.ProductName,
		BrandID:     e.BrandID,
		TaxCategory: e.TaxCategory,
	}
}

// AsinModel is the persistence model for catalog.Asin
type AsinModel struct {
	Code                string `gorm:"type:varchar(20);primaryKey"`
	Title               string `gorm:"type:varchar(500)"`
	ReferralFeeCategory string `gorm:"type:varchar(100);not null"`
	AuditModel
}

// TableName returns the table name for GORM
func (AsinModel) TableName() string {
	return "asins"
}

// ToDomain converts the persistence model to a domain Asin
func (m *AsinModel) ToDomain() catalog.Asin {
	return catalog.Asin{Code: m.Code, Title: m.Title, ReferralFeeCategory: m.ReferralFeeCategory}
}

// AsinModelFromDomain creates a persistence model from a domain Asin
func AsinModelFromDomain(a catalog.Asin) *AsinModel {
	return &AsinModel{Code: a.Code, Title: a.Title, ReferralFeeCategory: a.ReferralFeeCategory}
}

// SkuModel is the persistence model for catalog.Sku
type SkuModel struct {
	Code    string `gorm:"type:varchar(50);primaryKey"`
	Country string `gorm:"type:varchar(2);not null;index"`
	AuditModel
}

// TableName returns the table name for GORM
func (SkuModel) TableName() string {
	return "skus"
}

// ToDomain converts the persistence model to a domain Sku
func (m *SkuModel) ToDomain() catalog.Sku {
	return catalog.Sku{Code: m.Code, Country: m.Country}
}

// SkuModelFromDomain creates a persistence model from a domain Sku
func SkuModelFromDomain(s catalog.Sku) *SkuModel {
	return &SkuModel{Code: s.Code, Country: s.Country}
}

// EanInAsinModel is the bundle junction between EANs and ASINs
type EanInAsinModel struct {
	Ean             string `gorm:"type:varchar(13);primaryKey"`
	Asin            string `gorm:"type:varchar(20);primaryKey;index"`
	QuantityPerAsin int    `gorm:"not null;default:1"`
	AuditModel
}

// TableName returns the table name for GORM
func (EanInAsinModel) TableName() string {
	return "ean_in_asin"
}

// ToDomain converts the persistence model to a domain EanInAsin
func (m *EanInAsinModel) ToDomain() catalog.EanInAsin {
	return catalog.EanInAsin{Ean: valueobject.EAN(m.Ean), Asin: m.Asin, QuantityPerAsin: m.QuantityPerAsin}
}

// EanInAsinModelFromDomain creates a persistence model from a domain EanInAsin
func EanInAsinModelFromDomain(r catalog.EanInAsin) *EanInAsinModel {
	return &EanInAsinModel{Ean: r.Ean.String(), Asin: r.Asin, QuantityPerAsin: r.QuantityPerAsin}
}

// AsinSkuModel links a SKU to the ASIN it sells
type AsinSkuModel struct {
	Asin string `gorm:"type:varchar(20);primaryKey"`
	Sku  string `gorm:"type:varchar(50);primaryKey;index"`
	AuditModel
}

// TableName returns the table name for GORM
func (AsinSkuModel) TableName() string {
	return "asin_sku"
}

// ToDomain converts the persistence model to a domain AsinSku
func (m *AsinSkuModel) ToDomain() catalog.AsinSku {
	return catalog.AsinSku{Asin: m.Asin, Sku: m.Sku}
}

// EanCostModel is one row of an EAN's purchase cost history
type EanCostModel struct {
	Ean           string          `gorm:"type:varchar(13);primaryKey"`
	EffectiveDate time.Time       `gorm:"type:date;primaryKey"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency      string          `gorm:"type:varchar(3);not null;default:'EUR'"`
	CreatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (EanCostModel) TableName() string {
	return "ean_costs"
}

// ToDomain converts the persistence model to a domain EanCost
func (m *EanCostModel) ToDomain() catalog.EanCost {
	return catalog.EanCost{
		Ean:           valueobject.EAN(m.Ean),
		EffectiveDate: m.EffectiveDate.UTC(),
		UnitCost:      m.UnitCost,
		Currency:      valueobject.Currency(m.Currency),
	}
}

// EanCostModelFromDomain creates a persistence model from a domain EanCost
func EanCostModelFromDomain(c catalog.EanCost) *EanCostModel {
	return &EanCostModel{
		Ean:           c.Ean.String(),
		EffectiveDate: c.EffectiveDate.UTC(),
		UnitCost:      c.UnitCost,
		Currency:      string(c.Currency),
	}
}
