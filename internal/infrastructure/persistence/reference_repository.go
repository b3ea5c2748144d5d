package persistence

import (
	"context"

	"github.com/reseller/backend/internal/domain/reference"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormReferenceRepository loads and stores the reference tables
type GormReferenceRepository struct {
	db *gorm.DB
}

// NewGormReferenceRepository creates a new GormReferenceRepository
func NewGormReferenceRepository(db *gorm.DB) *GormReferenceRepository {
	return &GormReferenceRepository{db: db}
}

// Load reads every reference table. Integrity checks are left to
// reference.NewSnapshot so a bad row surfaces on the lookups that hit it.
func (r *GormReferenceRepository) Load(ctx context.Context) (reference.Data, error) {
	db := r.db.WithContext(ctx)
	var (
		data       reference.Data
		countries  []models.CountryModel
		categories []models.VatCategoryModel
		rates      []models.VatRateModel
		taxes      []models.ProductTaxCategoryModel
		fees       []models.ReferralFeeCategoryModel
		tiers      []models.ReferralFeeTierModel
		rules      []models.PricingRuleModel
		fxRates    []models.ExchangeRateModel
	)

	if err := db.Order("code").Find(&countries).Error; err != nil {
		return data, translate(err, "load countries")
	}
	if err := db.Order("id").Find(&categories).Error; err != nil {
		return data, translate(err, "load vat categories")
	}
	if err := db.Order("country, category").Find(&rates).Error; err != nil {
		return data, translate(err, "load vat rates")
	}
	if err := db.Order("country, name").Find(&taxes).Error; err != nil {
		return data, translate(err, "load product tax categories")
	}
	if err := db.Order("country, name").Find(&fees).Error; err != nil {
		return data, translate(err, "load referral fees")
	}
	if err := db.Order("country, category, position").Find(&tiers).Error; err != nil {
		return data, translate(err, "load referral fee tiers")
	}
	if err := db.Order("id").Find(&rules).Error; err != nil {
		return data, translate(err, "load pricing rules")
	}
	if err := db.Order("currency, date").Find(&fxRates).Error; err != nil {
		return data, translate(err, "load exchange rates")
	}

	for i := range countries {
		data.Countries = append(data.Countries, countries[i].ToDomain())
	}
	for i := range categories {
		data.VatCategories = append(data.VatCategories, categories[i].ToDomain())
	}
	for i := range rates {
		data.VatRates = append(data.VatRates, rates[i].ToDomain())
	}
	for i := range taxes {
		data.ProductTaxCategories = append(data.ProductTaxCategories, taxes[i].ToDomain())
	}
	bands := make(map[[2]string][]models.ReferralFeeTierModel)
	for _, t := range tiers {
		key := [2]string{t.Country, t.Category}
		bands[key] = append(bands[key], t)
	}
	for i := range fees {
		data.ReferralFees = append(data.ReferralFees, fees[i].ToDomain(bands[[2]string{fees[i].Country, fees[i].Name}]))
	}
	for i := range rules {
		data.PricingRules = append(data.PricingRules, rules[i].ToDomain())
	}
	for i := range fxRates {
		data.ExchangeRates = append(data.ExchangeRates, fxRates[i].ToDomain())
	}
	return data, nil
}

// SaveCountries upserts countries
func (r *GormReferenceRepository) SaveCountries(ctx context.Context, countries []reference.Country) error {
	return translate(upsert(ctx, r.db, convert(countries, models.CountryModelFromDomain)), "save countries")
}

// SaveVatCategories upserts VAT categories
func (r *GormReferenceRepository) SaveVatCategories(ctx context.Context, categories []reference.VatCategory) error {
	return translate(upsert(ctx, r.db, convert(categories, models.VatCategoryModelFromDomain)), "save vat categories")
}

// SaveVatRates upserts VAT rates
func (r *GormReferenceRepository) SaveVatRates(ctx context.Context, rates []reference.VatRate) error {
	return translate(upsert(ctx, r.db, convert(rates, models.VatRateModelFromDomain)), "save vat rates")
}

// SaveProductTaxCategories upserts product tax categories
func (r *GormReferenceRepository) SaveProductTaxCategories(ctx context.Context, categories []reference.ProductTaxCategory) error {
	return translate(upsert(ctx, r.db, convert(categories, models.ProductTaxCategoryModelFromDomain)), "save product tax categories")
}

// SaveReferralFees upserts fee schedules. The bands of every saved schedule
// are replaced as a whole.
func (r *GormReferenceRepository) SaveReferralFees(ctx context.Context, fees []reference.ReferralFeeCategory) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, f := range fees {
			header, tiers := models.ReferralFeeModelsFromDomain(f)
			if err := upsert(ctx, tx, []models.ReferralFeeCategoryModel{*header}); err != nil {
				return err
			}
			if err := tx.Where("country = ? AND category = ?", f.Country, f.Name).
				Delete(&models.ReferralFeeTierModel{}).Error; err != nil {
				return err
			}
			if len(tiers) > 0 {
				if err := tx.Create(&tiers).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	return translate(err, "save referral fees")
}

// SavePricingRules upserts pricing rules
func (r *GormReferenceRepository) SavePricingRules(ctx context.Context, rules []reference.PricingRule) error {
	return translate(upsert(ctx, r.db, convert(rules, models.PricingRuleModelFromDomain)), "save pricing rules")
}

// SaveExchangeRates upserts daily exchange rates
func (r *GormReferenceRepository) SaveExchangeRates(ctx context.Context, rates []reference.ExchangeRate) error {
	return translate(upsert(ctx, r.db, convert(rates, models.ExchangeRateModelFromDomain)), "save exchange rates")
}
