package persistence

import (
	"context"
	"fmt"

	"github.com/reseller/backend/internal/domain/pricing"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOfferRepository implements pricing.OfferRepository. It keeps one row
// per (SKU, country); saving replaces it unless the stored offer is newer.
type GormOfferRepository struct {
	db *gorm.DB
}

// NewGormOfferRepository creates a new GormOfferRepository
func NewGormOfferRepository(db *gorm.DB) *GormOfferRepository {
	return &GormOfferRepository{db: db}
}

// Save upserts the offer on (sku, country). An offer computed before the
// stored one is ignored.
func (r *GormOfferRepository) Save(ctx context.Context, offer *pricing.PricedOffer) error {
	m := models.PricedOfferModelFromDomain(offer)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}, {Name: "country"}},
			UpdateAll: true,
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "priced_offers.computed_at <= excluded.computed_at"},
			}},
		}).
		Create(m).Error
	return translate(err, fmt.Sprintf("save offer %s/%s", offer.Sku, offer.Country))
}

// FindLatest returns the stored offer of a SKU in a country
func (r *GormOfferRepository) FindLatest(ctx context.Context, sku, country string) (*pricing.PricedOffer, error) {
	var m models.PricedOfferModel
	err := r.db.WithContext(ctx).
		Where("sku = ? AND country = ?", sku, country).
		First(&m).Error
	if err != nil {
		return nil, translate(err, fmt.Sprintf("offer %s/%s", sku, country))
	}
	return m.ToDomain(), nil
}

// FindBelowMinimum returns offers whose listed price is below their minimum,
// most recently computed first. A non-positive limit returns all of them.
func (r *GormOfferRepository) FindBelowMinimum(ctx context.Context, limit int) ([]pricing.PricedOffer, error) {
	var rows []models.PricedOfferModel
	query := r.db.WithContext(ctx).
		Where("below_minimum = ?", true).
		Order("computed_at DESC, sku, country")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, translate(err, "load below-minimum offers")
	}
	out := make([]pricing.PricedOffer, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

var _ pricing.OfferRepository = (*GormOfferRepository)(nil)
