package persistence

import (
	"context"

	"github.com/reseller/backend/internal/domain/catalog"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCatalogRepository loads and stores the product identity graph
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GormCatalogRepository
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// Load reads the whole identity graph. Junction rows are returned as stored,
// dangling ones included; catalog.NewGraph reports them.
func (r *GormCatalogRepository) Load(ctx context.Context) (catalog.GraphData, error) {
	db := r.db.WithContext(ctx)
	var (
		data    catalog.GraphData
		brands  []models.BrandModel
		eans    []models.EanModel
		asins   []models.AsinModel
		skus    []models.SkuModel
		bundles []models.EanInAsinModel
		links   []models.AsinSkuModel
		costs   []models.EanCostModel
	)

	if err := db.Order("id").Find(&brands).Error; err != nil {
		return data, translate(err, "load brands")
	}
	if err := db.Order("code").Find(&eans).Error; err != nil {
		return data, translate(err, "load eans")
	}
	if err := db.Order("code").Find(&asins).Error; err != nil {
		return data, translate(err, "load asins")
	}
	if err := db.Order("code").Find(&skus).Error; err != nil {
		return data, translate(err, "load skus")
	}
	if err := db.Order("asin, ean").Find(&bundles).Error; err != nil {
		return data, translate(err, "load ean_in_asin")
	}
	if err := db.Order("sku, asin").Find(&links).Error; err != nil {
		return data, translate(err, "load asin_sku")
	}
	if err := db.Order("ean, effective_date").Find(&costs).Error; err != nil {
		return data, translate(err, "load ean costs")
	}

	for i := range brands {
		data.Brands = append(data.Brands, brands[i].ToDomain())
	}
	for i := range eans {
		data.Eans = append(data.Eans, eans[i].ToDomain())
	}
	for i := range asins {
		data.Asins = append(data.Asins, asins[i].ToDomain())
	}
	for i := range skus {
		data.Skus = append(data.Skus, skus[i].ToDomain())
	}
	for i := range bundles {
		data.EanInAsins = append(data.EanInAsins, bundles[i].ToDomain())
	}
	for i := range links {
		data.AsinSkus = append(data.AsinSkus, links[i].ToDomain())
	}
	for i := range costs {
		data.Costs = append(data.Costs, costs[i].ToDomain())
	}
	return data, nil
}

// SaveBrands upserts brands
func (r *GormCatalogRepository) SaveBrands(ctx context.Context, brands []catalog.Brand) error {
	return translate(upsert(ctx, r.db, convert(brands, models.BrandModelFromDomain)), "save brands")
}

// SaveEans upserts EANs
func (r *GormCatalogRepository) SaveEans(ctx context.Context, eans []catalog.Ean) error {
	return translate(upsert(ctx, r.db, convert(eans, models.EanModelFromDomain)), "save eans")
}

// SaveAsins upserts ASINs
func (r *GormCatalogRepository) SaveAsins(ctx context.Context, asins []catalog.Asin) error {
	return translate(upsert(ctx, r.db, convert(asins, models.AsinModelFromDomain)), "save asins")
}

// SaveSkus upserts SKUs
func (r *GormCatalogRepository) SaveSkus(ctx context.Context, skus []catalog.Sku) error {
	return translate(upsert(ctx, r.db, convert(skus, models.SkuModelFromDomain)), "save skus")
}

// SaveBundleRows upserts EAN-in-ASIN junction rows
func (r *GormCatalogRepository) SaveBundleRows(ctx context.Context, rows []catalog.EanInAsin) error {
	return translate(upsert(ctx, r.db, convert(rows, models.EanInAsinModelFromDomain)), "save ean_in_asin")
}

// SaveAsinSkus upserts ASIN-SKU links
func (r *GormCatalogRepository) SaveAsinSkus(ctx context.Context, links []catalog.AsinSku) error {
	rows := make([]models.AsinSkuModel, len(links))
	for i, l := range links {
		rows[i] = models.AsinSkuModel{Asin: l.Asin, Sku: l.Sku}
	}
	return translate(upsert(ctx, r.db, rows), "save asin_sku")
}

// SaveCosts upserts cost history rows; a row for an existing (EAN, date)
// replaces it
func (r *GormCatalogRepository) SaveCosts(ctx context.Context, costs []catalog.EanCost) error {
	return translate(upsert(ctx, r.db, convert(costs, models.EanCostModelFromDomain)), "save ean costs")
}
