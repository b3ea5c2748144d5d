package persistence

import (
	"context"

	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSnapshotRepository implements inventory.SnapshotRepository
type GormSnapshotRepository struct {
	db *gorm.DB
}

// NewGormSnapshotRepository creates a new GormSnapshotRepository
func NewGormSnapshotRepository(db *gorm.DB) *GormSnapshotRepository {
	return &GormSnapshotRepository{db: db}
}

// Save stores a snapshot and its drift observation
func (r *GormSnapshotRepository) Save(ctx context.Context, snapshot inventory.AfnSnapshot, drift *inventory.DriftObservation) error {
	m := models.AfnSnapshotModelFromDomain(snapshot, drift)
	return translate(r.db.WithContext(ctx).Create(m).Error, "save afn snapshot")
}

// LatestPerSku returns the newest snapshot of every (SKU, warehouse). Ties
// on date go to the row stored last.
func (r *GormSnapshotRepository) LatestPerSku(ctx context.Context) ([]inventory.AfnSnapshot, error) {
	var rows []models.AfnSnapshotModel
	err := r.db.WithContext(ctx).
		Table("afn_snapshots AS s").
		Where(`NOT EXISTS (SELECT 1 FROM afn_snapshots n
			WHERE n.sku = s.sku AND n.warehouse = s.warehouse
			AND (n.date > s.date OR (n.date = s.date AND n.id > s.id)))`).
		Order("s.sku, s.warehouse").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "load latest afn snapshots")
	}
	out := make([]inventory.AfnSnapshot, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// RecentDrift returns the newest stored drift observations, newest first
func (r *GormSnapshotRepository) RecentDrift(ctx context.Context, limit int) ([]inventory.DriftObservation, error) {
	var rows []models.AfnSnapshotModel
	err := r.db.WithContext(ctx).
		Where("drift_difference IS NOT NULL").
		Order("date DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "load drift observations")
	}
	out := make([]inventory.DriftObservation, len(rows))
	for i := range rows {
		out[i] = *rows[i].Drift()
	}
	return out, nil
}

var _ inventory.SnapshotRepository = (*GormSnapshotRepository)(nil)
