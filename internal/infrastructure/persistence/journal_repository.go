package persistence

import (
	"context"

	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormJournal implements inventory.Journal on the inventory_journal table
type GormJournal struct {
	db *gorm.DB
}

// NewGormJournal creates a new GormJournal
func NewGormJournal(db *gorm.DB) *GormJournal {
	return &GormJournal{db: db}
}

// Append inserts entries in one transaction. Sequence is the primary key, so
// a replayed sequence fails the whole call.
func (j *GormJournal) Append(ctx context.Context, entries []inventory.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := convert(entries, models.LedgerEntryModelFromDomain)
	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, upsertBatchSize).Error
	})
	return translate(err, "append journal entries")
}

// LoadAll returns every entry ordered by sequence
func (j *GormJournal) LoadAll(ctx context.Context) ([]inventory.LedgerEntry, error) {
	var rows []models.LedgerEntryModel
	if err := j.db.WithContext(ctx).Order("sequence").Find(&rows).Error; err != nil {
		return nil, translate(err, "load journal")
	}
	entries := make([]inventory.LedgerEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

var _ inventory.Journal = (*GormJournal)(nil)
