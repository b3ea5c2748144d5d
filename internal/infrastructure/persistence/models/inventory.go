package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LedgerEntryModel is one row of the append-only inventory journal. Rows are
// inserted, never updated.
type LedgerEntryModel struct {
	Sequence     int64     `gorm:"primaryKey;autoIncrement:false"`
	EventID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Kind         string    `gorm:"type:varchar(32);not null"`
	Ean          string    `gorm:"type:varchar(13);not null;index:idx_journal_ean_warehouse,priority:1"`
	Warehouse    string    `gorm:"type:varchar(50);not null;index:idx_journal_ean_warehouse,priority:2"`
	OrderID      string    `gorm:"type:varchar(50);index"`
	Delta        int       `gorm:"not null"`
	BalanceAfter int       `gorm:"not null"`
	OccurredAt   time.Time `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "inventory_journal"
}

// ToDomain converts the persistence model to a domain LedgerEntry
func (m *LedgerEntryModel) ToDomain() inventory.LedgerEntry {
	return inventory.LedgerEntry{
		Sequence:     m.Sequence,
		EventID:      m.EventID,
		Kind:         inventory.EventKind(m.Kind),
		Ean:          valueobject.EAN(m.Ean),
		Warehouse:    m.Warehouse,
		OrderID:      m.OrderID,
		Delta:        m.Delta,
		BalanceAfter: m.BalanceAfter,
		OccurredAt:   m.OccurredAt,
	}
}

// LedgerEntryModelFromDomain creates a persistence model from a domain LedgerEntry
func LedgerEntryModelFromDomain(e inventory.LedgerEntry) *LedgerEntryModel {
	return &LedgerEntryModel{
		Sequence:     e.Sequence,
		EventID:      e.EventID,
		Kind:         e.Kind.String(),
		Ean:          e.Ean.String(),
		Warehouse:    e.Warehouse,
		OrderID:      e.OrderID,
		Delta:        e.Delta,
		BalanceAfter: e.BalanceAfter,
		OccurredAt:   e.OccurredAt,
	}
}

// AfnSnapshotModel stores a marketplace stock report together with the drift
// the ledger observed for it. Drift columns are NULL when none was detected.
type AfnSnapshotModel struct {
	ID                  uint64              `gorm:"primaryKey;autoIncrement"`
	EventID             uuid.UUID           `gorm:"type:uuid;not null;index"`
	Sku                 string              `gorm:"type:varchar(50);not null;index:idx_afn_sku_warehouse_date,priority:1"`
	Warehouse           string              `gorm:"type:varchar(50);not null;index:idx_afn_sku_warehouse_date,priority:2"`
	Date                time.Time           `gorm:"not null;index:idx_afn_sku_warehouse_date,priority:3"`
	FulfillableQuantity int                 `gorm:"not null"`
	ListedPrice         decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	ComputedQuantity    *int
	DriftDifference     *int
	DriftTolerance      *int
	CreatedAt           time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AfnSnapshotModel) TableName() string {
	return "afn_snapshots"
}

// ToDomain converts the persistence model to a domain AfnSnapshot
func (m *AfnSnapshotModel) ToDomain() inventory.AfnSnapshot {
	snap := inventory.AfnSnapshot{
		EventMeta:           inventory.EventMeta{EventID: m.EventID, OccurredAt: m.CreatedAt},
		Sku:                 m.Sku,
		Date:                m.Date,
		Warehouse:           m.Warehouse,
		FulfillableQuantity: m.FulfillableQuantity,
	}
	if m.ListedPrice.Valid {
		price := m.ListedPrice.Decimal
		snap.ListedPrice = &price
	}
	return snap
}

// Drift returns the stored drift observation, if any
func (m *AfnSnapshotModel) Drift() *inventory.DriftObservation {
	if m.DriftDifference == nil {
		return nil
	}
	d := &inventory.DriftObservation{
		Sku:        m.Sku,
		Warehouse:  m.Warehouse,
		Date:       m.Date,
		Reported:   m.FulfillableQuantity,
		Difference: *m.DriftDifference,
	}
	if m.ComputedQuantity != nil {
		d.Computed = *m.ComputedQuantity
	}
	if m.DriftTolerance != nil {
		d.Tolerance = *m.DriftTolerance
	}
	return d
}

// AfnSnapshotModelFromDomain creates a persistence model from a snapshot and
// its optional drift observation
func AfnSnapshotModelFromDomain(s inventory.AfnSnapshot, drift *inventory.DriftObservation) *AfnSnapshotModel {
	m := &AfnSnapshotModel{
		EventID:             s.EventID,
		Sku:                 s.Sku,
		Warehouse:           s.Warehouse,
		Date:                s.Date.UTC(),
		FulfillableQuantity: s.FulfillableQuantity,
	}
	if s.ListedPrice != nil {
		m.ListedPrice = decimal.NewNullDecimal(*s.ListedPrice)
	}
	if drift != nil {
		computed, diff, tol := drift.Computed, drift.Difference, drift.Tolerance
		m.ComputedQuantity = &computed
		m.DriftDifference = &diff
		m.DriftTolerance = &tol
	}
	return m
}
