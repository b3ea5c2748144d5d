package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
)

// Aggregate type constant
const AggregateTypeStockPosition = "StockPosition"

// Event type constants
const (
	EventTypeStockChanged  = "StockChanged"
	EventTypeDriftDetected = "DriftDetected"
)

// StockChangedEvent is raised for every committed ledger entry
type StockChangedEvent struct {
	shared.BaseDomainEvent
	SourceEventID uuid.UUID       `json:"source_event_id"`
	Kind          EventKind       `json:"kind"`
	Ean           valueobject.EAN `json:"ean"`
	Warehouse     string          `json:"warehouse"`
	Delta         int             `json:"delta"`
	BalanceAfter  int             `json:"balance_after"`
	Sequence      int64           `json:"sequence"`
}

// NewStockChangedEvent creates a new StockChangedEvent
func NewStockChangedEvent(entry LedgerEntry) *StockChangedEvent {
	return &StockChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockChanged, AggregateTypeStockPosition, entry.Ean.String()),
		SourceEventID:   entry.EventID,
		Kind:            entry.Kind,
		Ean:             entry.Ean,
		Warehouse:       entry.Warehouse,
		Delta:           entry.Delta,
		BalanceAfter:    entry.BalanceAfter,
		Sequence:        entry.Sequence,
	}
}

// DriftObservation reports a marketplace snapshot that disagrees with the
// stock the ledger derives for the same SKU and warehouse
type DriftObservation struct {
	Sku        string    `json:"sku"`
	Warehouse  string    `json:"warehouse"`
	Date       time.Time `json:"date"`
	Reported   int       `json:"reported"`
	Computed   int       `json:"computed"`
	Difference int       `json:"difference"`
	Tolerance  int       `json:"tolerance"`
}

// DriftDetectedEvent is raised when a snapshot drifts beyond tolerance. It is
// an observation; the ledger is not changed.
type DriftDetectedEvent struct {
	shared.BaseDomainEvent
	SourceEventID uuid.UUID        `json:"source_event_id"`
	Drift         DriftObservation `json:"drift"`
}

// NewDriftDetectedEvent creates a new DriftDetectedEvent
func NewDriftDetectedEvent(sourceEventID uuid.UUID, drift DriftObservation) *DriftDetectedEvent {
	return &DriftDetectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDriftDetected, AggregateTypeStockPosition, drift.Sku),
		SourceEventID:   sourceEventID,
		Drift:           drift,
	}
}
