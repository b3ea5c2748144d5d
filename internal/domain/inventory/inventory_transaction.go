package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
)

// EventKind identifies the kind of ledger event
type EventKind string

const (
	// KindStockReceipt is inbound stock recorded at a warehouse
	KindStockReceipt EventKind = "STOCK_RECEIPT"
	// KindShipmentOut is stock shipped out, or transferred when a destination is set
	KindShipmentOut EventKind = "SHIPMENT_OUT"
	// KindTransferIn is the credit side of a transfer shipment
	KindTransferIn EventKind = "TRANSFER_IN"
	// KindRemovalShipment is stock pulled from a fulfillment warehouse under a removal order
	KindRemovalShipment EventKind = "REMOVAL_SHIPMENT"
	// KindRemovalReceipt is removal stock arriving back at a warehouse
	KindRemovalReceipt EventKind = "REMOVAL_RECEIPT"
	// KindDonation is stock given away
	KindDonation EventKind = "DONATION"
	// KindAfnSnapshot is an externally reported stock observation; it never moves stock
	KindAfnSnapshot EventKind = "AFN_SNAPSHOT"
)

// String returns the string representation of EventKind
func (k EventKind) String() string {
	return string(k)
}

// IsValid returns true if the kind is known
func (k EventKind) IsValid() bool {
	switch k {
	case KindStockReceipt,
		KindShipmentOut,
		KindTransferIn,
		KindRemovalShipment,
		KindRemovalReceipt,
		KindDonation,
		KindAfnSnapshot:
		return true
	}
	return false
}

// IsIncrease returns true if entries of this kind add stock
func (k EventKind) IsIncrease() bool {
	switch k {
	case KindStockReceipt, KindTransferIn, KindRemovalReceipt:
		return true
	}
	return false
}

// IsDecrease returns true if entries of this kind remove stock
func (k EventKind) IsDecrease() bool {
	switch k {
	case KindShipmentOut, KindRemovalShipment, KindDonation:
		return true
	}
	return false
}

// LedgerEntry is one immutable stock movement of one EAN at one warehouse.
// Entries are never changed; the on-hand quantity of every (EAN, warehouse)
// is the running sum of its entries' deltas.
type LedgerEntry struct {
	Sequence     int64
	EventID      uuid.UUID
	Kind         EventKind
	Ean          valueobject.EAN
	Warehouse    string
	OrderID      string
	Delta        int
	BalanceAfter int
	OccurredAt   time.Time
}

// Quantity returns the absolute size of the movement
func (e LedgerEntry) Quantity() int {
	if e.Delta < 0 {
		return -e.Delta
	}
	return e.Delta
}
