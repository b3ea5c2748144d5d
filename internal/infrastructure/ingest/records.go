package ingest

import (
	"time"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Record is one input row keyed by column name
type Record map[string]string

// KindColumn selects the record type when decoding with Decode
const KindColumn = "kind"

// Record kinds. Names match inventory.EventKind; TRANSFER is a shipment with
// a destination warehouse.
const (
	KindStockReceipt    = "STOCK_RECEIPT"
	KindShipmentOut     = "SHIPMENT_OUT"
	KindTransfer        = "TRANSFER"
	KindRemovalShipment = "REMOVAL_SHIPMENT"
	KindRemovalReceipt  = "REMOVAL_RECEIPT"
	KindDonation        = "DONATION"
	KindAfnSnapshot     = "AFN_SNAPSHOT"
)

type record interface {
	toEvent() inventory.Event
}

type metaFields struct {
	EventID    uuid.UUID `col:"event_id"`
	OccurredAt time.Time `col:"occurred_at"`
}

func (m metaFields) meta() inventory.EventMeta {
	return inventory.EventMeta{EventID: m.EventID, OccurredAt: m.OccurredAt}
}

type receiptRecord struct {
	metaFields
	Ean       string `col:"ean" validate:"required,ean"`
	Quantity  int    `col:"quantity" validate:"gt=0"`
	Warehouse string `col:"warehouse" validate:"required,max=50"`
}

func (r *receiptRecord) toEvent() inventory.Event {
	return inventory.StockReceipt{
		EventMeta: r.meta(),
		Ean:       valueobject.EAN(r.Ean),
		Quantity:  r.Quantity,
		Warehouse: r.Warehouse,
	}
}

// shipmentRecord covers SHIPMENT_OUT and TRANSFER; exactly one of ean and
// asin is set, which is checked at struct level
type shipmentRecord struct {
	metaFields
	Ean         string `col:"ean" validate:"omitempty,ean"`
	Asin        string `col:"asin" validate:"omitempty,max=20"`
	Quantity    int    `col:"quantity" validate:"gt=0"`
	Warehouse   string `col:"warehouse" validate:"required,max=50"`
	ToWarehouse string `col:"to_warehouse" validate:"omitempty,max=50,nefield=Warehouse"`
}

func (r *shipmentRecord) toEvent() inventory.Event {
	return inventory.ShipmentOut{
		EventMeta:   r.meta(),
		Ean:         valueobject.EAN(r.Ean),
		Asin:        r.Asin,
		Quantity:    r.Quantity,
		Warehouse:   r.Warehouse,
		ToWarehouse: r.ToWarehouse,
	}
}

type transferRecord struct {
	shipmentRecord
}

type removalRecord struct {
	metaFields
	OrderID   string `col:"order_id" validate:"required,max=50"`
	Ean       string `col:"ean" validate:"required,ean"`
	Quantity  int    `col:"quantity" validate:"gt=0"`
	Warehouse string `col:"warehouse" validate:"required,max=50"`
	receipt   bool
}

func (r *removalRecord) toEvent() inventory.Event {
	if r.receipt {
		return inventory.RemovalReceipt{
			EventMeta: r.meta(),
			OrderID:   r.OrderID,
			Ean:       valueobject.EAN(r.Ean),
			Quantity:  r.Quantity,
			Warehouse: r.Warehouse,
		}
	}
	return inventory.RemovalShipment{
		EventMeta: r.meta(),
		OrderID:   r.OrderID,
		Ean:       valueobject.EAN(r.Ean),
		Quantity:  r.Quantity,
		Warehouse: r.Warehouse,
	}
}

type donationRecord struct {
	metaFields
	DonationID   string    `col:"donation_id" validate:"required,max=50"`
	Recipient    string    `col:"recipient" validate:"max=200"`
	DonationDate time.Time `col:"donation_date" validate:"required"`
	Ean          string    `col:"ean" validate:"required,ean"`
	Quantity     int       `col:"quantity" validate:"gt=0"`
	Warehouse    string    `col:"warehouse" validate:"required,max=50"`
}

func (r *donationRecord) toEvent() inventory.Event {
	return inventory.DonationOut{
		EventMeta: r.meta(),
		Donation: inventory.Donation{
			ID:        r.DonationID,
			Warehouse: r.Warehouse,
			Recipient: r.Recipient,
			Date:      r.DonationDate,
		},
		Ean:      valueobject.EAN(r.Ean),
		Quantity: r.Quantity,
	}
}

type afnSnapshotRecord struct {
	metaFields
	Sku                 string           `col:"sku" validate:"required,max=50"`
	Date                time.Time        `col:"date" validate:"required"`
	Warehouse           string           `col:"warehouse" validate:"required,max=50"`
	FulfillableQuantity int              `col:"fulfillable_quantity" validate:"gte=0"`
	ListedPrice         *decimal.Decimal `col:"listed_price" validate:"omitempty,gte=0"`
}

func (r *afnSnapshotRecord) toEvent() inventory.Event {
	return inventory.AfnSnapshot{
		EventMeta:           r.meta(),
		Sku:                 r.Sku,
		Date:                r.Date,
		Warehouse:           r.Warehouse,
		FulfillableQuantity: r.FulfillableQuantity,
		ListedPrice:         r.ListedPrice,
	}
}

func newRecord(kind string) (record, bool) {
	switch kind {
	case KindStockReceipt:
		return &receiptRecord{}, true
	case KindShipmentOut:
		return &shipmentRecord{}, true
	case KindTransfer:
		return &transferRecord{}, true
	case KindRemovalShipment:
		return &removalRecord{}, true
	case KindRemovalReceipt:
		return &removalRecord{receipt: true}, true
	case KindDonation:
		return &donationRecord{}, true
	case KindAfnSnapshot:
		return &afnSnapshotRecord{}, true
	}
	return nil, false
}
