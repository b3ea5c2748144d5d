package inventory

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Event is an input the ledger applies. Implementations are the movement
// types in this file.
type Event interface {
	Meta() EventMeta
	Kind() EventKind
	validate() error
}

// EventMeta carries the identity of an input event. EventID makes the event
// idempotent; a nil ID is replaced by a fresh one and disables deduplication.
type EventMeta struct {
	EventID    uuid.UUID `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Meta returns the event metadata
func (m EventMeta) Meta() EventMeta {
	return m
}

// StockReceipt records units arriving at a warehouse
type StockReceipt struct {
	EventMeta
	Ean       valueobject.EAN `json:"ean"`
	Quantity  int             `json:"quantity"`
	Warehouse string          `json:"warehouse"`
}

// Kind returns KindStockReceipt
func (StockReceipt) Kind() EventKind { return KindStockReceipt }

func (e StockReceipt) validate() error {
	return firstError(
		checkEan(e.Ean),
		checkQuantity(e.Quantity),
		checkWarehouse(e.Warehouse),
	)
}

// ShipmentOut removes units from a warehouse. Exactly one of Ean or Asin is
// set; an ASIN shipment moves Quantity bundles, each expanding to its
// components. A non-empty ToWarehouse turns the shipment into a transfer that
// credits the destination in the same step.
type ShipmentOut struct {
	EventMeta
	Ean         valueobject.EAN `json:"ean,omitempty"`
	Asin        string          `json:"asin,omitempty"`
	Quantity    int             `json:"quantity"`
	Warehouse   string          `json:"warehouse"`
	ToWarehouse string          `json:"to_warehouse,omitempty"`
}

// Kind returns KindShipmentOut
func (ShipmentOut) Kind() EventKind { return KindShipmentOut }

func (e ShipmentOut) validate() error {
	var target error
	switch {
	case e.Ean == "" && e.Asin == "":
		target = fmt.Errorf("%w: shipment needs an EAN or an ASIN", shared.ErrInvalidInput)
	case e.Ean != "" && e.Asin != "":
		target = fmt.Errorf("%w: shipment names both EAN %s and ASIN %s", shared.ErrInvalidInput, e.Ean, e.Asin)
	case e.Ean != "":
		target = checkEan(e.Ean)
	}
	var transfer error
	if e.ToWarehouse != "" && e.ToWarehouse == e.Warehouse {
		transfer = fmt.Errorf("%w: transfer from %s to itself", shared.ErrInvalidInput, e.Warehouse)
	}
	return firstError(target, checkQuantity(e.Quantity), checkWarehouse(e.Warehouse), transfer)
}

// RemovalShipment pulls units out of a warehouse under a removal order
type RemovalShipment struct {
	EventMeta
	OrderID   string          `json:"order_id"`
	Ean       valueobject.EAN `json:"ean"`
	Quantity  int             `json:"quantity"`
	Warehouse string          `json:"warehouse"`
}

// Kind returns KindRemovalShipment
func (RemovalShipment) Kind() EventKind { return KindRemovalShipment }

func (e RemovalShipment) validate() error {
	return firstError(checkOrder(e.OrderID), checkEan(e.Ean), checkQuantity(e.Quantity), checkWarehouse(e.Warehouse))
}

// RemovalReceipt records removal units arriving at Warehouse. Across all
// receipts of an order an EAN can never be received more often than it was
// shipped.
type RemovalReceipt struct {
	EventMeta
	OrderID   string          `json:"order_id"`
	Ean       valueobject.EAN `json:"ean"`
	Quantity  int             `json:"quantity"`
	Warehouse string          `json:"warehouse"`
}

// Kind returns KindRemovalReceipt
func (RemovalReceipt) Kind() EventKind { return KindRemovalReceipt }

func (e RemovalReceipt) validate() error {
	return firstError(checkOrder(e.OrderID), checkEan(e.Ean), checkQuantity(e.Quantity), checkWarehouse(e.Warehouse))
}

// Donation describes a donation batch
type Donation struct {
	ID        string    `json:"id"`
	Warehouse string    `json:"warehouse"`
	Recipient string    `json:"recipient"`
	Date      time.Time `json:"date"`
}

// DonationOut gives units of an EAN away from the donation's warehouse
type DonationOut struct {
	EventMeta
	Donation Donation        `json:"donation"`
	Ean      valueobject.EAN `json:"ean"`
	Quantity int             `json:"quantity"`
}

// Kind returns KindDonation
func (DonationOut) Kind() EventKind { return KindDonation }

func (e DonationOut) validate() error {
	var id error
	if e.Donation.ID == "" {
		id = fmt.Errorf("%w: donation id is required", shared.ErrInvalidInput)
	}
	return firstError(id, checkEan(e.Ean), checkQuantity(e.Quantity), checkWarehouse(e.Donation.Warehouse))
}

// AfnSnapshot is the marketplace's own report of fulfillable stock and listed
// price for a SKU. It is reconciled against the ledger but never changes it.
type AfnSnapshot struct {
	EventMeta
	Sku                 string           `json:"sku"`
	Date                time.Time        `json:"date"`
	Warehouse           string           `json:"warehouse"`
	FulfillableQuantity int              `json:"fulfillable_quantity"`
	ListedPrice         *decimal.Decimal `json:"listed_price,omitempty"`
}

// Kind returns KindAfnSnapshot
func (AfnSnapshot) Kind() EventKind { return KindAfnSnapshot }

func (e AfnSnapshot) validate() error {
	var sku, qty, price error
	if e.Sku == "" {
		sku = fmt.Errorf("%w: snapshot sku is required", shared.ErrInvalidInput)
	}
	if e.FulfillableQuantity < 0 {
		qty = fmt.Errorf("%w: fulfillable quantity %d is negative", shared.ErrInvalidInput, e.FulfillableQuantity)
	}
	if e.ListedPrice != nil && e.ListedPrice.IsNegative() {
		price = fmt.Errorf("%w: listed price %s is negative", shared.ErrInvalidInput, e.ListedPrice)
	}
	return firstError(sku, checkWarehouse(e.Warehouse), qty, price)
}

func checkEan(ean valueobject.EAN) error {
	if !valueobject.IsValidEAN(string(ean)) {
		return fmt.Errorf("%w: EAN %q must be 13 digits", shared.ErrInvalidInput, ean)
	}
	return nil
}

// MaxQuantity bounds the units a single event may move, including an ASIN
// shipment after bundle expansion
const MaxQuantity = math.MaxInt32

func checkQuantity(q int) error {
	if q <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", shared.ErrInvalidInput, q)
	}
	if q > MaxQuantity {
		return fmt.Errorf("%w: quantity %d exceeds %d", shared.ErrInvalidInput, q, MaxQuantity)
	}
	return nil
}

func checkWarehouse(w string) error {
	if w == "" {
		return fmt.Errorf("%w: warehouse is required", shared.ErrInvalidInput)
	}
	return nil
}

func checkOrder(id string) error {
	if id == "" {
		return fmt.Errorf("%w: removal order id is required", shared.ErrInvalidInput)
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
