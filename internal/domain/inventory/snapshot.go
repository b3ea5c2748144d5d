package inventory

import (
	"sort"
	"time"

	"github.com/reseller/backend/internal/domain/catalog"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// StockSnapshot is an immutable copy of the ledger taken while every EAN was
// locked. Every event is either wholly reflected in it or not at all.
type StockSnapshot struct {
	onHand  map[valueobject.EAN]map[string]int
	listed  map[string]listedPrice
	takenAt time.Time
}

type listedPrice struct {
	price decimal.Decimal
	date  time.Time
}

// TakenAt returns when the snapshot was taken
func (s *StockSnapshot) TakenAt() time.Time {
	return s.takenAt
}

// OnHand returns the units of an EAN at a warehouse
func (s *StockSnapshot) OnHand(ean valueobject.EAN, warehouse string) int {
	return s.onHand[ean][warehouse]
}

// Total returns the units of an EAN across warehouses
func (s *StockSnapshot) Total(ean valueobject.EAN) int {
	total := 0
	for _, q := range s.onHand[ean] {
		total += q
	}
	return total
}

// Eans returns every EAN with a position, sorted
func (s *StockSnapshot) Eans() []valueobject.EAN {
	out := make([]valueobject.EAN, 0, len(s.onHand))
	for ean := range s.onHand {
		out = append(out, ean)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BundleAvailableAt returns how many complete bundles one warehouse can
// assemble: the minimum over components of floor(onHand / quantityPerAsin)
func (s *StockSnapshot) BundleAvailableAt(components []catalog.BundleComponent, warehouse string) int {
	return bundleAvailable(components, func(ean valueobject.EAN) int {
		return s.onHand[ean][warehouse]
	})
}

// BundleAvailable returns the complete bundles across warehouses. Bundles are
// assembled per warehouse; units in different warehouses never combine.
func (s *StockSnapshot) BundleAvailable(components []catalog.BundleComponent) int {
	if len(components) == 0 {
		return 0
	}
	warehouses := make(map[string]struct{})
	for _, c := range components {
		for w := range s.onHand[c.Ean] {
			warehouses[w] = struct{}{}
		}
	}
	total := 0
	for w := range warehouses {
		total += s.BundleAvailableAt(components, w)
	}
	return total
}

// ListedPrice returns the latest listed price reported for a SKU
func (s *StockSnapshot) ListedPrice(sku string) (decimal.Decimal, bool) {
	lp, ok := s.listed[sku]
	return lp.price, ok
}

func bundleAvailable(components []catalog.BundleComponent, onHand func(valueobject.EAN) int) int {
	if len(components) == 0 {
		return 0
	}
	available := -1
	for _, c := range components {
		if c.QuantityPerAsin <= 0 {
			return 0
		}
		n := onHand(c.Ean) / c.QuantityPerAsin
		if n < 0 {
			n = 0
		}
		if available < 0 || n < available {
			available = n
		}
	}
	return available
}
