package inventory

import (
	"fmt"
	"sort"

	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
)

// StockPosition is the stock of one EAN across warehouses.
// It is the aggregate root for ledger mutations; all of its changes happen
// while the EAN's lock is held.
type StockPosition struct {
	shared.BaseAggregateRoot
	Ean    valueobject.EAN
	onHand map[string]int
}

// NewStockPosition creates an empty position for an EAN
func NewStockPosition(ean valueobject.EAN) *StockPosition {
	return &StockPosition{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Ean:               ean,
		onHand:            make(map[string]int),
	}
}

// OnHand returns the units at a warehouse
func (p *StockPosition) OnHand(warehouse string) int {
	return p.onHand[warehouse]
}

// Total returns the units across all warehouses
func (p *StockPosition) Total() int {
	total := 0
	for _, q := range p.onHand {
		total += q
	}
	return total
}

// Warehouses returns the warehouses that ever held the EAN, sorted
func (p *StockPosition) Warehouses() []string {
	out := make([]string, 0, len(p.onHand))
	for w := range p.onHand {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Apply commits a journal entry. The entry's balance must agree with the
// position, otherwise the position is left unchanged.
func (p *StockPosition) Apply(entry LedgerEntry) error {
	if entry.Ean != p.Ean {
		return fmt.Errorf("%w: entry for %s applied to position %s", shared.ErrInvalidInput, entry.Ean, p.Ean)
	}
	after := p.onHand[entry.Warehouse] + entry.Delta
	if after < 0 {
		return fmt.Errorf("%w: %s at %s has %d, needs %d",
			shared.ErrInsufficientStock, p.Ean, entry.Warehouse, p.onHand[entry.Warehouse], -entry.Delta)
	}
	if after != entry.BalanceAfter {
		return fmt.Errorf("%w: entry %d expects balance %d for %s at %s, position gives %d",
			shared.ErrConcurrencyConflict, entry.Sequence, entry.BalanceAfter, p.Ean, entry.Warehouse, after)
	}

	p.onHand[entry.Warehouse] = after
	p.IncrementVersion()
	p.AddDomainEvent(NewStockChangedEvent(entry))
	return nil
}

func (p *StockPosition) copyOnHand() map[string]int {
	out := make(map[string]int, len(p.onHand))
	for w, q := range p.onHand {
		out[w] = q
	}
	return out
}
