package pricing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// StockChangedHandler marks EANs whose stock moved so their SKUs can be
// repriced in one batch instead of once per ledger entry
type StockChangedHandler struct {
	logger *zap.Logger
	mu     sync.Mutex
	dirty  map[valueobject.EAN]struct{}
}

// NewStockChangedHandler creates a new handler for stock change events
func NewStockChangedHandler(logger *zap.Logger) *StockChangedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockChangedHandler{
		logger: logger,
		dirty:  make(map[valueobject.EAN]struct{}),
	}
}

// EventTypes returns the event types this handler is interested in
func (h *StockChangedHandler) EventTypes() []string {
	return []string{inventory.EventTypeStockChanged}
}

// Handle records the EAN of a StockChangedEvent
func (h *StockChangedHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*inventory.StockChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			inventory.EventTypeStockChanged, event.EventType())
	}
	h.mu.Lock()
	h.dirty[changed.Ean] = struct{}{}
	h.mu.Unlock()
	return nil
}

// Drain returns the marked EANs in sorted order and clears the set
func (h *StockChangedHandler) Drain() []valueobject.EAN {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]valueobject.EAN, 0, len(h.dirty))
	for ean := range h.dirty {
		out = append(out, ean)
	}
	h.dirty = make(map[valueobject.EAN]struct{})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Restore marks EANs again after a failed repricing
func (h *StockChangedHandler) Restore(eans []valueobject.EAN) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ean := range eans {
		h.dirty[ean] = struct{}{}
	}
}

var _ shared.EventHandler = (*StockChangedHandler)(nil)

// RepriceDirty reprices the SKUs of every EAN marked since the last call.
// On failure the EANs stay marked.
func (s *RepricingService) RepriceDirty(ctx context.Context, h *StockChangedHandler) (*SweepReport, error) {
	eans := h.Drain()
	if len(eans) == 0 {
		return &SweepReport{}, nil
	}
	report, err := s.RepriceAffected(ctx, eans, time.Now())
	if err != nil {
		h.Restore(eans)
		return report, err
	}
	s.logger.Debug("Repriced SKUs after stock changes",
		zap.Int("eans", len(eans)),
		zap.Int("priced", report.Priced),
		zap.Int("failed", len(report.Failures)),
	)
	return report, nil
}
