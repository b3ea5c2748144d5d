// Package inventory keeps per-warehouse stock of every EAN as the running sum
// of an append-only journal, serializing mutations per EAN.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/catalog"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

const snapshotAttempts = 16

// DefaultDedupRetention is how many applied event IDs a ledger remembers.
// It covers redeliveries from the ingest queue and replays of recent
// journal files.
const DefaultDedupRetention = 1_000_000

// BundleResolver expands ASINs and SKUs into their EAN components.
// *catalog.Graph implements it.
type BundleResolver interface {
	ResolveBundle(asin string) ([]catalog.BundleComponent, error)
	ResolveSkuBundle(sku string) (string, []catalog.BundleComponent, error)
}

// LedgerResult describes what one Apply did
type LedgerResult struct {
	EventID   uuid.UUID
	Kind      EventKind
	Duplicate bool
	Entries   []LedgerEntry
	Drift     *DriftObservation
	Events    []shared.DomainEvent
}

// LedgerOption configures a Ledger
type LedgerOption func(*Ledger)

// WithJournal persists entries before they are applied
func WithJournal(j Journal) LedgerOption {
	return func(l *Ledger) {
		l.journal = j
	}
}

// WithResolver sets the identity graph used for ASIN shipments and snapshots
func WithResolver(r BundleResolver) LedgerOption {
	return func(l *Ledger) {
		l.SetResolver(r)
	}
}

// WithLockWait bounds how long Apply waits for EAN locks
func WithLockWait(d time.Duration) LedgerOption {
	return func(l *Ledger) {
		l.locks = NewStockLocker(d)
	}
}

// WithDriftTolerance sets how many units a snapshot may differ before drift is reported
func WithDriftTolerance(units int) LedgerOption {
	return func(l *Ledger) {
		if units >= 0 {
			l.tolerance = units
		}
	}
}

// WithDedupRetention bounds how many applied event IDs are remembered for
// deduplication. Once the bound is reached the oldest ID is forgotten, and a
// redelivery of that event is applied again. n <= 0 remembers every ID.
func WithDedupRetention(n int) LedgerOption {
	return func(l *Ledger) {
		l.retention = n
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = now
	}
}

type resolverRef struct {
	r BundleResolver
}

type removalKey struct {
	orderID string
	ean     valueobject.EAN
}

type removalProgress struct {
	shipped  int
	received int
}

type positionKey struct {
	ean       valueobject.EAN
	warehouse string
}

// movement is one planned change before balances are known
type movement struct {
	kind      EventKind
	ean       valueobject.EAN
	warehouse string
	orderID   string
	delta     int
}

// Ledger is the authoritative stock counter per (EAN, warehouse).
//
// Events touching disjoint EANs run in parallel; events sharing an EAN are
// serialized by that EAN's lock. Each event is all-or-nothing.
type Ledger struct {
	locks     *StockLocker
	journal   Journal
	resolver  atomic.Pointer[resolverRef]
	tolerance int
	now       func() time.Time
	sequence  atomic.Int64

	// mu guards the maps below. Position and progress values are only
	// changed while the owning EAN is locked.
	mu        sync.Mutex
	positions map[valueobject.EAN]*StockPosition
	removals  map[removalKey]*removalProgress
	listed    map[string]listedPrice
	// applied maps event IDs to false while in flight and true once
	// applied. Applied IDs are evicted oldest first beyond retention.
	applied   map[uuid.UUID]bool
	order     []uuid.UUID
	retention int
}

// NewLedger creates an empty ledger
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		locks:     NewStockLocker(DefaultLockWait),
		now:       time.Now,
		positions: make(map[valueobject.EAN]*StockPosition),
		removals:  make(map[removalKey]*removalProgress),
		listed:    make(map[string]listedPrice),
		applied:   make(map[uuid.UUID]bool),
		retention: DefaultDedupRetention,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetResolver swaps the identity graph, e.g. after a catalog reload
func (l *Ledger) SetResolver(r BundleResolver) {
	if r == nil {
		l.resolver.Store(nil)
		return
	}
	l.resolver.Store(&resolverRef{r: r})
}

// LockTimeouts returns how many lock acquisitions timed out
func (l *Ledger) LockTimeouts() int64 {
	return l.locks.Timeouts()
}

func (l *Ledger) currentResolver() (BundleResolver, error) {
	ref := l.resolver.Load()
	if ref == nil {
		return nil, fmt.Errorf("%w: ledger has no identity graph", shared.ErrInvalidInput)
	}
	return ref.r, nil
}

// Apply validates and applies one event.
//
// Stock never goes negative: an event that would overdraw any (EAN,
// warehouse) fails with ErrInsufficientStock and changes nothing. A removal
// receipt beyond what its order shipped fails with ErrOverReceipt. An event
// whose EventID was already applied returns Duplicate without changes.
// AfnSnapshot only reconciles and never changes stock.
func (l *Ledger) Apply(ctx context.Context, ev Event) (*LedgerResult, error) {
	if ev == nil {
		return nil, fmt.Errorf("%w: nil event", shared.ErrInvalidInput)
	}
	if err := ev.validate(); err != nil {
		return nil, err
	}

	meta := ev.Meta()
	dedup := meta.EventID != uuid.Nil
	if !dedup {
		meta.EventID = uuid.New()
	}
	if meta.OccurredAt.IsZero() {
		meta.OccurredAt = l.now()
	}

	if dedup {
		duplicate, err := l.reserve(meta.EventID)
		if err != nil {
			return nil, err
		}
		if duplicate {
			return &LedgerResult{EventID: meta.EventID, Kind: ev.Kind(), Duplicate: true}, nil
		}
	}

	var (
		result *LedgerResult
		err    error
	)
	if snap, ok := ev.(AfnSnapshot); ok {
		result, err = l.reconcile(ctx, meta, snap)
	} else {
		result, err = l.move(ctx, meta, ev)
	}

	if dedup {
		l.settle(meta.EventID, err == nil)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// reserve marks an event ID as in flight. It reports true for an ID that was
// already applied and fails for one that is being applied right now.
func (l *Ledger) reserve(id uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	done, seen := l.applied[id]
	if !seen {
		l.applied[id] = false
		return false, nil
	}
	if done {
		return true, nil
	}
	return false, fmt.Errorf("%w: event %s is being applied", shared.ErrConcurrencyConflict, id)
}

func (l *Ledger) settle(id uuid.UUID, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ok {
		l.rememberLocked(id)
	} else {
		delete(l.applied, id)
	}
}

// rememberLocked records id as applied and evicts the oldest applied IDs
// beyond the retention bound
func (l *Ledger) rememberLocked(id uuid.UUID) {
	if l.applied[id] {
		return
	}
	l.applied[id] = true
	if l.retention <= 0 {
		return
	}
	l.order = append(l.order, id)
	for len(l.order) > l.retention {
		delete(l.applied, l.order[0])
		l.order = l.order[1:]
	}
}

func (l *Ledger) move(ctx context.Context, meta EventMeta, ev Event) (*LedgerResult, error) {
	moves, err := l.plan(ev)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(moves))
	for _, m := range moves {
		keys = append(keys, m.ean.String())
	}
	unlock, err := l.locks.Lock(ctx, keys)
	if err != nil {
		return nil, err
	}
	defer unlock()

	entries, err := l.entriesFor(meta, moves)
	if err != nil {
		return nil, err
	}

	if l.journal != nil {
		if err := l.journal.Append(ctx, entries); err != nil {
			return nil, fmt.Errorf("append journal for event %s: %w", meta.EventID, err)
		}
	}

	events, err := l.commit(entries)
	if err != nil {
		return nil, err
	}
	return &LedgerResult{
		EventID: meta.EventID,
		Kind:    ev.Kind(),
		Entries: entries,
		Events:  events,
	}, nil
}

// Keys returns the EANs an event touches, sorted. Two events can run in
// parallel only if their keys are disjoint.
func (l *Ledger) Keys(ev Event) ([]string, error) {
	if ev == nil {
		return nil, fmt.Errorf("%w: nil event", shared.ErrInvalidInput)
	}
	if err := ev.validate(); err != nil {
		return nil, err
	}
	if snap, ok := ev.(AfnSnapshot); ok {
		resolver, err := l.currentResolver()
		if err != nil {
			return nil, err
		}
		_, components, err := resolver.ResolveSkuBundle(snap.Sku)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(components))
		for _, c := range components {
			keys = append(keys, c.Ean.String())
		}
		return sortedKeys(keys), nil
	}

	moves, err := l.plan(ev)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(moves))
	for _, m := range moves {
		keys = append(keys, m.ean.String())
	}
	return sortedKeys(keys), nil
}

// plan expands an event into signed per-EAN movements
func (l *Ledger) plan(ev Event) ([]movement, error) {
	switch e := ev.(type) {
	case StockReceipt:
		return []movement{{kind: KindStockReceipt, ean: e.Ean, warehouse: e.Warehouse, delta: e.Quantity}}, nil

	case ShipmentOut:
		components := []catalog.BundleComponent{{Ean: e.Ean, QuantityPerAsin: 1}}
		if e.Asin != "" {
			resolver, err := l.currentResolver()
			if err != nil {
				return nil, err
			}
			components, err = resolver.ResolveBundle(e.Asin)
			if err != nil {
				return nil, err
			}
		}
		moves := make([]movement, 0, 2*len(components))
		for _, c := range components {
			if c.QuantityPerAsin <= 0 || e.Quantity > MaxQuantity/c.QuantityPerAsin {
				return nil, fmt.Errorf("%w: %d x %s of %d units each exceeds %d",
					shared.ErrInvalidInput, e.Quantity, c.Ean, c.QuantityPerAsin, MaxQuantity)
			}
			units := e.Quantity * c.QuantityPerAsin
			moves = append(moves, movement{kind: KindShipmentOut, ean: c.Ean, warehouse: e.Warehouse, delta: -units})
			if e.ToWarehouse != "" {
				moves = append(moves, movement{kind: KindTransferIn, ean: c.Ean, warehouse: e.ToWarehouse, delta: units})
			}
		}
		return moves, nil

	case RemovalShipment:
		return []movement{{kind: KindRemovalShipment, ean: e.Ean, warehouse: e.Warehouse, orderID: e.OrderID, delta: -e.Quantity}}, nil

	case RemovalReceipt:
		return []movement{{kind: KindRemovalReceipt, ean: e.Ean, warehouse: e.Warehouse, orderID: e.OrderID, delta: e.Quantity}}, nil

	case DonationOut:
		return []movement{{kind: KindDonation, ean: e.Ean, warehouse: e.Donation.Warehouse, orderID: e.Donation.ID, delta: -e.Quantity}}, nil
	}
	return nil, fmt.Errorf("%w: unsupported event %T", shared.ErrInvalidInput, ev)
}

// entriesFor turns movements into journal entries, checking every balance
// and removal order limit. Callers hold the locks of all involved EANs.
func (l *Ledger) entriesFor(meta EventMeta, moves []movement) ([]LedgerEntry, error) {
	balances := make(map[positionKey]int, len(moves))
	removals := make(map[removalKey]removalProgress)
	entries := make([]LedgerEntry, 0, len(moves))

	for _, m := range moves {
		key := positionKey{ean: m.ean, warehouse: m.warehouse}
		current, seen := balances[key]
		if !seen {
			current = l.onHand(m.ean, m.warehouse)
		}
		after := current + m.delta
		if after < 0 {
			return nil, fmt.Errorf("%w: %s at %s has %d, %s needs %d",
				shared.ErrInsufficientStock, m.ean, m.warehouse, current, m.kind, -m.delta)
		}
		balances[key] = after

		switch m.kind {
		case KindRemovalShipment, KindRemovalReceipt:
			rk := removalKey{orderID: m.orderID, ean: m.ean}
			pending := removals[rk]
			if m.kind == KindRemovalShipment {
				pending.shipped -= m.delta
			} else {
				pending.received += m.delta
			}
			removals[rk] = pending

			committed := l.removal(rk)
			shipped := committed.shipped + pending.shipped
			received := committed.received + pending.received
			if received > shipped {
				return nil, fmt.Errorf("%w: order %s received %d of %s, only %d shipped",
					shared.ErrOverReceipt, m.orderID, received, m.ean, shipped)
			}
		}

		entries = append(entries, LedgerEntry{
			EventID:      meta.EventID,
			Kind:         m.kind,
			Ean:          m.ean,
			Warehouse:    m.warehouse,
			OrderID:      m.orderID,
			Delta:        m.delta,
			BalanceAfter: after,
			OccurredAt:   meta.OccurredAt,
		})
	}

	for i := range entries {
		entries[i].Sequence = l.sequence.Add(1)
	}
	return entries, nil
}

// commit applies journaled entries to the in-memory positions
func (l *Ledger) commit(entries []LedgerEntry) ([]shared.DomainEvent, error) {
	events := make([]shared.DomainEvent, 0, len(entries))
	for _, entry := range entries {
		pos := l.position(entry.Ean)
		if err := pos.Apply(entry); err != nil {
			return events, err
		}
		events = append(events, pos.GetDomainEvents()...)
		pos.ClearDomainEvents()
		l.trackRemoval(entry)
	}
	return events, nil
}

func (l *Ledger) reconcile(ctx context.Context, meta EventMeta, snap AfnSnapshot) (*LedgerResult, error) {
	resolver, err := l.currentResolver()
	if err != nil {
		return nil, err
	}
	_, components, err := resolver.ResolveSkuBundle(snap.Sku)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(components))
	for _, c := range components {
		keys = append(keys, c.Ean.String())
	}
	unlock, err := l.locks.Lock(ctx, keys)
	if err != nil {
		return nil, err
	}
	defer unlock()

	computed := bundleAvailable(components, func(ean valueobject.EAN) int {
		return l.onHand(ean, snap.Warehouse)
	})

	result := &LedgerResult{EventID: meta.EventID, Kind: KindAfnSnapshot}
	diff := snap.FulfillableQuantity - computed
	if abs(diff) > l.tolerance {
		drift := DriftObservation{
			Sku:        snap.Sku,
			Warehouse:  snap.Warehouse,
			Date:       snap.Date,
			Reported:   snap.FulfillableQuantity,
			Computed:   computed,
			Difference: diff,
			Tolerance:  l.tolerance,
		}
		result.Drift = &drift
		result.Events = []shared.DomainEvent{NewDriftDetectedEvent(meta.EventID, drift)}
	}

	if snap.ListedPrice != nil {
		date := snap.Date
		if date.IsZero() {
			date = meta.OccurredAt
		}
		l.recordListedPrice(snap.Sku, *snap.ListedPrice, date)
	}
	return result, nil
}

// RestoreListedPrices loads the listed prices of previously stored snapshots
func (l *Ledger) RestoreListedPrices(snaps []AfnSnapshot) {
	for _, s := range snaps {
		if s.ListedPrice != nil {
			l.recordListedPrice(s.Sku, *s.ListedPrice, s.Date)
		}
	}
}

func (l *Ledger) recordListedPrice(sku string, price decimal.Decimal, date time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.listed[sku]; ok && date.Before(cur.date) {
		return
	}
	l.listed[sku] = listedPrice{price: price, date: date}
}

// Snapshot returns a consistent copy of all stock. It locks every known EAN
// in sorted order; if new EANs appear meanwhile it starts over.
func (l *Ledger) Snapshot(ctx context.Context) (*StockSnapshot, error) {
	for attempt := 0; attempt < snapshotAttempts; attempt++ {
		keys := l.positionKeys()
		unlock, err := l.locks.Lock(ctx, keys)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		if len(l.positions) != len(keys) {
			l.mu.Unlock()
			unlock()
			continue
		}
		snap := &StockSnapshot{
			onHand:  make(map[valueobject.EAN]map[string]int, len(l.positions)),
			listed:  make(map[string]listedPrice, len(l.listed)),
			takenAt: l.now(),
		}
		for ean, pos := range l.positions {
			snap.onHand[ean] = pos.copyOnHand()
		}
		for sku, lp := range l.listed {
			snap.listed[sku] = lp
		}
		l.mu.Unlock()
		unlock()
		return snap, nil
	}
	return nil, fmt.Errorf("%w: stock kept changing shape during snapshot", shared.ErrLockTimeout)
}

// RemovalProgress returns the units of an EAN shipped and received under a removal order
func (l *Ledger) RemovalProgress(orderID string, ean valueobject.EAN) (shipped, received int) {
	p := l.removal(removalKey{orderID: orderID, ean: ean})
	return p.shipped, p.received
}

// Replay rebuilds the ledger from journal entries. It must run on an empty
// ledger before any event is applied.
func (l *Ledger) Replay(entries []LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.positions) > 0 || len(l.applied) > 0 {
		return fmt.Errorf("%w: replay into a ledger that already holds stock", shared.ErrInvalidInput)
	}

	sorted := make([]LedgerEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })

	var last int64
	for _, entry := range sorted {
		if !entry.Kind.IsValid() || entry.Kind == KindAfnSnapshot {
			return fmt.Errorf("%w: journal entry %d has kind %q", shared.ErrInvalidInput, entry.Sequence, entry.Kind)
		}
		pos, ok := l.positions[entry.Ean]
		if !ok {
			pos = NewStockPosition(entry.Ean)
			l.positions[entry.Ean] = pos
		}
		if err := pos.Apply(entry); err != nil {
			return fmt.Errorf("replay entry %d: %w", entry.Sequence, err)
		}
		pos.ClearDomainEvents()
		l.trackRemovalLocked(entry)
		l.rememberLocked(entry.EventID)
		if entry.Sequence > last {
			last = entry.Sequence
		}
	}
	l.sequence.Store(last)
	return nil
}

func (l *Ledger) onHand(ean valueobject.EAN, warehouse string) int {
	l.mu.Lock()
	pos, ok := l.positions[ean]
	l.mu.Unlock()
	if !ok {
		return 0
	}
	return pos.OnHand(warehouse)
}

func (l *Ledger) position(ean valueobject.EAN) *StockPosition {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[ean]
	if !ok {
		pos = NewStockPosition(ean)
		l.positions[ean] = pos
	}
	return pos
}

func (l *Ledger) positionKeys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make([]string, 0, len(l.positions))
	for ean := range l.positions {
		keys = append(keys, ean.String())
	}
	return keys
}

func (l *Ledger) removal(key removalKey) removalProgress {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.removals[key]; ok {
		return *p
	}
	return removalProgress{}
}

func (l *Ledger) trackRemoval(entry LedgerEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trackRemovalLocked(entry)
}

func (l *Ledger) trackRemovalLocked(entry LedgerEntry) {
	switch entry.Kind {
	case KindRemovalShipment, KindRemovalReceipt:
	default:
		return
	}
	key := removalKey{orderID: entry.OrderID, ean: entry.Ean}
	p, ok := l.removals[key]
	if !ok {
		p = &removalProgress{}
		l.removals[key] = p
	}
	if entry.Kind == KindRemovalShipment {
		p.shipped += entry.Quantity()
	} else {
		p.received += entry.Quantity()
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
