package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/catalog"
	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/reseller/backend/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	eanA valueobject.EAN = "1234567890123"
	eanB valueobject.EAN = "4006381333931"
)

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (m *MockEventPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// MockSnapshotRepository is a mock implementation of inventory.SnapshotRepository
type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) Save(ctx context.Context, snapshot inventory.AfnSnapshot, drift *inventory.DriftObservation) error {
	args := m.Called(ctx, snapshot, drift)
	return args.Error(0)
}

func (m *MockSnapshotRepository) LatestPerSku(ctx context.Context) ([]inventory.AfnSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.AfnSnapshot), args.Error(1)
}

// gatedJournal blocks Append until the gate is opened
type gatedJournal struct {
	mu      sync.Mutex
	entries []inventory.LedgerEntry
	gate    chan struct{}
	entered chan struct{}
}

func newGatedJournal() *gatedJournal {
	return &gatedJournal{gate: make(chan struct{}), entered: make(chan struct{}, 16)}
}

func (j *gatedJournal) Append(_ context.Context, entries []inventory.LedgerEntry) error {
	j.entered <- struct{}{}
	<-j.gate
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entries...)
	return nil
}

func (j *gatedJournal) LoadAll(_ context.Context) ([]inventory.LedgerEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]inventory.LedgerEntry(nil), j.entries...), nil
}

// eventIDJournal records the event ID carried by each Append context
type eventIDJournal struct {
	mu  sync.Mutex
	ids []string
}

func (j *eventIDJournal) Append(ctx context.Context, _ []inventory.LedgerEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ids = append(j.ids, logger.GetEventID(ctx))
	return nil
}

func (j *eventIDJournal) LoadAll(context.Context) ([]inventory.LedgerEntry, error) {
	return nil, nil
}

type countingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
	retries  int
	drifts   int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{outcomes: make(map[string]int)}
}

func (m *countingMetrics) RecordLedgerEvent(_ context.Context, _, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

func (m *countingMetrics) RecordLedgerRetry(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *countingMetrics) RecordDrift(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drifts++
}

func testGraph() *catalog.Graph {
	return catalog.NewGraph(catalog.GraphData{
		Eans: []catalog.Ean{{Code: eanA}, {Code: eanB}},
		Asins: []catalog.Asin{
			{Code: "ASIN-KIT"},
		},
		Skus: []catalog.Sku{{Code: "SKU-KIT", Country: "DE"}},
		EanInAsins: []catalog.EanInAsin{
			{Ean: eanA, Asin: "ASIN-KIT", QuantityPerAsin: 1},
			{Ean: eanB, Asin: "ASIN-KIT", QuantityPerAsin: 1},
		},
		AsinSkus: []catalog.AsinSku{{Asin: "ASIN-KIT", Sku: "SKU-KIT"}},
	})
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 20, InitialInterval: 5 * time.Millisecond, MaxInterval: 20 * time.Millisecond}
}

func TestLedgerService_Apply(t *testing.T) {
	ctx := context.Background()
	publisher := &MockEventPublisher{}
	metrics := newCountingMetrics()
	svc := NewLedgerService(
		inventory.NewLedger(inventory.WithResolver(testGraph())),
		zap.NewNop(),
		WithEventPublisher(publisher),
		WithMetrics(metrics),
	)

	id := uuid.New()
	res, err := svc.Apply(ctx, inventory.StockReceipt{
		EventMeta: inventory.EventMeta{EventID: id},
		Ean:       eanA, Quantity: 5, Warehouse: "FBA-DE",
	})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 1)
	assert.Len(t, publisher.GetEventsByType(inventory.EventTypeStockChanged), 1)

	res, err = svc.Apply(ctx, inventory.StockReceipt{
		EventMeta: inventory.EventMeta{EventID: id},
		Ean:       eanA, Quantity: 5, Warehouse: "FBA-DE",
	})
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Len(t, publisher.GetEventsByType(inventory.EventTypeStockChanged), 1, "duplicates publish nothing")

	_, err = svc.Apply(ctx, inventory.ShipmentOut{Ean: eanA, Quantity: 9, Warehouse: "FBA-DE"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

	assert.Equal(t, 1, metrics.outcomes["applied"])
	assert.Equal(t, 1, metrics.outcomes["duplicate"])
	assert.Equal(t, 1, metrics.outcomes["INSUFFICIENT_STOCK"])
	assert.Zero(t, metrics.retries, "business errors are not retried")
}

func TestLedgerService_ApplyCarriesEventIDToJournalAndLogs(t *testing.T) {
	journal := &eventIDJournal{}
	core, recorded := observer.New(zapcore.DebugLevel)
	ledger := inventory.NewLedger(inventory.WithResolver(testGraph()), inventory.WithJournal(journal))
	svc := NewLedgerService(ledger, zap.New(core))

	id := uuid.New()
	_, err := svc.Apply(context.Background(), inventory.StockReceipt{
		EventMeta: inventory.EventMeta{EventID: id},
		Ean:       eanA, Quantity: 5, Warehouse: "FBA-DE",
	})
	require.NoError(t, err)

	_, err = svc.Apply(context.Background(), inventory.ShipmentOut{
		EventMeta: inventory.EventMeta{EventID: id},
		Ean:       eanA, Quantity: 9, Warehouse: "FBA-DE",
	})
	require.NoError(t, err, "same event ID is a duplicate")

	other := uuid.New()
	_, err = svc.Apply(context.Background(), inventory.ShipmentOut{
		EventMeta: inventory.EventMeta{EventID: other},
		Ean:       eanA, Quantity: 9, Warehouse: "FBA-DE",
	})
	require.Error(t, err)

	journal.mu.Lock()
	assert.Equal(t, []string{id.String()}, journal.ids)
	journal.mu.Unlock()

	rejected := recorded.FilterMessage("Ledger event rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, other.String(), rejected[0].ContextMap()["event_id"])
}

func TestLedgerService_RetriesLockTimeout(t *testing.T) {
	ctx := context.Background()
	journal := newGatedJournal()
	metrics := newCountingMetrics()
	ledger := inventory.NewLedger(
		inventory.WithJournal(journal),
		inventory.WithLockWait(10*time.Millisecond),
	)
	svc := NewLedgerService(ledger, zap.NewNop(), WithMetrics(metrics), WithRetry(fastRetry()))

	first := make(chan error, 1)
	go func() {
		_, err := svc.Apply(ctx, inventory.StockReceipt{Ean: eanA, Quantity: 5, Warehouse: "FBA-DE"})
		first <- err
	}()
	<-journal.entered

	second := make(chan error, 1)
	go func() {
		_, err := svc.Apply(ctx, inventory.StockReceipt{Ean: eanA, Quantity: 1, Warehouse: "FBA-DE"})
		second <- err
	}()

	// the second event waits behind the first one's EAN lock
	time.Sleep(40 * time.Millisecond)
	close(journal.gate)

	require.NoError(t, <-first)
	require.NoError(t, <-second)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, snap.OnHand(eanA, "FBA-DE"))
	assert.Positive(t, metrics.retries)
	assert.Positive(t, ledger.LockTimeouts())
}

func TestLedgerService_RetryGivesUp(t *testing.T) {
	ctx := context.Background()
	journal := newGatedJournal()
	defer close(journal.gate)

	ledger := inventory.NewLedger(
		inventory.WithJournal(journal),
		inventory.WithLockWait(5*time.Millisecond),
	)
	svc := NewLedgerService(ledger, zap.NewNop(), WithRetry(RetryConfig{
		MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond,
	}))

	go func() {
		_, _ = svc.Apply(ctx, inventory.StockReceipt{Ean: eanA, Quantity: 5, Warehouse: "FBA-DE"})
	}()
	<-journal.entered

	_, err := svc.Apply(ctx, inventory.StockReceipt{Ean: eanA, Quantity: 1, Warehouse: "FBA-DE"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrLockTimeout))
}

func TestLedgerService_ApplyBatch(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(inventory.NewLedger(inventory.WithResolver(testGraph())), zap.NewNop(), WithParallelism(4))

	dup := uuid.New()
	events := []inventory.Event{
		inventory.StockReceipt{Ean: eanA, Quantity: 5, Warehouse: "FBA-DE"},
		inventory.StockReceipt{Ean: eanB, Quantity: 2, Warehouse: "FBA-DE"},
		inventory.ShipmentOut{Ean: eanA, Quantity: 3, Warehouse: "FBA-DE"},
		inventory.ShipmentOut{Ean: eanA, Quantity: 3, Warehouse: "FBA-DE"},
		inventory.StockReceipt{EventMeta: inventory.EventMeta{EventID: dup}, Ean: eanB, Quantity: 1, Warehouse: "FBA-DE"},
		inventory.StockReceipt{EventMeta: inventory.EventMeta{EventID: dup}, Ean: eanB, Quantity: 1, Warehouse: "FBA-DE"},
		inventory.StockReceipt{Ean: "bad", Quantity: 1, Warehouse: "FBA-DE"},
	}

	report := svc.ApplyBatch(ctx, events)
	require.Len(t, report.Results, len(events))
	for i, r := range report.Results {
		assert.Equal(t, i, r.Index)
	}

	assert.NoError(t, report.Results[2].Err)
	assert.True(t, errors.Is(report.Results[3].Err, shared.ErrInsufficientStock), "order within an EAN is kept")
	assert.Equal(t, "INSUFFICIENT_STOCK", report.Results[3].Code)
	assert.True(t, report.Results[5].Result.Duplicate)
	assert.True(t, errors.Is(report.Results[6].Err, shared.ErrInvalidInput))

	assert.Equal(t, 4, report.Applied)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 3, report.Groups)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.OnHand(eanA, "FBA-DE"))
	assert.Equal(t, 3, snap.OnHand(eanB, "FBA-DE"))
}

func TestLedgerService_ApplyBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewLedgerService(inventory.NewLedger(), zap.NewNop())

	report := svc.ApplyBatch(ctx, []inventory.Event{
		inventory.StockReceipt{Ean: eanA, Quantity: 1, Warehouse: "W"},
	})
	assert.Equal(t, 1, report.Failed)
	assert.True(t, errors.Is(report.Results[0].Err, context.Canceled))
}

func TestLedgerService_PartitionJoinsBundles(t *testing.T) {
	svc := NewLedgerService(inventory.NewLedger(inventory.WithResolver(testGraph())), zap.NewNop())
	groups := svc.partition([]inventory.Event{
		inventory.StockReceipt{Ean: eanA, Quantity: 1, Warehouse: "W"},
		inventory.StockReceipt{Ean: eanB, Quantity: 1, Warehouse: "W"},
		inventory.ShipmentOut{Asin: "ASIN-KIT", Quantity: 1, Warehouse: "W"},
	})
	assert.Equal(t, [][]int{{0, 1, 2}}, groups)
}

func TestLedgerService_SnapshotDriftAndRestore(t *testing.T) {
	ctx := context.Background()
	journal := newGatedJournal()
	close(journal.gate)
	repo := new(MockSnapshotRepository)
	publisher := &MockEventPublisher{}
	metrics := newCountingMetrics()

	svc := NewLedgerService(
		inventory.NewLedger(inventory.WithResolver(testGraph()), inventory.WithJournal(journal)),
		zap.NewNop(),
		WithSnapshotRepository(repo),
		WithEventPublisher(publisher),
		WithMetrics(metrics),
	)

	_, err := svc.Apply(ctx, inventory.StockReceipt{Ean: eanA, Quantity: 4, Warehouse: "FBA-DE"})
	require.NoError(t, err)
	_, err = svc.Apply(ctx, inventory.StockReceipt{Ean: eanB, Quantity: 1, Warehouse: "FBA-DE"})
	require.NoError(t, err)

	price := decimal.RequireFromString("12.50")
	snap := inventory.AfnSnapshot{
		Sku: "SKU-KIT", Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Warehouse: "FBA-DE", FulfillableQuantity: 4, ListedPrice: &price,
	}
	repo.On("Save", mock.Anything, snap, mock.MatchedBy(func(d *inventory.DriftObservation) bool {
		return d != nil && d.Computed == 1 && d.Reported == 4
	})).Return(nil).Once()

	res, err := svc.Apply(ctx, snap)
	require.NoError(t, err)
	require.NotNil(t, res.Drift)
	assert.Len(t, publisher.GetEventsByType(inventory.EventTypeDriftDetected), 1)
	assert.Equal(t, 1, metrics.drifts)
	repo.AssertExpectations(t)

	restoredRepo := new(MockSnapshotRepository)
	restoredRepo.On("LatestPerSku", mock.Anything).Return([]inventory.AfnSnapshot{snap}, nil)
	restored := NewLedgerService(
		inventory.NewLedger(inventory.WithResolver(testGraph())),
		zap.NewNop(),
		WithJournal(journal),
		WithSnapshotRepository(restoredRepo),
	)
	require.NoError(t, restored.Restore(ctx))

	got, err := restored.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, got.OnHand(eanA, "FBA-DE"))
	assert.Equal(t, 1, got.OnHand(eanB, "FBA-DE"))
	listed, ok := got.ListedPrice("SKU-KIT")
	require.True(t, ok)
	assert.True(t, listed.Equal(price))
}

type recordingNotifier struct {
	alerts []DriftAlert
}

func (n *recordingNotifier) SendDriftAlert(_ context.Context, alert DriftAlert) error {
	n.alerts = append(n.alerts, alert)
	return nil
}

func TestDriftDetectedHandler(t *testing.T) {
	notifier := &recordingNotifier{}
	handler := NewDriftDetectedHandler(zap.NewNop()).WithNotifier(notifier)
	assert.Equal(t, []string{inventory.EventTypeDriftDetected}, handler.EventTypes())

	event := inventory.NewDriftDetectedEvent(uuid.New(), inventory.DriftObservation{
		Sku: "SKU-KIT", Warehouse: "FBA-DE", Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Reported: 1, Computed: 3, Difference: -2,
	})
	require.NoError(t, handler.Handle(context.Background(), event))
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "under_reported", notifier.alerts[0].AlertType)
	assert.Equal(t, "2024-03-01", notifier.alerts[0].Date)

	other := inventory.NewStockChangedEvent(inventory.LedgerEntry{Ean: eanA})
	assert.Error(t, handler.Handle(context.Background(), other))
}
