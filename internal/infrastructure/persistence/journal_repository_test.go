package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func journalEntry(seq int64, kind inventory.EventKind, delta, balance int) inventory.LedgerEntry {
	return inventory.LedgerEntry{
		Sequence:     seq,
		EventID:      uuid.New(),
		Kind:         kind,
		Ean:          testEanA,
		Warehouse:    "DE-FRA1",
		Delta:        delta,
		BalanceAfter: balance,
		OccurredAt:   time.Date(2024, 3, 1, 10, int(seq), 0, 0, time.UTC),
	}
}

func TestGormJournal_AppendAndLoad(t *testing.T) {
	db := newTestDatabase(t)
	journal := NewGormJournal(db.DB)
	ctx := context.Background()

	require.NoError(t, journal.Append(ctx, nil))
	require.NoError(t, journal.Append(ctx, []inventory.LedgerEntry{
		journalEntry(2, inventory.KindShipmentOut, -3, 7),
		journalEntry(1, inventory.KindStockReceipt, 10, 10),
	}))
	order := journalEntry(3, inventory.KindShipmentOut, -1, 6)
	order.OrderID = "302-1234567-1234567"
	require.NoError(t, journal.Append(ctx, []inventory.LedgerEntry{order}))

	entries, err := journal.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Sequence)
	}
	assert.Equal(t, inventory.KindStockReceipt, entries[0].Kind)
	assert.Equal(t, -3, entries[1].Delta)
	assert.Equal(t, "302-1234567-1234567", entries[2].OrderID)
	assert.Equal(t, order.EventID, entries[2].EventID)
	assert.Equal(t, 6, entries[2].BalanceAfter)
}

func TestGormJournal_DuplicateSequenceIsAtomic(t *testing.T) {
	db := newTestDatabase(t)
	journal := NewGormJournal(db.DB)
	ctx := context.Background()

	require.NoError(t, journal.Append(ctx, []inventory.LedgerEntry{journalEntry(1, inventory.KindStockReceipt, 5, 5)}))

	err := journal.Append(ctx, []inventory.LedgerEntry{
		journalEntry(2, inventory.KindStockReceipt, 1, 6),
		journalEntry(1, inventory.KindStockReceipt, 1, 7),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append journal entries")

	entries, err := journal.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed batch leaves no partial rows")
}
