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

func snapshot(sku, warehouse string, day, qty int, price string) inventory.AfnSnapshot {
	s := inventory.AfnSnapshot{
		EventMeta:           inventory.EventMeta{EventID: uuid.New()},
		Sku:                 sku,
		Warehouse:           warehouse,
		Date:                time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		FulfillableQuantity: qty,
	}
	if price != "" {
		p := dec(price)
		s.ListedPrice = &p
	}
	return s
}

func TestGormSnapshotRepository_LatestPerSku(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormSnapshotRepository(db.DB)
	ctx := context.Background()

	for _, s := range []inventory.AfnSnapshot{
		snapshot("SKU-A", "DE-FRA1", 2, 8, "19.99"),
		snapshot("SKU-A", "DE-FRA1", 1, 9, "18.99"),
		snapshot("SKU-A", "DE-FRA1", 2, 7, "21.50"),
		snapshot("SKU-A", "UK-LTN4", 1, 3, ""),
		snapshot("SKU-B", "DE-FRA1", 5, 0, "9.00"),
	} {
		require.NoError(t, repo.Save(ctx, s, nil))
	}

	latest, err := repo.LatestPerSku(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 3)

	assert.Equal(t, "SKU-A", latest[0].Sku)
	assert.Equal(t, "DE-FRA1", latest[0].Warehouse)
	assert.Equal(t, 7, latest[0].FulfillableQuantity, "same-day tie goes to the row stored last")
	require.NotNil(t, latest[0].ListedPrice)
	assert.True(t, latest[0].ListedPrice.Equal(dec("21.50")))

	assert.Equal(t, "UK-LTN4", latest[1].Warehouse)
	assert.Nil(t, latest[1].ListedPrice)

	assert.Equal(t, "SKU-B", latest[2].Sku)
	assert.Equal(t, 0, latest[2].FulfillableQuantity)
}

func TestGormSnapshotRepository_RecentDrift(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormSnapshotRepository(db.DB)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, snapshot("SKU-A", "DE-FRA1", 1, 10, ""), nil))
	older := snapshot("SKU-A", "DE-FRA1", 2, 4, "")
	require.NoError(t, repo.Save(ctx, older, &inventory.DriftObservation{
		Sku: "SKU-A", Warehouse: "DE-FRA1", Date: older.Date, Reported: 4, Computed: 10, Difference: -6, Tolerance: 2,
	}))
	newer := snapshot("SKU-B", "DE-FRA1", 3, 12, "")
	require.NoError(t, repo.Save(ctx, newer, &inventory.DriftObservation{
		Sku: "SKU-B", Warehouse: "DE-FRA1", Date: newer.Date, Reported: 12, Computed: 5, Difference: 7, Tolerance: 2,
	}))

	drift, err := repo.RecentDrift(ctx, 10)
	require.NoError(t, err)
	require.Len(t, drift, 2)
	assert.Equal(t, "SKU-B", drift[0].Sku)
	assert.Equal(t, 7, drift[0].Difference)
	assert.Equal(t, 5, drift[0].Computed)
	assert.Equal(t, -6, drift[1].Difference)
	assert.Equal(t, 2, drift[1].Tolerance)

	drift, err = repo.RecentDrift(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, drift, 1)
}
