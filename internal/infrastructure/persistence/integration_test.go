//go:build integration

package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/reseller/backend/internal/domain/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
)

func newPostgresDatabase(t *testing.T) *Database {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("pricing_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(postgres.Open(dsn), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.AutoMigrate(ctx))
	return db
}

func TestPostgres_EndToEnd(t *testing.T) {
	db := newPostgresDatabase(t)
	ctx := context.Background()

	refs := NewGormReferenceRepository(db.DB)
	seedReference(t, refs)
	data, err := refs.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, data.Countries, 2)

	cat := NewGormCatalogRepository(db.DB)
	seedCatalog(t, cat)
	graphData, err := cat.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, catalog.NewGraph(graphData).Problems())

	offers := NewGormOfferRepository(db.DB)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, offers.Save(ctx, pricedOffer("SKU-BUNDLE", "13.40", t0, true)))
	require.NoError(t, offers.Save(ctx, pricedOffer("SKU-BUNDLE", "9.00", t0.Add(-time.Minute), false)))

	got, err := offers.FindLatest(ctx, "SKU-BUNDLE", "DE")
	require.NoError(t, err)
	assert.True(t, got.MinimumGrossPrice.Equal(dec("13.40")))
	assert.True(t, got.BelowMinimum)

	snapshots := NewGormSnapshotRepository(db.DB)
	require.NoError(t, snapshots.Save(ctx, snapshot("SKU-BUNDLE", "DE-FRA1", 1, 4, "12.00"), nil))
	require.NoError(t, snapshots.Save(ctx, snapshot("SKU-BUNDLE", "DE-FRA1", 2, 3, "12.50"), nil))
	latest, err := snapshots.LatestPerSku(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, 3, latest[0].FulfillableQuantity)
}
