package catalog

import (
	"errors"
	"testing"
	"time"

	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	eanA valueobject.EAN = "1234567890123"
	eanB valueobject.EAN = "4006381333931"
)

func strPtr(s string) *string { return &s }

func testGraphData() GraphData {
	return GraphData{
		Brands: []Brand{{ID: "b1", Name: "Acme"}},
		Eans: []Ean{
			{Code: eanA, ProductName: "Widget", BrandID: strPtr("b1"), TaxCategory: "toys"},
			{Code: eanB, ProductName: "Gadget", TaxCategory: "toys"},
		},
		Asins: []Asin{
			{Code: "B000SINGLE", ReferralFeeCategory: "toys"},
			{Code: "B000BUNDLE", ReferralFeeCategory: "toys"},
		},
		Skus: []Sku{
			{Code: "SKU-DE-1", Country: "DE"},
			{Code: "SKU-DE-2", Country: "DE"},
			{Code: "SKU-UK-2", Country: "UK"},
		},
		EanInAsins: []EanInAsin{
			{Ean: eanA, Asin: "B000SINGLE", QuantityPerAsin: 1},
			{Ean: eanB, Asin: "B000BUNDLE", QuantityPerAsin: 2},
			{Ean: eanA, Asin: "B000BUNDLE", QuantityPerAsin: 3},
		},
		AsinSkus: []AsinSku{
			{Asin: "B000SINGLE", Sku: "SKU-DE-1"},
			{Asin: "B000BUNDLE", Sku: "SKU-DE-2"},
			{Asin: "B000BUNDLE", Sku: "SKU-UK-2"},
		},
		Costs: []EanCost{
			{Ean: eanA, EffectiveDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), UnitCost: decimal.RequireFromString("9.50")},
			{Ean: eanA, EffectiveDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), UnitCost: decimal.RequireFromString("10.00")},
			{Ean: eanB, EffectiveDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), UnitCost: decimal.RequireFromString("4.00"), Currency: valueobject.GBP},
		},
	}
}

func TestGraph_ResolveSku(t *testing.T) {
	g := NewGraph(testGraphData())
	require.Empty(t, g.Problems())

	asin, err := g.ResolveSku("SKU-DE-1")
	require.NoError(t, err)
	assert.Equal(t, "B000SINGLE", asin)

	_, err = g.ResolveSku("SKU-NOPE")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestGraph_ResolveBundle(t *testing.T) {
	g := NewGraph(testGraphData())

	components, err := g.ResolveBundle("B000BUNDLE")
	require.NoError(t, err)
	assert.Equal(t, []BundleComponent{
		{Ean: eanA, QuantityPerAsin: 3},
		{Ean: eanB, QuantityPerAsin: 2},
	}, components)

	asin, bundle, err := g.ResolveSkuBundle("SKU-UK-2")
	require.NoError(t, err)
	assert.Equal(t, "B000BUNDLE", asin)
	assert.Len(t, bundle, 2)

	assert.Equal(t, []string{"B000BUNDLE", "B000SINGLE"}, g.AsinsContaining(eanA))
	assert.Equal(t, []string{"SKU-DE-2", "SKU-UK-2"}, g.SkusForAsin("B000BUNDLE"))
}

func TestGraph_DanglingReferences(t *testing.T) {
	t.Run("bundle row with missing ean", func(t *testing.T) {
		data := testGraphData()
		data.EanInAsins = append(data.EanInAsins, EanInAsin{Ean: "9999999999999", Asin: "B000SINGLE", QuantityPerAsin: 1})
		g := NewGraph(data)

		_, err := g.ResolveBundle("B000SINGLE")
		assert.True(t, errors.Is(err, shared.ErrDanglingReference))
		assert.NotEmpty(t, g.Problems())
	})

	t.Run("sku link to missing asin", func(t *testing.T) {
		data := testGraphData()
		data.Skus = append(data.Skus, Sku{Code: "SKU-FR-9", Country: "FR"})
		data.AsinSkus = append(data.AsinSkus, AsinSku{Asin: "B000GHOST", Sku: "SKU-FR-9"})
		g := NewGraph(data)

		_, err := g.ResolveSku("SKU-FR-9")
		assert.True(t, errors.Is(err, shared.ErrDanglingReference))

		_, err = g.Asin("B000GHOST")
		assert.True(t, errors.Is(err, shared.ErrDanglingReference))
	})

	t.Run("link from missing sku", func(t *testing.T) {
		data := testGraphData()
		data.AsinSkus = append(data.AsinSkus, AsinSku{Asin: "B000SINGLE", Sku: "SKU-GONE"})
		g := NewGraph(data)

		_, err := g.ResolveSku("SKU-GONE")
		assert.True(t, errors.Is(err, shared.ErrDanglingReference))
	})

	t.Run("ean with unknown brand", func(t *testing.T) {
		data := testGraphData()
		data.Eans[1].BrandID = strPtr("b404")
		g := NewGraph(data)

		_, err := g.Ean(eanB)
		assert.True(t, errors.Is(err, shared.ErrDanglingReference))
	})
}

func TestGraph_InvalidJunctions(t *testing.T) {
	t.Run("zero quantity per asin", func(t *testing.T) {
		data := testGraphData()
		data.EanInAsins[0].QuantityPerAsin = 0
		_, err := NewGraph(data).ResolveBundle("B000SINGLE")
		assert.True(t, errors.Is(err, shared.ErrInvalidReferenceData))
	})

	t.Run("sku linked twice", func(t *testing.T) {
		data := testGraphData()
		data.AsinSkus = append(data.AsinSkus, AsinSku{Asin: "B000BUNDLE", Sku: "SKU-DE-1"})
		_, err := NewGraph(data).ResolveSku("SKU-DE-1")
		assert.True(t, errors.Is(err, shared.ErrInvalidReferenceData))
	})

	t.Run("asin without components", func(t *testing.T) {
		data := testGraphData()
		data.Asins = append(data.Asins, Asin{Code: "B000EMPTY"})
		_, err := NewGraph(data).ResolveBundle("B000EMPTY")
		assert.True(t, errors.Is(err, shared.ErrInvalidReferenceData))
	})
}

func TestGraph_LatestCost(t *testing.T) {
	g := NewGraph(testGraphData())

	c, err := g.LatestCost(eanA, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, c.UnitCost.Equal(decimal.RequireFromString("9.50")))
	assert.Equal(t, valueobject.EUR, c.Currency)

	c, err = g.LatestCost(eanA, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, c.UnitCost.Equal(decimal.RequireFromString("10.00")), "cost effective the same day applies")

	_, err = g.LatestCost(eanA, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestGraph_Skus(t *testing.T) {
	g := NewGraph(testGraphData())
	skus := g.Skus()
	require.Len(t, skus, 3)
	assert.Equal(t, "SKU-DE-1", skus[0].Code)
	assert.Equal(t, "SKU-UK-2", skus[2].Code)
}
