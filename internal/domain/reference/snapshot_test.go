package reference

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

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func rate(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func testData() Data {
	upTo := dec("100")
	return Data{
		Countries: []Country{
			{Code: "DE", Name: "Germany", MarketplaceDomain: "amazon.de", Currency: valueobject.EUR},
			{Code: "UK", Name: "United Kingdom", MarketplaceDomain: "amazon.co.uk", Currency: valueobject.GBP},
			{Code: "FR", Name: "France", MarketplaceDomain: "amazon.fr"},
		},
		VatCategories: []VatCategory{
			{ID: "A1", Definition: "standard"},
			{ID: "B1", Definition: "reduced"},
		},
		VatRates: []VatRate{
			{Country: "DE", Category: "A1", Rate: rate("0.19")},
			{Country: "DE", Category: "B1", Rate: decimal.NullDecimal{}},
			{Country: "UK", Category: "A1", Rate: rate("0.20")},
			{Country: "FR", Category: "A1", Rate: rate("1.20")},
		},
		ProductTaxCategories: []ProductTaxCategory{
			{Country: "DE", Name: "toys", VatCategory: "A1"},
			{Country: "DE", Name: "books", VatCategory: "B1"},
			{Country: "DE", Name: "ghost", VatCategory: "Z9"},
			{Country: "UK", Name: "toys", VatCategory: "A1"},
			{Country: "FR", Name: "toys", VatCategory: "A1"},
		},
		ReferralFees: []ReferralFeeCategory{
			FlatReferralFee("DE", "toys", dec("0.15")),
			{Country: "UK", Name: "toys", Tiers: []FeeTier{{UpTo: &upTo, Rate: dec("0.15")}, {Rate: dec("0.08")}}},
			{Country: "FR", Name: "toys", Tiers: []FeeTier{{UpTo: &upTo, Rate: dec("0.15")}}},
		},
		PricingRules: []PricingRule{
			{ID: "default", Name: "Default", MinimumRoiPercentage: dec("10"), MinimumMarginAmount: dec("2.00")},
		},
		ExchangeRates: []ExchangeRate{
			{Currency: valueobject.GBP, Date: time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC), RateToEUR: dec("1.17")},
			{Currency: valueobject.GBP, Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), RateToEUR: dec("1.16")},
		},
	}
}

func TestSnapshot_Country(t *testing.T) {
	s := NewSnapshot(testData(), 1)

	c, err := s.Country("UK")
	require.NoError(t, err)
	assert.Equal(t, valueobject.GBP, c.Currency)

	fr, err := s.Country("FR")
	require.NoError(t, err)
	assert.Equal(t, valueobject.EUR, fr.Currency, "missing currency defaults to EUR")

	_, err = s.Country("XX")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestSnapshot_CountryCurrencyIsNormalized(t *testing.T) {
	s := NewSnapshot(Data{Countries: []Country{
		{Code: "SE", Currency: " sek"},
		{Code: "PL", Currency: "zl"},
	}}, 1)

	se, err := s.Country("SE")
	require.NoError(t, err)
	assert.Equal(t, valueobject.SEK, se.Currency)

	_, err = s.Country("PL")
	assert.True(t, errors.Is(err, shared.ErrInvalidReferenceData))
	assert.Len(t, s.Problems(), 1)
}

func TestSnapshot_VatRateFor(t *testing.T) {
	s := NewSnapshot(testData(), 1)

	t.Run("resolves through tax category", func(t *testing.T) {
		r, err := s.VatRateFor("DE", "toys")
		require.NoError(t, err)
		assert.True(t, r.Equal(dec("0.19")))
	})

	t.Run("unknown tax category", func(t *testing.T) {
		_, err := s.VatRateFor("DE", "garden")
		assert.True(t, errors.Is(err, shared.ErrMissingTaxRate))
	})

	t.Run("null rate is missing, not zero", func(t *testing.T) {
		r, err := s.VatRateFor("DE", "books")
		assert.True(t, errors.Is(err, shared.ErrMissingTaxRate))
		assert.True(t, r.IsZero())
	})

	t.Run("unknown VAT category", func(t *testing.T) {
		_, err := s.VatRateFor("DE", "ghost")
		assert.True(t, errors.Is(err, shared.ErrMissingTaxRate))
	})

	t.Run("no row for country and category", func(t *testing.T) {
		data := testData()
		data.Countries = append(data.Countries, Country{Code: "XX"})
		data.ProductTaxCategories = append(data.ProductTaxCategories, ProductTaxCategory{Country: "XX", Name: "toys", VatCategory: "A1"})
		_, err := NewSnapshot(data, 2).VatRateFor("XX", "toys")
		assert.True(t, errors.Is(err, shared.ErrMissingTaxRate))
	})

	t.Run("out of range rate is invalid reference data", func(t *testing.T) {
		_, err := s.VatRateFor("FR", "toys")
		assert.True(t, errors.Is(err, shared.ErrInvalidReferenceData))
	})
}

func TestSnapshot_ReferralFee(t *testing.T) {
	s := NewSnapshot(testData(), 1)

	f, err := s.ReferralFee("UK", "toys")
	require.NoError(t, err)
	assert.Len(t, f.Tiers, 2)

	_, err = s.ReferralFee("DE", "books")
	assert.True(t, errors.Is(err, shared.ErrMissingReferralFee))

	_, err = s.ReferralFee("FR", "toys")
	assert.True(t, errors.Is(err, shared.ErrInvalidReferenceData), "bounded last tier is rejected")
}

func TestSnapshot_PricingRule(t *testing.T) {
	s := NewSnapshot(testData(), 1)

	r, err := s.PricingRule("default")
	require.NoError(t, err)
	assert.Equal(t, valueobject.EUR, r.Currency)

	_, err = s.PricingRule("missing")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestSnapshot_ExchangeRatesSortedAndTruncated(t *testing.T) {
	s := NewSnapshot(testData(), 1)

	rates := s.ExchangeRates()
	require.Len(t, rates, 2)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rates[0].Date)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), rates[1].Date)
}

func TestSnapshot_Problems(t *testing.T) {
	data := testData()
	data.VatRates = append(data.VatRates, VatRate{Country: "DE", Category: "A1", Rate: rate("0.07")})

	s := NewSnapshot(data, 3)

	assert.Len(t, s.Problems(), 3) // FR rate, FR fee, DE duplicate
	_, err := s.VatRateFor("DE", "toys")
	assert.True(t, errors.Is(err, shared.ErrInvalidReferenceData))
	assert.Equal(t, int64(3), s.Version())
}
