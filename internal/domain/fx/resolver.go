// Package fx resolves daily average exchange rates and converts amounts
// between currencies via EUR.
package fx

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/reseller/backend/internal/domain/reference"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// FallbackPolicy controls what happens when no rate exists for the exact date
type FallbackPolicy string

const (
	// ExactOnly requires a rate recorded for the exact date
	ExactOnly FallbackPolicy = "exact_only"
	// MostRecentPriorDate uses the latest rate strictly before the date
	MostRecentPriorDate FallbackPolicy = "most_recent_prior_date"
)

// ParseFallbackPolicy parses a configuration value
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(s) {
	case "", ExactOnly:
		return ExactOnly, nil
	case MostRecentPriorDate:
		return MostRecentPriorDate, nil
	default:
		return "", fmt.Errorf("unknown exchange rate fallback %q", s)
	}
}

// Resolver looks up rates in an immutable, date-sorted rate table
type Resolver struct {
	byCurrency map[valueobject.Currency][]reference.ExchangeRate
	policy     FallbackPolicy
}

// NewResolver builds a resolver over rates. Rates must be sorted by date
// within each currency, as reference.Snapshot.ExchangeRates returns them.
func NewResolver(rates []reference.ExchangeRate, policy FallbackPolicy) *Resolver {
	byCurrency := make(map[valueobject.Currency][]reference.ExchangeRate)
	for _, r := range rates {
		byCurrency[r.Currency] = append(byCurrency[r.Currency], r)
	}
	return &Resolver{byCurrency: byCurrency, policy: policy}
}

// Policy returns the configured fallback policy
func (r *Resolver) Policy() FallbackPolicy {
	return r.policy
}

// ResolveRate returns the value in EUR of one unit of currency on date.
// EUR always resolves to 1.
func (r *Resolver) ResolveRate(currency valueobject.Currency, date time.Time) (decimal.Decimal, error) {
	if currency == valueobject.EUR {
		return decimal.NewFromInt(1), nil
	}
	day := reference.Day(date)
	rates := r.byCurrency[currency]

	// first index with Date >= day
	i := sort.Search(len(rates), func(i int) bool {
		return !rates[i].Date.Before(day)
	})

	var found *reference.ExchangeRate
	switch {
	case i < len(rates) && rates[i].Date.Equal(day):
		found = &rates[i]
	case r.policy == MostRecentPriorDate && i > 0:
		found = &rates[i-1]
	}
	if found == nil {
		return decimal.Zero, fmt.Errorf("%w: no %s rate for %s", shared.ErrNotFound, currency, day.Format(time.DateOnly))
	}
	if !found.RateToEUR.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s rate on %s is %s",
			shared.ErrInvalidReferenceData, currency, found.Date.Format(time.DateOnly), found.RateToEUR)
	}
	return found.RateToEUR, nil
}

// Convert converts amount from one currency to another on date. A missing
// rate surfaces as ErrMissingExchangeRate.
func (r *Resolver) Convert(amount decimal.Decimal, from, to valueobject.Currency, date time.Time) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	fromRate, err := r.ResolveRate(from, date)
	if err != nil {
		return decimal.Zero, missingRate(err)
	}
	toRate, err := r.ResolveRate(to, date)
	if err != nil {
		return decimal.Zero, missingRate(err)
	}
	return amount.Mul(fromRate).Div(toRate), nil
}

func missingRate(err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: %v", shared.ErrMissingExchangeRate, err)
	}
	return err
}
