package reference

import (
	"fmt"
	"sort"
	"time"

	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Data is the raw reference data a Snapshot is built from
type Data struct {
	Countries            []Country
	VatCategories        []VatCategory
	VatRates             []VatRate
	ProductTaxCategories []ProductTaxCategory
	ReferralFees         []ReferralFeeCategory
	PricingRules         []PricingRule
	ExchangeRates        []ExchangeRate
}

type pairKey struct {
	country string
	name    string
}

// Snapshot is an immutable, indexed view of the reference tables. Rows that
// violate an integrity rule are not dropped silently: lookups that hit them
// return ErrInvalidReferenceData, and Problems lists them all.
type Snapshot struct {
	version  int64
	loadedAt time.Time

	countries     map[string]Country
	vatCategories map[string]VatCategory
	vatRates      map[pairKey]VatRate
	taxCategories map[pairKey]ProductTaxCategory
	referralFees  map[pairKey]ReferralFeeCategory
	pricingRules  map[string]PricingRule
	exchangeRates []ExchangeRate

	invalid  map[string]error
	problems []error
}

// NewSnapshot indexes data. version identifies the load so caches can tell
// snapshots apart.
func NewSnapshot(data Data, version int64) *Snapshot {
	s := &Snapshot{
		version:       version,
		loadedAt:      time.Now(),
		countries:     make(map[string]Country, len(data.Countries)),
		vatCategories: make(map[string]VatCategory, len(data.VatCategories)),
		vatRates:      make(map[pairKey]VatRate, len(data.VatRates)),
		taxCategories: make(map[pairKey]ProductTaxCategory, len(data.ProductTaxCategories)),
		referralFees:  make(map[pairKey]ReferralFeeCategory, len(data.ReferralFees)),
		pricingRules:  make(map[string]PricingRule, len(data.PricingRules)),
		invalid:       make(map[string]error),
	}

	for _, c := range data.Countries {
		if c.Currency == "" {
			c.Currency = valueobject.DefaultCurrency
		} else if cur, err := valueobject.ParseCurrency(string(c.Currency)); err != nil {
			s.markInvalid("country:"+c.Code, "country %s: %v", c.Code, err)
		} else {
			c.Currency = cur
		}
		if _, dup := s.countries[c.Code]; dup {
			s.markInvalid("country:"+c.Code, "duplicate country %s", c.Code)
		}
		s.countries[c.Code] = c
	}
	for _, vc := range data.VatCategories {
		s.vatCategories[vc.ID] = vc
	}
	for _, r := range data.VatRates {
		key := pairKey{r.Country, r.Category}
		if _, dup := s.vatRates[key]; dup {
			s.markInvalid(vatKey(key), "duplicate VAT rate for %s/%s", r.Country, r.Category)
		}
		if r.Rate.Valid && (r.Rate.Decimal.IsNegative() || r.Rate.Decimal.GreaterThanOrEqual(one)) {
			s.markInvalid(vatKey(key), "VAT rate %s for %s/%s is outside [0,1)", r.Rate.Decimal, r.Country, r.Category)
		}
		s.vatRates[key] = r
	}
	for _, tc := range data.ProductTaxCategories {
		key := pairKey{tc.Country, tc.Name}
		if _, dup := s.taxCategories[key]; dup {
			s.markInvalid(taxKey(key), "duplicate product tax category %s/%s", tc.Country, tc.Name)
		}
		s.taxCategories[key] = tc
	}
	for _, f := range data.ReferralFees {
		key := pairKey{f.Country, f.Name}
		if _, dup := s.referralFees[key]; dup {
			s.markInvalid(feeKey(key), "duplicate referral fee category %s/%s", f.Country, f.Name)
		}
		if err := validateFeeSchedule(f); err != nil {
			s.markInvalid(feeKey(key), "%v", err)
		}
		s.referralFees[key] = f
	}
	for _, r := range data.PricingRules {
		if r.Currency == "" {
			r.Currency = valueobject.DefaultCurrency
		}
		if r.MinimumRoiPercentage.IsNegative() || r.MinimumMarginAmount.IsNegative() {
			s.markInvalid("rule:"+r.ID, "pricing rule %s has a negative minimum", r.ID)
		}
		s.pricingRules[r.ID] = r
	}

	s.exchangeRates = make([]ExchangeRate, len(data.ExchangeRates))
	for i, r := range data.ExchangeRates {
		r.Date = Day(r.Date)
		s.exchangeRates[i] = r
	}
	sort.SliceStable(s.exchangeRates, func(i, j int) bool {
		a, b := s.exchangeRates[i], s.exchangeRates[j]
		if a.Currency != b.Currency {
			return a.Currency < b.Currency
		}
		return a.Date.Before(b.Date)
	})

	return s
}

func (s *Snapshot) markInvalid(key, format string, args ...any) {
	err := fmt.Errorf("%w: "+format, append([]any{shared.ErrInvalidReferenceData}, args...)...)
	s.invalid[key] = err
	s.problems = append(s.problems, err)
}

func vatKey(k pairKey) string { return "vat:" + k.country + "/" + k.name }
func taxKey(k pairKey) string { return "tax:" + k.country + "/" + k.name }
func feeKey(k pairKey) string { return "fee:" + k.country + "/" + k.name }

func validateFeeSchedule(f ReferralFeeCategory) error {
	if len(f.Tiers) == 0 {
		return fmt.Errorf("referral fee %s/%s has no tiers", f.Country, f.Name)
	}
	if f.MinimumFee.IsNegative() {
		return fmt.Errorf("referral fee %s/%s has a negative minimum fee", f.Country, f.Name)
	}
	prev := decimal.Zero
	for i, t := range f.Tiers {
		if t.Rate.IsNegative() || t.Rate.GreaterThanOrEqual(one) {
			return fmt.Errorf("referral fee %s/%s tier %d rate %s is outside [0,1)", f.Country, f.Name, i, t.Rate)
		}
		last := i == len(f.Tiers)-1
		if t.UpTo == nil {
			if !last {
				return fmt.Errorf("referral fee %s/%s has an unbounded tier before the last", f.Country, f.Name)
			}
			continue
		}
		if !t.UpTo.GreaterThan(prev) {
			return fmt.Errorf("referral fee %s/%s tier bounds must increase", f.Country, f.Name)
		}
		prev = *t.UpTo
	}
	if f.Tiers[len(f.Tiers)-1].UpTo != nil {
		return fmt.Errorf("referral fee %s/%s last tier must be unbounded", f.Country, f.Name)
	}
	return nil
}

// Version returns the load version
func (s *Snapshot) Version() int64 {
	return s.version
}

// LoadedAt returns when the snapshot was built
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Problems returns every integrity violation found while indexing
func (s *Snapshot) Problems() []error {
	return append([]error(nil), s.problems...)
}

// Country returns the country with the given code
func (s *Snapshot) Country(code string) (Country, error) {
	if err, bad := s.invalid["country:"+code]; bad {
		return Country{}, err
	}
	c, ok := s.countries[code]
	if !ok {
		return Country{}, fmt.Errorf("%w: country %s", shared.ErrNotFound, code)
	}
	return c, nil
}

// ProductTaxCategory returns the raw tax category mapping for (country, name)
func (s *Snapshot) ProductTaxCategory(country, name string) (ProductTaxCategory, error) {
	key := pairKey{country, name}
	if err, bad := s.invalid[taxKey(key)]; bad {
		return ProductTaxCategory{}, err
	}
	tc, ok := s.taxCategories[key]
	if !ok {
		return ProductTaxCategory{}, fmt.Errorf("%w: product tax category %s/%s", shared.ErrNotFound, country, name)
	}
	return tc, nil
}

// VatRateFor resolves the VAT rate that applies to products of the given tax
// classification in country. Every step of the chain must resolve; any miss,
// including a row whose rate is unknown, is ErrMissingTaxRate.
func (s *Snapshot) VatRateFor(country, taxCategory string) (decimal.Decimal, error) {
	tc, err := s.ProductTaxCategory(country, taxCategory)
	if err != nil {
		if shared.CodeOf(err) == shared.ErrInvalidReferenceData.Code {
			return decimal.Zero, err
		}
		return decimal.Zero, fmt.Errorf("%w: no tax category %q in %s", shared.ErrMissingTaxRate, taxCategory, country)
	}
	if _, ok := s.vatCategories[tc.VatCategory]; !ok {
		return decimal.Zero, fmt.Errorf("%w: tax category %q in %s points to unknown VAT category %q",
			shared.ErrMissingTaxRate, taxCategory, country, tc.VatCategory)
	}
	key := pairKey{country, tc.VatCategory}
	if err, bad := s.invalid[vatKey(key)]; bad {
		return decimal.Zero, err
	}
	r, ok := s.vatRates[key]
	if !ok || !r.Rate.Valid {
		return decimal.Zero, fmt.Errorf("%w: no VAT rate for %s/%s", shared.ErrMissingTaxRate, country, tc.VatCategory)
	}
	return r.Rate.Decimal, nil
}

// ReferralFee returns the fee schedule for a category in a country
func (s *Snapshot) ReferralFee(country, category string) (ReferralFeeCategory, error) {
	key := pairKey{country, category}
	if err, bad := s.invalid[feeKey(key)]; bad {
		return ReferralFeeCategory{}, err
	}
	f, ok := s.referralFees[key]
	if !ok {
		return ReferralFeeCategory{}, fmt.Errorf("%w: no referral fee category %q in %s", shared.ErrMissingReferralFee, category, country)
	}
	return f, nil
}

// PricingRule returns the rule with the given id
func (s *Snapshot) PricingRule(id string) (PricingRule, error) {
	if err, bad := s.invalid["rule:"+id]; bad {
		return PricingRule{}, err
	}
	r, ok := s.pricingRules[id]
	if !ok {
		return PricingRule{}, fmt.Errorf("%w: pricing rule %s", shared.ErrNotFound, id)
	}
	return r, nil
}

// ExchangeRates returns all rates ordered by currency then date. The slice is
// shared; callers must not modify it.
func (s *Snapshot) ExchangeRates() []ExchangeRate {
	return s.exchangeRates
}
