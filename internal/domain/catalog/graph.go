package catalog

import (
	"fmt"
	"sort"
	"time"

	"github.com/reseller/backend/internal/domain/reference"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
)

// GraphData is the raw identity data a Graph is built from
type GraphData struct {
	Brands     []Brand
	Eans       []Ean
	Asins      []Asin
	Skus       []Sku
	EanInAsins []EanInAsin
	AsinSkus   []AsinSku
	Costs      []EanCost
}

// Graph is an immutable, read-only view of the EAN -> ASIN -> SKU identity
// graph. Junction rows are kept as loaded; every read re-checks the
// references it traverses so a dangling row fails the read that touches it
// with ErrDanglingReference instead of silently dropping out.
type Graph struct {
	brands map[string]Brand
	eans   map[valueobject.EAN]Ean
	asins  map[string]Asin
	skus   map[string]Sku

	bundleRows map[string][]EanInAsin
	skuLinks   map[string][]string
	asinSkus   map[string][]string
	eanAsins   map[valueobject.EAN][]string
	costs      map[valueobject.EAN][]EanCost

	problems []error
}

// NewGraph indexes data and records every integrity violation it finds
func NewGraph(data GraphData) *Graph {
	g := &Graph{
		brands:     make(map[string]Brand, len(data.Brands)),
		eans:       make(map[valueobject.EAN]Ean, len(data.Eans)),
		asins:      make(map[string]Asin, len(data.Asins)),
		skus:       make(map[string]Sku, len(data.Skus)),
		bundleRows: make(map[string][]EanInAsin),
		skuLinks:   make(map[string][]string),
		asinSkus:   make(map[string][]string),
		eanAsins:   make(map[valueobject.EAN][]string),
		costs:      make(map[valueobject.EAN][]EanCost),
	}
	for _, b := range data.Brands {
		g.brands[b.ID] = b
	}
	for _, e := range data.Eans {
		g.eans[e.Code] = e
	}
	for _, a := range data.Asins {
		g.asins[a.Code] = a
	}
	for _, s := range data.Skus {
		g.skus[s.Code] = s
	}
	for _, row := range data.EanInAsins {
		g.bundleRows[row.Asin] = append(g.bundleRows[row.Asin], row)
		g.eanAsins[row.Ean] = append(g.eanAsins[row.Ean], row.Asin)
	}
	for _, link := range data.AsinSkus {
		g.skuLinks[link.Sku] = append(g.skuLinks[link.Sku], link.Asin)
		g.asinSkus[link.Asin] = append(g.asinSkus[link.Asin], link.Sku)
	}
	for _, c := range data.Costs {
		if c.Currency == "" {
			c.Currency = valueobject.DefaultCurrency
		}
		c.EffectiveDate = reference.Day(c.EffectiveDate)
		g.costs[c.Ean] = append(g.costs[c.Ean], c)
	}
	for ean := range g.costs {
		history := g.costs[ean]
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].EffectiveDate.Before(history[j].EffectiveDate)
		})
	}
	for asin := range g.asinSkus {
		g.asinSkus[asin] = dedupSorted(g.asinSkus[asin])
	}
	for ean := range g.eanAsins {
		g.eanAsins[ean] = dedupSorted(g.eanAsins[ean])
	}

	g.collectProblems(data)
	return g
}

func (g *Graph) collectProblems(data GraphData) {
	for _, e := range data.Eans {
		if _, err := g.Ean(e.Code); err != nil {
			g.problems = append(g.problems, err)
		}
	}
	for asin := range g.bundleRows {
		if _, err := g.ResolveBundle(asin); err != nil {
			g.problems = append(g.problems, err)
		}
	}
	for sku := range g.skuLinks {
		if _, err := g.ResolveSku(sku); err != nil {
			g.problems = append(g.problems, err)
		}
	}
	for ean := range g.costs {
		if _, ok := g.eans[ean]; !ok {
			g.problems = append(g.problems, fmt.Errorf("%w: cost history for unknown ean %s", shared.ErrDanglingReference, ean))
		}
	}
}

// Problems returns the integrity violations found while indexing
func (g *Graph) Problems() []error {
	return append([]error(nil), g.problems...)
}

// Ean returns the product with the given code
func (g *Graph) Ean(code valueobject.EAN) (Ean, error) {
	e, ok := g.eans[code]
	if !ok {
		return Ean{}, fmt.Errorf("%w: ean %s", shared.ErrNotFound, code)
	}
	if !valueobject.IsValidEAN(string(code)) {
		return Ean{}, fmt.Errorf("%w: ean %q is not 13 digits", shared.ErrInvalidReferenceData, code)
	}
	if e.BrandID != nil {
		if _, ok := g.brands[*e.BrandID]; !ok {
			return Ean{}, fmt.Errorf("%w: ean %s references unknown brand %s", shared.ErrDanglingReference, code, *e.BrandID)
		}
	}
	return e, nil
}

// Asin returns the listing with the given code
func (g *Graph) Asin(code string) (Asin, error) {
	a, ok := g.asins[code]
	if !ok {
		if _, referenced := g.bundleRows[code]; referenced {
			return Asin{}, fmt.Errorf("%w: asin %s is referenced but does not exist", shared.ErrDanglingReference, code)
		}
		if _, referenced := g.asinSkus[code]; referenced {
			return Asin{}, fmt.Errorf("%w: asin %s is referenced but does not exist", shared.ErrDanglingReference, code)
		}
		return Asin{}, fmt.Errorf("%w: asin %s", shared.ErrNotFound, code)
	}
	return a, nil
}

// Sku returns the offer with the given code
func (g *Graph) Sku(code string) (Sku, error) {
	s, ok := g.skus[code]
	if !ok {
		if _, referenced := g.skuLinks[code]; referenced {
			return Sku{}, fmt.Errorf("%w: sku %s is referenced but does not exist", shared.ErrDanglingReference, code)
		}
		return Sku{}, fmt.Errorf("%w: sku %s", shared.ErrNotFound, code)
	}
	return s, nil
}

// ResolveSku returns the ASIN a SKU sells. A SKU must link to exactly one
// existing ASIN.
func (g *Graph) ResolveSku(sku string) (string, error) {
	if _, err := g.Sku(sku); err != nil {
		return "", err
	}
	links := dedupSorted(append([]string(nil), g.skuLinks[sku]...))
	switch len(links) {
	case 0:
		return "", fmt.Errorf("%w: sku %s is not linked to an asin", shared.ErrNotFound, sku)
	case 1:
	default:
		return "", fmt.Errorf("%w: sku %s is linked to %d asins", shared.ErrInvalidReferenceData, sku, len(links))
	}
	if _, err := g.Asin(links[0]); err != nil {
		return "", fmt.Errorf("%w: sku %s links to missing asin %s", shared.ErrDanglingReference, sku, links[0])
	}
	return links[0], nil
}

// ResolveBundle returns the EAN components of an ASIN ordered by EAN
func (g *Graph) ResolveBundle(asin string) ([]BundleComponent, error) {
	if _, err := g.Asin(asin); err != nil {
		return nil, err
	}
	rows := g.bundleRows[asin]
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: asin %s has no ean components", shared.ErrInvalidReferenceData, asin)
	}
	seen := make(map[valueobject.EAN]bool, len(rows))
	components := make([]BundleComponent, 0, len(rows))
	for _, row := range rows {
		if _, ok := g.eans[row.Ean]; !ok {
			return nil, fmt.Errorf("%w: asin %s contains missing ean %s", shared.ErrDanglingReference, asin, row.Ean)
		}
		if row.QuantityPerAsin < 1 {
			return nil, fmt.Errorf("%w: asin %s has quantity %d for ean %s",
				shared.ErrInvalidReferenceData, asin, row.QuantityPerAsin, row.Ean)
		}
		if seen[row.Ean] {
			return nil, fmt.Errorf("%w: asin %s lists ean %s twice", shared.ErrInvalidReferenceData, asin, row.Ean)
		}
		seen[row.Ean] = true
		components = append(components, BundleComponent{Ean: row.Ean, QuantityPerAsin: row.QuantityPerAsin})
	}
	sort.Slice(components, func(i, j int) bool { return components[i].Ean < components[j].Ean })
	return components, nil
}

// ResolveSkuBundle resolves a SKU all the way down to its EAN components
func (g *Graph) ResolveSkuBundle(sku string) (string, []BundleComponent, error) {
	asin, err := g.ResolveSku(sku)
	if err != nil {
		return "", nil, err
	}
	components, err := g.ResolveBundle(asin)
	if err != nil {
		return "", nil, err
	}
	return asin, components, nil
}

// SkusForAsin returns the SKUs that sell an ASIN
func (g *Graph) SkusForAsin(asin string) []string {
	return append([]string(nil), g.asinSkus[asin]...)
}

// AsinsContaining returns the ASINs whose bundle includes ean
func (g *Graph) AsinsContaining(ean valueobject.EAN) []string {
	return append([]string(nil), g.eanAsins[ean]...)
}

// Skus returns every SKU ordered by code
func (g *Graph) Skus() []Sku {
	out := make([]Sku, 0, len(g.skus))
	for _, s := range g.skus {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// LatestCost returns the most recent cost of ean effective on or before asOf
func (g *Graph) LatestCost(ean valueobject.EAN, asOf time.Time) (EanCost, error) {
	history := g.costs[ean]
	day := reference.Day(asOf)
	i := sort.Search(len(history), func(i int) bool {
		return history[i].EffectiveDate.After(day)
	})
	if i == 0 {
		return EanCost{}, fmt.Errorf("%w: no cost for ean %s on or before %s", shared.ErrNotFound, ean, day.Format(time.DateOnly))
	}
	c := history[i-1]
	if c.UnitCost.IsNegative() {
		return EanCost{}, fmt.Errorf("%w: ean %s has negative cost %s", shared.ErrInvalidReferenceData, ean, c.UnitCost)
	}
	return c, nil
}

func dedupSorted(in []string) []string {
	sort.Strings(in)
	out := in[:0]
	for _, s := range in {
		if len(out) == 0 || out[len(out)-1] != s {
			out = append(out, s)
		}
	}
	return out
}
