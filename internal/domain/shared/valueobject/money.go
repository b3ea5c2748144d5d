package valueobject

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	EUR Currency = "EUR" // Euro (default, exchange rates are quoted against it)
	GBP Currency = "GBP" // British Pound
	SEK Currency = "SEK" // Swedish Krona
	PLN Currency = "PLN" // Polish Zloty
	USD Currency = "USD" // US Dollar
	JPY Currency = "JPY" // Japanese Yen
)

// DefaultCurrency is the base currency of the engine
const DefaultCurrency = EUR

var minorUnits = map[Currency]int32{
	EUR: 2,
	GBP: 2,
	SEK: 2,
	PLN: 2,
	USD: 2,
	JPY: 0,
}

// ParseCurrency normalizes and validates a three-letter currency code
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if len(c) != 3 {
		return "", fmt.Errorf("invalid currency code %q", code)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("invalid currency code %q", code)
		}
	}
	return c, nil
}

// MinorUnits returns the number of decimal places of the currency's minor unit.
// Unknown currencies default to 2.
func (c Currency) MinorUnits() int32 {
	if places, ok := minorUnits[c]; ok {
		return places
	}
	return 2
}

// String returns the currency code
func (c Currency) String() string {
	return string(c)
}

// RoundHalfUpNotBelow rounds value half-up to the given places. When that
// would land below value, the result is raised by one unit in the last place,
// so the result is never smaller than the input.
func RoundHalfUpNotBelow(value decimal.Decimal, places int32) decimal.Decimal {
	rounded := value.Round(places)
	if rounded.LessThan(value) {
		rounded = rounded.Add(decimal.New(1, -places))
	}
	return rounded
}
