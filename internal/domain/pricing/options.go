package pricing

import "fmt"

// FeeBasis selects the price the referral fee percentage applies to
type FeeBasis string

const (
	// FeeBasisGross applies the fee to the VAT-inclusive price
	FeeBasisGross FeeBasis = "gross"
	// FeeBasisNet applies the fee to the price excluding VAT
	FeeBasisNet FeeBasis = "net"
)

// ParseFeeBasis parses a configuration value; empty means gross
func ParseFeeBasis(s string) (FeeBasis, error) {
	switch FeeBasis(s) {
	case "", FeeBasisGross:
		return FeeBasisGross, nil
	case FeeBasisNet:
		return FeeBasisNet, nil
	default:
		return "", fmt.Errorf("unknown referral fee basis %q", s)
	}
}

// RoundingMode selects how the minimum price is rounded to minor units
type RoundingMode string

// RoundingHalfUp rounds half-up and then raises the result by one minor unit
// if it fell below the exact minimum.
const RoundingHalfUp RoundingMode = "half_up"

// ParseRoundingMode parses a configuration value; empty means half-up
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch RoundingMode(s) {
	case "", RoundingHalfUp:
		return RoundingHalfUp, nil
	default:
		return "", fmt.Errorf("unsupported rounding mode %q", s)
	}
}

// Options configures the calculator
type Options struct {
	FeeBasis FeeBasis
	// Strict turns a listed price below the computed minimum into ErrBelowMinimumThreshold
	Strict   bool
	Rounding RoundingMode
}

// DefaultOptions returns gross fee basis, non-strict, half-up rounding
func DefaultOptions() Options {
	return Options{
		FeeBasis: FeeBasisGross,
		Rounding: RoundingHalfUp,
	}
}
