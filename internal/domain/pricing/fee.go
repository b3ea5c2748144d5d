package pricing

import (
	"fmt"

	"github.com/reseller/backend/internal/domain/reference"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// feeBase returns the amount the fee percentage applies to for gross price p
func feeBase(p, vatRate decimal.Decimal, basis FeeBasis) decimal.Decimal {
	if basis == FeeBasisNet {
		return p.Div(one.Add(vatRate))
	}
	return p
}

// ReferralFeeAt returns the referral fee charged when an item sells at gross
// price p. Tiers are marginal: each band's rate applies only to the part of
// the fee base inside the band. The result is never below the schedule's
// minimum fee.
func ReferralFeeAt(schedule reference.ReferralFeeCategory, p, vatRate decimal.Decimal, basis FeeBasis) decimal.Decimal {
	base := feeBase(p, vatRate, basis)
	fee := decimal.Zero
	lower := decimal.Zero
	for _, tier := range schedule.Tiers {
		if !base.GreaterThan(lower) {
			break
		}
		upper := base
		if tier.UpTo != nil && tier.UpTo.LessThan(base) {
			upper = *tier.UpTo
		}
		fee = fee.Add(tier.Rate.Mul(upper.Sub(lower)))
		if tier.UpTo == nil {
			break
		}
		lower = *tier.UpTo
	}
	return decimal.Max(fee, schedule.MinimumFee)
}

// solveMinimumGross returns the smallest gross price P with
//
//	P/(1+v) - fee(P) - cost >= requiredMargin
//
// where target = cost + requiredMargin. The margin is piecewise linear and
// increasing in P, so within each fee band it is solved in closed form:
//
//	gross basis: P = (1+v)(target + F0 - r*B0) / (1 - (1+v)r)
//	net basis:   P = (1+v)(target + F0 - r*B0) / (1 - r)
//
// with B0 the band's lower bound, F0 the fee accrued below it and r its
// rate. The minimum fee floor adds P >= (1+v)(target + minimumFee).
func solveMinimumGross(target, vatRate decimal.Decimal, schedule reference.ReferralFeeCategory, basis FeeBasis) (decimal.Decimal, error) {
	onePlusVat := one.Add(vatRate)
	floor := onePlusVat.Mul(target.Add(schedule.MinimumFee))

	bandStart := decimal.Zero
	feeBelow := decimal.Zero
	for i, tier := range schedule.Tiers {
		numerator := target.Add(feeBelow).Sub(tier.Rate.Mul(bandStart))

		var denominator decimal.Decimal
		if basis == FeeBasisNet {
			denominator = one.Sub(tier.Rate)
		} else {
			denominator = one.Sub(onePlusVat.Mul(tier.Rate))
		}
		if !denominator.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: referral fee %s/%s tier %d rate %s leaves no margin at VAT %s",
				shared.ErrInvalidReferenceData, schedule.Country, schedule.Name, i, tier.Rate, vatRate)
		}

		candidate := onePlusVat.Mul(numerator).Div(denominator)
		base := feeBase(candidate, vatRate, basis)
		if tier.UpTo == nil || base.LessThanOrEqual(*tier.UpTo) {
			return decimal.Max(candidate, floor), nil
		}

		feeBelow = feeBelow.Add(tier.Rate.Mul(tier.UpTo.Sub(bandStart)))
		bandStart = *tier.UpTo
	}
	return decimal.Zero, fmt.Errorf("%w: referral fee %s/%s has no unbounded tier",
		shared.ErrInvalidReferenceData, schedule.Country, schedule.Name)
}
