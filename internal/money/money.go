// Package money implements the platform fee arithmetic and the
// cents/dollars conversions used at the ledger boundary.
//
// All amounts inside the core are integer cents. The dollar-denominated
// link aggregates cross through ToCents/ToDollars and nowhere else, so
// fractional cents can never be stored.
package money

import "github.com/shopspring/decimal"

// centsPerDollar converts between the two denominations.
const centsPerDollar = 100

// The platform fee is split evenly between the buyer (surcharge on top of
// the base price) and the seller (deduction from the base price). Each
// half is rounded half-up independently: surcharge + deduction may differ
// from the full fee by a cent, and that asymmetry is intentional — the two
// sides are billed separately, never derived from each other.

// PriceWithBuyerSurcharge returns the total charged to the buyer for a
// base price in cents under the given platform fee percent.
func PriceWithBuyerSurcharge(basePriceCents int64, feePercent int) int64 {
	return basePriceCents + halfFee(basePriceCents, feePercent)
}

// SellerNetEarnings returns the seller's net cents for a base price in
// cents under the given platform fee percent.
func SellerNetEarnings(basePriceCents int64, feePercent int) int64 {
	return basePriceCents - halfFee(basePriceCents, feePercent)
}

// halfFee computes round-half-up of basePriceCents * (feePercent/2) / 100.
func halfFee(basePriceCents int64, feePercent int) int64 {
	// base * fee / 200, rounded half-up. Operands are non-negative.
	return (basePriceCents*int64(feePercent) + 100) / 200
}

// InstantPayoutFee is the informational fee for the instant payout method:
// 1% of the amount, floored at 50 cents. The ledger settles the full
// pre-fee amount either way; the rail bills the difference.
func InstantPayoutFee(amountCents int64) int64 {
	fee := (amountCents + 50) / 100
	if fee < 50 {
		fee = 50
	}
	return fee
}

// ToCents converts a dollar amount to integer cents, rounding half-up.
func ToCents(dollars decimal.Decimal) int64 {
	return dollars.Mul(decimal.NewFromInt(centsPerDollar)).Round(0).IntPart()
}

// ToDollars converts integer cents to a dollar amount.
func ToDollars(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
