package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/calebhrenchir/granted.gg-sub001/internal/money"
)

func TestFeeSplit(t *testing.T) {
	testCases := []struct {
		name        string
		baseCents   int64
		feePercent  int
		wantCharged int64
		wantNet     int64
	}{
		{
			name:        "20 percent fee on $10",
			baseCents:   1000,
			feePercent:  20,
			wantCharged: 1100,
			wantNet:     900,
		},
		{
			name:        "zero fee charges and nets the base",
			baseCents:   1234,
			feePercent:  0,
			wantCharged: 1234,
			wantNet:     1234,
		},
		{
			name:        "odd percent rounds each half independently",
			baseCents:   999,
			feePercent:  15,
			wantCharged: 999 + 75, // 999*7.5% = 74.925 -> 75
			wantNet:     999 - 75,
		},
		{
			name:        "full fee",
			baseCents:   500,
			feePercent:  100,
			wantCharged: 750,
			wantNet:     250,
		},
		{
			name:        "exact half rounds up",
			baseCents:   10,
			feePercent:  10, // 10 * 5% = 0.5 -> 1
			wantCharged: 11,
			wantNet:     9,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantCharged, money.PriceWithBuyerSurcharge(tc.baseCents, tc.feePercent))
			assert.Equal(t, tc.wantNet, money.SellerNetEarnings(tc.baseCents, tc.feePercent))
		})
	}
}

// The buyer never pays less than the base price and the seller never nets
// more than it, for any fee percent.
func TestFeeBounds(t *testing.T) {
	for _, base := range []int64{0, 1, 2, 99, 100, 101, 999, 1000, 123456789} {
		for fee := 0; fee <= 100; fee++ {
			charged := money.PriceWithBuyerSurcharge(base, fee)
			net := money.SellerNetEarnings(base, fee)

			if charged < base {
				t.Fatalf("PriceWithBuyerSurcharge(%d, %d) = %d < base", base, fee, charged)
			}
			if net > base {
				t.Fatalf("SellerNetEarnings(%d, %d) = %d > base", base, fee, net)
			}
		}
	}
}

func TestInstantPayoutFee(t *testing.T) {
	testCases := []struct {
		name    string
		cents   int64
		wantFee int64
	}{
		{name: "one percent of $100", cents: 10000, wantFee: 100},
		{name: "minimum fee floor", cents: 1000, wantFee: 50},
		{name: "boundary at $50", cents: 5000, wantFee: 50},
		{name: "just above the floor", cents: 5050, wantFee: 51},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantFee, money.InstantPayoutFee(tc.cents))
		})
	}
}

func TestCentsDollarsConversion(t *testing.T) {
	assert.EqualValues(t, 1050, money.ToCents(decimal.RequireFromString("10.50")))
	assert.EqualValues(t, 1000, money.ToCents(decimal.NewFromInt(10)))
	assert.EqualValues(t, 1, money.ToCents(decimal.RequireFromString("0.005")))

	assert.True(t, money.ToDollars(1050).Equal(decimal.RequireFromString("10.50")))
	assert.True(t, money.ToDollars(0).Equal(decimal.Zero))

	// Round trip through the dollar-denominated link aggregates.
	for _, cents := range []int64{0, 1, 99, 100, 3000, 123456} {
		assert.Equal(t, cents, money.ToCents(money.ToDollars(cents)))
	}
}
