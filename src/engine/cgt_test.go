package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/cgtfolio/backend/src/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sellAt(date string, qty int64, price, brokerage, fx string) SellTerms {
	return SellTerms{
		TradeDate:    day(date),
		Quantity:     qty,
		UnitPrice:    dec(price),
		Brokerage:    dec(brokerage),
		ExchangeRate: dec(fx),
	}
}

// 100 units at $10 acquired 2022-01-01, 60 sold at $15 on 2023-06-01.
func TestCalculateDiscountedGain(t *testing.T) {
	p := &models.Parcel{
		AcquisitionDate:   day("2022-01-01"),
		OriginalQuantity:  100,
		RemainingQuantity: 100,
		CostPerUnit:       dec("10"),
	}

	out := Calculate(p, sellAt("2023-06-01", 60, "15", "0", "1"), 60)

	assert.True(t, out.CostBase.Equal(dec("600")), "cost base %s", out.CostBase)
	assert.True(t, out.Proceeds.Equal(dec("900")), "proceeds %s", out.Proceeds)
	assert.True(t, out.CapitalGainLoss.Equal(dec("300")), "gain %s", out.CapitalGainLoss)
	assert.Equal(t, 516, out.HoldingPeriodDays)
	assert.True(t, out.DiscountEligible)
	assert.True(t, out.DiscountAmount.Equal(dec("150")), "discount %s", out.DiscountAmount)
	assert.True(t, out.NetCapitalGain.Equal(dec("150")), "net %s", out.NetCapitalGain)
}

func TestCalculateHoldingBoundary(t *testing.T) {
	p := &models.Parcel{
		AcquisitionDate: day("2022-01-01"),
		CostPerUnit:     dec("10"),
	}

	// Exactly 365 days: not eligible.
	out := Calculate(p, sellAt("2023-01-01", 10, "20", "0", "1"), 10)
	assert.Equal(t, 365, out.HoldingPeriodDays)
	assert.False(t, out.DiscountEligible)
	assert.True(t, out.DiscountAmount.IsZero())
	assert.True(t, out.NetCapitalGain.Equal(out.CapitalGainLoss))

	// One more day crosses the threshold.
	out = Calculate(p, sellAt("2023-01-02", 10, "20", "0", "1"), 10)
	assert.Equal(t, 366, out.HoldingPeriodDays)
	assert.True(t, out.DiscountEligible)
	assert.True(t, out.DiscountAmount.Equal(dec("50")))
	assert.True(t, out.NetCapitalGain.Equal(dec("50")))
}

func TestCalculateLossNeverDiscounted(t *testing.T) {
	p := &models.Parcel{
		AcquisitionDate: day("2020-01-01"),
		CostPerUnit:     dec("30"),
	}

	out := Calculate(p, sellAt("2024-01-01", 10, "20", "0", "1"), 10)
	assert.True(t, out.CapitalGainLoss.Equal(dec("-100")), "gain %s", out.CapitalGainLoss)
	assert.False(t, out.DiscountEligible)
	assert.True(t, out.DiscountAmount.IsZero())
	assert.True(t, out.NetCapitalGain.Equal(dec("-100")))
}

func TestCalculateApportionsSellBrokerage(t *testing.T) {
	p := &models.Parcel{
		AcquisitionDate: day("2022-01-01"),
		CostPerUnit:     dec("10"),
	}

	// 60 of 100 sold units come from this parcel, so this allocation bears
	// 60% of the $20 brokerage.
	out := Calculate(p, sellAt("2022-06-01", 100, "15", "20", "1"), 60)
	assert.True(t, out.Proceeds.Equal(dec("888")), "proceeds %s", out.Proceeds)
	assert.True(t, out.CapitalGainLoss.Equal(dec("288")))
}

func TestCalculateExchangeRateAfterBrokerage(t *testing.T) {
	p := &models.Parcel{
		AcquisitionDate: day("2022-01-01"),
		CostPerUnit:     dec("10"),
	}

	// (10 * 15 - 20 * 10/10) * 1.5 = 195
	out := Calculate(p, sellAt("2022-06-01", 10, "15", "20", "1.5"), 10)
	assert.True(t, out.Proceeds.Equal(dec("195")), "proceeds %s", out.Proceeds)
}

func TestCalculateExactDecimals(t *testing.T) {
	p := &models.Parcel{
		AcquisitionDate: day("2022-01-01"),
		CostPerUnit:     dec("10.123456789"),
	}

	out := Calculate(p, sellAt("2022-06-01", 3, "10.987654321", "0", "1"), 3)
	require.True(t, out.CostBase.Equal(dec("30.370370367")))
	require.True(t, out.Proceeds.Equal(dec("32.962962963")))
	require.True(t, out.CapitalGainLoss.Equal(dec("2.592592596")))
}

func TestDaysBetweenIgnoresTimeOfDay(t *testing.T) {
	from := day("2022-01-01").Add(23 * time.Hour)
	assert.Equal(t, 1, DaysBetween(from, day("2022-01-02")))
	assert.Equal(t, 0, DaysBetween(day("2022-01-01"), day("2022-01-01")))
}
