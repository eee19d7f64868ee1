package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/cgtfolio/backend/src/models"
)

// Holding periods of exactly this many whole days are still ineligible for
// the discount; 366 days is the first eligible period.
const DiscountHoldingDays = 365

var discountRate = decimal.RequireFromString("0.5")

// SellTerms carries the sell-side inputs the calculator needs. Quantity is
// the full sell quantity, used to apportion brokerage pro-rata across
// allocations.
type SellTerms struct {
	TradeDate    time.Time
	Quantity     int64
	UnitPrice    decimal.Decimal
	Brokerage    decimal.Decimal
	ExchangeRate decimal.Decimal
}

func SellTermsOf(t *models.Transaction) SellTerms {
	return SellTerms{
		TradeDate:    t.TradeDate,
		Quantity:     t.Quantity,
		UnitPrice:    t.UnitPrice,
		Brokerage:    t.Brokerage,
		ExchangeRate: t.ExchangeRate,
	}
}

// Outcome holds the tax figures for one allocation, all in the reporting
// currency.
type Outcome struct {
	CostBase          decimal.Decimal `json:"cost_base"`
	Proceeds          decimal.Decimal `json:"proceeds"`
	CapitalGainLoss   decimal.Decimal `json:"capital_gain_loss"`
	HoldingPeriodDays int             `json:"holding_period_days"`
	DiscountEligible  bool            `json:"cgt_discount_eligible"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	NetCapitalGain    decimal.Decimal `json:"net_capital_gain"`
}

// Calculate computes the capital-gains figures for selling matchedQuantity
// units out of parcel under the given sell terms. Pure: exact decimal
// arithmetic only, no rounding beyond the decimal type's own precision.
//
// The parcel's cost per unit already includes buy-side brokerage and the
// conversion to the reporting currency. Sell-side brokerage is apportioned
// by quantity and subtracted from proceeds before the exchange-rate
// conversion, symmetric to the acquisition treatment.
func Calculate(parcel *models.Parcel, sell SellTerms, matchedQuantity int64) Outcome {
	qty := decimal.NewFromInt(matchedQuantity)

	costBase := parcel.CostPerUnit.Mul(qty)

	gross := sell.UnitPrice.Mul(qty)
	if !sell.Brokerage.IsZero() && sell.Quantity > 0 {
		feeShare := sell.Brokerage.Mul(qty).Div(decimal.NewFromInt(sell.Quantity))
		gross = gross.Sub(feeShare)
	}
	proceeds := gross.Mul(sell.ExchangeRate)

	gain := proceeds.Sub(costBase)
	days := DaysBetween(parcel.AcquisitionDate, sell.TradeDate)

	// Losses never receive the discount, no matter how long the holding.
	eligible := days > DiscountHoldingDays && gain.IsPositive()
	discount := decimal.Zero
	if eligible {
		discount = gain.Mul(discountRate)
	}

	return Outcome{
		CostBase:          costBase,
		Proceeds:          proceeds,
		CapitalGainLoss:   gain,
		HoldingPeriodDays: days,
		DiscountEligible:  eligible,
		DiscountAmount:    discount,
		NetCapitalGain:    gain.Sub(discount),
	}
}

// DaysBetween returns the whole-day difference between two dates,
// ignoring any time-of-day component. Same day yields 0.
func DaysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
