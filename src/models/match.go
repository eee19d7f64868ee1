package models

import "github.com/shopspring/decimal"

// ParcelMatch links one parcel to one sell transaction for a quantity.
// The tax figures are computed at match time and stored as-is; they are
// never recomputed, so the ledger stays auditable even if calculation
// rules change later.
type ParcelMatch struct {
	ID                int64           `json:"id"`
	ParcelID          int64           `json:"parcel_id"`
	SellTransactionID int64           `json:"sell_transaction_id"`
	MatchedQuantity   int64           `json:"matched_quantity"`
	CostBase          decimal.Decimal `json:"cost_base"`
	Proceeds          decimal.Decimal `json:"proceeds"`
	CapitalGainLoss   decimal.Decimal `json:"capital_gain_loss"`
	HoldingPeriodDays int             `json:"holding_period_days"`
	DiscountEligible  bool            `json:"cgt_discount_eligible"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	NetCapitalGain    decimal.Decimal `json:"net_capital_gain"`
}
