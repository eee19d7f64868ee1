package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Parcel is the block of shares created by exactly one buy transaction.
// Only the commit path mutates RemainingQuantity; everything else is fixed
// at acquisition. Invariant: 0 <= RemainingQuantity <= OriginalQuantity,
// and IsFullyMatched iff RemainingQuantity == 0.
type Parcel struct {
	ID                int64           `json:"id"`
	TransactionID     int64           `json:"transaction_id"`
	SecurityID        int64           `json:"security_id"`
	AcquisitionDate   time.Time       `json:"acquisition_date"`
	OriginalQuantity  int64           `json:"original_quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	CostPerUnit       decimal.Decimal `json:"cost_per_unit"`     // reporting currency, brokerage included
	TotalCostBase     decimal.Decimal `json:"total_cost_base"`   // reporting currency
	IsFullyMatched    bool            `json:"is_fully_matched"`
}
