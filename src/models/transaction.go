package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeBuy  = "BUY"
	TransactionTypeSell = "SELL"
)

// Transaction is a buy or sell event. Immutable after creation: editing
// matched data means a new transaction plus re-matching, never an in-place
// update.
type Transaction struct {
	ID             int64           `json:"id"`
	SecurityID     int64           `json:"security_id"`
	TradeDate      time.Time       `json:"trade_date"`
	Type           string          `json:"type"` // BUY or SELL
	Quantity       int64           `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Brokerage      decimal.Decimal `json:"brokerage"`
	TotalValue     decimal.Decimal `json:"total_value"`
	Currency       string          `json:"currency"`
	ExchangeRate   decimal.Decimal `json:"exchange_rate"` // to the reporting currency
	IsFullyMatched bool            `json:"is_fully_matched"`
	HashID         string          `json:"-"` // import dedupe key
}

func (t *Transaction) IsSell() bool { return t.Type == TransactionTypeSell }
func (t *Transaction) IsBuy() bool  { return t.Type == TransactionTypeBuy }
