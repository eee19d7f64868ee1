package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is one canonical row produced by a CSV parser, before any
// persistence. Ingestion turns it into a Transaction (and a Parcel for
// buys).
type TradeRecord struct {
	TradeDate    time.Time
	Type         string // BUY or SELL
	Ticker       string
	Quantity     int64
	UnitPrice    decimal.Decimal
	Brokerage    decimal.Decimal
	TotalValue   decimal.Decimal
	ExchangeRate decimal.Decimal
	Currency     string
	Exchange     string
	AssetType    string
}
