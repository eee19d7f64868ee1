package services

import (
	"errors"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/cgtfolio/backend/src/engine"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrSecurityNotFound    = errors.New("security not found")
	ErrNotSellTransaction  = errors.New("transaction is not a sell")
	ErrAlreadyFullyMatched = errors.New("sell transaction is already fully matched")
	ErrPreviewNotFound     = errors.New("preview not found or expired")
	ErrNoMatchesToReverse  = errors.New("sell transaction has no committed matches")
	ErrImportFailed        = errors.New("import failed")
)

// PreviewAllocation is one allocation of a preview or forecast: a parcel,
// the quantity consumed from it, and the computed tax figures.
type PreviewAllocation struct {
	ParcelID        int64           `json:"parcel_id"`
	AcquisitionDate time.Time       `json:"acquisition_date"`
	CostPerUnit     decimal.Decimal `json:"cost_per_unit"`
	MatchedQuantity int64           `json:"matched_quantity"`
	engine.Outcome
}

// AllocationTotals sums a set of allocations.
type AllocationTotals struct {
	CostBase       decimal.Decimal `json:"total_cost_base"`
	Proceeds       decimal.Decimal `json:"total_proceeds"`
	GainLoss       decimal.Decimal `json:"total_gain_loss"`
	Discount       decimal.Decimal `json:"total_discount"`
	NetCapitalGain decimal.Decimal `json:"total_net_gain"`
}

// MatchPreview is a computed-but-unsaved allocation plan for a sell. Commit
// persists it; discarding it has no effect anywhere.
type MatchPreview struct {
	ID                string              `json:"id"`
	SellTransactionID int64               `json:"sell_transaction_id"`
	SecurityID        int64               `json:"security_id"`
	Ticker            string              `json:"ticker"`
	Strategy          string              `json:"strategy"`
	Quantity          int64               `json:"quantity"`
	CreatedAt         time.Time           `json:"created_at"`
	Allocations       []PreviewAllocation `json:"allocations"`
	Totals            AllocationTotals    `json:"totals"`
}

// CommitResult reports a persisted preview.
type CommitResult struct {
	SellTransactionID int64   `json:"sell_transaction_id"`
	MatchIDs          []int64 `json:"match_ids"`
	MatchedQuantity   int64   `json:"matched_quantity"`
	SellFullyMatched  bool    `json:"sell_fully_matched"`
}

// MatchingService builds previews and commits them. Previews are pure reads;
// Commit is the only write path for parcels and matches.
type MatchingService interface {
	Preview(sellID int64, strategy engine.Strategy, manual []engine.ManualAllocation) (*MatchPreview, error)
	Commit(previewID string) (*CommitResult, error)
	UnmatchSell(sellID int64) error
}

// StrategyForecast is one strategy's simulated outcome.
type StrategyForecast struct {
	Strategy    string              `json:"strategy"`
	Allocations []PreviewAllocation `json:"allocations"`
	Totals      AllocationTotals    `json:"totals"`
}

// ForecastResult compares FIFO, LIFO and Optimal for a hypothetical sell.
type ForecastResult struct {
	Ticker   string           `json:"ticker"`
	Quantity int64            `json:"quantity"`
	Price    decimal.Decimal  `json:"price"`
	SellDate time.Time        `json:"sell_date"`
	FIFO     StrategyForecast `json:"fifo"`
	LIFO     StrategyForecast `json:"lifo"`
	Optimal  StrategyForecast `json:"optimal"`
}

type ForecastService interface {
	Forecast(ticker string, quantity int64, price decimal.Decimal, sellDate time.Time) (*ForecastResult, error)
}

// SecuritySummary is the per-security slice of a financial-year report.
type SecuritySummary struct {
	Ticker     string          `json:"ticker"`
	Gains      decimal.Decimal `json:"gains"`
	Losses     decimal.Decimal `json:"losses"`
	Discounts  decimal.Decimal `json:"discounts"`
	Net        decimal.Decimal `json:"net"`
	MatchCount int             `json:"match_count"`
}

type FYSummary struct {
	FinancialYear  int               `json:"financial_year"`
	Label          string            `json:"label"`
	StartDate      time.Time         `json:"start_date"`
	EndDate        time.Time         `json:"end_date"`
	TotalGains     decimal.Decimal   `json:"total_gains"`
	TotalLosses    decimal.Decimal   `json:"total_losses"`
	TotalDiscounts decimal.Decimal   `json:"total_discounts"`
	NetCapitalGain decimal.Decimal   `json:"net_capital_gain"`
	MatchCount     int               `json:"match_count"`
	PerSecurity    []SecuritySummary `json:"per_security"`
}

type ReportService interface {
	FYSummary(year int) (*FYSummary, error)
	AvailableFYs() ([]int, error)
}

// ImportResult summarises one CSV ingestion run. Row errors are collected,
// not fatal; valid rows still land.
type ImportResult struct {
	Created           int      `json:"created"`
	ParcelsCreated    int      `json:"parcels_created"`
	SkippedDuplicates int      `json:"skipped_duplicates"`
	RowErrors         []string `json:"row_errors,omitempty"`
}

type ImportService interface {
	ImportCSV(r io.Reader, source string, mapping map[string]string) (*ImportResult, error)
}
