package parsers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/username/cgtfolio/backend/src/models"
	"github.com/username/cgtfolio/backend/src/security/validation"
	"github.com/username/cgtfolio/backend/src/utils"
)

// Canonical field names a column mapping may target.
var CanonicalFields = []string{
	"trade_date",
	"transaction_type",
	"ticker",
	"quantity",
	"unit_price",
	"brokerage",
	"total_value",
	"exchange_rate",
	"currency",
	"exchange",
	"asset_type",
}

var requiredFields = []string{
	"trade_date",
	"transaction_type",
	"ticker",
	"quantity",
	"unit_price",
}

// GenericParser parses any CSV whose columns are described by a
// header-name → canonical-field mapping.
type GenericParser struct {
	mapping map[string]string
}

func NewGenericParser(mapping map[string]string) (*GenericParser, error) {
	mapped := make(map[string]bool, len(mapping))
	for _, field := range mapping {
		mapped[field] = true
	}
	for _, field := range requiredFields {
		if !mapped[field] {
			return nil, fmt.Errorf("column mapping missing required field %q", field)
		}
	}
	return &GenericParser{mapping: mapping}, nil
}

func (p *GenericParser) Parse(file io.Reader) ([]models.TradeRecord, []RowError, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	// column index -> canonical field
	fieldAt := make(map[int]string)
	for i, h := range headers {
		if field, ok := p.mapping[strings.TrimSpace(h)]; ok {
			fieldAt[i] = field
		}
	}

	var records []models.TradeRecord
	var rowErrors []RowError
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			rowErrors = append(rowErrors, RowError{Line: line, Reason: err.Error()})
			continue
		}
		// FieldPos stays accurate when a quoted field spans lines.
		line, _ := reader.FieldPos(0)

		fields := make(map[string]string)
		for i, value := range row {
			if field, ok := fieldAt[i]; ok {
				fields[field] = validation.StripUnprintable(value)
			}
		}

		record, err := buildRecord(fields)
		if err != nil {
			rowErrors = append(rowErrors, RowError{Line: line, Reason: err.Error()})
			continue
		}
		records = append(records, record)
	}
	return records, rowErrors, nil
}

func buildRecord(fields map[string]string) (models.TradeRecord, error) {
	var rec models.TradeRecord
	var err error

	if rec.TradeDate, err = utils.ParseFlexibleDate(fields["trade_date"]); err != nil {
		return rec, err
	}
	if rec.Type, err = normaliseTransactionType(fields["transaction_type"]); err != nil {
		return rec, err
	}

	rec.Ticker = strings.ToUpper(strings.TrimSpace(fields["ticker"]))
	if rec.Ticker == "" {
		return rec, fmt.Errorf("missing ticker")
	}

	qty, err := strconv.ParseInt(strings.TrimSpace(fields["quantity"]), 10, 64)
	if err != nil {
		return rec, fmt.Errorf("cannot parse quantity: %q", fields["quantity"])
	}
	if qty <= 0 {
		return rec, fmt.Errorf("quantity must be positive, got %d", qty)
	}
	rec.Quantity = qty

	if rec.UnitPrice, err = utils.ParseDecimal(fields["unit_price"]); err != nil {
		return rec, err
	}
	if rec.Brokerage, err = utils.ParseDecimal(fields["brokerage"]); err != nil {
		return rec, err
	}
	if rec.TotalValue, err = utils.ParseDecimal(fields["total_value"]); err != nil {
		return rec, err
	}
	if raw := strings.TrimSpace(fields["exchange_rate"]); raw != "" {
		if rec.ExchangeRate, err = utils.ParseDecimal(raw); err != nil {
			return rec, err
		}
	}
	if rec.ExchangeRate.IsZero() {
		rec.ExchangeRate = decimal.NewFromInt(1)
	}
	if rec.TotalValue.IsZero() {
		rec.TotalValue = rec.UnitPrice.Mul(decimal.NewFromInt(rec.Quantity))
	}

	rec.Currency = strings.ToUpper(strings.TrimSpace(fields["currency"]))
	rec.Exchange = strings.ToUpper(strings.TrimSpace(fields["exchange"]))
	rec.AssetType = strings.ToUpper(strings.TrimSpace(fields["asset_type"]))
	return rec, nil
}

func normaliseTransactionType(value string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "BUY", "B":
		return models.TransactionTypeBuy, nil
	case "SELL", "S":
		return models.TransactionTypeSell, nil
	case "IN", "OUT":
		return "", fmt.Errorf("corporate action %q is not a trade, skipped", value)
	}
	return "", fmt.Errorf("unknown transaction type: %q", value)
}
