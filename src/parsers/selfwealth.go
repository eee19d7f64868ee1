package parsers

import (
	"io"

	"github.com/username/cgtfolio/backend/src/models"
)

// selfWealthMapping maps SelfWealth's trade confirmation export columns
// onto the canonical record fields.
var selfWealthMapping = map[string]string{
	"Trade Date":    "trade_date",
	"Action":        "transaction_type",
	"Code":          "ticker",
	"Units":         "quantity",
	"Average Price": "unit_price",
	"Brokerage":     "brokerage",
	"Total":         "total_value",
	"Exchange":      "exchange",
	"Currency":      "currency",
}

var selfWealthRequiredHeaders = []string{
	"Trade Date", "Action", "Code", "Units", "Average Price",
}

// SelfWealthParser recognises the SelfWealth CSV export and delegates
// the row parsing to a generic parser with a fixed mapping.
type SelfWealthParser struct {
	inner *GenericParser
}

func NewSelfWealthParser() *SelfWealthParser {
	inner, err := NewGenericParser(selfWealthMapping)
	if err != nil {
		// The fixed mapping covers every required field.
		panic(err)
	}
	return &SelfWealthParser{inner: inner}
}

// DetectSelfWealth reports whether a CSV header row looks like a
// SelfWealth export.
func DetectSelfWealth(headers []string) bool {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	for _, required := range selfWealthRequiredHeaders {
		if !present[required] {
			return false
		}
	}
	return true
}

func (p *SelfWealthParser) Parse(file io.Reader) ([]models.TradeRecord, []RowError, error) {
	return p.inner.Parse(file)
}
