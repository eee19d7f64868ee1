package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02/01/2006 15:04:05",
	"02-01-2006",
	"01/02/2006",
}

// ParseFlexibleDate parses a date string, trying the common broker export
// formats in order. Day-first formats are tried before month-first.
func ParseFlexibleDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	for _, format := range dateFormats {
		if t, err := time.Parse(format, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date: %q", value)
}

// ParseDecimal parses a monetary string to an exact decimal, stripping
// currency symbols and thousands separators. Empty strings parse to zero.
func ParseDecimal(value string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(value)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cannot parse decimal: %q", value)
	}
	return d, nil
}
