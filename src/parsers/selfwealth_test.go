package parsers

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/cgtfolio/backend/src/models"
)

const selfWealthSample = `Trade Date,Action,Code,Units,Average Price,Brokerage,Total,Exchange,Currency
15/03/2023,Buy,BHP,100,44.50,9.50,4459.50,ASX,AUD
20/06/2023,Sell,BHP,40,46.00,9.50,1830.50,ASX,AUD
`

func TestDetectSelfWealth(t *testing.T) {
	assert.True(t, DetectSelfWealth([]string{"Trade Date", "Action", "Code", "Units", "Average Price", "Brokerage", "Total"}))
	assert.False(t, DetectSelfWealth([]string{"Date", "Type", "Symbol", "Qty"}))
}

func TestSelfWealthParse(t *testing.T) {
	records, rowErrors, err := NewSelfWealthParser().Parse(strings.NewReader(selfWealthSample))
	require.NoError(t, err)
	assert.Empty(t, rowErrors)
	require.Len(t, records, 2)

	buy := records[0]
	assert.Equal(t, models.TransactionTypeBuy, buy.Type)
	assert.Equal(t, "BHP", buy.Ticker)
	assert.Equal(t, int64(100), buy.Quantity)
	assert.True(t, buy.UnitPrice.Equal(decimal.RequireFromString("44.50")))
	assert.True(t, buy.Brokerage.Equal(decimal.RequireFromString("9.50")))
	assert.True(t, buy.TotalValue.Equal(decimal.RequireFromString("4459.50")))
	assert.True(t, buy.ExchangeRate.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "AUD", buy.Currency)
	assert.Equal(t, "2023-03-15", buy.TradeDate.Format("2006-01-02"))

	sell := records[1]
	assert.Equal(t, models.TransactionTypeSell, sell.Type)
	assert.Equal(t, int64(40), sell.Quantity)
}

func TestSelfWealthParseCollectsRowErrors(t *testing.T) {
	input := `Trade Date,Action,Code,Units,Average Price,Brokerage,Total,Exchange,Currency
15/03/2023,Buy,BHP,100,44.50,9.50,4459.50,ASX,AUD
garbage-date,Buy,BHP,100,44.50,9.50,4459.50,ASX,AUD
15/03/2023,Transfer,BHP,100,44.50,9.50,4459.50,ASX,AUD
15/03/2023,Buy,BHP,-5,44.50,9.50,4459.50,ASX,AUD
`
	records, rowErrors, err := NewSelfWealthParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, records, 1)
	require.Len(t, rowErrors, 3)
	assert.Equal(t, 3, rowErrors[0].Line)
	assert.Equal(t, 4, rowErrors[1].Line)
	assert.Equal(t, 5, rowErrors[2].Line)
}

func TestGenericParserMapping(t *testing.T) {
	mapping := map[string]string{
		"Date":   "trade_date",
		"Side":   "transaction_type",
		"Symbol": "ticker",
		"Qty":    "quantity",
		"Price":  "unit_price",
		"FX":     "exchange_rate",
	}
	input := `Date,Side,Symbol,Qty,Price,FX
2023-01-10,B,AAPL,10,150.25,1.48
`
	parser, err := NewGenericParser(mapping)
	require.NoError(t, err)

	records, rowErrors, err := parser.Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, rowErrors)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, models.TransactionTypeBuy, rec.Type)
	assert.Equal(t, "AAPL", rec.Ticker)
	assert.True(t, rec.ExchangeRate.Equal(decimal.RequireFromString("1.48")))
	// Total defaults to quantity x price when the file has no total column.
	assert.True(t, rec.TotalValue.Equal(decimal.RequireFromString("1502.5")))
}

func TestParseStripsUnprintableCharacters(t *testing.T) {
	input := "Trade Date,Action,Code,Units,Average Price,Brokerage,Total,Exchange,Currency\n" +
		"15/03/2023,Buy,BH\x00P,100,44.50,9.50,4459.50,ASX,AU\x07D\n"
	records, rowErrors, err := NewSelfWealthParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, rowErrors)
	require.Len(t, records, 1)
	assert.Equal(t, "BHP", records[0].Ticker)
	assert.Equal(t, "AUD", records[0].Currency)
}

func TestRowErrorLinesTrackPhysicalLines(t *testing.T) {
	mapping := map[string]string{
		"Date":   "trade_date",
		"Side":   "transaction_type",
		"Symbol": "ticker",
		"Qty":    "quantity",
		"Price":  "unit_price",
	}
	// The Note field of the first record spans two physical lines, so the
	// bad row starts on line 4, not line 3.
	input := "Date,Side,Symbol,Qty,Price,Note\n" +
		"2023-01-10,B,AAPL,10,150.25,\"spans\ntwo lines\"\n" +
		"bad-date,B,AAPL,10,150.25,x\n"
	parser, err := NewGenericParser(mapping)
	require.NoError(t, err)

	records, rowErrors, err := parser.Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, records, 1)
	require.Len(t, rowErrors, 1)
	assert.Equal(t, 4, rowErrors[0].Line)
}

func TestGenericParserRequiresCoreFields(t *testing.T) {
	_, err := NewGenericParser(map[string]string{"Date": "trade_date"})
	assert.Error(t, err)
}

func TestGetParser(t *testing.T) {
	p, err := GetParser("selfwealth", nil)
	require.NoError(t, err)
	assert.IsType(t, &SelfWealthParser{}, p)

	_, err = GetParser("generic", nil)
	assert.Error(t, err)

	_, err = GetParser("etrade", nil)
	assert.Error(t, err)
}

func TestDetectParser(t *testing.T) {
	p, r, err := DetectParser(strings.NewReader(selfWealthSample))
	require.NoError(t, err)
	assert.IsType(t, &SelfWealthParser{}, p)

	records, _, err := p.Parse(r)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, _, err = DetectParser(strings.NewReader("a,b,c\n1,2,3\n"))
	assert.Error(t, err)
}
