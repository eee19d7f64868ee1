package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/cgtfolio/backend/src/models"
)

const matchColumns = `id, parcel_id, sell_transaction_id, matched_quantity, cost_base,
	proceeds, capital_gain_loss, holding_period_days, cgt_discount_eligible,
	discount_amount, net_capital_gain`

func scanMatch(r rowScanner) (*models.ParcelMatch, error) {
	var m models.ParcelMatch
	var costBase, proceeds, gain, discount, net string
	if err := r.Scan(&m.ID, &m.ParcelID, &m.SellTransactionID, &m.MatchedQuantity,
		&costBase, &proceeds, &gain, &m.HoldingPeriodDays, &m.DiscountEligible,
		&discount, &net); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning parcel match: %w", err)
	}
	var err error
	if m.CostBase, err = decimal.NewFromString(costBase); err != nil {
		return nil, fmt.Errorf("parsing cost base %q: %w", costBase, err)
	}
	if m.Proceeds, err = decimal.NewFromString(proceeds); err != nil {
		return nil, fmt.Errorf("parsing proceeds %q: %w", proceeds, err)
	}
	if m.CapitalGainLoss, err = decimal.NewFromString(gain); err != nil {
		return nil, fmt.Errorf("parsing capital gain/loss %q: %w", gain, err)
	}
	if m.DiscountAmount, err = decimal.NewFromString(discount); err != nil {
		return nil, fmt.Errorf("parsing discount amount %q: %w", discount, err)
	}
	if m.NetCapitalGain, err = decimal.NewFromString(net); err != nil {
		return nil, fmt.Errorf("parsing net capital gain %q: %w", net, err)
	}
	return &m, nil
}

func InsertMatchTx(tx *sql.Tx, m *models.ParcelMatch) error {
	res, err := tx.Exec(`
	INSERT INTO parcel_matches (parcel_id, sell_transaction_id, matched_quantity,
		cost_base, proceeds, capital_gain_loss, holding_period_days,
		cgt_discount_eligible, discount_amount, net_capital_gain)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ParcelID, m.SellTransactionID, m.MatchedQuantity,
		m.CostBase.String(), m.Proceeds.String(), m.CapitalGainLoss.String(),
		m.HoldingPeriodDays, m.DiscountEligible,
		m.DiscountAmount.String(), m.NetCapitalGain.String())
	if err != nil {
		return fmt.Errorf("inserting parcel match: %w", err)
	}
	m.ID, err = res.LastInsertId()
	return err
}

func (s *SQLStore) MatchesForSell(sellID int64) ([]*models.ParcelMatch, error) {
	rows, err := s.db.Query(`SELECT `+matchColumns+` FROM parcel_matches
		WHERE sell_transaction_id = ? ORDER BY id ASC`, sellID)
	if err != nil {
		return nil, fmt.Errorf("querying matches for sell %d: %w", sellID, err)
	}
	defer rows.Close()

	var matches []*models.ParcelMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func MatchesForSellTx(tx *sql.Tx, sellID int64) ([]*models.ParcelMatch, error) {
	rows, err := tx.Query(`SELECT `+matchColumns+` FROM parcel_matches
		WHERE sell_transaction_id = ? ORDER BY id ASC`, sellID)
	if err != nil {
		return nil, fmt.Errorf("querying matches for sell %d: %w", sellID, err)
	}
	defer rows.Close()

	var matches []*models.ParcelMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func DeleteMatchesForSellTx(tx *sql.Tx, sellID int64) error {
	if _, err := tx.Exec(`DELETE FROM parcel_matches WHERE sell_transaction_id = ?`, sellID); err != nil {
		return fmt.Errorf("deleting matches for sell %d: %w", sellID, err)
	}
	return nil
}

// MatchRow is a committed match joined with its sell date and ticker, as the
// financial-year aggregator consumes it.
type MatchRow struct {
	Match     *models.ParcelMatch
	TradeDate time.Time
	Ticker    string
}

// MatchesInRange returns committed matches whose sell trade date falls in
// [from, to], inclusive.
func (s *SQLStore) MatchesInRange(from, to time.Time) ([]MatchRow, error) {
	rows, err := s.db.Query(`
	SELECT m.id, m.parcel_id, m.sell_transaction_id, m.matched_quantity, m.cost_base,
	       m.proceeds, m.capital_gain_loss, m.holding_period_days, m.cgt_discount_eligible,
	       m.discount_amount, m.net_capital_gain, t.trade_date, s.ticker
	FROM parcel_matches m
	JOIN transactions t ON t.id = m.sell_transaction_id
	JOIN securities s ON s.id = t.security_id
	WHERE t.trade_date >= ? AND t.trade_date <= ?
	ORDER BY t.trade_date ASC, m.id ASC`,
		from.Format(dateFormat), to.Format(dateFormat))
	if err != nil {
		return nil, fmt.Errorf("querying matches in range: %w", err)
	}
	defer rows.Close()

	var result []MatchRow
	for rows.Next() {
		var m models.ParcelMatch
		var costBase, proceeds, gain, discount, net, tradeDate, ticker string
		if err := rows.Scan(&m.ID, &m.ParcelID, &m.SellTransactionID, &m.MatchedQuantity,
			&costBase, &proceeds, &gain, &m.HoldingPeriodDays, &m.DiscountEligible,
			&discount, &net, &tradeDate, &ticker); err != nil {
			return nil, fmt.Errorf("scanning match row: %w", err)
		}
		var err error
		if m.CostBase, err = decimal.NewFromString(costBase); err != nil {
			return nil, fmt.Errorf("parsing cost base %q: %w", costBase, err)
		}
		if m.Proceeds, err = decimal.NewFromString(proceeds); err != nil {
			return nil, fmt.Errorf("parsing proceeds %q: %w", proceeds, err)
		}
		if m.CapitalGainLoss, err = decimal.NewFromString(gain); err != nil {
			return nil, fmt.Errorf("parsing capital gain/loss %q: %w", gain, err)
		}
		if m.DiscountAmount, err = decimal.NewFromString(discount); err != nil {
			return nil, fmt.Errorf("parsing discount amount %q: %w", discount, err)
		}
		if m.NetCapitalGain, err = decimal.NewFromString(net); err != nil {
			return nil, fmt.Errorf("parsing net capital gain %q: %w", net, err)
		}
		date, err := time.Parse(dateFormat, tradeDate)
		if err != nil {
			return nil, fmt.Errorf("parsing trade date %q: %w", tradeDate, err)
		}
		result = append(result, MatchRow{Match: &m, TradeDate: date, Ticker: ticker})
	}
	return result, rows.Err()
}

// MatchedSellDates returns the distinct trade dates of sells that have at
// least one committed match, for financial-year discovery.
func (s *SQLStore) MatchedSellDates() ([]time.Time, error) {
	rows, err := s.db.Query(`
	SELECT DISTINCT t.trade_date
	FROM parcel_matches m
	JOIN transactions t ON t.id = m.sell_transaction_id
	ORDER BY t.trade_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying matched sell dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning trade date: %w", err)
		}
		d, err := time.Parse(dateFormat, raw)
		if err != nil {
			return nil, fmt.Errorf("parsing trade date %q: %w", raw, err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}
