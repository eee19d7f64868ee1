package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/cgtfolio/backend/src/models"
)

const transactionColumns = `id, security_id, trade_date, transaction_type, quantity,
	unit_price, brokerage, total_value, currency, exchange_rate, is_fully_matched,
	COALESCE(hash_id, '')`

func scanTransaction(r rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var tradeDate, unitPrice, brokerage, totalValue, fx string
	if err := r.Scan(&t.ID, &t.SecurityID, &tradeDate, &t.Type, &t.Quantity,
		&unitPrice, &brokerage, &totalValue, &t.Currency, &fx,
		&t.IsFullyMatched, &t.HashID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning transaction: %w", err)
	}
	var err error
	if t.TradeDate, err = time.Parse(dateFormat, tradeDate); err != nil {
		return nil, fmt.Errorf("parsing trade date %q: %w", tradeDate, err)
	}
	if t.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return nil, fmt.Errorf("parsing unit price %q: %w", unitPrice, err)
	}
	if t.Brokerage, err = decimal.NewFromString(brokerage); err != nil {
		return nil, fmt.Errorf("parsing brokerage %q: %w", brokerage, err)
	}
	if t.TotalValue, err = decimal.NewFromString(totalValue); err != nil {
		return nil, fmt.Errorf("parsing total value %q: %w", totalValue, err)
	}
	if t.ExchangeRate, err = decimal.NewFromString(fx); err != nil {
		return nil, fmt.Errorf("parsing exchange rate %q: %w", fx, err)
	}
	return &t, nil
}

func (s *SQLStore) GetTransaction(id int64) (*models.Transaction, error) {
	row := s.db.QueryRow(`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	SecurityID    int64
	Type          string // BUY or SELL
	UnmatchedOnly bool   // sells with matched quantity below their quantity
}

func (s *SQLStore) ListTransactions(f TransactionFilter) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	var args []any
	if f.SecurityID != 0 {
		query += ` AND security_id = ?`
		args = append(args, f.SecurityID)
	}
	if f.Type != "" {
		query += ` AND transaction_type = ?`
		args = append(args, f.Type)
	}
	if f.UnmatchedOnly {
		query += ` AND transaction_type = 'SELL' AND is_fully_matched = FALSE`
	}
	query += ` ORDER BY trade_date DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (s *SQLStore) TransactionExistsByHash(hashID string) (bool, error) {
	return transactionExistsByHash(s.db, hashID)
}

func TransactionExistsByHashTx(tx *sql.Tx, hashID string) (bool, error) {
	return transactionExistsByHash(tx, hashID)
}

func transactionExistsByHash(q querier, hashID string) (bool, error) {
	var id int64
	err := q.QueryRow(`SELECT id FROM transactions WHERE hash_id = ?`, hashID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking transaction hash: %w", err)
	}
	return true, nil
}

func InsertTransactionTx(tx *sql.Tx, t *models.Transaction) error {
	res, err := tx.Exec(`
	INSERT INTO transactions (security_id, trade_date, transaction_type, quantity,
		unit_price, brokerage, total_value, currency, exchange_rate, is_fully_matched, hash_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.SecurityID, t.TradeDate.Format(dateFormat), t.Type, t.Quantity,
		t.UnitPrice.String(), t.Brokerage.String(), t.TotalValue.String(),
		t.Currency, t.ExchangeRate.String(), t.IsFullyMatched, nullable(t.HashID))
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// MatchedQuantityForSell sums the committed matched quantity of a sell.
func (s *SQLStore) MatchedQuantityForSell(sellID int64) (int64, error) {
	return matchedQuantityForSell(s.db, sellID)
}

func MatchedQuantityForSellTx(tx *sql.Tx, sellID int64) (int64, error) {
	return matchedQuantityForSell(tx, sellID)
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func matchedQuantityForSell(q querier, sellID int64) (int64, error) {
	var total int64
	err := q.QueryRow(`SELECT COALESCE(SUM(matched_quantity), 0)
		FROM parcel_matches WHERE sell_transaction_id = ?`, sellID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing matched quantity for sell %d: %w", sellID, err)
	}
	return total, nil
}

// SetTransactionMatchedTx flags a sell as fully matched (or clears it on
// reversal).
func SetTransactionMatchedTx(tx *sql.Tx, id int64, matched bool) error {
	if _, err := tx.Exec(`UPDATE transactions SET is_fully_matched = ? WHERE id = ?`, matched, id); err != nil {
		return fmt.Errorf("updating transaction %d matched flag: %w", id, err)
	}
	return nil
}
